package sim

import "fmt"

// Chain composes a sequence of propagators end-to-end for multi-hop delays
// whose intermediate populations carry no named state of their own. The
// links' hidden populations are still registered and stepped by the model
// (flow in transit must age day by day); they are simply not part of the
// model's reported surface.
type Chain struct {
	Name  string
	Links []*Propagator
}

// NewChain validates that consecutive links share their endpoint: each
// link's destination must be the next link's source.
func NewChain(name string, links []*Propagator) (*Chain, error) {
	if len(links) == 0 {
		return nil, fmt.Errorf("chain %q: at least one link is required", name)
	}
	for i := 0; i < len(links)-1; i++ {
		if links[i].Dest != links[i+1].Source {
			return nil, fmt.Errorf("chain %q: link %q dest %q does not feed link %q source %q",
				name, links[i].Name, links[i].Dest.Name, links[i+1].Name, links[i+1].Source.Name)
		}
	}
	return &Chain{Name: name, Links: links}, nil
}

func (c *Chain) ConnectorName() string { return c.Name }

func (c *Chain) Populations() []*Population {
	pops := []*Population{c.Links[0].Source}
	for _, link := range c.Links {
		pops = append(pops, link.Dest)
	}
	return pops
}

func (c *Chain) Step(mode Mode, rng *RandStreams) {
	for _, link := range c.Links {
		link.Step(mode, rng)
	}
}
