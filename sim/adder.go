package sim

import "fmt"

// Adder copies the source's daily flow into the destination with zero
// delay, building derived aggregates such as "all hospitalizations" out of
// independent admission streams.
type Adder struct {
	Name   string
	Source *Population
	Dest   *Population
}

// NewAdder validates and creates an adder.
func NewAdder(name string, source, dest *Population) (*Adder, error) {
	if source == nil || dest == nil {
		return nil, fmt.Errorf("adder %q: source and dest populations are required", name)
	}
	if source == dest {
		return nil, fmt.Errorf("adder %q: source and dest must differ", name)
	}
	return &Adder{Name: name, Source: source, Dest: dest}, nil
}

func (c *Adder) ConnectorName() string { return c.Name }

func (c *Adder) Populations() []*Population {
	return []*Population{c.Source, c.Dest}
}

func (c *Adder) Step(mode Mode, rng *RandStreams) {
	if v := c.Source.Pending(); v != 0 {
		c.Dest.UpdateFutureFast(v)
	}
}
