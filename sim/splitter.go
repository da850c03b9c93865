package sim

import "fmt"

// Splitter partitions the source's daily flow across several destinations,
// each with its own fraction and delay kernel.
//
// Two fraction forms are accepted for n destinations:
//   - n-1 fractions: the last destination implicitly receives 1 - sum,
//     conserving the full flow.
//   - n fractions: every branch is explicit and any shortfall of the sum
//     from 1 is silently dropped; no absorbing population is inferred.
//
// In either form the fractions must be bounded within [0,1] and their
// values must not sum above 1.
type Splitter struct {
	Name      string
	Source    *Population
	Dests     []*Population
	Fractions []*Parameter
	Delays    []*Delay

	implicitLast bool
}

// NewSplitter validates and creates a splitter.
func NewSplitter(name string, source *Population, dests []*Population, fractions []*Parameter, delays []*Delay) (*Splitter, error) {
	if source == nil {
		return nil, fmt.Errorf("splitter %q: source population is required", name)
	}
	if len(dests) < 2 {
		return nil, fmt.Errorf("splitter %q: at least two destinations are required, got %d", name, len(dests))
	}
	if len(delays) != len(dests) {
		return nil, fmt.Errorf("splitter %q: %d destinations but %d delays", name, len(dests), len(delays))
	}
	if len(fractions) != len(dests) && len(fractions) != len(dests)-1 {
		return nil, fmt.Errorf("splitter %q: %d destinations need %d or %d fractions, got %d",
			name, len(dests), len(dests)-1, len(dests), len(fractions))
	}
	sum := 0.0
	for _, f := range fractions {
		if f == nil {
			return nil, fmt.Errorf("splitter %q: nil fraction parameter", name)
		}
		if f.Min < 0 || f.Max > 1 {
			return nil, fmt.Errorf("splitter %q: fraction %q must be bounded within [0,1]", name, f.Name)
		}
		sum += f.Value()
	}
	if sum > 1+1e-9 {
		return nil, fmt.Errorf("splitter %q: fractions sum to %g, must not exceed 1", name, sum)
	}
	for i, d := range dests {
		if d == nil {
			return nil, fmt.Errorf("splitter %q: nil destination %d", name, i)
		}
		if delays[i] == nil {
			return nil, fmt.Errorf("splitter %q: nil delay %d", name, i)
		}
	}
	return &Splitter{
		Name:         name,
		Source:       source,
		Dests:        dests,
		Fractions:    fractions,
		Delays:       delays,
		implicitLast: len(fractions) == len(dests)-1,
	}, nil
}

func (c *Splitter) ConnectorName() string { return c.Name }

func (c *Splitter) Populations() []*Population {
	pops := make([]*Population, 0, len(c.Dests)+1)
	pops = append(pops, c.Source)
	pops = append(pops, c.Dests...)
	return pops
}

// branchFractions returns one fraction per destination, synthesizing the
// implicit remainder branch when the splitter was built with n-1 fractions.
func (c *Splitter) branchFractions() []float64 {
	fracs := make([]float64, 0, len(c.Dests))
	sum := 0.0
	for _, f := range c.Fractions {
		v := f.Value()
		fracs = append(fracs, v)
		sum += v
	}
	if c.implicitLast {
		rest := 1 - sum
		if rest < 0 {
			rest = 0
		}
		fracs = append(fracs, rest)
	}
	return fracs
}

func (c *Splitter) Step(mode Mode, rng *RandStreams) {
	incoming := c.Source.Pending()
	if incoming == 0 {
		return
	}
	fracs := c.branchFractions()
	if mode == ModeData {
		stream := rng.ForSubsystem(SubsystemDelays)
		counts := drawMultinomial(stream, incoming, fracs)
		for i, n := range counts {
			if n > 0 {
				c.Dests[i].UpdateFutureData(n, c.Delays[i], stream)
			}
		}
		return
	}
	for i, f := range fracs {
		if f > 0 {
			c.Dests[i].UpdateFutureExpectation(incoming*f, c.Delays[i])
		}
	}
}
