package sim

import "fmt"

// Propagator moves a fraction of the source's daily flow into the
// destination, spread over a delay kernel. In data mode the transferred
// count is a binomial thinning of the source flow, then scattered across
// day offsets with one multinomial draw.
type Propagator struct {
	Name     string
	Source   *Population
	Dest     *Population
	Fraction *Parameter
	Delay    *Delay
}

// NewPropagator validates and creates a propagator. The fraction parameter
// must be bounded within [0, 1].
func NewPropagator(name string, source, dest *Population, fraction *Parameter, delay *Delay) (*Propagator, error) {
	if source == nil || dest == nil {
		return nil, fmt.Errorf("propagator %q: source and dest populations are required", name)
	}
	if fraction == nil {
		return nil, fmt.Errorf("propagator %q: fraction parameter is required", name)
	}
	if fraction.Min < 0 || fraction.Max > 1 {
		return nil, fmt.Errorf("propagator %q: fraction %q must be bounded within [0,1]", name, fraction.Name)
	}
	if delay == nil {
		return nil, fmt.Errorf("propagator %q: delay is required", name)
	}
	return &Propagator{Name: name, Source: source, Dest: dest, Fraction: fraction, Delay: delay}, nil
}

func (c *Propagator) ConnectorName() string { return c.Name }

func (c *Propagator) Populations() []*Population {
	return []*Population{c.Source, c.Dest}
}

func (c *Propagator) Step(mode Mode, rng *RandStreams) {
	incoming := c.Source.Pending()
	if incoming == 0 {
		return
	}
	if mode == ModeData {
		n := drawBinomial(rng.ForSubsystem(SubsystemDelays), incoming, c.Fraction.Value())
		if n > 0 {
			c.Dest.UpdateFutureData(n, c.Delay, rng.ForSubsystem(SubsystemDelays))
		}
		return
	}
	c.Dest.UpdateFutureExpectation(incoming*c.Fraction.Value(), c.Delay)
}
