package sim

import "fmt"

// MultiplierDist selects the data-mode counting distribution for a
// Multiplier's daily flow.
type MultiplierDist int

const (
	// DistPoisson draws Poisson counts centered on the expectation.
	DistPoisson MultiplierDist = iota
	// DistNegBinom draws negative-binomial counts with a dispersion
	// parameter, modelling super-spreading overdispersion.
	DistNegBinom
)

// Multiplier produces new flow proportional to the product of two
// population sizes scaled by a third: the frequency-dependent transmission
// term rate * S * C / N. The result deposits into the destination via the
// delay kernel.
type Multiplier struct {
	Name string
	// Sources are [S, C, N]: the two multiplied populations and the
	// normalizing population.
	Sources [3]*Population
	Dest    *Population
	Rate    *Parameter
	Delay   *Delay

	Dist MultiplierDist
	// NegBinomP is the dispersion parameter p in (0,1); required for
	// DistNegBinom.
	NegBinomP *Parameter
}

// NewMultiplier validates and creates a multiplier. The rate parameter must
// be bounded non-negative.
func NewMultiplier(name string, sources [3]*Population, dest *Population, rate *Parameter, delay *Delay) (*Multiplier, error) {
	for i, s := range sources {
		if s == nil {
			return nil, fmt.Errorf("multiplier %q: source %d is required", name, i)
		}
	}
	if dest == nil {
		return nil, fmt.Errorf("multiplier %q: dest population is required", name)
	}
	if rate == nil {
		return nil, fmt.Errorf("multiplier %q: rate parameter is required", name)
	}
	if rate.Min < 0 {
		return nil, fmt.Errorf("multiplier %q: rate %q must be bounded non-negative", name, rate.Name)
	}
	if delay == nil {
		return nil, fmt.Errorf("multiplier %q: delay is required", name)
	}
	return &Multiplier{Name: name, Sources: sources, Dest: dest, Rate: rate, Delay: delay}, nil
}

// UseNegBinom switches data-mode draws to a negative binomial with the
// given dispersion parameter.
func (c *Multiplier) UseNegBinom(p *Parameter) error {
	if p == nil {
		return fmt.Errorf("multiplier %q: negative binomial requires a dispersion parameter", c.Name)
	}
	if p.Min <= 0 || p.Max >= 1 {
		return fmt.Errorf("multiplier %q: dispersion %q must be bounded within (0,1)", c.Name, p.Name)
	}
	c.Dist = DistNegBinom
	c.NegBinomP = p
	return nil
}

func (c *Multiplier) ConnectorName() string { return c.Name }

func (c *Multiplier) Populations() []*Population {
	return []*Population{c.Sources[0], c.Sources[1], c.Sources[2], c.Dest}
}

func (c *Multiplier) Step(mode Mode, rng *RandStreams) {
	norm := c.Sources[2].Latest()
	if norm <= 0 {
		return
	}
	expect := c.Rate.Value() * c.Sources[0].Latest() * c.Sources[1].Latest() / norm
	if expect <= 0 {
		return
	}
	if mode == ModeData {
		var n float64
		if c.Dist == DistNegBinom {
			n = drawNegBinomial(rng.ForSubsystem(SubsystemTransmission), expect, c.NegBinomP.Value())
		} else {
			n = drawPoisson(rng.ForSubsystem(SubsystemTransmission), expect)
		}
		if n > 0 {
			c.Dest.UpdateFutureData(n, c.Delay, rng.ForSubsystem(SubsystemDelays))
		}
		return
	}
	c.Dest.UpdateFutureExpectation(expect, c.Delay)
}
