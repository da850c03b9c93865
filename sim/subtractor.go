package sim

import "fmt"

// Subtractor removes the other population's daily flow from the target's
// increment for the same day, turning cumulative admission/release pairs
// into currently-occupied counts. The target is marked non-monotonic at
// construction; any transient negative excursion from rounding mismatches
// is clamped by the target's time step.
type Subtractor struct {
	Name   string
	Target *Population
	Other  *Population
}

// NewSubtractor validates and creates a subtractor.
func NewSubtractor(name string, target, other *Population) (*Subtractor, error) {
	if target == nil || other == nil {
		return nil, fmt.Errorf("subtractor %q: target and other populations are required", name)
	}
	if target == other {
		return nil, fmt.Errorf("subtractor %q: target and other must differ", name)
	}
	target.Monotonic = false
	return &Subtractor{Name: name, Target: target, Other: other}, nil
}

func (c *Subtractor) ConnectorName() string { return c.Name }

func (c *Subtractor) Populations() []*Population {
	return []*Population{c.Other, c.Target}
}

func (c *Subtractor) Step(mode Mode, rng *RandStreams) {
	if v := c.Other.Pending(); v != 0 {
		c.Target.UpdateFutureFast(-v)
	}
}
