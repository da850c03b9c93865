package sim

import "fmt"

// Modifier changes a target parameter on a schedule. In step form the
// target switches permanently from the Before value to the After value on
// the trigger day. In linear form, After is a slope: for NStep consecutive
// days starting at the trigger the target reads Before + slope*k, then
// holds its last value; NStep of -1 ramps indefinitely.
//
// A disabled modifier is inert, including at reset. Values outside the
// target's bounds clamp to them; ramps may legitimately walk into a bound
// and hold there.
type Modifier struct {
	Name    string
	Trigger *Parameter // day index since start, int type
	Target  *Parameter
	Before  *Parameter
	After   *Parameter // slope when Linear
	Enabled bool
	Linear  bool
	NStep   *Parameter // optional, int type; nil or -1 means unbounded
}

// NewModifier validates and creates a step-form modifier.
func NewModifier(name string, trigger, target, before, after *Parameter, enabled bool) (*Modifier, error) {
	if trigger == nil || target == nil || before == nil || after == nil {
		return nil, fmt.Errorf("modifier %q: trigger, target, before and after parameters are required", name)
	}
	if trigger.Type != ParamInt {
		return nil, fmt.Errorf("modifier %q: trigger %q must be an int parameter", name, trigger.Name)
	}
	if target == trigger || target == before || target == after {
		return nil, fmt.Errorf("modifier %q: target %q must be distinct from its driving parameters", name, target.Name)
	}
	return &Modifier{
		Name:    name,
		Trigger: trigger,
		Target:  target,
		Before:  before,
		After:   after,
		Enabled: enabled,
	}, nil
}

// NewLinearModifier validates and creates a linear-ramp modifier. slope is
// applied per day; nStep may be nil for an unbounded ramp.
func NewLinearModifier(name string, trigger, target, before, slope *Parameter, nStep *Parameter, enabled bool) (*Modifier, error) {
	m, err := NewModifier(name, trigger, target, before, slope, enabled)
	if err != nil {
		return nil, err
	}
	if nStep != nil && nStep.Type != ParamInt {
		return nil, fmt.Errorf("modifier %q: n_step %q must be an int parameter", name, nStep.Name)
	}
	m.Linear = true
	m.NStep = nStep
	return m, nil
}

func (t *Modifier) TransitionName() string { return t.Name }

func (t *Modifier) Step(day int, mode Mode) {
	if !t.Enabled {
		return
	}
	trigger := t.Trigger.IntValue()
	if t.Linear {
		n := -1
		if t.NStep != nil {
			n = t.NStep.IntValue()
		}
		if day >= trigger && (n < 0 || day < trigger+n) {
			k := float64(day - trigger)
			t.Target.SetClamped(t.Before.Value() + t.After.Value()*k)
		}
		return
	}
	if day == trigger {
		t.Target.SetClamped(t.After.Value())
	}
}

// Reset applies the before value so pre-trigger days read it.
func (t *Modifier) Reset() {
	if t.Enabled {
		t.Target.SetClamped(t.Before.Value())
	}
}
