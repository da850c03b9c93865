package sim

import (
	"fmt"
	"math"
)

// Injector adds an amount to a population's immediate future slot on the
// trigger day, exactly once per run: outbreaks seeded into the infection
// cycle, anomalous report batches. In data mode the amount rounds to an
// integer count.
type Injector struct {
	Name    string
	Trigger *Parameter // day index since start, int type
	Target  *Population
	Amount  *Parameter
	Enabled bool

	fired bool
}

// NewInjector validates and creates an injector.
func NewInjector(name string, trigger *Parameter, target *Population, amount *Parameter, enabled bool) (*Injector, error) {
	if trigger == nil || amount == nil {
		return nil, fmt.Errorf("injector %q: trigger and amount parameters are required", name)
	}
	if trigger.Type != ParamInt {
		return nil, fmt.Errorf("injector %q: trigger %q must be an int parameter", name, trigger.Name)
	}
	if target == nil {
		return nil, fmt.Errorf("injector %q: target population is required", name)
	}
	if amount.Min < 0 {
		return nil, fmt.Errorf("injector %q: amount %q must be bounded non-negative", name, amount.Name)
	}
	return &Injector{Name: name, Trigger: trigger, Target: target, Amount: amount, Enabled: enabled}, nil
}

func (t *Injector) TransitionName() string { return t.Name }

func (t *Injector) Step(day int, mode Mode) {
	if !t.Enabled || t.fired {
		return
	}
	if day != t.Trigger.IntValue() {
		return
	}
	v := t.Amount.Value()
	if mode == ModeData {
		v = math.Round(v)
	}
	t.Target.UpdateFutureFast(v)
	t.fired = true
}

// Reset re-arms the one-shot latch.
func (t *Injector) Reset() {
	t.fired = false
}
