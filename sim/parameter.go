package sim

import (
	"fmt"
	"math"
)

// ParamType distinguishes real-valued from integer-valued parameters.
type ParamType int

const (
	ParamReal ParamType = iota
	ParamInt
)

func (t ParamType) String() string {
	if t == ParamInt {
		return "int"
	}
	return "real"
}

// Parameter is a named bounded scalar, the externally tunable input of a
// model. Delays, connectors and transitions hold it by reference and read
// its current value every day, so a calibration driver can retune a built
// model between runs without rewiring anything.
//
// Every mutation advances a version counter. Dependents that cache derived
// state (Delay kernels) compare versions instead of registering callbacks.
type Parameter struct {
	Name        string
	Description string
	Min         float64
	Max         float64
	Type        ParamType
	Hidden      bool

	value   float64
	initial float64
	version uint64
}

// NewParameter creates a bounded parameter. The initial value must lie
// within [min, max], and integer parameters must hold integral values.
func NewParameter(name string, value, min, max float64, typ ParamType) (*Parameter, error) {
	if name == "" {
		return nil, fmt.Errorf("parameter: name must not be empty")
	}
	if min > max {
		return nil, fmt.Errorf("parameter %q: min %g exceeds max %g", name, min, max)
	}
	if value < min || value > max {
		return nil, fmt.Errorf("parameter %q: value %g outside bounds [%g, %g]", name, value, min, max)
	}
	if typ == ParamInt && value != math.Trunc(value) {
		return nil, fmt.Errorf("parameter %q: value %g is not integral for int type", name, value)
	}
	return &Parameter{
		Name:    name,
		Min:     min,
		Max:     max,
		Type:    typ,
		value:   value,
		initial: value,
	}, nil
}

// Value returns the current value.
func (p *Parameter) Value() float64 {
	return p.value
}

// IntValue returns the current value rounded to the nearest integer.
func (p *Parameter) IntValue() int {
	return int(math.Round(p.value))
}

// Set updates the value, rejecting values outside the bounds.
func (p *Parameter) Set(v float64) error {
	if v < p.Min || v > p.Max {
		return fmt.Errorf("parameter %q: value %g outside bounds [%g, %g]", p.Name, v, p.Min, p.Max)
	}
	if p.Type == ParamInt {
		v = math.Round(v)
	}
	p.value = v
	p.version++
	return nil
}

// SetClamped updates the value, clamping it into the bounds. Used by linear
// modifier ramps, which may legitimately walk a value to a bound and hold.
func (p *Parameter) SetClamped(v float64) {
	if v < p.Min {
		v = p.Min
	}
	if v > p.Max {
		v = p.Max
	}
	if p.Type == ParamInt {
		v = math.Round(v)
	}
	p.value = v
	p.version++
}

// Reset restores the construction-time value.
func (p *Parameter) Reset() {
	p.value = p.initial
	p.version++
}

// Version returns the mutation counter. It advances on every Set, SetClamped
// and Reset, including ones that happen to rewrite the same value.
func (p *Parameter) Version() uint64 {
	return p.version
}
