package sim

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
)

// ReportingConfig attaches reporting noise to a population whose history is
// compared against externally observed case counts. Noise gives the low
// edge of the U(low, 1) fraction of today's releasable count that actually
// gets reported today; the rest lands in a backlog carried to the next
// reporting day.
type ReportingConfig struct {
	// Noise is the low edge for today's reported fraction. Required.
	Noise *Parameter
	// Backlog is the low edge for the fraction of the carried backlog
	// cleared on a reporting day. Nil means the backlog clears fully.
	Backlog *Parameter
	// Days is an integer weekday bitmask: bit int(time.Weekday) set means
	// reports are published that weekday (Sunday = bit 0, 127 = every
	// day). Nil means every day. On a blocked day the entire releasable
	// amount defers into the backlog.
	Days *Parameter
}

// Population is a named compartment: an append-only history of the
// population size per day, and a mutable buffer of pending future
// increments indexed by day offset from tomorrow. The same type tracks
// expected values (reals) in expectation mode and simulated counts
// (integers) in data mode.
type Population struct {
	Name        string
	Description string
	Color       string
	Hidden      bool
	ShowSim     bool

	// Monotonic is false once the population is the target of a
	// Subtractor. Display-only: daily increments of a non-monotonic
	// population are not meaningful.
	Monotonic bool

	History []float64

	Reporting *ReportingConfig

	future          []float64
	missedYesterday float64
	initialValue    float64
	initialParam    *Parameter
}

// NewPopulation creates a population with a literal initial value.
func NewPopulation(name string, initial float64) *Population {
	return &Population{
		Name:         name,
		Monotonic:    true,
		History:      []float64{initial},
		initialValue: initial,
	}
}

// NewPopulationWithParameter creates a population whose initial value is
// re-read from the parameter on every Reset, so calibration can tune it.
func NewPopulationWithParameter(name string, initial *Parameter) *Population {
	return &Population{
		Name:         name,
		Monotonic:    true,
		History:      []float64{initial.Value()},
		initialParam: initial,
	}
}

// EnableReporting turns on reporting noise for data-mode runs.
func (p *Population) EnableReporting(cfg ReportingConfig) error {
	if cfg.Noise == nil {
		return fmt.Errorf("population %q: reporting noise requires a noise parameter", p.Name)
	}
	p.Reporting = &ReportingConfig{Noise: cfg.Noise, Backlog: cfg.Backlog, Days: cfg.Days}
	return nil
}

// InitialValue returns the value history restarts from on Reset.
func (p *Population) InitialValue() float64 {
	if p.initialParam != nil {
		return p.initialParam.Value()
	}
	return p.initialValue
}

// Latest returns the most recent history value.
func (p *Population) Latest() float64 {
	return p.History[len(p.History)-1]
}

// Pending returns tomorrow's scheduled increment: the amount connectors
// read as the source's latest daily flow.
func (p *Population) Pending() float64 {
	if len(p.future) == 0 {
		return 0
	}
	return p.future[0]
}

// DoTimeStep realizes today's scheduled increment, appends the new history
// value (clamped at zero) and pops the consumed future slot. The reportable
// flag is the model's weekday-suppression decision; it only matters for
// populations with reporting noise in data mode.
func (p *Population) DoTimeStep(mode Mode, rng *rand.Rand, reportable bool) {
	slot := p.Pending()
	var next float64
	switch {
	case mode == ModeExpectation || p.Reporting == nil:
		next = slot
	case !reportable:
		p.missedYesterday += slot
	default:
		released := p.missedYesterday
		if p.Reporting.Backlog != nil {
			frac := drawUniform(rng, p.Reporting.Backlog.Value())
			released = drawBinomial(rng, p.missedYesterday, frac)
		}
		frac := drawUniform(rng, p.Reporting.Noise.Value())
		reported := drawBinomial(rng, slot, frac)
		p.missedYesterday = p.missedYesterday - released + (slot - reported)
		next = released + reported
	}
	p.History = append(p.History, p.Latest()+next)
	// Rounding mismatches across independently delayed paths can drive a
	// population transiently negative; clamp rather than propagate.
	if p.Latest() < 0 {
		p.History[len(p.History)-1] = 0
	}
	if len(p.future) > 0 {
		p.future = p.future[1:]
	}
}

// Reset restores the single-element initial history and clears the future
// buffer and reporting backlog, ready for a re-run under new parameters.
func (p *Population) Reset() {
	p.History = []float64{p.InitialValue()}
	p.future = nil
	p.missedYesterday = 0
}

// RemoveHistory truncates history to its latest value while leaving the
// future buffer intact, discarding a warm-up phase without discontinuity.
func (p *Population) RemoveHistory() {
	p.History = []float64{p.Latest()}
}

// ScaleHistory multiplies every history value retroactively. In data mode
// the scaled values round to the nearest integer: counts are discrete.
func (p *Population) ScaleHistory(scale float64, mode Mode) {
	for i, v := range p.History {
		if mode == ModeData {
			p.History[i] = math.Round(v * scale)
		} else {
			p.History[i] = v * scale
		}
	}
}

// ScaleFuture multiplies every pending increment, rounding in data mode.
func (p *Population) ScaleFuture(scale float64, mode Mode) {
	for i, v := range p.future {
		if mode == ModeData {
			p.future[i] = math.Round(v * scale)
		} else {
			p.future[i] = v * scale
		}
	}
}

// UpdateFutureExpectation deposits scale*kernel[i] into future slot i,
// growing the buffer as needed: the deterministic deposition primitive
// behind every connector.
func (p *Population) UpdateFutureExpectation(scale float64, delay *Delay) {
	for i, mass := range delay.Kernel() {
		p.deposit(i, scale*mass)
	}
}

// UpdateFutureData is the stochastic counterpart: one multinomial draw of
// size round(scale) over the kernel's day-offset categories, preserving the
// exact integer total.
func (p *Population) UpdateFutureData(scale float64, delay *Delay, rng *rand.Rand) {
	counts := drawMultinomial(rng, math.Round(scale), delay.Kernel())
	for i, c := range counts {
		if c != 0 {
			p.deposit(i, c)
		}
	}
}

// UpdateFutureFast adds directly to tomorrow's slot: instantaneous delays,
// adders, subtractors and injections.
func (p *Population) UpdateFutureFast(value float64) {
	p.deposit(0, value)
}

func (p *Population) deposit(offset int, value float64) {
	for len(p.future) <= offset {
		p.future = append(p.future, 0)
	}
	p.future[offset] += value
}

// reportableOn reports whether the weekday's bit is set in the report-days
// mask. Populations without a mask report every day.
func (p *Population) reportableOn(w time.Weekday) bool {
	if p.Reporting == nil || p.Reporting.Days == nil {
		return true
	}
	return p.Reporting.Days.IntValue()&(1<<uint(w)) != 0
}
