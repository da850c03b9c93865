package sim

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// BootConfig describes the silent warm-up phase run before a recorded
// simulation. Starting every compartment from the true initial state would
// be inconsistent (no flow would already be in transit), so the model
// instead grows a small seed in expectation mode until the boot population
// reaches its configured initial value, rescales everything to hit that
// goal exactly, and truncates histories while keeping in-flight future
// commitments.
type BootConfig struct {
	// Population whose growth terminates the warm-up; its configured
	// initial value is the goal.
	Population *Population
	// SeedValue is the small value the boot population warms up from.
	SeedValue float64
	// Exclusions are populations restored to their initial value instead
	// of being scaled (totals and susceptibles).
	Exclusions []*Population
	// MaxDays bounds the warm-up; 0 means the default of 1000. A boot
	// that does not reach its goal within the bound is a model-definition
	// error.
	MaxDays int
}

// Model owns the ordered registries of populations, connectors and
// transitions, and drives the per-day loop. Registration order is fixed at
// build time and preserved exactly: within a day, transitions run first,
// then connectors, then every population realizes its increment.
//
// A model is single-threaded and owns all of its state, including its
// random streams. Independent instances are safely runnable in parallel.
type Model struct {
	Name      string
	StartDate time.Time

	populations []*Population
	popIndex    map[string]int
	connectors  []Connector
	connIndex   map[string]int
	transitions []Transition
	transIndex  map[string]int
	parameters  map[string]*Parameter

	boot *BootConfig
	day  int
	rng  *RandStreams
}

// NewModel creates an empty model with seed 0. The start date anchors
// day indices to calendar dates for weekday-sensitive reporting.
func NewModel(name string) *Model {
	return &Model{
		Name:       name,
		popIndex:   make(map[string]int),
		connIndex:  make(map[string]int),
		transIndex: make(map[string]int),
		parameters: make(map[string]*Parameter),
		rng:        NewRandStreams(0),
	}
}

// SetStartDate anchors day 0 of the simulation.
func (m *Model) SetStartDate(year int, month time.Month, day int) {
	m.StartDate = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SetSeed replaces the model's random streams. Call before a data-mode run;
// identical seeds reproduce identical output.
func (m *Model) SetSeed(seed int64) {
	m.rng = NewRandStreams(seed)
}

// Day returns the current day index since the start date.
func (m *Model) Day() int { return m.day }

// AddPopulation registers a population. Names must be unique.
func (m *Model) AddPopulation(p *Population) error {
	if p == nil {
		return fmt.Errorf("model %q: nil population", m.Name)
	}
	if _, ok := m.popIndex[p.Name]; ok {
		return fmt.Errorf("model %q: duplicate population %q", m.Name, p.Name)
	}
	m.popIndex[p.Name] = len(m.populations)
	m.populations = append(m.populations, p)
	return nil
}

// AddConnector appends a connector to the evaluation order and registers
// any of its populations not yet known, in the order the connector lists
// them. Connector names must be unique.
func (m *Model) AddConnector(c Connector) error {
	if c == nil {
		return fmt.Errorf("model %q: nil connector", m.Name)
	}
	name := c.ConnectorName()
	if _, ok := m.connIndex[name]; ok {
		return fmt.Errorf("model %q: duplicate connector %q", m.Name, name)
	}
	for _, p := range c.Populations() {
		if _, ok := m.popIndex[p.Name]; ok {
			if m.populations[m.popIndex[p.Name]] != p {
				return fmt.Errorf("model %q: connector %q reuses population name %q for a different population", m.Name, name, p.Name)
			}
			continue
		}
		if err := m.AddPopulation(p); err != nil {
			return err
		}
	}
	m.connIndex[name] = len(m.connectors)
	m.connectors = append(m.connectors, c)
	return nil
}

// AddTransition appends a transition to the evaluation order. An injector's
// target population is registered if not yet known.
func (m *Model) AddTransition(t Transition) error {
	if t == nil {
		return fmt.Errorf("model %q: nil transition", m.Name)
	}
	name := t.TransitionName()
	if _, ok := m.transIndex[name]; ok {
		return fmt.Errorf("model %q: duplicate transition %q", m.Name, name)
	}
	if inj, ok := t.(*Injector); ok {
		if _, known := m.popIndex[inj.Target.Name]; !known {
			if err := m.AddPopulation(inj.Target); err != nil {
				return err
			}
		}
	}
	m.transIndex[name] = len(m.transitions)
	m.transitions = append(m.transitions, t)
	return nil
}

// AddParameter registers a tunable parameter for external lookup.
func (m *Model) AddParameter(p *Parameter) error {
	if p == nil {
		return fmt.Errorf("model %q: nil parameter", m.Name)
	}
	if existing, ok := m.parameters[p.Name]; ok && existing != p {
		return fmt.Errorf("model %q: duplicate parameter %q", m.Name, p.Name)
	}
	m.parameters[p.Name] = p
	return nil
}

// Population returns the named population, or nil.
func (m *Model) Population(name string) *Population {
	if i, ok := m.popIndex[name]; ok {
		return m.populations[i]
	}
	return nil
}

// Populations returns the registry in registration order.
func (m *Model) Populations() []*Population {
	return m.populations
}

// Parameter returns the named registered parameter, or nil.
func (m *Model) Parameter(name string) *Parameter {
	return m.parameters[name]
}

// Parameters returns the registered tunables keyed by name.
func (m *Model) Parameters() map[string]*Parameter {
	return m.parameters
}

// SetBoot installs the warm-up configuration. The boot population and all
// exclusions must already be registered.
func (m *Model) SetBoot(cfg *BootConfig) error {
	if cfg == nil {
		m.boot = nil
		return nil
	}
	if cfg.Population == nil {
		return fmt.Errorf("model %q: boot requires a population", m.Name)
	}
	if m.Population(cfg.Population.Name) != cfg.Population {
		return fmt.Errorf("model %q: boot population %q is not registered", m.Name, cfg.Population.Name)
	}
	if cfg.SeedValue <= 0 {
		return fmt.Errorf("model %q: boot seed value must be positive, got %g", m.Name, cfg.SeedValue)
	}
	for _, p := range cfg.Exclusions {
		if m.Population(p.Name) != p {
			return fmt.Errorf("model %q: boot exclusion %q is not registered", m.Name, p.Name)
		}
	}
	m.boot = cfg
	return nil
}

// Step advances one day: transitions in order, connectors in order, then
// every population realizes today's increment.
func (m *Model) Step(mode Mode) {
	m.step(mode, true)
}

// step is the day loop body. The boot warm-up happens before day 0, so it
// runs with transitions disabled: triggers are anchored to the recorded
// run's day indices.
func (m *Model) step(mode Mode, withTransitions bool) {
	if withTransitions {
		for _, t := range m.transitions {
			t.Step(m.day, mode)
		}
	}
	for _, c := range m.connectors {
		c.Step(mode, m.rng)
	}
	weekday := m.StartDate.AddDate(0, 0, m.day).Weekday()
	reporting := m.rng.ForSubsystem(SubsystemReporting)
	for _, p := range m.populations {
		p.DoTimeStep(mode, reporting, p.reportableOn(weekday))
	}
	m.day++
}

// Run executes the day loop for the given number of days.
func (m *Model) Run(days int, mode Mode) {
	logrus.Debugf("model %q: running %d days in %s mode (day %d, %d populations, %d connectors)",
		m.Name, days, mode, m.day, len(m.populations), len(m.connectors))
	for i := 0; i < days; i++ {
		m.Step(mode)
	}
}

// Reset restores every population, parameter-driven initial value and
// transition latch, ready for a fresh run under the current parameters.
func (m *Model) Reset() {
	for _, p := range m.populations {
		p.Reset()
	}
	for _, t := range m.transitions {
		t.Reset()
	}
	m.day = 0
}

// Boot resets the model and runs the silent warm-up: grow the boot
// population from its seed value in expectation mode until it reaches its
// configured initial value, rescale all non-excluded state to hit the goal
// exactly (rounding in data mode), discard the burn-in history, and restore
// excluded populations to their initial values. The resulting state is
// self-consistent and non-discontinuous, with in-flight future commitments
// preserved. A no-op for models without boot configuration.
func (m *Model) Boot(mode Mode) error {
	if m.boot == nil {
		return nil
	}
	bp := m.boot.Population
	goal := bp.InitialValue()
	if goal <= 0 {
		return fmt.Errorf("model %q: boot goal for %q must be positive, got %g", m.Name, bp.Name, goal)
	}
	maxDays := m.boot.MaxDays
	if maxDays <= 0 {
		maxDays = 1000
	}
	m.Reset()
	bp.History[0] = m.boot.SeedValue
	days := 0
	for bp.Latest() < goal {
		if days >= maxDays {
			return fmt.Errorf("model %q: boot population %q did not reach %g within %d days",
				m.Name, bp.Name, goal, maxDays)
		}
		m.step(ModeExpectation, false)
		days++
	}
	scale := goal / bp.Latest()
	excluded := make(map[*Population]bool, len(m.boot.Exclusions))
	for _, p := range m.boot.Exclusions {
		excluded[p] = true
	}
	for _, p := range m.populations {
		if excluded[p] {
			continue
		}
		p.ScaleHistory(scale, mode)
		p.ScaleFuture(scale, mode)
	}
	for _, p := range m.populations {
		p.RemoveHistory()
		if excluded[p] {
			p.History[0] = p.InitialValue()
		}
	}
	m.day = 0
	logrus.Debugf("model %q: booted %q to %g in %d days (scale %.4g)", m.Name, bp.Name, goal, days, scale)
	return nil
}
