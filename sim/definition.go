package sim

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelDefinition is the declarative form of a model, loadable from a YAML
// file. It lists parameters, delay kernels, populations, the ordered
// connector and transition registries, and an optional boot configuration,
// all by name; Build resolves the names into a wired Model. Definition
// errors surface at build time, never during a run.
type ModelDefinition struct {
	Name       string          `yaml:"name"`
	StartDate  string          `yaml:"start_date"` // YYYY-MM-DD
	Parameters []ParameterDef  `yaml:"parameters"`
	Delays     []DelayDef      `yaml:"delays"`
	Population []PopulationDef `yaml:"populations"`
	Connectors []ConnectorDef  `yaml:"connectors"`
	Transition []TransitionDef `yaml:"transitions"`
	Boot       *BootDef        `yaml:"boot"`
}

// ParameterDef declares a tunable parameter.
type ParameterDef struct {
	Name        string  `yaml:"name"`
	Value       float64 `yaml:"value"`
	Min         float64 `yaml:"min"`
	Max         float64 `yaml:"max"`
	Type        string  `yaml:"type"` // "real" (default) or "int"
	Description string  `yaml:"description"`
	Hidden      bool    `yaml:"hidden"`
}

// DelayDef declares a delay kernel; the driving fields name parameters.
type DelayDef struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // fast, norm, uniform, gamma
	Mean      string `yaml:"mean"`
	Sigma     string `yaml:"sigma"`
	HalfWidth string `yaml:"half_width"`
}

// PopulationDef declares a compartment. Exactly one of Initial and
// InitialParam applies; InitialParam wins when set.
type PopulationDef struct {
	Name         string  `yaml:"name"`
	Initial      float64 `yaml:"initial"`
	InitialParam string  `yaml:"initial_param"`
	Description  string  `yaml:"description"`
	Color        string  `yaml:"color"`
	Hidden       bool    `yaml:"hidden"`
	ShowSim      bool    `yaml:"show_sim"`
	ReportNoise  bool    `yaml:"report_noise"`
	NoiseParam   string  `yaml:"noise_param"`
	BacklogParam string  `yaml:"backlog_param"`
	ReportDays   string  `yaml:"report_days_param"`
}

// ConnectorDef declares one connector. Type selects the variant and which
// fields apply:
//
//	propagator: source, dest, fraction, delay
//	multiplier: sources (3), dest, rate, delay, distribution, nbinom_param
//	splitter:   source, dests, fractions, delays
//	adder:      source, dest
//	subtractor: target, other
//	chain:      links (propagator defs over hidden populations)
type ConnectorDef struct {
	Type         string         `yaml:"type"`
	Name         string         `yaml:"name"`
	Source       string         `yaml:"source"`
	Dest         string         `yaml:"dest"`
	Target       string         `yaml:"target"`
	Other        string         `yaml:"other"`
	Fraction     string         `yaml:"fraction"`
	Delay        string         `yaml:"delay"`
	Sources      []string       `yaml:"sources"`
	Rate         string         `yaml:"rate"`
	Distribution string         `yaml:"distribution"` // "poisson" (default) or "nbinom"
	NbinomParam  string         `yaml:"nbinom_param"`
	Dests        []string       `yaml:"dests"`
	Fractions    []string       `yaml:"fractions"`
	Delays       []string       `yaml:"delays"`
	Links        []ConnectorDef `yaml:"links"`
}

// TransitionDef declares one transition. Type is "modifier" or "injector".
type TransitionDef struct {
	Type       string `yaml:"type"`
	Name       string `yaml:"name"`
	Trigger    string `yaml:"trigger"`
	Target     string `yaml:"target"`     // modifier: parameter name
	Population string `yaml:"population"` // injector: population name
	Before     string `yaml:"before"`
	After      string `yaml:"after"`
	Amount     string `yaml:"amount"`
	Enabled    bool   `yaml:"enabled"`
	Linear     bool   `yaml:"linear"`
	NStep      string `yaml:"n_step"`
}

// BootDef declares the warm-up phase.
type BootDef struct {
	Population string   `yaml:"population"`
	SeedValue  float64  `yaml:"seed_value"`
	Exclusions []string `yaml:"exclusions"`
	MaxDays    int      `yaml:"max_days"`
}

// LoadModelDefinition reads and parses a YAML model definition file.
func LoadModelDefinition(path string) (*ModelDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model definition: %w", err)
	}
	var def ModelDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing model definition: %w", err)
	}
	return &def, nil
}

// builder carries the name lookup tables during Build.
type builder struct {
	model  *Model
	params map[string]*Parameter
	delays map[string]*Delay
	pops   map[string]*Population
}

// Build wires the definition into a Model. Every name reference is
// resolved; a dangling or duplicate name, a missing required field, or a
// component-level validation failure aborts with an error naming the
// offending component.
func (def *ModelDefinition) Build() (*Model, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("model definition: name is required")
	}
	m := NewModel(def.Name)
	if def.StartDate != "" {
		t0, err := time.Parse("2006-01-02", def.StartDate)
		if err != nil {
			return nil, fmt.Errorf("model definition: invalid start_date %q: %w", def.StartDate, err)
		}
		m.StartDate = t0
	}

	b := &builder{
		model:  m,
		params: make(map[string]*Parameter),
		delays: make(map[string]*Delay),
		pops:   make(map[string]*Population),
	}
	if err := b.buildParameters(def.Parameters); err != nil {
		return nil, err
	}
	if err := b.buildDelays(def.Delays); err != nil {
		return nil, err
	}
	if err := b.buildPopulations(def.Population); err != nil {
		return nil, err
	}
	for _, cd := range def.Connectors {
		c, err := b.buildConnector(cd)
		if err != nil {
			return nil, err
		}
		if err := m.AddConnector(c); err != nil {
			return nil, err
		}
	}
	for _, td := range def.Transition {
		t, err := b.buildTransition(td)
		if err != nil {
			return nil, err
		}
		if err := m.AddTransition(t); err != nil {
			return nil, err
		}
	}
	if def.Boot != nil {
		cfg, err := b.buildBoot(*def.Boot)
		if err != nil {
			return nil, err
		}
		if err := m.SetBoot(cfg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (b *builder) buildParameters(defs []ParameterDef) error {
	for _, pd := range defs {
		typ := ParamReal
		switch pd.Type {
		case "", "real":
		case "int":
			typ = ParamInt
		default:
			return fmt.Errorf("parameter %q: unknown type %q", pd.Name, pd.Type)
		}
		p, err := NewParameter(pd.Name, pd.Value, pd.Min, pd.Max, typ)
		if err != nil {
			return err
		}
		p.Description = pd.Description
		p.Hidden = pd.Hidden
		if _, ok := b.params[p.Name]; ok {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		b.params[p.Name] = p
		if err := b.model.AddParameter(p); err != nil {
			return err
		}
	}
	return nil
}

// param resolves a required parameter reference.
func (b *builder) param(owner, field, name string) (*Parameter, error) {
	if name == "" {
		return nil, fmt.Errorf("%s: %s parameter is required", owner, field)
	}
	p, ok := b.params[name]
	if !ok {
		return nil, fmt.Errorf("%s: unknown %s parameter %q", owner, field, name)
	}
	return p, nil
}

// optParam resolves an optional parameter reference.
func (b *builder) optParam(owner, field, name string) (*Parameter, error) {
	if name == "" {
		return nil, nil
	}
	return b.param(owner, field, name)
}

func (b *builder) buildDelays(defs []DelayDef) error {
	for _, dd := range defs {
		owner := fmt.Sprintf("delay %q", dd.Name)
		var pars DelayParams
		var err error
		if pars.Mean, err = b.optParam(owner, "mean", dd.Mean); err != nil {
			return err
		}
		if pars.Sigma, err = b.optParam(owner, "sigma", dd.Sigma); err != nil {
			return err
		}
		if pars.HalfWidth, err = b.optParam(owner, "half_width", dd.HalfWidth); err != nil {
			return err
		}
		d, err := NewDelay(dd.Name, DelayKind(dd.Kind), pars)
		if err != nil {
			return err
		}
		if _, ok := b.delays[d.Name]; ok {
			return fmt.Errorf("duplicate delay %q", d.Name)
		}
		b.delays[d.Name] = d
	}
	return nil
}

func (b *builder) delay(owner, name string) (*Delay, error) {
	if name == "" {
		return nil, fmt.Errorf("%s: delay is required", owner)
	}
	d, ok := b.delays[name]
	if !ok {
		return nil, fmt.Errorf("%s: unknown delay %q", owner, name)
	}
	return d, nil
}

func (b *builder) buildPopulations(defs []PopulationDef) error {
	for _, pd := range defs {
		owner := fmt.Sprintf("population %q", pd.Name)
		var p *Population
		if pd.InitialParam != "" {
			par, err := b.param(owner, "initial", pd.InitialParam)
			if err != nil {
				return err
			}
			p = NewPopulationWithParameter(pd.Name, par)
		} else {
			p = NewPopulation(pd.Name, pd.Initial)
		}
		p.Description = pd.Description
		p.Color = pd.Color
		p.Hidden = pd.Hidden
		p.ShowSim = pd.ShowSim
		if pd.ReportNoise {
			var cfg ReportingConfig
			var err error
			if cfg.Noise, err = b.param(owner, "noise", pd.NoiseParam); err != nil {
				return err
			}
			if cfg.Backlog, err = b.optParam(owner, "backlog", pd.BacklogParam); err != nil {
				return err
			}
			if cfg.Days, err = b.optParam(owner, "report_days", pd.ReportDays); err != nil {
				return err
			}
			if err := p.EnableReporting(cfg); err != nil {
				return err
			}
		}
		if _, ok := b.pops[p.Name]; ok {
			return fmt.Errorf("duplicate population %q", p.Name)
		}
		b.pops[p.Name] = p
		if err := b.model.AddPopulation(p); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) pop(owner, field, name string) (*Population, error) {
	if name == "" {
		return nil, fmt.Errorf("%s: %s population is required", owner, field)
	}
	p, ok := b.pops[name]
	if !ok {
		return nil, fmt.Errorf("%s: unknown %s population %q", owner, field, name)
	}
	return p, nil
}

func (b *builder) buildConnector(cd ConnectorDef) (Connector, error) {
	owner := fmt.Sprintf("connector %q", cd.Name)
	switch cd.Type {
	case "propagator":
		return b.buildPropagator(cd)
	case "multiplier":
		if len(cd.Sources) != 3 {
			return nil, fmt.Errorf("%s: multiplier needs exactly 3 sources, got %d", owner, len(cd.Sources))
		}
		var sources [3]*Population
		for i, name := range cd.Sources {
			p, err := b.pop(owner, "source", name)
			if err != nil {
				return nil, err
			}
			sources[i] = p
		}
		dest, err := b.pop(owner, "dest", cd.Dest)
		if err != nil {
			return nil, err
		}
		rate, err := b.param(owner, "rate", cd.Rate)
		if err != nil {
			return nil, err
		}
		delay, err := b.delay(owner, cd.Delay)
		if err != nil {
			return nil, err
		}
		mult, err := NewMultiplier(cd.Name, sources, dest, rate, delay)
		if err != nil {
			return nil, err
		}
		switch cd.Distribution {
		case "", "poisson":
		case "nbinom":
			p, err := b.param(owner, "nbinom", cd.NbinomParam)
			if err != nil {
				return nil, err
			}
			if err := mult.UseNegBinom(p); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%s: unknown distribution %q", owner, cd.Distribution)
		}
		return mult, nil
	case "splitter":
		source, err := b.pop(owner, "source", cd.Source)
		if err != nil {
			return nil, err
		}
		dests := make([]*Population, len(cd.Dests))
		for i, name := range cd.Dests {
			if dests[i], err = b.pop(owner, "dest", name); err != nil {
				return nil, err
			}
		}
		fractions := make([]*Parameter, len(cd.Fractions))
		for i, name := range cd.Fractions {
			if fractions[i], err = b.param(owner, "fraction", name); err != nil {
				return nil, err
			}
		}
		delays := make([]*Delay, len(cd.Delays))
		for i, name := range cd.Delays {
			if delays[i], err = b.delay(owner, name); err != nil {
				return nil, err
			}
		}
		return NewSplitter(cd.Name, source, dests, fractions, delays)
	case "adder":
		source, err := b.pop(owner, "source", cd.Source)
		if err != nil {
			return nil, err
		}
		dest, err := b.pop(owner, "dest", cd.Dest)
		if err != nil {
			return nil, err
		}
		return NewAdder(cd.Name, source, dest)
	case "subtractor":
		target, err := b.pop(owner, "target", cd.Target)
		if err != nil {
			return nil, err
		}
		other, err := b.pop(owner, "other", cd.Other)
		if err != nil {
			return nil, err
		}
		return NewSubtractor(cd.Name, target, other)
	case "chain":
		if len(cd.Links) == 0 {
			return nil, fmt.Errorf("%s: chain needs at least one link", owner)
		}
		links := make([]*Propagator, len(cd.Links))
		for i, ld := range cd.Links {
			if ld.Type != "" && ld.Type != "propagator" {
				return nil, fmt.Errorf("%s: chain link %q must be a propagator, got %q", owner, ld.Name, ld.Type)
			}
			link, err := b.buildPropagator(ld)
			if err != nil {
				return nil, err
			}
			links[i] = link
		}
		return NewChain(cd.Name, links)
	default:
		return nil, fmt.Errorf("%s: unknown connector type %q", owner, cd.Type)
	}
}

// buildPropagator resolves a propagator definition, creating hidden
// populations on the fly for chain links that name unknown populations.
func (b *builder) buildPropagator(cd ConnectorDef) (*Propagator, error) {
	owner := fmt.Sprintf("connector %q", cd.Name)
	source, err := b.popOrHidden(owner, "source", cd.Source)
	if err != nil {
		return nil, err
	}
	dest, err := b.popOrHidden(owner, "dest", cd.Dest)
	if err != nil {
		return nil, err
	}
	fraction, err := b.param(owner, "fraction", cd.Fraction)
	if err != nil {
		return nil, err
	}
	delay, err := b.delay(owner, cd.Delay)
	if err != nil {
		return nil, err
	}
	return NewPropagator(cd.Name, source, dest, fraction, delay)
}

// popOrHidden resolves a population name, creating a hidden zero-initial
// population when the name is prefixed with "~" (chain intermediates).
func (b *builder) popOrHidden(owner, field, name string) (*Population, error) {
	if len(name) > 1 && name[0] == '~' {
		if p, ok := b.pops[name]; ok {
			return p, nil
		}
		p := NewPopulation(name, 0)
		p.Hidden = true
		b.pops[name] = p
		return p, nil
	}
	return b.pop(owner, field, name)
}

func (b *builder) buildTransition(td TransitionDef) (Transition, error) {
	owner := fmt.Sprintf("transition %q", td.Name)
	switch td.Type {
	case "modifier":
		trigger, err := b.param(owner, "trigger", td.Trigger)
		if err != nil {
			return nil, err
		}
		target, err := b.param(owner, "target", td.Target)
		if err != nil {
			return nil, err
		}
		before, err := b.param(owner, "before", td.Before)
		if err != nil {
			return nil, err
		}
		after, err := b.param(owner, "after", td.After)
		if err != nil {
			return nil, err
		}
		if td.Linear {
			nStep, err := b.optParam(owner, "n_step", td.NStep)
			if err != nil {
				return nil, err
			}
			return NewLinearModifier(td.Name, trigger, target, before, after, nStep, td.Enabled)
		}
		return NewModifier(td.Name, trigger, target, before, after, td.Enabled)
	case "injector":
		trigger, err := b.param(owner, "trigger", td.Trigger)
		if err != nil {
			return nil, err
		}
		target, err := b.pop(owner, "target", td.Population)
		if err != nil {
			return nil, err
		}
		amount, err := b.param(owner, "amount", td.Amount)
		if err != nil {
			return nil, err
		}
		return NewInjector(td.Name, trigger, target, amount, td.Enabled)
	default:
		return nil, fmt.Errorf("%s: unknown transition type %q", owner, td.Type)
	}
}

func (b *builder) buildBoot(bd BootDef) (*BootConfig, error) {
	bp, err := b.pop("boot", "boot", bd.Population)
	if err != nil {
		return nil, err
	}
	cfg := &BootConfig{Population: bp, SeedValue: bd.SeedValue, MaxDays: bd.MaxDays}
	for _, name := range bd.Exclusions {
		p, err := b.pop("boot", "exclusion", name)
		if err != nil {
			return nil, err
		}
		cfg.Exclusions = append(cfg.Exclusions, p)
	}
	return cfg, nil
}
