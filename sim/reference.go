package sim

import "time"

// refBuilder accumulates the first wiring error so the reference model can
// be declared as a flat sequence of registrations.
type refBuilder struct {
	m   *Model
	err error
}

func (b *refBuilder) param(name string, value, min, max float64, typ ParamType, desc string) *Parameter {
	if b.err != nil {
		return nil
	}
	p, err := NewParameter(name, value, min, max, typ)
	if err != nil {
		b.err = err
		return nil
	}
	p.Description = desc
	b.err = b.m.AddParameter(p)
	return p
}

func (b *refBuilder) pop(name string, initial float64, desc, color string) *Population {
	if b.err != nil {
		return nil
	}
	p := NewPopulation(name, initial)
	p.Description = desc
	p.Color = color
	return p
}

func (b *refBuilder) popPar(name string, initial *Parameter, desc, color string) *Population {
	if b.err != nil {
		return nil
	}
	p := NewPopulationWithParameter(name, initial)
	p.Description = desc
	p.Color = color
	return p
}

func (b *refBuilder) fast(name string) *Delay {
	if b.err != nil {
		return nil
	}
	d, err := NewDelay(name, DelayFast, DelayParams{})
	if err != nil {
		b.err = err
	}
	return d
}

// norm declares a normal delay kernel along with its mean/sigma parameters.
func (b *refBuilder) norm(name string, mean, sigma float64, desc string) *Delay {
	if b.err != nil {
		return nil
	}
	meanPar := b.param(name+"_mean", mean, 0, 50, ParamReal, "mean "+desc)
	sigmaPar := b.param(name+"_sigma", sigma, 0.01, 20, ParamReal, "standard deviation of "+desc)
	if b.err != nil {
		return nil
	}
	d, err := NewDelay(name, DelayNorm, DelayParams{Mean: meanPar, Sigma: sigmaPar})
	if err != nil {
		b.err = err
	}
	return d
}

func (b *refBuilder) connect(c Connector, err error) {
	if b.err != nil {
		return
	}
	if err != nil {
		b.err = err
		return
	}
	b.err = b.m.AddConnector(c)
}

func (b *refBuilder) transition(t Transition, err error) {
	if b.err != nil {
		return
	}
	if err != nil {
		b.err = err
		return
	}
	b.err = b.m.AddTransition(t)
}

// ReferenceModel builds the built-in reference model: a fully mixed
// infection cycle with separate measurement paths for case reporting,
// hospitalization, ICU and ventilator occupancy, rate-change and linear
// modifiers, and outbreak / reporting-anomaly injectors. It exercises every
// connector and transition variant and is the model the CLI runs when no
// definition file is given.
func ReferenceModel() (*Model, error) {
	m := NewModel("reference")
	m.SetStartDate(2020, time.March, 1)
	b := &refBuilder{m: m}

	// Initialization.
	initialPop := b.param("N_0", 5e6, 5e3, 5e7, ParamInt, "population of the region at t0")
	total := b.popPar("total", initialPop, "total population of the region", "black")
	susceptible := b.popPar("susceptible", initialPop, "number of people who could become infected", "cornflowerblue")
	infected := b.pop("infected", 0, "total number of people ever infected", "orange")

	// The infection cycle.
	initialContagious := b.param("cont_0", 10, 0, 5000, ParamReal, "number of contagious people at t0")
	contagious := b.popPar("contagious", initialContagious, "number of people that can cause someone to become infected", "red")
	transRate := b.param("alpha", 0.4, 0, 2, ParamReal, "mean number of people that a contagious person infects per day")
	negBinomP := b.param("neg_binom_p", 0.5, 0.001, 0.999, ParamReal, "dispersion parameter p for the infection draw")
	infectionDelay := b.fast("infection_delay")

	if b.err == nil {
		mult, err := NewMultiplier("infection cycle", [3]*Population{susceptible, contagious, total},
			infected, transRate, infectionDelay)
		if err == nil {
			err = mult.UseNegBinom(negBinomP)
		}
		b.connect(mult, err)
	}

	contagiousFrac := b.param("cont_frac", 0.9, 0, 1, ParamReal, "fraction of infected people that become contagious")
	contagiousDelay := b.norm("cont_delay", 5, 3, "time from being infected to becoming contagious")
	b.connect(NewPropagator("infected to contagious", infected, contagious, contagiousFrac, contagiousDelay))

	// The contagious either recover or die; this split only tracks deaths.
	recovered := b.pop("recovered", 0, "people who recovered and are no longer susceptible", "limegreen")
	deaths := b.pop("deaths", 0, "people who have died from the illness", "indigo")
	recoverFrac := b.param("recover_frac", 0.99, 0, 1, ParamReal, "fraction of infected people who recover")
	recoverDelay := b.norm("recover_delay", 14, 5, "time from infection to recovery")
	deathDelay := b.norm("death_delay", 21, 10, "time from infection to death")
	b.connect(NewSplitter("recovery", contagious, []*Population{recovered, deaths},
		[]*Parameter{recoverFrac}, []*Delay{recoverDelay, deathDelay}))

	// Newly contagious split into contact-traced, symptomatic and silent cases.
	contactTraced := b.pop("contact_traced", 0, "people identified through contact tracing", "coral")
	contactTracedFrac := b.param("contact_traced_frac", 0, 0, 1, ParamReal, "fraction of contagious identified first through contact tracing")
	contactTracedDelay := b.norm("contact_traced_delay", 2, 1, "time from becoming contagious to being contact traced")
	symptomatic := b.pop("symptomatic", 0, "people who have shown symptoms", "chocolate")
	symptomaticFrac := b.param("symptomatic_frac", 0.9, 0, 1, ParamReal, "fraction of contagious people who become symptomatic")
	symptomaticDelay := b.norm("symptomatic_delay", 2, 1, "time from becoming contagious to having symptoms")
	asymptomaticRec := b.pop("asymptomatic_recovered", 0, "people who never showed symptoms", "silver")
	asymptomaticDelay := b.norm("asymp_rec_delay", 12, 4, "time from becoming contagious to recovery without symptoms")
	b.connect(NewSplitter("symptoms", contagious,
		[]*Population{contactTraced, symptomatic, asymptomaticRec},
		[]*Parameter{contactTracedFrac, symptomaticFrac},
		[]*Delay{contactTracedDelay, symptomaticDelay, asymptomaticDelay}))

	// Removal from circulation is kept independent of the reporting path so
	// the two time scales can be calibrated separately.
	removed := b.pop("removed", 0, "people removed from the contagious population", "blue")
	removedFrac := b.param("removed_frac", 1, 0, 1, ParamReal, "fraction of contagious people eventually removed")
	removedDelay := b.norm("removed_delay", 7, 3, "time from becoming contagious to removal")
	b.connect(NewPropagator("contagious to removed", contagious, removed, removedFrac, removedDelay))
	b.connect(NewSubtractor("removal from contagious", contagious, removed))

	// Testing and reporting.
	positives := b.pop("positives", 0, "people who received a positive test result", "cyan")
	unreported := b.pop("unreported", 0, "symptomatic people without a positive test result", "deepskyblue")
	reportedFrac := b.param("reported_frac", 0.8, 0, 1, ParamReal, "fraction of symptomatic people who receive a positive report")
	reportedDelay := b.norm("reported_delay", 3, 1, "time from symptoms to positive report")
	unreportedDelay := b.norm("unreported_delay", 12, 4, "time from symptoms to recovery for the unreported")
	b.connect(NewSplitter("testing", symptomatic, []*Population{positives, unreported},
		[]*Parameter{reportedFrac}, []*Delay{reportedDelay, unreportedDelay}))
	b.connect(NewAdder("report contact_traced", contactTraced, positives))

	reportNoise := b.param("report_noise", 1, 0, 1, ParamReal, "low edge of the fraction of today's cases reported today")
	reportBacklog := b.param("report_backlog", 1, 0, 1, ParamReal, "low edge of the fraction of the report backlog cleared")
	reportDays := b.param("report_days", 127, 0, 127, ParamInt, "days of week with reporting (bit encoded, Sunday = bit 0)")
	reported := b.pop("reported", 0, "people whose positive test was reported", "forestgreen")
	if b.err == nil {
		reported.ShowSim = true
		b.err = reported.EnableReporting(ReportingConfig{Noise: reportNoise, Backlog: reportBacklog, Days: reportDays})
	}
	b.connect(NewAdder("positives reported", positives, reported))

	reportAnomalies := b.pop("report_anomalies", 0, "anomalous batches of reports", "lightcyan")
	anomalyFrac := b.param("anomaly_frac", 1, 0, 1, ParamReal, "fraction of anomalous reports included")
	anomalyDelay := b.norm("anomaly_delay", 7, 3, "time from injection of anomalies to being reported")
	b.connect(NewPropagator("report anomalies to reported", reportAnomalies, reported, anomalyFrac, anomalyDelay))

	// Hospitalization: two independent admission streams (non-ICU and ICU).
	nonICUHospitalized := b.pop("non_icu_hospitalized", 0, "total non-ICU hospitalization cases", "dimgrey")
	nonICUFrac := b.param("non_icu_hosp_frac", 0.2, 0, 1, ParamReal, "fraction of symptomatic admitted outside the ICU")
	nonICUHospDelay := b.norm("non_icu_hosp_delay", 6, 3, "time from symptoms to non-ICU hospitalization")
	b.connect(NewPropagator("symptomatic to non_icu hospital", symptomatic, nonICUHospitalized, nonICUFrac, nonICUHospDelay))

	nonICUReleased := b.pop("non_icu_rel", 0, "hospitalized not needing ICU and released", "hotpink")
	releaseFrac := b.param("release_frac", 1, 1, 1, ParamReal, "fraction of all released")
	nonICURelDelay := b.norm("non_icu_rel_delay", 10, 3, "time from non-ICU hospitalization to release")
	b.connect(NewPropagator("non_icu hospital to released", nonICUHospitalized, nonICUReleased, releaseFrac, nonICURelDelay))

	icu := b.pop("icu_admissions", 0, "people admitted to ICU", "deeppink")
	icuFrac := b.param("icu_frac", 0, 0, 1, ParamReal, "fraction of symptomatic people who go to ICU")
	toICUDelay := b.norm("to_icu_delay", 4, 2, "time from symptoms to ICU")
	b.connect(NewPropagator("symptomatic to icu", symptomatic, icu, icuFrac, toICUDelay))

	// Some in the ICU get ventilated.
	ventilated := b.pop("ventilated", 0, "people who received an ICU ventilator", "mediumorchid")
	ventFrac := b.param("vent_frac", 0.3, 0, 1, ParamReal, "fraction of those in ICU who need ventilation")
	toVentDelay := b.norm("to_vent_delay", 4, 2, "time from ICU admission to ventilator")
	nonVentilatedRel := b.pop("non_ventilated_rel", 0, "ICU non-ventilated released", "palevioletred")
	nonVentICUDelay := b.norm("in_icu_delay", 14, 5, "time from non-ventilated ICU admission to release")
	b.connect(NewSplitter("ventilator", icu, []*Population{ventilated, nonVentilatedRel},
		[]*Parameter{ventFrac}, []*Delay{toVentDelay, nonVentICUDelay}))

	ventilatedRel := b.pop("ventilated_rel", 0, "ICU ventilated released", "aqua")
	inVentDelay := b.norm("in_vent_delay", 10, 5, "time from ventilator admission to departure")
	b.connect(NewPropagator("ventilator to released", ventilated, ventilatedRel, releaseFrac, inVentDelay))

	// Derived aggregates: admissions and current occupancy.
	hospitalized := b.pop("hospitalized", 0, "total hospitalization cases", "slategrey")
	b.connect(NewAdder("include non_icu in hospitalized", nonICUHospitalized, hospitalized))
	b.connect(NewAdder("include icu in hospitalized", icu, hospitalized))

	inHospital := b.pop("in_hospital", 0, "people currently in hospital", "darkcyan")
	b.connect(NewAdder("copy hospitalizations", hospitalized, inHospital))
	inICU := b.pop("in_icu", 0, "people currently in ICU", "deeppink")
	b.connect(NewAdder("copy icu admissions", icu, inICU))
	onVentilator := b.pop("on_ventilator", 0, "people currently on an ICU ventilator", "mediumpurple")
	b.connect(NewAdder("copy ventilator admissions", ventilated, onVentilator))

	b.connect(NewSubtractor("remove non-ICU released", inHospital, nonICUReleased))
	b.connect(NewSubtractor("remove non-vent released from icu", inICU, nonVentilatedRel))
	b.connect(NewSubtractor("remove non-vent released from hospital", inHospital, nonVentilatedRel))
	b.connect(NewSubtractor("remove vent released from on_ventilator", onVentilator, ventilatedRel))
	b.connect(NewSubtractor("remove vent released from icu", inICU, ventilatedRel))
	b.connect(NewSubtractor("remove vent released from hospital", inHospital, ventilatedRel))

	b.connect(NewSubtractor("subtract deaths from total", total, deaths))
	b.connect(NewSubtractor("subtract infected from susceptible", susceptible, infected))

	// Transmission-rate transitions.
	transRate1Time := b.param("trans_rate_1_time", 20, 0, 300, ParamInt, "days before the 1st transmission rate change")
	transRate2Time := b.param("trans_rate_2_time", 50, 0, 300, ParamInt, "days before the 2nd transmission rate change")
	alpha0 := b.param("alpha_0", 0.4, 0, 2, ParamReal, "initial transmission rate")
	alpha1 := b.param("alpha_1", 0.1, 0, 2, ParamReal, "transmission rate after the 1st transition")
	alpha2 := b.param("alpha_2", 0.1, 0, 2, ParamReal, "transmission rate after the 2nd transition")
	b.transition(NewModifier("trans_rate_1", transRate1Time, transRate, alpha0, alpha1, true))
	b.transition(NewModifier("trans_rate_2", transRate2Time, transRate, alpha1, alpha2, false))

	// Linear ICU-fraction modifier, off by default.
	icuFrac0 := b.param("icu_frac_0", 0.04, 0, 1, ParamReal, "initial icu fraction")
	icuFracSlope := b.param("icu_frac_slope", 0.001, -0.1, 0.1, ParamReal, "icu fraction modification slope")
	icuFracTime := b.param("icu_frac_time", 80, 0, 300, ParamInt, "days before the start of the icu_frac ramp")
	icuFracNStep := b.param("icu_frac_nstep", -1, -1, 300, ParamInt, "days to apply the icu_frac ramp")
	b.transition(NewLinearModifier("mod_icu_frac", icuFracTime, icuFrac, icuFrac0, icuFracSlope, icuFracNStep, false))

	// Outbreaks feed the infection cycle through their own delayed path.
	outbreaks := b.pop("outbreaks", 0, "infection outbreaks", "")
	outbreak1Time := b.param("outbreak_1_time", 14, 0, 100, ParamInt, "days since t0 when outbreak_1 is established")
	outbreak1Number := b.param("outbreak_1_number", 10, 0, 50000, ParamReal, "number of infections in outbreak_1")
	b.transition(NewInjector("outbreak_1", outbreak1Time, outbreaks, outbreak1Number, false))
	outbreakFrac := b.param("outbreak_frac", 1, 0, 1, ParamReal, "fraction of outbreak infections that take")
	outbreakDelay := b.norm("outbreak_delay", 7, 1, "delay time for outbreak infections")
	b.connect(NewPropagator("outbreaks to infected", outbreaks, infected, outbreakFrac, outbreakDelay))

	anomaly1Time := b.param("rep_anomaly_1_time", 40, 0, 300, ParamInt, "days since t0 when reporting anomaly_1 occurs")
	anomaly1Number := b.param("rep_anomaly_1_number", 50, 0, 5000, ParamReal, "number of anomalous reports in anomaly_1")
	b.transition(NewInjector("rep_anomaly_1", anomaly1Time, reportAnomalies, anomaly1Number, false))

	if b.err != nil {
		return nil, b.err
	}
	if err := m.SetBoot(&BootConfig{
		Population: contagious,
		SeedValue:  0.1,
		Exclusions: []*Population{total, susceptible},
	}); err != nil {
		return nil, err
	}
	return m, nil
}
