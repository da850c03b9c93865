package sim

import (
	"math"
	"testing"
	"time"
)

func TestPopulation_DoTimeStep_RealizesPendingIncrement(t *testing.T) {
	// GIVEN a population with an increment scheduled for tomorrow
	p := NewPopulation("infected", 5)
	p.UpdateFutureFast(3)

	// WHEN a day passes
	p.DoTimeStep(ModeExpectation, nil, true)

	// THEN the increment lands in history and the slot is consumed
	if p.Latest() != 8 {
		t.Errorf("Latest: got %g, want 8", p.Latest())
	}
	if p.Pending() != 0 {
		t.Errorf("Pending after step: got %g, want 0", p.Pending())
	}
	if len(p.History) != 2 {
		t.Errorf("history length: got %d, want 2", len(p.History))
	}
}

func TestPopulation_DoTimeStep_ClampsAtZero(t *testing.T) {
	// GIVEN a scheduled decrement larger than the current value
	p := NewPopulation("in_icu", 2)
	p.UpdateFutureFast(-5)

	// WHEN a day passes
	p.DoTimeStep(ModeExpectation, nil, true)

	// THEN the history value clamps at zero instead of going negative
	if p.Latest() != 0 {
		t.Errorf("Latest: got %g, want 0", p.Latest())
	}
}

func TestPopulation_DelayedDeposit_ArrivesOnSchedule(t *testing.T) {
	// GIVEN 10 people scheduled through a 3-day point-mass kernel
	p := NewPopulation("removed", 0)
	p.UpdateFutureExpectation(10, pointMassDelay(t, "threeday", 2))

	// THEN nothing arrives for two days and everything on the third
	for day := 0; day < 2; day++ {
		p.DoTimeStep(ModeExpectation, nil, true)
		if p.Latest() != 0 {
			t.Fatalf("day %d: got %g, want 0", day+1, p.Latest())
		}
	}
	p.DoTimeStep(ModeExpectation, nil, true)
	if p.Latest() != 10 {
		t.Errorf("after 3 days: got %g, want 10", p.Latest())
	}
}

func TestPopulation_UpdateFutureData_ConservesTotal(t *testing.T) {
	// GIVEN a stochastic deposit through a spread-out kernel
	p := NewPopulation("contagious", 0)
	d := mustNormDelay(t, "spread", 4, 2)
	rng := NewRandStreams(11).ForSubsystem(SubsystemDelays)
	p.UpdateFutureData(500, d, rng)

	// THEN the scattered counts are integers summing to the deposit
	sum := 0.0
	for p.Pending() != 0 || len(p.future) > 0 {
		v := p.Pending()
		if v != math.Round(v) || v < 0 {
			t.Fatalf("future slot holds %g, want a non-negative integer", v)
		}
		sum += v
		p.DoTimeStep(ModeData, rng, true)
	}
	if sum != 500 {
		t.Errorf("scattered counts sum to %g, want 500", sum)
	}
}

func TestPopulation_RemoveHistory_KeepsFutureCommitments(t *testing.T) {
	// GIVEN a population with history and an in-flight future increment
	p := NewPopulation("contagious", 0)
	p.UpdateFutureFast(4)
	p.DoTimeStep(ModeExpectation, nil, true)
	p.UpdateFutureExpectation(6, pointMassDelay(t, "tomorrow2", 1))

	// WHEN the warm-up history is discarded
	p.RemoveHistory()

	// THEN only the latest value remains but the future still pays out
	if len(p.History) != 1 || p.History[0] != 4 {
		t.Fatalf("history after RemoveHistory: got %v, want [4]", p.History)
	}
	p.DoTimeStep(ModeExpectation, nil, true)
	p.DoTimeStep(ModeExpectation, nil, true)
	if p.Latest() != 10 {
		t.Errorf("future increment lost: got %g, want 10", p.Latest())
	}
}

func TestPopulation_Reset_RestoresParameterDrivenInitialValue(t *testing.T) {
	// GIVEN a population whose initial value tracks a parameter
	n0, err := NewParameter("N_0", 1000, 0, 1e7, ParamReal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := NewPopulationWithParameter("total", n0)
	p.UpdateFutureFast(50)
	p.DoTimeStep(ModeExpectation, nil, true)

	// WHEN the parameter moves and the population resets
	if err := n0.Set(2000); err != nil {
		t.Fatalf("Set: %v", err)
	}
	p.Reset()

	// THEN the restart uses the parameter's current value
	if len(p.History) != 1 || p.Latest() != 2000 {
		t.Errorf("after Reset: history %v, want [2000]", p.History)
	}
	if p.Pending() != 0 {
		t.Errorf("Reset left pending flow: %g", p.Pending())
	}
}

func TestPopulation_ScaleHistory_RoundsInDataMode(t *testing.T) {
	p := NewPopulation("infected", 0)
	p.History = []float64{1, 3, 7}
	p.ScaleHistory(0.5, ModeData)
	for i, want := range []float64{1, 2, 4} { // banker-free math.Round
		if p.History[i] != want {
			t.Errorf("History[%d]: got %g, want %g", i, p.History[i], want)
		}
	}

	q := NewPopulation("infected_e", 0)
	q.History = []float64{1, 3, 7}
	q.ScaleHistory(0.5, ModeExpectation)
	for i, want := range []float64{0.5, 1.5, 3.5} {
		if q.History[i] != want {
			t.Errorf("expectation History[%d]: got %g, want %g", i, q.History[i], want)
		}
	}
}

func reportingPopulation(t *testing.T, noiseLow float64, daysMask int) *Population {
	t.Helper()
	p := NewPopulation("reported", 0)
	noise, err := NewParameter("report_noise", noiseLow, 0, 1, ParamReal)
	if err != nil {
		t.Fatalf("noise parameter: %v", err)
	}
	cfg := ReportingConfig{Noise: noise}
	if daysMask >= 0 {
		days, err := NewParameter("report_days", float64(daysMask), 0, 127, ParamInt)
		if err != nil {
			t.Fatalf("days parameter: %v", err)
		}
		cfg.Days = days
	}
	if err := p.EnableReporting(cfg); err != nil {
		t.Fatalf("EnableReporting: %v", err)
	}
	return p
}

func TestPopulation_ReportingNoiseOne_IsDeterministicPassThrough(t *testing.T) {
	// GIVEN reporting noise with low edge 1: U(1,1) always reports everything
	p := reportingPopulation(t, 1, -1)
	rng := NewRandStreams(12).ForSubsystem(SubsystemReporting)
	p.UpdateFutureFast(7)

	p.DoTimeStep(ModeData, rng, true)

	if p.Latest() != 7 {
		t.Errorf("Latest: got %g, want 7", p.Latest())
	}
}

func TestPopulation_ReportingNoise_DefersIntoBacklog(t *testing.T) {
	// GIVEN noisy reporting that can hold part of the daily count back
	p := reportingPopulation(t, 0.3, -1)
	rng := NewRandStreams(13).ForSubsystem(SubsystemReporting)

	total := 0.0
	for day := 0; day < 30; day++ {
		p.UpdateFutureFast(100)
		total += 100
		p.DoTimeStep(ModeData, rng, true)
		if p.Latest() > total {
			t.Fatalf("day %d: reported %g exceeds generated %g", day, p.Latest(), total)
		}
	}

	// the backlog releases fully on the next reporting day, so the running
	// shortfall never exceeds one day's holdback
	if p.Latest() < total-100 {
		t.Errorf("reported %g lags generated %g by more than one day's flow", p.Latest(), total)
	}
}

func TestPopulation_WeekdayMask_SuppressesAndReleases(t *testing.T) {
	// GIVEN a population that never reports (mask 0)
	p := reportingPopulation(t, 1, 0)
	rng := NewRandStreams(14).ForSubsystem(SubsystemReporting)

	for day := 0; day < 3; day++ {
		p.UpdateFutureFast(10)
		p.DoTimeStep(ModeData, rng, p.reportableOn(time.Monday))
		if p.Latest() != 0 {
			t.Fatalf("blocked day %d: got %g, want 0", day, p.Latest())
		}
	}

	// WHEN a reporting day finally comes around
	p.UpdateFutureFast(10)
	p.DoTimeStep(ModeData, rng, true)

	// THEN the entire backlog plus today's count is released at once
	if p.Latest() != 40 {
		t.Errorf("after release: got %g, want 40", p.Latest())
	}
}

func TestPopulation_ReportableOn_ReadsWeekdayBits(t *testing.T) {
	// mask 62 = Monday through Friday (Sunday is bit 0)
	p := reportingPopulation(t, 1, 62)
	if !p.reportableOn(time.Monday) || !p.reportableOn(time.Friday) {
		t.Error("weekdays should be reportable under mask 62")
	}
	if p.reportableOn(time.Saturday) || p.reportableOn(time.Sunday) {
		t.Error("weekend should be suppressed under mask 62")
	}

	// populations without a mask report every day
	q := reportingPopulation(t, 1, -1)
	if !q.reportableOn(time.Sunday) {
		t.Error("population without a mask should report on Sunday")
	}
}

func TestPopulation_ExpectationMode_IgnoresReportingNoise(t *testing.T) {
	p := reportingPopulation(t, 0.3, 0)
	p.UpdateFutureFast(10)
	p.DoTimeStep(ModeExpectation, nil, false)
	if p.Latest() != 10 {
		t.Errorf("expectation mode: got %g, want 10", p.Latest())
	}
}

func TestPopulation_EnableReporting_RequiresNoiseParameter(t *testing.T) {
	p := NewPopulation("reported", 0)
	if err := p.EnableReporting(ReportingConfig{}); err == nil {
		t.Error("expected error for missing noise parameter")
	}
}
