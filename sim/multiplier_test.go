package sim

import (
	"math"
	"testing"
)

func multiplierFixture(t *testing.T, s, c, n float64) (*Multiplier, *Population) {
	t.Helper()
	susceptible := NewPopulation("susceptible", s)
	contagious := NewPopulation("contagious", c)
	total := NewPopulation("total", n)
	infected := NewPopulation("infected", 0)
	rate, err := NewParameter("alpha", 0.4, 0, 2, ParamReal)
	if err != nil {
		t.Fatalf("rate parameter: %v", err)
	}
	m, err := NewMultiplier("infection cycle", [3]*Population{susceptible, contagious, total},
		infected, rate, fastDelay(t, "now"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m, infected
}

func TestMultiplier_Expectation_ComputesTransmissionTerm(t *testing.T) {
	// GIVEN S=1000, C=10, N=10000 and rate 0.4
	m, infected := multiplierFixture(t, 1000, 10, 10000)

	// WHEN the connector fires
	m.Step(ModeExpectation, NewRandStreams(0))

	// THEN the new flow is rate*S*C/N = 0.4
	if got := infected.Pending(); math.Abs(got-0.4) > 1e-12 {
		t.Errorf("Pending: got %g, want 0.4", got)
	}
}

func TestMultiplier_SkipsWhenNormalizerEmpty(t *testing.T) {
	m, infected := multiplierFixture(t, 1000, 10, 0)
	m.Step(ModeExpectation, NewRandStreams(0))
	if infected.Pending() != 0 {
		t.Errorf("Pending: got %g, want 0", infected.Pending())
	}
}

func TestMultiplier_SkipsWhenNoContagious(t *testing.T) {
	m, infected := multiplierFixture(t, 1000, 0, 10000)
	m.Step(ModeData, NewRandStreams(25))
	if infected.Pending() != 0 {
		t.Errorf("Pending: got %g, want 0", infected.Pending())
	}
}

func TestMultiplier_Data_DrawsIntegerCounts(t *testing.T) {
	m, infected := multiplierFixture(t, 9000, 500, 10000)

	m.Step(ModeData, NewRandStreams(26))

	// expectation is 0.4*9000*500/10000 = 180; Poisson sigma is ~13.4
	got := infected.Pending()
	if got != math.Round(got) || got < 0 {
		t.Fatalf("drawn count %g is not a non-negative integer", got)
	}
	if math.Abs(got-180) > 70 {
		t.Errorf("drawn count %g implausibly far from 180", got)
	}
}

func TestMultiplier_Data_SameSeedReproduces(t *testing.T) {
	m1, dest1 := multiplierFixture(t, 9000, 500, 10000)
	m2, dest2 := multiplierFixture(t, 9000, 500, 10000)

	m1.Step(ModeData, NewRandStreams(27))
	m2.Step(ModeData, NewRandStreams(27))

	if dest1.Pending() != dest2.Pending() {
		t.Errorf("same seed diverged: %g vs %g", dest1.Pending(), dest2.Pending())
	}
}

func TestMultiplier_UseNegBinom_ValidatesDispersionBounds(t *testing.T) {
	m, _ := multiplierFixture(t, 1000, 10, 10000)

	bad, err := NewParameter("p_bad", 0.5, 0, 1, ParamReal) // bounds include the endpoints
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.UseNegBinom(bad); err == nil {
		t.Error("expected error for dispersion bounded outside (0,1)")
	}

	good, err := NewParameter("neg_binom_p", 0.5, 0.001, 0.999, ParamReal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.UseNegBinom(good); err != nil {
		t.Fatalf("UseNegBinom: %v", err)
	}
	if m.Dist != DistNegBinom {
		t.Error("UseNegBinom did not switch the distribution")
	}
}

func TestMultiplier_NegBinom_Data_DrawsIntegerCounts(t *testing.T) {
	m, infected := multiplierFixture(t, 9000, 500, 10000)
	p, err := NewParameter("neg_binom_p", 0.5, 0.001, 0.999, ParamReal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.UseNegBinom(p); err != nil {
		t.Fatalf("UseNegBinom: %v", err)
	}

	m.Step(ModeData, NewRandStreams(28))

	got := infected.Pending()
	if got != math.Round(got) || got < 0 {
		t.Errorf("drawn count %g is not a non-negative integer", got)
	}
}
