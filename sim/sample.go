package sim

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampling helpers for simulated-data mode. All draws take an explicit
// stream so that identical seeds reproduce identical runs.
//
// A negative or non-integral total handed to a counting draw is a violated
// upstream invariant (the engine only ever realizes integer counts in data
// mode), so these helpers panic rather than return an error: the failure is
// an internal defect, not a model-validation condition.

// drawUniform returns a variate from U(low, 1).
func drawUniform(rng *rand.Rand, low float64) float64 {
	return low + (1.0-low)*rng.Float64()
}

// drawBinomial returns a Binomial(n, p) variate. n must be a non-negative
// integer-valued float; p is clamped into [0, 1].
func drawBinomial(rng *rand.Rand, n, p float64) float64 {
	checkCount("binomial", n)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return n
	}
	return distuv.Binomial{N: n, P: p, Src: rng}.Rand()
}

// drawPoisson returns a Poisson variate with the given mean.
func drawPoisson(rng *rand.Rand, mean float64) float64 {
	if mean < 0 || math.IsNaN(mean) {
		panic(fmt.Sprintf("sim: internal: poisson draw with mean %g", mean))
	}
	if mean == 0 {
		return 0
	}
	return distuv.Poisson{Lambda: mean, Src: rng}.Rand()
}

// drawNegBinomial returns a negative-binomial variate parameterized by its
// mean and the dispersion parameter p in (0, 1). The size parameter is
// r = mean * p / (1 - p), which preserves the mean while inflating the
// variance to mean / p, the overdispersion used to model super-spreading.
//
// Sampled as a gamma-Poisson mixture: lambda ~ Gamma(r, p/(1-p)),
// count ~ Poisson(lambda).
func drawNegBinomial(rng *rand.Rand, mean, p float64) float64 {
	if mean < 0 || math.IsNaN(mean) {
		panic(fmt.Sprintf("sim: internal: negative-binomial draw with mean %g", mean))
	}
	if mean == 0 {
		return 0
	}
	if p <= 0 || p >= 1 {
		panic(fmt.Sprintf("sim: internal: negative-binomial dispersion %g outside (0,1)", p))
	}
	rate := p / (1.0 - p)
	lambda := distuv.Gamma{Alpha: mean * rate, Beta: rate, Src: rng}.Rand()
	return drawPoisson(rng, lambda)
}

// drawMultinomial partitions an integer total across categories with the
// given probabilities, using the conditional-binomial decomposition. When
// the probabilities sum to 1 the returned counts sum exactly to total; a
// shortfall from 1 acts as an extra unlisted category whose count is
// discarded (the Splitter's silent-drop remainder).
func drawMultinomial(rng *rand.Rand, total float64, probs []float64) []float64 {
	checkCount("multinomial", total)
	counts := make([]float64, len(probs))
	remaining := total
	remainingP := 1.0
	for i, p := range probs {
		if remaining <= 0 {
			break
		}
		if remainingP <= 0 || p >= remainingP {
			counts[i] = remaining
			remaining = 0
			break
		}
		c := drawBinomial(rng, remaining, p/remainingP)
		counts[i] = c
		remaining -= c
		remainingP -= p
	}
	return counts
}

func checkCount(kind string, n float64) {
	if n < 0 || n != math.Round(n) || math.IsNaN(n) || math.IsInf(n, 0) {
		panic(fmt.Sprintf("sim: internal: %s draw with total %g (must be a non-negative integer)", kind, n))
	}
}
