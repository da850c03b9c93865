package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DelayKind selects the lag-time distribution family of a Delay.
type DelayKind string

const (
	// DelayFast is an instantaneous transition: a point mass at offset 0,
	// the "tomorrow" slot realized by the next time step.
	DelayFast DelayKind = "fast"
	// DelayNorm discretizes a normal density driven by mean/sigma parameters.
	DelayNorm DelayKind = "norm"
	// DelayUniform is flat between mean-half_width and mean+half_width.
	DelayUniform DelayKind = "uniform"
	// DelayGamma discretizes a gamma density driven by mean/sigma parameters.
	DelayGamma DelayKind = "gamma"
)

// DelayParams names the parameters that drive a delay kernel. Which fields
// are required depends on the kind: norm and gamma need Mean and Sigma,
// uniform needs Mean and HalfWidth, fast needs none.
type DelayParams struct {
	Mean      *Parameter
	Sigma     *Parameter
	HalfWidth *Parameter
}

// Delay converts a continuous lag distribution into a finite sequence of
// day-offset probability masses: Kernel()[i] is the probability that flow
// deposited today arrives i+1 days from now. The kernel is non-negative and
// sums to 1, with the tail beyond the cutoff folded into the final bin.
//
// Kernels are recomputed lazily: the cached slice is reused until a driving
// parameter's version counter advances. Calibration sweeps call Kernel()
// once per connector per day, so recomputation cost matters.
type Delay struct {
	Name string
	Kind DelayKind

	pars DelayParams

	kernel   []float64
	meanVer  uint64
	sigmaVer uint64
	widthVer uint64
	cached   bool
}

// NewDelay creates a delay kernel definition and validates that the
// parameters required by the kind are present and sensibly bounded.
func NewDelay(name string, kind DelayKind, pars DelayParams) (*Delay, error) {
	d := &Delay{Name: name, Kind: kind, pars: pars}
	switch kind {
	case DelayFast:
		// no driving parameters
	case DelayNorm, DelayGamma:
		if pars.Mean == nil || pars.Sigma == nil {
			return nil, fmt.Errorf("delay %q: kind %q requires mean and sigma parameters", name, kind)
		}
		if pars.Sigma.Min <= 0 {
			return nil, fmt.Errorf("delay %q: sigma parameter %q must be bounded above zero", name, pars.Sigma.Name)
		}
	case DelayUniform:
		if pars.Mean == nil || pars.HalfWidth == nil {
			return nil, fmt.Errorf("delay %q: kind %q requires mean and half_width parameters", name, kind)
		}
		if pars.HalfWidth.Min <= 0 {
			return nil, fmt.Errorf("delay %q: half_width parameter %q must be bounded above zero", name, pars.HalfWidth.Name)
		}
	default:
		return nil, fmt.Errorf("delay %q: unknown kind %q", name, kind)
	}
	return d, nil
}

// Kernel returns the day-offset probability masses, recomputing only when a
// driving parameter has changed since the last call.
func (d *Delay) Kernel() []float64 {
	if d.cached && !d.stale() {
		return d.kernel
	}
	d.kernel = d.compute()
	d.rememberVersions()
	d.cached = true
	return d.kernel
}

func (d *Delay) stale() bool {
	if d.pars.Mean != nil && d.pars.Mean.Version() != d.meanVer {
		return true
	}
	if d.pars.Sigma != nil && d.pars.Sigma.Version() != d.sigmaVer {
		return true
	}
	if d.pars.HalfWidth != nil && d.pars.HalfWidth.Version() != d.widthVer {
		return true
	}
	return false
}

func (d *Delay) rememberVersions() {
	if d.pars.Mean != nil {
		d.meanVer = d.pars.Mean.Version()
	}
	if d.pars.Sigma != nil {
		d.sigmaVer = d.pars.Sigma.Version()
	}
	if d.pars.HalfWidth != nil {
		d.widthVer = d.pars.HalfWidth.Version()
	}
}

func (d *Delay) compute() []float64 {
	switch d.Kind {
	case DelayFast:
		return []float64{1}
	case DelayNorm:
		mean, sigma := d.pars.Mean.Value(), d.pars.Sigma.Value()
		dist := distuv.Normal{Mu: mean, Sigma: sigma}
		return discretize(dist.CDF, mean+4*sigma)
	case DelayGamma:
		mean, sigma := d.pars.Mean.Value(), d.pars.Sigma.Value()
		// Match the first two moments: shape = (mean/sigma)^2, rate = mean/sigma^2.
		dist := distuv.Gamma{Alpha: (mean / sigma) * (mean / sigma), Beta: mean / (sigma * sigma)}
		return discretize(dist.CDF, mean+4*sigma)
	case DelayUniform:
		mean, hw := d.pars.Mean.Value(), d.pars.HalfWidth.Value()
		dist := distuv.Uniform{Min: mean - hw, Max: mean + hw}
		return discretize(dist.CDF, mean+hw)
	}
	panic(fmt.Sprintf("sim: internal: delay %q has unknown kind %q", d.Name, d.Kind))
}

// discretize integrates a CDF over 1-day bins out to the cutoff. Mass below
// zero folds into the first bin and the residual tail folds into the last,
// so the bins account for the full distribution; a final normalization pass
// removes floating-point residue so the kernel sums to exactly 1.
func discretize(cdf func(float64) float64, cutoff float64) []float64 {
	n := int(math.Ceil(cutoff))
	if n < 1 {
		n = 1
	}
	kernel := make([]float64, n)
	prev := 0.0 // CDF(-inf): everything below day 0 belongs in the first bin
	for i := 0; i < n-1; i++ {
		c := cdf(float64(i + 1))
		kernel[i] = c - prev
		prev = c
	}
	kernel[n-1] = 1 - prev
	sum := 0.0
	for i, m := range kernel {
		if m < 0 {
			kernel[i] = 0
			m = 0
		}
		sum += m
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
