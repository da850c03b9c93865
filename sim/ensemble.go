package sim

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// EnsembleResult summarizes a Monte-Carlo ensemble of data-mode runs:
// per-population mean and standard deviation of the history value at each
// day index (0 = initial state).
type EnsembleResult struct {
	Runs int
	Days int
	Mean map[string][]float64
	Std  map[string][]float64
}

// RunEnsemble executes runs independent data-mode simulations of days days
// each, seeded baseSeed, baseSeed+1, ..., spread over the given number of
// worker goroutines. The builder must return a freshly wired model on every
// call: each run owns its model and random streams outright, which is what
// makes the workers safe without locking. Models with boot configuration
// are booted before the recorded run.
func RunEnsemble(build func() (*Model, error), days, runs int, baseSeed int64, workers int) (*EnsembleResult, error) {
	if days < 1 {
		return nil, fmt.Errorf("ensemble: days must be positive, got %d", days)
	}
	if runs < 1 {
		return nil, fmt.Errorf("ensemble: runs must be positive, got %d", runs)
	}
	if workers < 1 {
		workers = 1
	}
	if workers > runs {
		workers = runs
	}

	histories := make([]map[string][]float64, runs)
	errs := make([]error, runs)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				histories[i], errs[i] = runOnce(build, days, baseSeed+int64(i))
			}
		}()
	}
	for i := 0; i < runs; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("ensemble: run %d (seed %d): %w", i, baseSeed+int64(i), err)
		}
	}

	result := &EnsembleResult{
		Runs: runs,
		Days: days,
		Mean: make(map[string][]float64),
		Std:  make(map[string][]float64),
	}
	sample := make([]float64, runs)
	for name := range histories[0] {
		mean := make([]float64, days+1)
		std := make([]float64, days+1)
		for d := 0; d <= days; d++ {
			for i := 0; i < runs; i++ {
				sample[i] = histories[i][name][d]
			}
			mean[d] = stat.Mean(sample, nil)
			std[d] = stat.StdDev(sample, nil)
		}
		result.Mean[name] = mean
		result.Std[name] = std
	}
	logrus.Infof("ensemble: %d runs of %d days complete (%d populations)", runs, days, len(result.Mean))
	return result, nil
}

func runOnce(build func() (*Model, error), days int, seed int64) (map[string][]float64, error) {
	model, err := build()
	if err != nil {
		return nil, err
	}
	model.SetSeed(seed)
	model.Reset()
	if err := model.Boot(ModeData); err != nil {
		return nil, err
	}
	model.Run(days, ModeData)
	out := make(map[string][]float64, len(model.Populations()))
	for _, p := range model.Populations() {
		series := make([]float64, len(p.History))
		copy(series, p.History)
		out[p.Name] = series
	}
	return out, nil
}
