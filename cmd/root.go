package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/epidemic-sim/epidemic-sim/sim"
)

var (
	// CLI flags shared by the subcommands
	logLevel   string // Log verbosity level
	modelPath  string // YAML model definition; empty runs the built-in reference model
	days       int    // Number of recorded simulation days
	modeName   string // "expectation" or "data"
	seed       int64  // Master seed for data-mode random streams
	outPath    string // CSV output path; empty writes to stdout
	skipBoot   bool   // Skip the warm-up phase even if the model configures one
	withHidden bool   // Include hidden populations in output

	// ensemble flags
	runs    int // Number of independent data-mode runs
	workers int // Worker goroutines for the ensemble
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "epidemic-sim",
	Short: "Discrete-time simulator for epidemic compartment models",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// buildModel wires the model named by --model, or the built-in reference.
func buildModel() (*sim.Model, error) {
	if modelPath == "" {
		return sim.ReferenceModel()
	}
	def, err := sim.LoadModelDefinition(modelPath)
	if err != nil {
		return nil, err
	}
	return def.Build()
}

func parseMode(name string) (sim.Mode, error) {
	switch name {
	case "expectation":
		return sim.ModeExpectation, nil
	case "data":
		return sim.ModeData, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want expectation or data)", name)
}

// runCmd executes one simulation and writes the per-population time series.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation and write the population time series as CSV",
	Run: func(cmd *cobra.Command, args []string) {
		mode, err := parseMode(modeName)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		model, err := buildModel()
		if err != nil {
			logrus.Fatalf("building model: %v", err)
		}
		model.SetSeed(seed)
		model.Reset()
		if !skipBoot {
			if err := model.Boot(mode); err != nil {
				logrus.Fatalf("booting model: %v", err)
			}
		}
		logrus.Infof("running model %q for %d days in %s mode (seed %d)", model.Name, days, mode, seed)
		model.Run(days, mode)
		if err := withOutput(func(w io.Writer) error { return writeHistories(w, model) }); err != nil {
			logrus.Fatalf("writing output: %v", err)
		}
	},
}

// ensembleCmd summarizes many seeded data-mode runs.
var ensembleCmd = &cobra.Command{
	Use:   "ensemble",
	Short: "Run a Monte-Carlo ensemble of data-mode simulations and write mean/std series",
	Run: func(cmd *cobra.Command, args []string) {
		result, err := sim.RunEnsemble(buildModel, days, runs, seed, workers)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := withOutput(func(w io.Writer) error { return writeEnsemble(w, result) }); err != nil {
			logrus.Fatalf("writing output: %v", err)
		}
	},
}

// describeCmd lists a model's populations and tunable parameters.
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "List a model's populations and tunable parameters",
	Run: func(cmd *cobra.Command, args []string) {
		model, err := buildModel()
		if err != nil {
			logrus.Fatalf("building model: %v", err)
		}
		fmt.Printf("model %s (start %s)\n\npopulations:\n", model.Name, model.StartDate.Format("2006-01-02"))
		for _, p := range model.Populations() {
			if p.Hidden && !withHidden {
				continue
			}
			fmt.Printf("  %-26s %s\n", p.Name, p.Description)
		}
		fmt.Printf("\nparameters:\n")
		params := model.Parameters()
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := params[name]
			if p.Hidden && !withHidden {
				continue
			}
			fmt.Printf("  %-26s %10g  [%g, %g] (%s)  %s\n", p.Name, p.Value(), p.Min, p.Max, p.Type, p.Description)
		}
	},
}

// withOutput writes through --out, defaulting to stdout.
func withOutput(write func(io.Writer) error) error {
	if outPath == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeHistories emits one CSV row per day: day index, date, then every
// non-hidden population's history value.
func writeHistories(w io.Writer, m *sim.Model) error {
	cw := csv.NewWriter(w)
	pops := make([]*sim.Population, 0, len(m.Populations()))
	header := []string{"day", "date"}
	for _, p := range m.Populations() {
		if p.Hidden && !withHidden {
			continue
		}
		pops = append(pops, p)
		header = append(header, p.Name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	n := 0
	for _, p := range pops {
		if len(p.History) > n {
			n = len(p.History)
		}
	}
	for d := 0; d < n; d++ {
		row := make([]string, 0, len(pops)+2)
		row = append(row, strconv.Itoa(d), m.StartDate.AddDate(0, 0, d).Format("2006-01-02"))
		for _, p := range pops {
			if d < len(p.History) {
				row = append(row, strconv.FormatFloat(p.History[d], 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeEnsemble emits mean and std columns per population.
func writeEnsemble(w io.Writer, r *sim.EnsembleResult) error {
	cw := csv.NewWriter(w)
	names := make([]string, 0, len(r.Mean))
	for name := range r.Mean {
		names = append(names, name)
	}
	// map order is random; fix the column order
	sort.Strings(names)
	header := []string{"day"}
	for _, name := range names {
		header = append(header, name+"_mean", name+"_std")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for d := 0; d <= r.Days; d++ {
		row := []string{strconv.Itoa(d)}
		for _, name := range names {
			row = append(row,
				strconv.FormatFloat(r.Mean[name][d], 'g', -1, 64),
				strconv.FormatFloat(r.Std[name][d], 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log verbosity (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "YAML model definition (default: built-in reference model)")
	rootCmd.PersistentFlags().IntVar(&days, "days", 60, "number of recorded simulation days")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "master seed for data-mode random streams")
	rootCmd.PersistentFlags().StringVar(&outPath, "out", "", "CSV output path (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&withHidden, "hidden", false, "include hidden populations")

	runCmd.Flags().StringVar(&modeName, "mode", "expectation", "simulation mode: expectation or data")
	runCmd.Flags().BoolVar(&skipBoot, "skip-boot", false, "skip the warm-up phase")

	ensembleCmd.Flags().IntVar(&runs, "runs", 100, "number of independent data-mode runs")
	ensembleCmd.Flags().IntVar(&workers, "workers", 4, "worker goroutines")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ensembleCmd)
	rootCmd.AddCommand(describeCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
