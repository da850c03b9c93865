package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validModelYAML = `
name: tiny-seir
start_date: 2020-03-01
parameters:
  - {name: N_0, value: 100000, min: 1000, max: 10000000, type: int}
  - {name: cont_0, value: 5, min: 0, max: 1000}
  - {name: alpha, value: 0.35, min: 0, max: 2}
  - {name: latent_mean, value: 4, min: 0, max: 20}
  - {name: latent_sigma, value: 2, min: 0.01, max: 10}
  - {name: all_of_them, value: 1, min: 1, max: 1}
  - {name: report_noise, value: 0.7, min: 0, max: 1}
  - {name: report_days, value: 62, min: 0, max: 127, type: int}
  - {name: outbreak_time, value: 21, min: 0, max: 365, type: int}
  - {name: outbreak_number, value: 20, min: 0, max: 10000}
delays:
  - {name: latent_delay, kind: norm, mean: latent_mean, sigma: latent_sigma}
  - {name: now, kind: fast}
populations:
  - {name: total, initial_param: N_0}
  - {name: susceptible, initial_param: N_0}
  - {name: infected, initial: 0}
  - {name: contagious, initial_param: cont_0}
  - {name: reported, initial: 0, report_noise: true, noise_param: report_noise,
     report_days_param: report_days}
connectors:
  - {type: multiplier, name: infection cycle, sources: [susceptible, contagious, total],
     dest: infected, rate: alpha, delay: now}
  - type: chain
    name: infected to contagious
    links:
      - {name: infected to incubating, source: infected, dest: "~incubating",
         fraction: all_of_them, delay: latent_delay}
      - {name: incubating to contagious, source: "~incubating", dest: contagious,
         fraction: all_of_them, delay: latent_delay}
  - {type: propagator, name: contagious to reported, source: contagious, dest: reported,
     fraction: all_of_them, delay: latent_delay}
  - {type: subtractor, name: deplete susceptible, target: susceptible, other: infected}
transitions:
  - {type: injector, name: outbreak, trigger: outbreak_time, population: infected,
     amount: outbreak_number, enabled: true}
boot:
  population: contagious
  seed_value: 0.1
  exclusions: [total, susceptible]
`

func TestModelDefinition_Build_WiresTheFullModel(t *testing.T) {
	def, err := LoadModelDefinition(writeTempYAML(t, validModelYAML))
	require.NoError(t, err)

	m, err := def.Build()
	require.NoError(t, err)

	assert.Equal(t, "tiny-seir", m.Name)
	assert.Equal(t, "2020-03-01", m.StartDate.Format("2006-01-02"))

	for _, name := range []string{"total", "susceptible", "infected", "contagious", "reported"} {
		assert.NotNil(t, m.Population(name), "population %s", name)
	}
	assert.Equal(t, float64(100000), m.Population("total").InitialValue())

	// the chain's intermediate exists as a hidden population
	incubating := m.Population("~incubating")
	require.NotNil(t, incubating)
	assert.True(t, incubating.Hidden)

	// reporting wiring survived
	reported := m.Population("reported")
	require.NotNil(t, reported.Reporting)
	assert.Equal(t, 62, reported.Reporting.Days.IntValue())

	// subtraction target is marked non-monotonic
	assert.False(t, m.Population("susceptible").Monotonic)

	assert.NotNil(t, m.Parameter("alpha"))
}

func TestModelDefinition_BuiltModel_BootsAndRuns(t *testing.T) {
	def, err := LoadModelDefinition(writeTempYAML(t, validModelYAML))
	require.NoError(t, err)
	m, err := def.Build()
	require.NoError(t, err)

	m.SetSeed(3)
	require.NoError(t, m.Boot(ModeData))
	m.Run(30, ModeData)

	assert.InDelta(t, 5, m.Population("contagious").History[0], 1)
	assert.Greater(t, m.Population("infected").Latest(), 0.0)
	assert.Len(t, m.Population("infected").History, 31)
}

func TestModelDefinition_ExampleFile_Builds(t *testing.T) {
	def, err := LoadModelDefinition(filepath.Join("..", "examples", "seir.yaml"))
	require.NoError(t, err)
	m, err := def.Build()
	require.NoError(t, err)
	assert.Equal(t, "seir", m.Name)

	m.Run(10, ModeExpectation)
	assert.Greater(t, m.Population("infected").Latest(), 0.0)
}

func TestLoadModelDefinition_MissingFile_Fails(t *testing.T) {
	_, err := LoadModelDefinition(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestModelDefinition_Build_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing name", `
start_date: 2020-03-01
`},
		{"bad start date", `
name: x
start_date: 03/01/2020
`},
		{"unknown parameter type", `
name: x
parameters:
  - {name: p, value: 1, min: 0, max: 2, type: complex}
`},
		{"unknown delay parameter", `
name: x
delays:
  - {name: d, kind: norm, mean: nope, sigma: nope}
`},
		{"unknown connector type", `
name: x
connectors:
  - {type: teleporter, name: c}
`},
		{"dangling population", `
name: x
parameters:
  - {name: f, value: 1, min: 0, max: 1}
delays:
  - {name: now, kind: fast}
connectors:
  - {type: propagator, name: c, source: ghost, dest: ghost2, fraction: f, delay: now}
`},
		{"multiplier source count", `
name: x
parameters:
  - {name: r, value: 0.4, min: 0, max: 2}
delays:
  - {name: now, kind: fast}
populations:
  - {name: a, initial: 0}
  - {name: b, initial: 0}
connectors:
  - {type: multiplier, name: c, sources: [a, b], dest: b, rate: r, delay: now}
`},
		{"nbinom without parameter", `
name: x
parameters:
  - {name: r, value: 0.4, min: 0, max: 2}
delays:
  - {name: now, kind: fast}
populations:
  - {name: a, initial: 0}
  - {name: b, initial: 0}
  - {name: c2, initial: 0}
  - {name: d2, initial: 0}
connectors:
  - {type: multiplier, name: c, sources: [a, b, c2], dest: d2, rate: r,
     delay: now, distribution: nbinom}
`},
		{"reporting without noise parameter", `
name: x
populations:
  - {name: reported, initial: 0, report_noise: true}
`},
		{"unknown transition type", `
name: x
transitions:
  - {type: quench, name: t}
`},
		{"boot population unknown", `
name: x
boot:
  population: ghost
  seed_value: 0.1
`},
		{"duplicate parameter", `
name: x
parameters:
  - {name: p, value: 1, min: 0, max: 2}
  - {name: p, value: 1, min: 0, max: 2}
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def, err := LoadModelDefinition(writeTempYAML(t, tc.yaml))
			require.NoError(t, err)
			_, err = def.Build()
			assert.Error(t, err)
		})
	}
}
