// Package sim provides a discrete-time engine for simulating the spread of
// an infectious disease through a network of population compartments
// connected by delayed, fractional flows.
//
// # Reading Guide
//
// Start with these three files to understand the propagation kernel:
//   - population.go: compartment state, the append-only history, the pending
//     future buffer, and the deposition primitives every connector uses
//   - delay.go: discretization of continuous lag distributions into
//     day-offset probability masses, cached against parameter versions
//   - model.go: the ordered registries and the per-day loop
//     (transitions, then connectors, then every population's time step)
//
// # Architecture
//
// A model is wired once from leaves upward: Parameters feed Delays and
// Connectors, Connectors and Transitions link Populations, and the Model
// owns the registration order, which is a dependency contract: a later
// connector may read flow deposited earlier the same day.
//
// Two operating modes share every code path: expectation mode propagates
// continuous expected flows deterministically, and data mode draws integer
// counts from the matching distributions (binomial thinning, multinomial
// delay scatter, Poisson or negative-binomial transmission) to synthesize
// observed-like series.
//
// Randomness comes from per-model partitioned streams (rng.go): identical
// seeds reproduce runs bit for bit, and independent models never share
// state, so Monte-Carlo ensembles (ensemble.go) run in parallel safely.
//
// Models are built either programmatically (see reference.go for the
// built-in reference model) or from a YAML definition (definition.go).
// A malformed definition fails at construction, never mid-run.
package sim
