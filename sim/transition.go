package sim

// Transition is a schedule-triggered event: a parameter mutation (Modifier)
// or a direct injection into a population (Injector). Transitions are
// evaluated once per day, in registration order, before any connector runs.
// The set is closed.
type Transition interface {
	// TransitionName returns the unique registration name.
	TransitionName() string
	// Step fires the transition if the day matches its trigger.
	Step(day int, mode Mode)
	// Reset restores pre-run state: modifier before-values and the
	// injector one-shot latch.
	Reset()
}
