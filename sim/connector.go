package sim

// Mode selects how flows are realized.
type Mode int

const (
	// ModeExpectation propagates continuous expected values deterministically.
	ModeExpectation Mode = iota
	// ModeData draws integer counts from the corresponding distributions,
	// synthesizing observed-like data.
	ModeData
)

func (m Mode) String() string {
	if m == ModeData {
		return "data"
	}
	return "expectation"
}

// Connector is a per-day rule that transfers or derives flow between
// populations. The connector set is closed: Propagator, Multiplier,
// Splitter, Adder, Subtractor and Chain. Connectors are evaluated once per
// day in registration order, and that order is a dependency contract: a
// later connector may read flow deposited into a shared population by an
// earlier one the same day.
type Connector interface {
	// ConnectorName returns the unique registration name.
	ConnectorName() string
	// Populations returns every population the connector reads or
	// writes, sources before destinations. The model uses it to
	// auto-register populations in wiring order.
	Populations() []*Population
	// Step applies one day of flow. In data mode draws come from the
	// model's partitioned streams.
	Step(mode Mode, rng *RandStreams)
}
