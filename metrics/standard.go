package metrics

// Pre-defined metrics for the zkevm proving kernel. All metrics live in
// DefaultRegistry so they are globally accessible without passing a registry
// around.

var (
	// ---- Kernel execution metrics ----

	// KernelRuns counts completed kernel routine runs, successful or not.
	KernelRuns = DefaultRegistry.Counter("kernel.runs")
	// KernelFaults counts runs that terminated with a fault.
	KernelFaults = DefaultRegistry.Counter("kernel.faults")
	// KernelSteps records the instruction count per run.
	KernelSteps = DefaultRegistry.Histogram("kernel.steps")
	// KernelRunTime records run duration in milliseconds.
	KernelRunTime = DefaultRegistry.Histogram("kernel.run_ms")

	// ---- Derivation metrics ----

	// AddressesDerived counts contract addresses derived by kernel routines.
	AddressesDerived = DefaultRegistry.Counter("kernel.addresses_derived")

	// ---- Tape metrics ----

	// TapeWordsRead counts prover-input words consumed across all runs.
	TapeWordsRead = DefaultRegistry.Counter("tape.words_read")

	// ---- Trace metrics ----

	// TraceEvents records the number of trace events per committed run.
	TraceEvents = DefaultRegistry.Histogram("trace.events")
	// TraceCommitments counts KZG trace commitments produced.
	TraceCommitments = DefaultRegistry.Counter("trace.commitments")
)
