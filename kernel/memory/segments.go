package memory

// Segment identifies a logically distinct region within an execution
// context's address space. Segment identifiers are fixed and globally known;
// memory is always addressed by (context, segment, offset) triples so that
// regions with different purposes can never alias.
type Segment int

const (
	// Code holds the byte code executing in a context, one byte per cell.
	Code Segment = iota

	// Stack is the backing region for the operand stack.
	Stack

	// MainMemory is the general heap-like memory of a context.
	MainMemory

	// CallData holds the input bytes of a call, one byte per cell.
	CallData

	// ReturnData holds the output bytes of a call, one byte per cell.
	ReturnData

	// GlobalMetadata holds kernel-global bookkeeping fields (context 0 only).
	GlobalMetadata

	// ContextMetadata holds per-context bookkeeping fields.
	ContextMetadata

	// KernelGeneral is kernel-internal scratch space.
	KernelGeneral

	// KernelGeneral2 is a second kernel-internal scratch region, for
	// routines that need two disjoint scratch buffers.
	KernelGeneral2

	// RlpRaw is the staging region for raw serialized bytes read from the
	// prover-input tape and for RLP buffers under construction, one byte
	// per cell.
	RlpRaw

	// TrieData holds decoded trie payloads consumed by state routines.
	TrieData

	numSegments
)

// Count returns the number of defined segments.
func Count() int { return int(numSegments) }

var segmentNames = [numSegments]string{
	Code:            "Code",
	Stack:           "Stack",
	MainMemory:      "MainMemory",
	CallData:        "CallData",
	ReturnData:      "ReturnData",
	GlobalMetadata:  "GlobalMetadata",
	ContextMetadata: "ContextMetadata",
	KernelGeneral:   "KernelGeneral",
	KernelGeneral2:  "KernelGeneral2",
	RlpRaw:          "RlpRaw",
	TrieData:        "TrieData",
}

// String returns the segment name.
func (s Segment) String() string {
	if s < 0 || s >= numSegments {
		return "InvalidSegment"
	}
	return segmentNames[s]
}

// Valid reports whether s is a defined segment.
func (s Segment) Valid() bool {
	return s >= 0 && s < numSegments
}

// GlobalMetadata field offsets within the GlobalMetadata segment of
// context 0.
const (
	// MetaRlpDataSize is the number of raw bytes currently staged in the
	// RlpRaw segment of context 0.
	MetaRlpDataSize uint64 = iota

	// MetaCreatedAddress is the most recently derived contract address.
	MetaCreatedAddress
)
