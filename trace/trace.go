// Package trace records the ordered execution events of a kernel run:
// every memory write, operand-stack operation and tape read, with gap-free
// sequence numbers. The outer constraint-checking layer owns the final row
// schema; this package guarantees it can enumerate the complete ordered
// event list for a run and commit to it.
package trace

import (
	"github.com/eth2030/zkevm/kernel/memory"
	"github.com/holiman/uint256"
)

// EventKind discriminates trace rows.
type EventKind uint8

const (
	// MemWrite records a memory cell write.
	MemWrite EventKind = iota

	// StackPush records a push onto the operand stack.
	StackPush

	// StackPop records a pop off the operand stack.
	StackPop

	// TapeRead records the consumption of one prover-input word.
	TapeRead

	// StackSwap records an exchange of the stack top with a deeper
	// element. The depth is deterministic, so the row is enough to
	// replay the shuffle.
	StackSwap
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case MemWrite:
		return "MemWrite"
	case StackPush:
		return "StackPush"
	case StackPop:
		return "StackPop"
	case TapeRead:
		return "TapeRead"
	case StackSwap:
		return "StackSwap"
	default:
		return "InvalidEvent"
	}
}

// Event is one trace row.
type Event struct {
	Seq   uint64 // gap-free, starts at 0
	Kind  EventKind
	Pc    uint64 // program counter at the time of the event
	Addr  memory.Address
	Value uint256.Int

	// Channel and Index identify the tape word for TapeRead events.
	// For StackSwap events Index carries the swap depth instead.
	Channel string
	Index   int
}

// Log accumulates the events of one run in order. It is not safe for
// concurrent use; each run owns its log exclusively.
type Log struct {
	events []Event
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds an event, assigning the next sequence number.
func (l *Log) Append(ev Event) {
	ev.Seq = uint64(len(l.events))
	l.events = append(l.events, ev)
}

// Events returns the ordered event list.
func (l *Log) Events() []Event {
	return l.events
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	return len(l.events)
}
