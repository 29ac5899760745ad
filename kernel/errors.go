package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrStackUnderflow is returned when an instruction pops from an
	// empty operand stack.
	ErrStackUnderflow = errors.New("kernel: stack underflow")

	// ErrStackOverflow is returned when a push exceeds the stack depth
	// bound.
	ErrStackOverflow = errors.New("kernel: stack overflow")

	// ErrInvalidJump is returned when the program counter leaves the
	// program without hitting a registered halt point.
	ErrInvalidJump = errors.New("kernel: jump outside program")

	// ErrInvalidSegment is returned when a memory operand names a segment
	// outside the defined set.
	ErrInvalidSegment = errors.New("kernel: invalid memory segment")

	// ErrInvalidContext is returned when a context operand is outside
	// [0, MaxContexts).
	ErrInvalidContext = errors.New("kernel: invalid context id")

	// ErrStepLimit is returned when a run exceeds its instruction budget.
	ErrStepLimit = errors.New("kernel: step limit exceeded")

	// ErrUnknownLabel is returned when execution is requested from a
	// label the program does not define.
	ErrUnknownLabel = errors.New("kernel: unknown label")

	// ErrBadPreimage is returned when a hash-oracle preimage range
	// contains cells that do not hold byte values.
	ErrBadPreimage = errors.New("kernel: hash preimage contains non-byte cells")
)

// Fault is the fatal error terminating a kernel run. There is no recovery
// or retry inside the kernel: a fault means either a kernel-construction
// bug or adversarial prover advice, and continuing would risk proving a
// false statement. Fault carries enough position information to reproduce
// the failure.
type Fault struct {
	Pc      uint64 // program counter at the faulting instruction
	Op      OpCode // instruction being executed
	Channel string // tape channel, for tape faults
	Err     error  // underlying cause
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Channel != "" {
		return fmt.Sprintf("kernel fault at pc %d (%s, channel %q): %v", f.Pc, f.Op, f.Channel, f.Err)
	}
	return fmt.Sprintf("kernel fault at pc %d (%s): %v", f.Pc, f.Op, f.Err)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (f *Fault) Unwrap() error {
	return f.Err
}
