package kernel

import (
	"fmt"

	"github.com/holiman/uint256"
)

// StackLimit is the maximum operand stack depth.
const StackLimit = 1024

// maxShuffle is the deepest element reachable by DUP and SWAP.
const maxShuffle = 16

// Stack is the kernel's operand stack of 256-bit words. All operations
// return explicit errors; a pop on an empty stack is a fatal execution
// fault and is never silently absorbed.
type Stack struct {
	data []uint256.Int
}

// NewStack returns a new empty stack.
func NewStack() *Stack {
	return &Stack{data: make([]uint256.Int, 0, 16)}
}

// Push pushes a value onto the stack.
func (st *Stack) Push(val *uint256.Int) error {
	if len(st.data) >= StackLimit {
		return ErrStackOverflow
	}
	st.data = append(st.data, *val)
	return nil
}

// Pop removes and returns the top element.
func (st *Stack) Pop() (uint256.Int, error) {
	if len(st.data) == 0 {
		return uint256.Int{}, ErrStackUnderflow
	}
	v := st.data[len(st.data)-1]
	st.data = st.data[:len(st.data)-1]
	return v, nil
}

// Peek returns a pointer to the top element without removing it.
func (st *Stack) Peek() (*uint256.Int, error) {
	if len(st.data) == 0 {
		return nil, ErrStackUnderflow
	}
	return &st.data[len(st.data)-1], nil
}

// Dup pushes a copy of the nth element from the top (1 = top).
func (st *Stack) Dup(n int) error {
	if n < 1 || n > maxShuffle {
		return fmt.Errorf("%w: DUP%d out of range", ErrStackUnderflow, n)
	}
	if len(st.data) < n {
		return fmt.Errorf("%w: DUP%d needs %d elements, have %d", ErrStackUnderflow, n, n, len(st.data))
	}
	if len(st.data) >= StackLimit {
		return ErrStackOverflow
	}
	st.data = append(st.data, st.data[len(st.data)-n])
	return nil
}

// Swap exchanges the top element with the nth element below it (1 = the
// element directly under the top).
func (st *Stack) Swap(n int) error {
	if n < 1 || n > maxShuffle {
		return fmt.Errorf("%w: SWAP%d out of range", ErrStackUnderflow, n)
	}
	if len(st.data) < n+1 {
		return fmt.Errorf("%w: SWAP%d needs %d elements, have %d", ErrStackUnderflow, n, n+1, len(st.data))
	}
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
	return nil
}

// Len returns the number of elements on the stack.
func (st *Stack) Len() int {
	return len(st.data)
}

// Data returns the underlying slice, bottom to top.
func (st *Stack) Data() []uint256.Int {
	return st.data
}
