package kernel

import (
	"fmt"

	"github.com/holiman/uint256"
)

// BuiltinFunc is a routine compiled into a program at build time. It runs
// with full access to the interpreter and must end by transferring control,
// normally by jumping to the return address it pops last.
type BuiltinFunc func(in *Interpreter) error

// Instruction is one slot of a flat program. Programs are label-free after
// assembly: every jump target is a resolved program counter.
type Instruction struct {
	Op      OpCode
	Imm     uint256.Int // PUSH immediate, DUP/SWAP offset
	Channel string      // PROVERINPUT channel
	fn      BuiltinFunc // BUILTIN routine

	labelRef string // unresolved PUSH target, cleared by Assemble
}

// Program is an assembled instruction sequence with its exported labels.
type Program struct {
	code   []Instruction
	labels map[string]uint64
}

// Entry resolves a label to its program counter.
func (p *Program) Entry(label string) (uint64, error) {
	pc, ok := p.labels[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return pc, nil
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.code)
}

// Assembler builds a Program from labeled structured routines. Label-based
// jumps and the symmetric Call/Ret macros are source-level conveniences;
// Assemble compiles them down to the explicit instruction-pointer model, so
// call/return pairing is enforced by construction rather than by manual
// discipline.
type Assembler struct {
	instrs  []Instruction
	labels  map[string]uint64
	retSeq  int
	errList []error
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[string]uint64)}
}

// Label binds name to the next instruction slot.
func (a *Assembler) Label(name string) {
	if _, dup := a.labels[name]; dup {
		a.errList = append(a.errList, fmt.Errorf("kernel: duplicate label %q", name))
		return
	}
	a.labels[name] = uint64(len(a.instrs))
}

// Op appends a plain instruction.
func (a *Assembler) Op(op OpCode) {
	a.instrs = append(a.instrs, Instruction{Op: op})
}

// Push appends a PUSH of an immediate word.
func (a *Assembler) Push(v *uint256.Int) {
	a.instrs = append(a.instrs, Instruction{Op: PUSH, Imm: *v})
}

// PushUint appends a PUSH of a small immediate.
func (a *Assembler) PushUint(v uint64) {
	a.Push(uint256.NewInt(v))
}

// PushLabel appends a PUSH whose immediate is the pc of a label, resolved
// at Assemble time. Forward references are allowed.
func (a *Assembler) PushLabel(name string) {
	a.instrs = append(a.instrs, Instruction{Op: PUSH, labelRef: name})
}

// Dup appends a DUP of the nth element from the top.
func (a *Assembler) Dup(n int) {
	a.instrs = append(a.instrs, Instruction{Op: DUP, Imm: *uint256.NewInt(uint64(n))})
}

// Swap appends a SWAP with the nth element below the top.
func (a *Assembler) Swap(n int) {
	a.instrs = append(a.instrs, Instruction{Op: SWAP, Imm: *uint256.NewInt(uint64(n))})
}

// ProverInput appends a tape read on the given channel.
func (a *Assembler) ProverInput(channel string) {
	a.instrs = append(a.instrs, Instruction{Op: PROVERINPUT, Channel: channel})
}

// Builtin appends a built-in routine slot.
func (a *Assembler) Builtin(fn BuiltinFunc) {
	a.instrs = append(a.instrs, Instruction{Op: BUILTIN, fn: fn})
}

// Call expands to the symmetric call idiom: push the return pc, push the
// target pc, jump. The matching Ret in the callee pops the return pc and
// jumps to it, so every Call is paired with exactly one return jump.
func (a *Assembler) Call(target string) {
	ret := fmt.Sprintf(".ret%d", a.retSeq)
	a.retSeq++
	a.PushLabel(ret)
	a.PushLabel(target)
	a.Op(JUMP)
	a.Label(ret)
}

// Ret expands to the terminal jump of a routine: the return address left
// on top of the stack by the caller is popped and jumped to.
func (a *Assembler) Ret() {
	a.Op(JUMP)
}

// Jump appends an unconditional jump to a label.
func (a *Assembler) Jump(target string) {
	a.PushLabel(target)
	a.Op(JUMP)
}

// JumpIf appends a conditional jump to a label; the condition word is
// popped from the stack.
func (a *Assembler) JumpIf(target string) {
	// JUMPI pops target then condition, so the target goes on last.
	a.PushLabel(target)
	a.Op(JUMPI)
}

// Assemble resolves all label references and returns the flat program.
func (a *Assembler) Assemble() (*Program, error) {
	if len(a.errList) > 0 {
		return nil, a.errList[0]
	}
	code := make([]Instruction, len(a.instrs))
	copy(code, a.instrs)
	for i := range code {
		if code[i].labelRef == "" {
			continue
		}
		pc, ok := a.labels[code[i].labelRef]
		if !ok {
			return nil, fmt.Errorf("%w: %q at instruction %d", ErrUnknownLabel, code[i].labelRef, i)
		}
		code[i].Imm = *uint256.NewInt(pc)
		code[i].labelRef = ""
	}
	labels := make(map[string]uint64, len(a.labels))
	for k, v := range a.labels {
		labels[k] = v
	}
	return &Program{code: code, labels: labels}, nil
}
