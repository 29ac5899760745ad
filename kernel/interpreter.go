// Package kernel implements the proving kernel's execution model: a stack
// machine over 256-bit words with segmented memory, a prover-input tape and
// a hash oracle. Programs are flat instruction sequences produced by the
// assembler; execution starts at a named label and terminates by jumping to
// the reserved halt address.
package kernel

import (
	"fmt"

	"github.com/eth2030/zkevm/kernel/memory"
	"github.com/eth2030/zkevm/kernel/tape"
	"github.com/eth2030/zkevm/log"
	"github.com/eth2030/zkevm/metrics"
	"github.com/eth2030/zkevm/trace"
	"github.com/holiman/uint256"
)

// HaltPC is the reserved return address that terminates a run. It lies far
// outside any real program, so a routine that returns to it cannot be
// confused with an in-program jump.
const HaltPC uint64 = 0xDEADBEEF

// DefaultMaxSteps bounds a run when the config does not say otherwise.
const DefaultMaxSteps uint64 = 1 << 20

// MaxContexts bounds context ids. Context storage is allocated densely up
// to the highest id touched, so an adversarial context operand must be
// rejected before it reaches the allocator.
const MaxContexts = 1 << 16

// Config carries the tunable parts of an interpreter.
type Config struct {
	// MaxSteps is the instruction budget of a run. Zero means
	// DefaultMaxSteps.
	MaxSteps uint64

	// Oracle answers hash queries. Nil means KeccakOracle.
	Oracle HashOracle

	// Addresses observes derived contract addresses. Nil means no
	// observation.
	Addresses AddressObserver

	// Trace receives the ordered execution events of the run. Nil
	// disables tracing.
	Trace *trace.Log

	// Logger receives structured run diagnostics. Nil means the
	// package default.
	Logger *log.Logger
}

// DefaultConfig returns a config with standard limits and the direct
// Keccak oracle.
func DefaultConfig() Config {
	return Config{
		MaxSteps: DefaultMaxSteps,
		Oracle:   KeccakOracle{},
	}
}

// Interpreter executes one assembled program over a memory state and a
// tape. It is not safe for concurrent use; each run owns its interpreter
// exclusively.
type Interpreter struct {
	prog  *Program
	mem   *memory.State
	tab   *tape.Tape
	stack *Stack

	cfg    Config
	logger *log.Logger

	pc    uint64
	ctx   int
	steps uint64
}

// NewInterpreter wires a program, memory state and tape into a runnable
// interpreter. When tracing is enabled the memory and tape observers are
// claimed by the interpreter so every write and read lands in the trace in
// execution order.
func NewInterpreter(prog *Program, mem *memory.State, t *tape.Tape, cfg Config) *Interpreter {
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Oracle == nil {
		cfg.Oracle = KeccakOracle{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	in := &Interpreter{
		prog:   prog,
		mem:    mem,
		tab:    t,
		stack:  NewStack(),
		cfg:    cfg,
		logger: cfg.Logger.Module("kernel"),
	}
	if cfg.Trace != nil {
		mem.SetObserver(func(addr memory.Address, value *uint256.Int) {
			cfg.Trace.Append(trace.Event{Kind: trace.MemWrite, Pc: in.pc, Addr: addr, Value: *value})
		})
		t.SetObserver(func(channel string, index int, value *uint256.Int) {
			cfg.Trace.Append(trace.Event{Kind: trace.TapeRead, Pc: in.pc, Value: *value, Channel: channel, Index: index})
		})
	}
	return in
}

// Mem returns the memory state of the run.
func (in *Interpreter) Mem() *memory.State { return in.mem }

// Tape returns the tape of the run.
func (in *Interpreter) Tape() *tape.Tape { return in.tab }

// Stack returns the operand stack of the run.
func (in *Interpreter) Stack() *Stack { return in.stack }

// Oracle returns the hash oracle of the run.
func (in *Interpreter) Oracle() HashOracle { return in.cfg.Oracle }

// Addresses returns the derived-address observer, or nil.
func (in *Interpreter) Addresses() AddressObserver { return in.cfg.Addresses }

// Logger returns the run's kernel logger.
func (in *Interpreter) Logger() *log.Logger { return in.logger }

// Context returns the current context register.
func (in *Interpreter) Context() int { return in.ctx }

// Steps returns the number of instructions executed so far.
func (in *Interpreter) Steps() uint64 { return in.steps }

// Push pushes a word, recording it in the trace.
func (in *Interpreter) Push(v *uint256.Int) error {
	if err := in.stack.Push(v); err != nil {
		return err
	}
	if in.cfg.Trace != nil {
		in.cfg.Trace.Append(trace.Event{Kind: trace.StackPush, Pc: in.pc, Value: *v})
	}
	return nil
}

// Pop pops a word, recording it in the trace.
func (in *Interpreter) Pop() (uint256.Int, error) {
	v, err := in.stack.Pop()
	if err != nil {
		return v, err
	}
	if in.cfg.Trace != nil {
		in.cfg.Trace.Append(trace.Event{Kind: trace.StackPop, Pc: in.pc, Value: v})
	}
	return v, nil
}

// Jump redirects execution to pc. Builtins use it for their terminal
// return jump.
func (in *Interpreter) Jump(pc uint64) {
	in.pc = pc
}

// Run executes the program from the given label. Arguments are pushed per
// the kernel call convention: the reserved halt address goes on first as
// the return destination, then the arguments in reverse, so args[0] ends
// up on top of the stack. The run terminates when a routine returns to the
// halt address; any other exit is a Fault.
func (in *Interpreter) Run(label string, args ...*uint256.Int) (err error) {
	entry, err := in.prog.Entry(label)
	if err != nil {
		return err
	}
	timer := metrics.NewTimer(metrics.KernelRunTime)
	startSteps := in.steps
	defer func() {
		timer.Stop()
		metrics.KernelRuns.Inc()
		metrics.KernelSteps.Observe(float64(in.steps - startSteps))
		if err != nil {
			metrics.KernelFaults.Inc()
		}
	}()
	// Take the entry pc before pushing so the argument rows in the trace
	// carry this run's position, not the previous run's halt.
	in.pc = entry
	if err := in.Push(uint256.NewInt(HaltPC)); err != nil {
		return err
	}
	for i := len(args) - 1; i >= 0; i-- {
		if err := in.Push(args[i]); err != nil {
			return err
		}
	}
	in.logger.Debug("run start", "label", label, "entry", entry, "args", len(args))

	for {
		if in.pc == HaltPC {
			in.logger.Debug("run halted", "steps", in.steps, "stack", in.stack.Len())
			return nil
		}
		if in.pc >= uint64(len(in.prog.code)) {
			return &Fault{Pc: in.pc, Op: JUMP, Err: ErrInvalidJump}
		}
		if in.steps >= in.cfg.MaxSteps {
			return &Fault{Pc: in.pc, Op: in.prog.code[in.pc].Op, Err: ErrStepLimit}
		}
		instr := &in.prog.code[in.pc]
		in.steps++
		if err := in.step(instr); err != nil {
			if f, ok := err.(*Fault); ok {
				return f
			}
			return &Fault{Pc: in.pc, Op: instr.Op, Channel: instr.Channel, Err: err}
		}
	}
}

// step executes one instruction and advances or redirects the pc.
func (in *Interpreter) step(instr *Instruction) error {
	next := in.pc + 1
	switch instr.Op {
	case ADD, SUB, MUL, DIV, MOD, LT, GT, EQ, AND, OR, XOR, SHL, SHR:
		if err := in.binop(instr.Op); err != nil {
			return err
		}
	case ISZERO, NOT:
		if err := in.unop(instr.Op); err != nil {
			return err
		}
	case PUSH:
		v := instr.Imm
		if err := in.Push(&v); err != nil {
			return err
		}
	case POP:
		if _, err := in.Pop(); err != nil {
			return err
		}
	case DUP:
		if err := in.stack.Dup(int(instr.Imm.Uint64())); err != nil {
			return err
		}
		if in.cfg.Trace != nil {
			top, _ := in.stack.Peek()
			in.cfg.Trace.Append(trace.Event{Kind: trace.StackPush, Pc: in.pc, Value: *top})
		}
	case SWAP:
		n := int(instr.Imm.Uint64())
		if err := in.stack.Swap(n); err != nil {
			return err
		}
		if in.cfg.Trace != nil {
			top, _ := in.stack.Peek()
			in.cfg.Trace.Append(trace.Event{Kind: trace.StackSwap, Pc: in.pc, Value: *top, Index: n})
		}
	case JUMP:
		target, err := in.Pop()
		if err != nil {
			return err
		}
		return in.jumpTo(&target)
	case JUMPI:
		target, err := in.Pop()
		if err != nil {
			return err
		}
		cond, err := in.Pop()
		if err != nil {
			return err
		}
		if !cond.IsZero() {
			return in.jumpTo(&target)
		}
	case MLOAD:
		addr, err := in.popAddress()
		if err != nil {
			return err
		}
		v := in.mem.Get(addr)
		if err := in.Push(&v); err != nil {
			return err
		}
	case MSTORE:
		addr, err := in.popAddress()
		if err != nil {
			return err
		}
		v, err := in.Pop()
		if err != nil {
			return err
		}
		in.mem.Set(addr, &v)
	case MLOAD32:
		addr, err := in.popAddress()
		if err != nil {
			return err
		}
		n, err := in.popCount()
		if err != nil {
			return err
		}
		v, ok := in.mem.GetRange(addr, n)
		if !ok {
			return fmt.Errorf("%w: non-byte cell in range at %d:%s:%d", ErrBadPreimage, addr.Context, addr.Segment, addr.Virt)
		}
		if err := in.Push(&v); err != nil {
			return err
		}
	case MSTORE32:
		addr, err := in.popAddress()
		if err != nil {
			return err
		}
		n, err := in.popCount()
		if err != nil {
			return err
		}
		v, err := in.Pop()
		if err != nil {
			return err
		}
		in.mem.SetRange(addr, n, &v)
		if err := in.Push(uint256.NewInt(addr.Virt + uint64(n))); err != nil {
			return err
		}
	case PROVERINPUT:
		w, err := in.tab.Read(instr.Channel)
		if err != nil {
			return err
		}
		if err := in.Push(&w); err != nil {
			return err
		}
	case KECCAK:
		addr, err := in.popAddress()
		if err != nil {
			return err
		}
		length, err := in.Pop()
		if err != nil {
			return err
		}
		if !length.IsUint64() {
			return fmt.Errorf("%w: hash length does not fit uint64", ErrBadPreimage)
		}
		h, err := in.cfg.Oracle.HashRange(in.mem, addr, length.Uint64())
		if err != nil {
			return err
		}
		var digest uint256.Int
		digest.SetBytes(h[:])
		if err := in.Push(&digest); err != nil {
			return err
		}
	case GETCONTEXT:
		if err := in.Push(uint256.NewInt(uint64(in.ctx))); err != nil {
			return err
		}
	case SETCONTEXT:
		v, err := in.Pop()
		if err != nil {
			return err
		}
		if !v.IsUint64() || v.Uint64() >= MaxContexts {
			return fmt.Errorf("%w: %v", ErrInvalidContext, &v)
		}
		in.ctx = int(v.Uint64())
	case BUILTIN:
		// The builtin owns control transfer: it must end with a Jump,
		// normally to the return address it popped last.
		if err := instr.fn(in); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("kernel: undefined opcode %d", instr.Op)
	}
	in.pc = next
	return nil
}

// jumpTo validates and applies a popped jump target.
func (in *Interpreter) jumpTo(target *uint256.Int) error {
	if !target.IsUint64() {
		return ErrInvalidJump
	}
	pc := target.Uint64()
	if pc != HaltPC && pc >= uint64(len(in.prog.code)) {
		return ErrInvalidJump
	}
	in.pc = pc
	return nil
}

// popAddress pops a (context, segment, offset) operand triple off the top
// of the stack and validates the segment.
func (in *Interpreter) popAddress() (memory.Address, error) {
	ctx, err := in.Pop()
	if err != nil {
		return memory.Address{}, err
	}
	seg, err := in.Pop()
	if err != nil {
		return memory.Address{}, err
	}
	virt, err := in.Pop()
	if err != nil {
		return memory.Address{}, err
	}
	if !ctx.IsUint64() || ctx.Uint64() >= MaxContexts {
		return memory.Address{}, fmt.Errorf("%w: %v", ErrInvalidContext, &ctx)
	}
	if !virt.IsUint64() {
		return memory.Address{}, fmt.Errorf("%w: offset does not fit uint64", ErrInvalidSegment)
	}
	s := memory.Segment(seg.Uint64())
	if !seg.IsUint64() || !s.Valid() {
		return memory.Address{}, fmt.Errorf("%w: %v", ErrInvalidSegment, seg.Uint64())
	}
	return memory.Address{Context: int(ctx.Uint64()), Segment: s, Virt: virt.Uint64()}, nil
}

// popCount pops a byte count in [1, 32].
func (in *Interpreter) popCount() (int, error) {
	n, err := in.Pop()
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() || n.Uint64() < 1 || n.Uint64() > 32 {
		return 0, fmt.Errorf("kernel: byte count %v outside [1, 32]", n)
	}
	return int(n.Uint64()), nil
}

// binop executes a two-operand instruction. The first operand is the top
// of the stack.
func (in *Interpreter) binop(op OpCode) error {
	a, err := in.Pop()
	if err != nil {
		return err
	}
	b, err := in.Pop()
	if err != nil {
		return err
	}
	var r uint256.Int
	switch op {
	case ADD:
		r.Add(&a, &b)
	case SUB:
		r.Sub(&a, &b)
	case MUL:
		r.Mul(&a, &b)
	case DIV:
		r.Div(&a, &b) // uint256.Div yields zero on zero divisor
	case MOD:
		r.Mod(&a, &b)
	case LT:
		if a.Lt(&b) {
			r.SetOne()
		}
	case GT:
		if a.Gt(&b) {
			r.SetOne()
		}
	case EQ:
		if a.Eq(&b) {
			r.SetOne()
		}
	case AND:
		r.And(&a, &b)
	case OR:
		r.Or(&a, &b)
	case XOR:
		r.Xor(&a, &b)
	case SHL:
		if a.LtUint64(256) {
			r.Lsh(&b, uint(a.Uint64()))
		}
	case SHR:
		if a.LtUint64(256) {
			r.Rsh(&b, uint(a.Uint64()))
		}
	}
	return in.Push(&r)
}

// unop executes a one-operand instruction.
func (in *Interpreter) unop(op OpCode) error {
	a, err := in.Pop()
	if err != nil {
		return err
	}
	var r uint256.Int
	switch op {
	case ISZERO:
		if a.IsZero() {
			r.SetOne()
		}
	case NOT:
		r.Not(&a)
	}
	return in.Push(&r)
}
