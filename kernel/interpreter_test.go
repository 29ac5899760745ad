package kernel

import (
	"errors"
	"testing"

	"github.com/eth2030/zkevm/crypto"
	"github.com/eth2030/zkevm/kernel/memory"
	"github.com/eth2030/zkevm/kernel/tape"
	"github.com/eth2030/zkevm/trace"
	"github.com/holiman/uint256"
)

// runProgram assembles and runs a routine body, returning the interpreter
// for inspection. The body must end with a terminal jump (Ret).
func runProgram(t *testing.T, build func(a *Assembler), args ...*uint256.Int) (*Interpreter, error) {
	t.Helper()
	a := NewAssembler()
	a.Label("main")
	build(a)
	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	in := NewInterpreter(prog, memory.New(), tape.New(), DefaultConfig())
	return in, in.Run("main", args...)
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   OpCode
		a, b uint64
		want uint64
	}{
		{"add", ADD, 3, 4, 7},
		{"sub", SUB, 10, 4, 6},
		{"mul", MUL, 6, 7, 42},
		{"div", DIV, 42, 6, 7},
		{"div by zero", DIV, 42, 0, 0},
		{"mod", MOD, 43, 6, 1},
		{"mod by zero", MOD, 43, 0, 0},
		{"lt true", LT, 3, 4, 1},
		{"lt false", LT, 4, 3, 0},
		{"gt true", GT, 4, 3, 1},
		{"eq true", EQ, 9, 9, 1},
		{"eq false", EQ, 9, 8, 0},
		{"and", AND, 0b1100, 0b1010, 0b1000},
		{"or", OR, 0b1100, 0b1010, 0b1110},
		{"xor", XOR, 0b1100, 0b1010, 0b0110},
		{"shl", SHL, 4, 1, 16},
		{"shr", SHR, 1, 16, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Push b first so a, the first operand, is on top.
			in, err := runProgram(t, func(asm *Assembler) {
				asm.PushUint(tt.b)
				asm.PushUint(tt.a)
				asm.Op(tt.op)
				asm.Swap(1) // move result under the return address
				asm.Ret()
			})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			v, err := in.Stack().Pop()
			if err != nil {
				t.Fatalf("result missing: %v", err)
			}
			if v.Uint64() != tt.want {
				t.Fatalf("result = %d, want %d", v.Uint64(), tt.want)
			}
		})
	}
}

func TestJumpiTakenAndFallthrough(t *testing.T) {
	// With a non-zero condition JUMPI lands on "taken" which leaves 1;
	// with zero it falls through and leaves 2.
	build := func(asm *Assembler) {
		asm.JumpIf("taken")
		asm.PushUint(2)
		asm.Swap(1)
		asm.Ret()
		asm.Label("taken")
		asm.PushUint(1)
		asm.Swap(1)
		asm.Ret()
	}

	in, err := runProgram(t, build, uint256.NewInt(1))
	if err != nil {
		t.Fatalf("Run taken: %v", err)
	}
	if v, _ := in.Stack().Pop(); v.Uint64() != 1 {
		t.Fatalf("taken branch result = %d, want 1", v.Uint64())
	}

	in, err = runProgram(t, build, uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Run fallthrough: %v", err)
	}
	if v, _ := in.Stack().Pop(); v.Uint64() != 2 {
		t.Fatalf("fallthrough result = %d, want 2", v.Uint64())
	}
}

func TestCallReturnDiscipline(t *testing.T) {
	// Two nested calls return in reverse call order, leaving the values in
	// LIFO sequence.
	in, err := runProgram(t, func(asm *Assembler) {
		// Each routine leaves one value; results accumulate under the
		// return addresses, so the swap depth grows with the number of
		// values kept.
		asm.Call("outer")
		asm.Swap(2)
		asm.Ret()
		asm.Label("outer")
		asm.Call("inner")
		asm.PushUint(2)
		asm.Swap(2)
		asm.Ret()
		asm.Label("inner")
		asm.PushUint(1)
		asm.Swap(1)
		asm.Ret()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// inner pushed 1 first, outer pushed 2 above it.
	if v, _ := in.Stack().Pop(); v.Uint64() != 2 {
		t.Fatalf("top = %d, want 2", v.Uint64())
	}
	if v, _ := in.Stack().Pop(); v.Uint64() != 1 {
		t.Fatalf("second = %d, want 1", v.Uint64())
	}
}

func TestMemoryStoreLoad(t *testing.T) {
	in, err := runProgram(t, func(asm *Assembler) {
		// MSTORE pops (context, segment, offset) then the value.
		asm.PushUint(0xCAFE) // value
		asm.PushUint(7)      // offset
		asm.PushUint(uint64(memory.MainMemory))
		asm.PushUint(0) // context
		asm.Op(MSTORE)
		asm.PushUint(7)
		asm.PushUint(uint64(memory.MainMemory))
		asm.PushUint(0)
		asm.Op(MLOAD)
		asm.Swap(1)
		asm.Ret()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, _ := in.Stack().Pop(); v.Uint64() != 0xCAFE {
		t.Fatalf("MLOAD = %#x, want 0xCAFE", v.Uint64())
	}
	got := in.Mem().Get(memory.NewAddress(0, memory.MainMemory, 7))
	if got.Uint64() != 0xCAFE {
		t.Fatalf("cell = %#x, want 0xCAFE", got.Uint64())
	}
}

func TestMstore32PushesEndOffset(t *testing.T) {
	in, err := runProgram(t, func(asm *Assembler) {
		// MSTORE32 pops (context, segment, offset), the count, then the
		// value, and pushes offset+count.
		asm.PushUint(0xAABBCC) // value
		asm.PushUint(3)        // count
		asm.PushUint(10)       // offset
		asm.PushUint(uint64(memory.RlpRaw))
		asm.PushUint(0)
		asm.Op(MSTORE32)
		asm.Swap(1)
		asm.Ret()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, _ := in.Stack().Pop(); v.Uint64() != 13 {
		t.Fatalf("end offset = %d, want 13", v.Uint64())
	}
	b, ok := in.Mem().Bytes(memory.NewAddress(0, memory.RlpRaw, 10), 3)
	if !ok {
		t.Fatal("staged cells are not bytes")
	}
	if b[0] != 0xAA || b[1] != 0xBB || b[2] != 0xCC {
		t.Fatalf("staged bytes = %x, want aabbcc", b)
	}
}

func TestMload32PacksRange(t *testing.T) {
	in, err := runProgram(t, func(asm *Assembler) {
		asm.PushUint(0xDEADBEEF)
		asm.PushUint(4) // count
		asm.PushUint(0) // offset
		asm.PushUint(uint64(memory.RlpRaw))
		asm.PushUint(0)
		asm.Op(MSTORE32)
		asm.Op(POP) // end offset
		asm.PushUint(4)
		asm.PushUint(0)
		asm.PushUint(uint64(memory.RlpRaw))
		asm.PushUint(0)
		asm.Op(MLOAD32)
		asm.Swap(1)
		asm.Ret()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, _ := in.Stack().Pop(); v.Uint64() != 0xDEADBEEF {
		t.Fatalf("MLOAD32 = %#x, want 0xDEADBEEF", v.Uint64())
	}
}

func TestProverInputOpcode(t *testing.T) {
	a := NewAssembler()
	a.Label("main")
	a.ProverInput(tape.ChannelRLP)
	a.Swap(1)
	a.Ret()
	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	tp := tape.New()
	if err := tp.Stage(tape.ChannelRLP, uint256.NewInt(99)); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	in := NewInterpreter(prog, memory.New(), tp, DefaultConfig())
	if err := in.Run("main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, _ := in.Stack().Pop(); v.Uint64() != 99 {
		t.Fatalf("tape word = %d, want 99", v.Uint64())
	}

	// A second read on the drained channel is a fatal fault.
	in2 := NewInterpreter(prog, memory.New(), tape.New(), DefaultConfig())
	err = in2.Run("main")
	if !errors.Is(err, tape.ErrExhausted) {
		t.Fatalf("Run on empty tape = %v, want ErrExhausted", err)
	}
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("error %v is not a Fault", err)
	}
	if f.Channel != tape.ChannelRLP {
		t.Fatalf("fault channel = %q, want %q", f.Channel, tape.ChannelRLP)
	}
}

func TestKeccakOpcode(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	in, err := runProgram(t, func(asm *Assembler) {
		asm.PushUint(0x010203)
		asm.PushUint(3)
		asm.PushUint(0)
		asm.PushUint(uint64(memory.RlpRaw))
		asm.PushUint(0)
		asm.Op(MSTORE32)
		asm.Op(POP)
		// KECCAK pops the address triple then the length.
		asm.PushUint(3) // length
		asm.PushUint(0) // offset
		asm.PushUint(uint64(memory.RlpRaw))
		asm.PushUint(0)
		asm.Op(KECCAK)
		asm.Swap(1)
		asm.Ret()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := crypto.Keccak256Hash(data)
	v, _ := in.Stack().Pop()
	got := v.Bytes32()
	if got != [32]byte(want) {
		t.Fatalf("KECCAK = %x, want %x", got, want)
	}
}

func TestContextRegister(t *testing.T) {
	in, err := runProgram(t, func(asm *Assembler) {
		asm.PushUint(5)
		asm.Op(SETCONTEXT)
		asm.Op(GETCONTEXT)
		asm.Swap(1)
		asm.Ret()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, _ := in.Stack().Pop(); v.Uint64() != 5 {
		t.Fatalf("GETCONTEXT = %d, want 5", v.Uint64())
	}
	if in.Context() != 5 {
		t.Fatalf("Context() = %d, want 5", in.Context())
	}
}

func TestStackUnderflowFault(t *testing.T) {
	_, err := runProgram(t, func(asm *Assembler) {
		asm.Op(POP) // pops the return address
		asm.Op(POP) // stack now empty
		asm.Ret()
	})
	if !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("Run = %v, want ErrStackUnderflow", err)
	}
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("error %v is not a Fault", err)
	}
	if f.Pc != 1 || f.Op != POP {
		t.Fatalf("fault at pc %d op %v, want pc 1 op POP", f.Pc, f.Op)
	}
}

func TestInvalidJumpFault(t *testing.T) {
	_, err := runProgram(t, func(asm *Assembler) {
		asm.PushUint(1 << 30)
		asm.Op(JUMP)
	})
	if !errors.Is(err, ErrInvalidJump) {
		t.Fatalf("Run = %v, want ErrInvalidJump", err)
	}
}

func TestFallingOffProgramFault(t *testing.T) {
	_, err := runProgram(t, func(asm *Assembler) {
		asm.PushUint(1)
		// no terminal jump: execution runs off the end
	})
	if !errors.Is(err, ErrInvalidJump) {
		t.Fatalf("Run = %v, want ErrInvalidJump", err)
	}
}

func TestInvalidSegmentFault(t *testing.T) {
	_, err := runProgram(t, func(asm *Assembler) {
		asm.PushUint(0)   // offset
		asm.PushUint(999) // segment out of range
		asm.PushUint(0)   // context
		asm.Op(MLOAD)
		asm.Ret()
	})
	if !errors.Is(err, ErrInvalidSegment) {
		t.Fatalf("Run = %v, want ErrInvalidSegment", err)
	}
}

func TestContextOperandOutOfRangeFault(t *testing.T) {
	// Context ids that fit uint64 but not a non-negative int (or that
	// exceed the context bound) must fault, never panic or allocate.
	var huge uint256.Int
	huge.Lsh(uint256.NewInt(1), 63)

	for _, ctx := range []*uint256.Int{&huge, uint256.NewInt(1 << 40)} {
		_, err := runProgram(t, func(asm *Assembler) {
			asm.PushUint(0x42) // value
			asm.PushUint(0)    // offset
			asm.PushUint(uint64(memory.MainMemory))
			asm.Push(ctx)
			asm.Op(MSTORE)
			asm.Ret()
		})
		if !errors.Is(err, ErrInvalidContext) {
			t.Fatalf("MSTORE with context %v = %v, want ErrInvalidContext", ctx, err)
		}
	}
}

func TestSetContextOutOfRangeFault(t *testing.T) {
	var huge uint256.Int
	huge.Lsh(uint256.NewInt(1), 63)

	for _, ctx := range []*uint256.Int{&huge, uint256.NewInt(MaxContexts)} {
		_, err := runProgram(t, func(asm *Assembler) {
			asm.Push(ctx)
			asm.Op(SETCONTEXT)
			asm.Ret()
		})
		if !errors.Is(err, ErrInvalidContext) {
			t.Fatalf("SETCONTEXT %v = %v, want ErrInvalidContext", ctx, err)
		}
	}
}

func TestStepLimitFault(t *testing.T) {
	a := NewAssembler()
	a.Label("main")
	a.Jump("main")
	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	cfg := DefaultConfig()
	cfg.MaxSteps = 100
	in := NewInterpreter(prog, memory.New(), tape.New(), cfg)
	if err := in.Run("main"); !errors.Is(err, ErrStepLimit) {
		t.Fatalf("Run = %v, want ErrStepLimit", err)
	}
	if in.Steps() != 100 {
		t.Fatalf("Steps = %d, want 100", in.Steps())
	}
}

func TestTraceRecordsStackAndMemory(t *testing.T) {
	a := NewAssembler()
	a.Label("main")
	a.PushUint(1)
	a.PushUint(2)
	a.Swap(1)
	a.Op(POP)
	a.Op(POP)
	a.PushUint(0x42)
	a.PushUint(3)
	a.PushUint(uint64(memory.MainMemory))
	a.PushUint(0)
	a.Op(MSTORE)
	a.Ret()
	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Trace = trace.NewLog()
	in := NewInterpreter(prog, memory.New(), tape.New(), cfg)
	if err := in.Run("main"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var writes, pushes, swaps int
	for _, ev := range cfg.Trace.Events() {
		switch ev.Kind {
		case trace.MemWrite:
			writes++
			if ev.Addr != memory.NewAddress(0, memory.MainMemory, 3) {
				t.Fatalf("write addr = %+v", ev.Addr)
			}
			if ev.Value.Uint64() != 0x42 {
				t.Fatalf("write value = %#x, want 0x42", ev.Value.Uint64())
			}
		case trace.StackPush:
			pushes++
		case trace.StackSwap:
			swaps++
			if ev.Index != 1 {
				t.Fatalf("swap depth = %d, want 1", ev.Index)
			}
			// After SWAP1 the value pushed first is back on top.
			if ev.Value.Uint64() != 1 {
				t.Fatalf("swap new top = %d, want 1", ev.Value.Uint64())
			}
		}
	}
	if writes != 1 {
		t.Fatalf("memory writes traced = %d, want 1", writes)
	}
	// Halt address plus six operand pushes.
	if pushes != 7 {
		t.Fatalf("stack pushes traced = %d, want 7", pushes)
	}
	if swaps != 1 {
		t.Fatalf("stack swaps traced = %d, want 1", swaps)
	}
}

func TestReusedInterpreterTracesEntryPc(t *testing.T) {
	a := NewAssembler()
	a.Label("main")
	a.Op(POP) // drop the argument
	a.Ret()
	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Trace = trace.NewLog()
	in := NewInterpreter(prog, memory.New(), tape.New(), cfg)

	if err := in.Run("main", uint256.NewInt(1)); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	mark := cfg.Trace.Len()
	if err := in.Run("main", uint256.NewInt(2)); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	entry, _ := prog.Entry("main")
	// The second run's halt-address and argument pushes must carry the
	// entry pc, not the previous run's halt address.
	for _, ev := range cfg.Trace.Events()[mark:] {
		if ev.Kind == trace.StackPush && ev.Pc != entry {
			t.Fatalf("push traced at pc %#x, want %d", ev.Pc, entry)
		}
	}
}
