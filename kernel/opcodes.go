package kernel

// OpCode is a kernel instruction. The set is fixed to what the proving
// kernel needs: arithmetic and comparison, stack shuffling, control flow
// over a flat instruction space, general (context, segment, offset) memory
// access, tape reads and hash-oracle invocations. There is no halt opcode;
// a run terminates by jumping to a caller-supplied return address that is
// registered as a halt point.
type OpCode uint8

const (
	// Arithmetic and comparison. Operands are popped, the result pushed.
	ADD OpCode = iota
	SUB
	MUL
	DIV // division by zero yields zero
	MOD // modulo by zero yields zero
	LT
	GT
	EQ
	ISZERO
	AND
	OR
	XOR
	NOT
	SHL // pops shift, then value
	SHR // pops shift, then value

	// Stack manipulation. PUSH carries an immediate word; DUP and SWAP
	// carry a fixed small offset in [1, 16].
	PUSH
	POP
	DUP
	SWAP

	// Control flow. JUMP pops the target; JUMPI pops target then
	// condition and jumps iff the condition is non-zero.
	JUMP
	JUMPI

	// Memory access. Operands are (context, segment, offset) from the
	// top of the stack down, then the payload.
	// MLOAD pushes the addressed cell. MSTORE pops a value and writes it.
	// MLOAD32 additionally pops a byte count n and pushes the packed
	// big-endian word of cells [offset, offset+n). MSTORE32 pops n and a
	// value, writes the value's low n bytes big-endian one byte per
	// cell, and pushes offset+n.
	MLOAD
	MSTORE
	MLOAD32
	MSTORE32

	// PROVERINPUT pushes the next word of the instruction's tape
	// channel. Tape exhaustion is a fatal fault.
	PROVERINPUT

	// KECCAK pops (context, segment, offset, length) and pushes the
	// oracle digest of that byte range.
	KECCAK

	// Context management.
	GETCONTEXT
	SETCONTEXT

	// BUILTIN invokes a routine compiled into the program at build time.
	// The routine follows the call convention: arguments on the stack,
	// return address consumed last, terminal jump to it.
	BUILTIN

	numOpCodes
)

var opNames = [numOpCodes]string{
	ADD: "ADD", SUB: "SUB", MUL: "MUL", DIV: "DIV", MOD: "MOD",
	LT: "LT", GT: "GT", EQ: "EQ", ISZERO: "ISZERO",
	AND: "AND", OR: "OR", XOR: "XOR", NOT: "NOT", SHL: "SHL", SHR: "SHR",
	PUSH: "PUSH", POP: "POP", DUP: "DUP", SWAP: "SWAP",
	JUMP: "JUMP", JUMPI: "JUMPI",
	MLOAD: "MLOAD", MSTORE: "MSTORE", MLOAD32: "MLOAD32", MSTORE32: "MSTORE32",
	PROVERINPUT: "PROVERINPUT", KECCAK: "KECCAK",
	GETCONTEXT: "GETCONTEXT", SETCONTEXT: "SETCONTEXT",
	BUILTIN: "BUILTIN",
}

// String returns the opcode mnemonic.
func (op OpCode) String() string {
	if op >= numOpCodes {
		return "INVALID"
	}
	return opNames[op]
}
