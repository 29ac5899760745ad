package kernel

import (
	"fmt"

	"github.com/eth2030/zkevm/kernel/memory"
	"github.com/eth2030/zkevm/kernel/rlp"
	"github.com/eth2030/zkevm/kernel/tape"
	"github.com/eth2030/zkevm/metrics"
	"github.com/eth2030/zkevm/types"
	"github.com/holiman/uint256"
)

// NewKernelProgram assembles the standard kernel routines. Each entry point
// follows the call convention: the caller pushes the return address, then
// the arguments so the first argument ends up on top, and the routine's
// terminal jump consumes the return address.
//
// Entry points:
//
//	read_rlp_to_memory    () -> length
//	derive_nonce_address  (sender, nonce) -> address
//	derive_salt_address   (sender, codeHash, salt) -> address
func NewKernelProgram() (*Program, error) {
	a := NewAssembler()
	a.Label("read_rlp_to_memory")
	a.Builtin(readRLPToMemory)
	a.Label("derive_nonce_address")
	a.Builtin(deriveNonceAddress)
	a.Label("derive_salt_address")
	a.Builtin(deriveSaltAddress)
	return a.Assemble()
}

// metaAddr addresses a global metadata field in context 0.
func metaAddr(field uint64) memory.Address {
	return memory.NewAddress(0, memory.GlobalMetadata, field)
}

// readRLPToMemory pulls one length-prefixed payload off the rlp tape
// channel and unpacks it into the RlpRaw segment of context 0, one byte
// per cell, appending after any bytes staged by earlier reads. Full chunks
// carry 32 payload bytes; the tail chunk is left-aligned, so it is shifted
// down and its dropped padding checked to be zero. The staged size in
// global metadata is advanced past the new bytes and the payload length is
// left on the stack.
func readRLPToMemory(in *Interpreter) error {
	ret, err := in.Pop()
	if err != nil {
		return err
	}

	lw, err := in.Tape().Read(tape.ChannelRLP)
	if err != nil {
		return err
	}
	if !lw.IsUint64() {
		return fmt.Errorf("tape: declared payload length does not fit uint64")
	}
	length := lw.Uint64()

	base := in.Mem().Get(metaAddr(memory.MetaRlpDataSize))
	off := base.Uint64()

	for remaining := length; remaining > 0; {
		w, err := in.Tape().Read(tape.ChannelRLP)
		if err != nil {
			return err
		}
		n := remaining
		if n > 32 {
			n = 32
		}
		if n < 32 {
			shift := uint(8 * (32 - n))
			var low uint256.Int
			low.Rsh(&w, shift)
			var check uint256.Int
			check.Lsh(&low, shift)
			if !check.Eq(&w) {
				return fmt.Errorf("tape: nonzero padding in tail chunk")
			}
			w = low
		}
		in.Mem().SetRange(memory.NewAddress(0, memory.RlpRaw, off), int(n), &w)
		off += n
		remaining -= n
	}

	in.Mem().Set(metaAddr(memory.MetaRlpDataSize), uint256.NewInt(base.Uint64()+length))
	if err := in.Push(uint256.NewInt(length)); err != nil {
		return err
	}
	return in.jumpTo(&ret)
}

// deriveNonceAddress computes the nonce-based contract address for the
// sender and nonce words on the stack. The RLP list [sender, nonce] is
// built with the memory-resident encoder in kernel scratch space and
// hashed through the oracle, so both the preimage bytes and the digest are
// visible to the trace. The result is recorded in global metadata,
// reported to the address observer and left on the stack.
func deriveNonceAddress(in *Interpreter) error {
	senderWord, err := in.Pop()
	if err != nil {
		return err
	}
	nonce, err := in.Pop()
	if err != nil {
		return err
	}
	ret, err := in.Pop()
	if err != nil {
		return err
	}

	sender := wordToAddress(&senderWord)
	scratch := memory.NewAddress(0, memory.KernelGeneral, in.Mem().SegmentLen(0, memory.KernelGeneral))
	enc := rlp.NewEncoder(in.Mem(), scratch)
	enc.AppendAddress(sender)
	enc.AppendScalar(&nonce)
	start, n, err := enc.Finalize(true)
	if err != nil {
		return err
	}
	digest, err := in.Oracle().HashRange(in.Mem(), start, n)
	if err != nil {
		return err
	}
	return in.finishDerivation(digest.Address(), &ret)
}

// deriveSaltAddress computes the salt-based contract address for the
// sender, init-code hash and salt words on the stack. The flat 85-byte
// preimage 0xff || sender || salt || codeHash is laid out in kernel
// scratch space and hashed through the oracle. The result is recorded in
// global metadata, reported to the address observer and left on the stack.
func deriveSaltAddress(in *Interpreter) error {
	senderWord, err := in.Pop()
	if err != nil {
		return err
	}
	codeHashWord, err := in.Pop()
	if err != nil {
		return err
	}
	saltWord, err := in.Pop()
	if err != nil {
		return err
	}
	ret, err := in.Pop()
	if err != nil {
		return err
	}

	sender := wordToAddress(&senderWord)
	codeHash := wordToHash(&codeHashWord)
	salt := wordToHash(&saltWord)

	var preimage [1 + types.AddressLength + 2*types.HashLength]byte
	preimage[0] = 0xff
	copy(preimage[1:], sender.Bytes())
	copy(preimage[1+types.AddressLength:], salt.Bytes())
	copy(preimage[1+types.AddressLength+types.HashLength:], codeHash.Bytes())

	scratch := memory.NewAddress(0, memory.KernelGeneral2, in.Mem().SegmentLen(0, memory.KernelGeneral2))
	in.Mem().SetBytes(scratch, preimage[:])
	digest, err := in.Oracle().HashRange(in.Mem(), scratch, uint64(len(preimage)))
	if err != nil {
		return err
	}
	return in.finishDerivation(digest.Address(), &ret)
}

// finishDerivation records a derived address in global metadata, notifies
// the observer, pushes the address word and returns to the caller.
func (in *Interpreter) finishDerivation(addr types.Address, ret *uint256.Int) error {
	var w uint256.Int
	w.SetBytes(addr.Bytes())
	in.Mem().Set(metaAddr(memory.MetaCreatedAddress), &w)
	metrics.AddressesDerived.Inc()
	if obs := in.Addresses(); obs != nil {
		obs.ObserveAddress(addr)
	}
	in.logger.Debug("derived contract address", "address", addr.Hex())
	if err := in.Push(&w); err != nil {
		return err
	}
	return in.jumpTo(ret)
}

// wordToAddress truncates a word to its low 20 bytes.
func wordToAddress(w *uint256.Int) types.Address {
	b := w.Bytes32()
	return types.BytesToAddress(b[12:])
}

// wordToHash expands a word to its full 32-byte big-endian form.
func wordToHash(w *uint256.Int) types.Hash {
	b := w.Bytes32()
	return types.BytesToHash(b[:])
}
