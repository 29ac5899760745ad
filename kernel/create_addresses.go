package kernel

import (
	"fmt"

	"github.com/eth2030/zkevm/crypto"
	"github.com/eth2030/zkevm/kernel/memory"
	"github.com/eth2030/zkevm/kernel/rlp"
	"github.com/eth2030/zkevm/types"
	"github.com/holiman/uint256"
)

// AddressObserver is notified of every contract address the kernel
// derives, in derivation order. Observers must not influence execution:
// derivation is a pure function of its inputs whether or not anyone is
// watching.
type AddressObserver interface {
	ObserveAddress(addr types.Address)
}

// NoopAddressObserver discards all observations.
type NoopAddressObserver struct{}

// ObserveAddress implements AddressObserver.
func (NoopAddressObserver) ObserveAddress(types.Address) {}

// DeriveNonceAddress computes the address of a contract created by sender
// with the given account nonce: the low 160 bits of the hash of the RLP
// list [sender, nonce], with the sender encoded as a fixed 20-byte string
// and the nonce as a canonical scalar.
//
// The list is built with the memory-resident RLP encoder over a scratch
// memory state, so the byte layout is identical to what the in-kernel
// derivation routine produces. This is a host-side helper: it does not
// notify any AddressObserver. The observer hook fires only when the
// derivation runs inside the kernel.
func DeriveNonceAddress(sender types.Address, nonce uint64) (types.Address, error) {
	mem := memory.New()
	enc := rlp.NewEncoder(mem, memory.NewAddress(0, memory.KernelGeneral, 0))
	enc.AppendAddress(sender)
	enc.AppendScalar(uint256.NewInt(nonce))
	start, n, err := enc.Finalize(true)
	if err != nil {
		return types.Address{}, err
	}
	preimage, ok := mem.Bytes(start, n)
	if !ok {
		return types.Address{}, fmt.Errorf("%w: encoder produced non-byte cell", ErrBadPreimage)
	}
	return crypto.Keccak256Hash(preimage).Address(), nil
}

// DeriveSaltAddress computes the address of a contract created by sender
// with an explicit salt and init-code hash: the low 160 bits of the hash
// of the 85-byte preimage 0xff || sender || salt || codeHash. Like
// DeriveNonceAddress it is a host-side helper and bypasses the
// AddressObserver hook.
func DeriveSaltAddress(sender types.Address, codeHash, salt types.Hash) types.Address {
	var preimage [1 + types.AddressLength + 2*types.HashLength]byte
	preimage[0] = 0xff
	copy(preimage[1:], sender.Bytes())
	copy(preimage[1+types.AddressLength:], salt.Bytes())
	copy(preimage[1+types.AddressLength+types.HashLength:], codeHash.Bytes())
	return crypto.Keccak256Hash(preimage[:]).Address()
}
