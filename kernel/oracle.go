package kernel

import (
	"fmt"

	"github.com/eth2030/zkevm/crypto"
	"github.com/eth2030/zkevm/kernel/memory"
	"github.com/eth2030/zkevm/types"
)

// HashOracle hashes a run of byte-oriented memory cells. The interpreter
// treats the digest as advice: the oracle answers immediately and the
// caller is responsible for checking the preimage it hashed over.
type HashOracle interface {
	// HashRange hashes n consecutive cells starting at start. Every cell
	// in the range must hold a single byte.
	HashRange(mem *memory.State, start memory.Address, n uint64) (types.Hash, error)
}

// KeccakOracle answers hash queries by running Keccak-256 over the
// requested range directly.
type KeccakOracle struct{}

// HashRange implements HashOracle.
func (KeccakOracle) HashRange(mem *memory.State, start memory.Address, n uint64) (types.Hash, error) {
	buf, ok := mem.Bytes(start, n)
	if !ok {
		return types.Hash{}, fmt.Errorf("%w: non-byte cell in hash range at %d:%s:%d", ErrBadPreimage, start.Context, start.Segment, start.Virt)
	}
	return crypto.Keccak256Hash(buf), nil
}
