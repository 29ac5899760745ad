package tape

import (
	"fmt"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// StageTransactions stages the canonical binary encoding of each signed
// go-ethereum transaction onto the "rlp" channel, in order. This is the
// hand-off point between block ingestion and the kernel: the kernel
// re-reads, re-measures and re-hashes these bytes during execution rather
// than trusting them.
func (t *Tape) StageTransactions(txs []*gethtypes.Transaction) error {
	payloads := make([][]byte, 0, len(txs))
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return fmt.Errorf("tape: marshaling transaction %d (%s): %w", i, tx.Hash(), err)
		}
		payloads = append(payloads, raw)
	}
	return t.StageRLP(payloads)
}
