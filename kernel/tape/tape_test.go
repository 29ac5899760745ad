package tape

import (
	"errors"
	"math/big"
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

func TestReadAdvancesCursor(t *testing.T) {
	tp := New()
	if err := tp.Stage("misc", uint256.NewInt(1), uint256.NewInt(2)); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	for i, want := range []uint64{1, 2} {
		w, err := tp.Read("misc")
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if w.Uint64() != want {
			t.Errorf("Read %d = %d, want %d", i, w.Uint64(), want)
		}
		if tp.Cursor("misc") != i+1 {
			t.Errorf("Cursor after read %d = %d, want %d", i, tp.Cursor("misc"), i+1)
		}
	}
}

func TestReadExhausted(t *testing.T) {
	tp := New()
	if err := tp.Stage("misc", uint256.NewInt(1)); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := tp.Read("misc"); err != nil {
		t.Fatalf("Read: %v", err)
	}

	_, err := tp.Read("misc")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Read past end: got %v, want ErrExhausted", err)
	}
	// Unknown channels are exhausted from the start.
	_, err = tp.Read("nope")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Read unknown channel: got %v, want ErrExhausted", err)
	}
}

func TestStageAfterReadFails(t *testing.T) {
	tp := New()
	if err := tp.Stage("misc", uint256.NewInt(1)); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := tp.Read("misc"); err != nil {
		t.Fatalf("Read: %v", err)
	}

	err := tp.Stage("misc", uint256.NewInt(2))
	if !errors.Is(err, ErrSealed) {
		t.Fatalf("Stage after read: got %v, want ErrSealed", err)
	}
}

func TestStageRLPFormat(t *testing.T) {
	tp := New()
	payload := make([]byte, 33)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	if err := tp.StageRLP([][]byte{payload}); err != nil {
		t.Fatalf("StageRLP: %v", err)
	}

	// Word 0: declared length.
	w, err := tp.Read(ChannelRLP)
	if err != nil {
		t.Fatalf("Read length: %v", err)
	}
	if w.Uint64() != 33 {
		t.Fatalf("declared length = %d, want 33", w.Uint64())
	}

	// Word 1: first full chunk, big-endian.
	w, err = tp.Read(ChannelRLP)
	if err != nil {
		t.Fatalf("Read chunk 0: %v", err)
	}
	b := w.Bytes32()
	for i := 0; i < 32; i++ {
		if b[i] != byte(i+1) {
			t.Fatalf("chunk 0 byte %d = %#x, want %#x", i, b[i], byte(i+1))
		}
	}

	// Word 2: tail chunk, one byte then zero padding.
	w, err = tp.Read(ChannelRLP)
	if err != nil {
		t.Fatalf("Read chunk 1: %v", err)
	}
	b = w.Bytes32()
	if b[0] != 33 {
		t.Fatalf("tail chunk byte 0 = %#x, want 0x21", b[0])
	}
	for i := 1; i < 32; i++ {
		if b[i] != 0 {
			t.Fatalf("tail chunk byte %d = %#x, want 0", i, b[i])
		}
	}

	if tp.Remaining(ChannelRLP) != 0 {
		t.Fatalf("Remaining = %d, want 0", tp.Remaining(ChannelRLP))
	}
}

func TestStageRLPEmptyPayload(t *testing.T) {
	tp := New()
	if err := tp.StageRLP([][]byte{{}}); err != nil {
		t.Fatalf("StageRLP: %v", err)
	}
	w, err := tp.Read(ChannelRLP)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !w.IsZero() {
		t.Fatalf("declared length = %v, want 0", &w)
	}
	if tp.Remaining(ChannelRLP) != 0 {
		t.Fatalf("empty payload staged %d extra words", tp.Remaining(ChannelRLP))
	}
}

func TestStageTransactions(t *testing.T) {
	to := gethcommon.HexToAddress("0x0100000000000000000000000000000000000001")
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    7,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(100),
	})
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	tp := New()
	if err := tp.StageTransactions([]*gethtypes.Transaction{tx}); err != nil {
		t.Fatalf("StageTransactions: %v", err)
	}

	w, err := tp.Read(ChannelRLP)
	if err != nil {
		t.Fatalf("Read length: %v", err)
	}
	if w.Uint64() != uint64(len(raw)) {
		t.Fatalf("declared length = %d, want %d", w.Uint64(), len(raw))
	}
	wantWords := (len(raw) + 31) / 32
	if tp.Remaining(ChannelRLP) != wantWords {
		t.Fatalf("chunk words = %d, want %d", tp.Remaining(ChannelRLP), wantWords)
	}
}
