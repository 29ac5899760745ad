// Package tape implements the prover-input tape: an ordered, untrusted,
// write-once feed of 256-bit words consumed sequentially by the kernel.
// Words are partitioned into named channels; each channel has a monotonic
// cursor that never rewinds. The tape is populated by the trace-generation
// side before the run starts and is read-only during execution. Everything
// read from it is untrusted advice and must be re-validated downstream.
package tape

import (
	"errors"
	"fmt"

	"github.com/eth2030/zkevm/metrics"
	"github.com/holiman/uint256"
)

// ChannelRLP is the channel carrying raw byte-serialized payloads. By
// convention the first word of each item is the declared byte length,
// followed by ceil(length/32) big-endian 32-byte chunks with a zero-padded
// tail.
const ChannelRLP = "rlp"

var (
	// ErrExhausted is returned when a read goes past the staged data of a
	// channel. This is fatal: it means the untrusted prover supplied
	// malformed or insufficient advice.
	ErrExhausted = errors.New("tape: channel exhausted")

	// ErrSealed is returned when staging is attempted on a channel that
	// has already been read from.
	ErrSealed = errors.New("tape: channel already consumed, staging closed")
)

// channel is one named word sequence with its cursor.
type channel struct {
	words  []uint256.Int
	cursor int
}

// ReadObserver is invoked for every successful tape read, in order. It is
// how the trace layer sees tape consumption.
type ReadObserver func(channel string, index int, value *uint256.Int)

// Tape holds the staged channels of one kernel run. It is not safe for
// concurrent use; each run owns its tape exclusively.
type Tape struct {
	channels map[string]*channel
	observer ReadObserver
}

// New returns an empty tape.
func New() *Tape {
	return &Tape{channels: make(map[string]*channel)}
}

// SetObserver registers the read observer. A nil observer disables
// observation.
func (t *Tape) SetObserver(o ReadObserver) {
	t.observer = o
}

// Stage appends words to the named channel. Staging is only permitted
// before the first read on that channel: the tape is write-once from the
// trace-generation side.
func (t *Tape) Stage(name string, words ...*uint256.Int) error {
	ch := t.channels[name]
	if ch == nil {
		ch = &channel{}
		t.channels[name] = ch
	}
	if ch.cursor > 0 {
		return fmt.Errorf("%w: %q", ErrSealed, name)
	}
	for _, w := range words {
		ch.words = append(ch.words, *w)
	}
	return nil
}

// Read returns the next word of the named channel and advances its cursor.
// The cursor never rewinds; a read past the staged data fails with
// ErrExhausted.
func (t *Tape) Read(name string) (uint256.Int, error) {
	ch := t.channels[name]
	if ch == nil || ch.cursor >= len(ch.words) {
		return uint256.Int{}, fmt.Errorf("%w: %q at index %d", ErrExhausted, name, t.Cursor(name))
	}
	w := ch.words[ch.cursor]
	idx := ch.cursor
	ch.cursor++
	metrics.TapeWordsRead.Inc()
	if t.observer != nil {
		t.observer(name, idx, &w)
	}
	return w, nil
}

// Cursor returns the number of words consumed from the named channel.
func (t *Tape) Cursor(name string) int {
	if ch := t.channels[name]; ch != nil {
		return ch.cursor
	}
	return 0
}

// Len returns the total number of words staged on the named channel.
func (t *Tape) Len(name string) int {
	if ch := t.channels[name]; ch != nil {
		return len(ch.words)
	}
	return 0
}

// Remaining returns the number of unconsumed words on the named channel.
func (t *Tape) Remaining(name string) int {
	return t.Len(name) - t.Cursor(name)
}

// StageRLP stages the given raw payloads onto the "rlp" channel in the
// canonical staging format: for each payload, one word holding the byte
// length, then the payload split into big-endian 32-byte chunks, the last
// chunk zero-padded on the right.
func (t *Tape) StageRLP(payloads [][]byte) error {
	for _, p := range payloads {
		words := make([]*uint256.Int, 0, 1+(len(p)+31)/32)
		words = append(words, uint256.NewInt(uint64(len(p))))
		for off := 0; off < len(p); off += 32 {
			var chunk [32]byte
			copy(chunk[:], p[off:])
			w := new(uint256.Int)
			w.SetBytes(chunk[:])
			words = append(words, w)
		}
		if err := t.Stage(ChannelRLP, words...); err != nil {
			return err
		}
	}
	return nil
}
