package rlp

import (
	"fmt"

	"github.com/eth2030/zkevm/kernel/memory"
	"github.com/eth2030/zkevm/types"
	"github.com/holiman/uint256"
)

// Encoder builds one RLP item in kernel memory. Fields are appended
// payload-first starting just past a reserved prefix zone; the combined
// length header is only known once all fields are written, so Finalize
// computes it last and writes it backwards into the zone.
type Encoder struct {
	mem  *memory.State
	base memory.Address // start of the reserved prefix zone
	pos  uint64         // next free offset within the segment
}

// NewEncoder returns an Encoder whose buffer starts at base. The first
// payload byte lands at base.Virt+MaxPrefixSize.
func NewEncoder(mem *memory.State, base memory.Address) *Encoder {
	return &Encoder{
		mem:  mem,
		base: base,
		pos:  base.Virt + MaxPrefixSize,
	}
}

// payloadStart returns the offset of the first payload byte.
func (e *Encoder) payloadStart() uint64 {
	return e.base.Virt + MaxPrefixSize
}

// Pos returns the offset one past the last appended payload byte.
func (e *Encoder) Pos() uint64 {
	return e.pos
}

func (e *Encoder) writeByte(b byte) {
	e.mem.SetByte(memory.Address{Context: e.base.Context, Segment: e.base.Segment, Virt: e.pos}, b)
	e.pos++
}

func (e *Encoder) writeBytes(b []byte) {
	e.mem.SetBytes(memory.Address{Context: e.base.Context, Segment: e.base.Segment, Virt: e.pos}, b)
	e.pos += uint64(len(b))
}

// AppendScalar appends the canonical scalar encoding of v: the empty string
// for zero, the byte itself for values below 0x80, and a length-prefixed
// big-endian byte string with no leading zeros otherwise.
func (e *Encoder) AppendScalar(v *uint256.Int) {
	if v.IsZero() {
		e.writeByte(emptyStringPrefix)
		return
	}
	b := v.Bytes() // minimal big-endian, no leading zeros
	if len(b) == 1 && b[0] < emptyStringPrefix {
		e.writeByte(b[0])
		return
	}
	e.writeByte(emptyStringPrefix + byte(len(b)))
	e.writeBytes(b)
}

// AppendAddress appends the fixed-width 20-byte string encoding of a,
// leading zeros included. This is the canonical sender encoding in the
// nonce-based address formula.
func (e *Encoder) AppendAddress(a types.Address) {
	e.writeByte(emptyStringPrefix + types.AddressLength)
	e.writeBytes(a.Bytes())
}

// AppendHash appends the fixed-width 32-byte string encoding of h.
func (e *Encoder) AppendHash(h types.Hash) {
	e.writeByte(emptyStringPrefix + types.HashLength)
	e.writeBytes(h.Bytes())
}

// AppendBytes appends the general string encoding of b, using the short
// single-byte header below 56 bytes and the length-of-length form above.
func (e *Encoder) AppendBytes(b []byte) {
	switch {
	case len(b) == 1 && b[0] < emptyStringPrefix:
		e.writeByte(b[0])
	case len(b) <= shortFormMax:
		e.writeByte(emptyStringPrefix + byte(len(b)))
		e.writeBytes(b)
	default:
		putLength(e, longStringBase, uint64(len(b)))
		e.writeBytes(b)
	}
}

// AppendEmptyList appends the encoding of an empty list.
func (e *Encoder) AppendEmptyList() {
	e.writeByte(shortListBase)
}

// putLength writes a long-form header (base+lenOfLen, then the big-endian
// length bytes with no leading zeros) at the current position.
func putLength(e *Encoder, base byte, length uint64) {
	var tmp [8]byte
	n := 0
	for v := length; v > 0; v >>= 8 {
		n++
	}
	for i := 0; i < n; i++ {
		tmp[i] = byte(length >> (8 * (n - 1 - i)))
	}
	e.writeByte(base + byte(n))
	e.writeBytes(tmp[:n])
}

// Finalize computes the header covering everything appended so far and
// writes it into the reserved prefix zone, ending flush against the first
// payload byte. It returns the address of the header's first byte and the
// total encoded length (header plus payload). With list=false the payload
// is finalized as a single string; a one-byte payload below 0x80 then gets
// no header at all, per the canonical short-form rule.
func (e *Encoder) Finalize(list bool) (memory.Address, uint64, error) {
	start := e.payloadStart()
	payloadLen := e.pos - start

	if !list && payloadLen == 1 {
		b, ok := e.mem.GetByte(memory.Address{Context: e.base.Context, Segment: e.base.Segment, Virt: start})
		if !ok {
			return memory.Address{}, 0, fmt.Errorf("%w: non-byte cell in payload", ErrMalformedRlp)
		}
		if b < emptyStringPrefix {
			return memory.Address{Context: e.base.Context, Segment: e.base.Segment, Virt: start}, 1, nil
		}
	}

	shortBase := byte(emptyStringPrefix)
	longBase := byte(longStringBase)
	if list {
		shortBase = shortListBase
		longBase = longListBase
	}

	var header []byte
	if payloadLen <= shortFormMax {
		header = []byte{shortBase + byte(payloadLen)}
	} else {
		n := 0
		for v := payloadLen; v > 0; v >>= 8 {
			n++
		}
		header = make([]byte, 1+n)
		header[0] = longBase + byte(n)
		for i := 0; i < n; i++ {
			header[1+i] = byte(payloadLen >> (8 * (n - 1 - i)))
		}
	}
	if uint64(len(header)) > MaxPrefixSize {
		return memory.Address{}, 0, fmt.Errorf("%w: header exceeds reserved zone", ErrUnsupportedEncoding)
	}

	headerStart := start - uint64(len(header))
	e.mem.SetBytes(memory.Address{Context: e.base.Context, Segment: e.base.Segment, Virt: headerStart}, header)
	return memory.Address{Context: e.base.Context, Segment: e.base.Segment, Virt: headerStart},
		uint64(len(header)) + payloadLen, nil
}
