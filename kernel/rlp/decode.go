package rlp

import (
	"fmt"

	"github.com/eth2030/zkevm/kernel/memory"
	"github.com/holiman/uint256"
)

// Item describes one decoded RLP item by its boundaries within a segment.
// Decoding never copies payload bytes; higher layers consume them through
// these boundaries.
type Item struct {
	Kind         Kind
	Start        uint64 // offset of the header byte (or the byte itself)
	PayloadStart uint64
	PayloadLen   uint64
}

// End returns the offset one past the item's last byte.
func (it Item) End() uint64 {
	return it.PayloadStart + it.PayloadLen
}

// Decoder interprets byte cells of one segment as RLP data.
type Decoder struct {
	mem *memory.State
	ctx int
	seg memory.Segment
}

// NewDecoder returns a Decoder over the given context segment.
func NewDecoder(mem *memory.State, ctx int, seg memory.Segment) *Decoder {
	return &Decoder{mem: mem, ctx: ctx, seg: seg}
}

func (d *Decoder) byteAt(virt uint64) (byte, error) {
	b, ok := d.mem.GetByte(memory.Address{Context: d.ctx, Segment: d.seg, Virt: virt})
	if !ok {
		return 0, fmt.Errorf("%w: non-byte cell at offset %d", ErrMalformedRlp, virt)
	}
	return b, nil
}

// Item decodes the header of the item starting at virt. The item must fit
// entirely within [virt, limit); headers which claim otherwise are
// malformed. Non-canonical encodings (short-string form for a single byte
// below 0x80, long form below 56 bytes, length bytes with a leading zero)
// are rejected.
func (d *Decoder) Item(virt, limit uint64) (Item, error) {
	if virt >= limit {
		return Item{}, fmt.Errorf("%w: item starts past end of data", ErrMalformedRlp)
	}
	prefix, err := d.byteAt(virt)
	if err != nil {
		return Item{}, err
	}

	var it Item
	switch {
	case prefix < emptyStringPrefix:
		it = Item{Kind: Byte, Start: virt, PayloadStart: virt, PayloadLen: 1}

	case prefix <= shortStringMax:
		n := uint64(prefix - emptyStringPrefix)
		it = Item{Kind: String, Start: virt, PayloadStart: virt + 1, PayloadLen: n}
		if n == 1 {
			b, err := d.byteAt(virt + 1)
			if err != nil {
				return Item{}, err
			}
			if b < emptyStringPrefix {
				return Item{}, fmt.Errorf("%w: single byte %#x needs no string header", ErrMalformedRlp, b)
			}
		}

	case prefix <= longStringMax:
		n, hdr, err := d.longLength(virt, prefix-longStringBase)
		if err != nil {
			return Item{}, err
		}
		it = Item{Kind: String, Start: virt, PayloadStart: virt + hdr, PayloadLen: n}

	case prefix <= shortListMax:
		it = Item{Kind: List, Start: virt, PayloadStart: virt + 1, PayloadLen: uint64(prefix - shortListBase)}

	default:
		n, hdr, err := d.longLength(virt, prefix-longListBase)
		if err != nil {
			return Item{}, err
		}
		it = Item{Kind: List, Start: virt, PayloadStart: virt + hdr, PayloadLen: n}
	}

	if it.End() < it.PayloadStart || it.End() > limit {
		return Item{}, fmt.Errorf("%w: item claims %d payload bytes past end of data", ErrMalformedRlp, it.PayloadLen)
	}
	return it, nil
}

// longLength reads a length-of-length header: lenOfLen big-endian bytes
// following the prefix at virt. The first length byte must be non-zero and
// the resulting length must require the long form.
func (d *Decoder) longLength(virt uint64, lenOfLen byte) (length, headerLen uint64, err error) {
	if lenOfLen > 8 {
		return 0, 0, fmt.Errorf("%w: length wider than 64 bits", ErrUnsupportedEncoding)
	}
	var n uint64
	for i := uint64(0); i < uint64(lenOfLen); i++ {
		b, err := d.byteAt(virt + 1 + i)
		if err != nil {
			return 0, 0, err
		}
		if i == 0 && b == 0 {
			return 0, 0, fmt.Errorf("%w: length bytes with leading zero", ErrMalformedRlp)
		}
		n = n<<8 | uint64(b)
	}
	if n <= shortFormMax {
		return 0, 0, fmt.Errorf("%w: long form used for %d byte payload", ErrMalformedRlp, n)
	}
	return n, 1 + uint64(lenOfLen), nil
}

// Scalar decodes it as a canonical unsigned scalar: at most 32 payload
// bytes, no leading zeros.
func (d *Decoder) Scalar(it Item) (uint256.Int, error) {
	switch it.Kind {
	case Byte:
		b, err := d.byteAt(it.PayloadStart)
		if err != nil {
			return uint256.Int{}, err
		}
		return *uint256.NewInt(uint64(b)), nil
	case String:
		if it.PayloadLen > 32 {
			return uint256.Int{}, fmt.Errorf("%w: scalar wider than 256 bits", ErrUnsupportedEncoding)
		}
		if it.PayloadLen == 0 {
			return uint256.Int{}, nil
		}
		first, err := d.byteAt(it.PayloadStart)
		if err != nil {
			return uint256.Int{}, err
		}
		if first == 0 {
			return uint256.Int{}, fmt.Errorf("%w: scalar with leading zero byte", ErrMalformedRlp)
		}
		v, ok := d.mem.GetRange(memory.Address{Context: d.ctx, Segment: d.seg, Virt: it.PayloadStart}, int(it.PayloadLen))
		if !ok {
			return uint256.Int{}, fmt.Errorf("%w: non-byte cell in scalar payload", ErrMalformedRlp)
		}
		return v, nil
	default:
		return uint256.Int{}, fmt.Errorf("%w: expected scalar, found list", ErrMalformedRlp)
	}
}

// Bytes materializes the item's payload. Intended for boundary hand-off to
// host-side consumers; kernel routines should work from the Item boundaries
// directly.
func (d *Decoder) Bytes(it Item) ([]byte, error) {
	b, ok := d.mem.Bytes(memory.Address{Context: d.ctx, Segment: d.seg, Virt: it.PayloadStart}, it.PayloadLen)
	if !ok {
		return nil, fmt.Errorf("%w: non-byte cell in payload", ErrMalformedRlp)
	}
	return b, nil
}

// ListItems decodes the immediate children of a list item. The children
// must tile the payload exactly; trailing or overhanging bytes are
// malformed.
func (d *Decoder) ListItems(it Item) ([]Item, error) {
	if it.Kind != List {
		return nil, fmt.Errorf("%w: expected list", ErrMalformedRlp)
	}
	var items []Item
	pos := it.PayloadStart
	end := it.End()
	for pos < end {
		child, err := d.Item(pos, end)
		if err != nil {
			return nil, err
		}
		items = append(items, child)
		pos = child.End()
	}
	if pos != end {
		return nil, fmt.Errorf("%w: list items overrun payload", ErrMalformedRlp)
	}
	return items, nil
}
