package trace

import (
	"encoding/binary"
	"errors"
	"fmt"

	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/eth2030/zkevm/metrics"
)

// Commitment sizing. Rows are serialized to a fixed width, packed 31 bytes
// per field element (a zero lead byte keeps every element a canonical BLS
// scalar), and distributed over 4096-element blobs.
const (
	// RowSize is the serialized width of one event row.
	RowSize = 80

	fieldElementSize = 32
	bytesPerElement  = 31
	elementsPerBlob  = 4096
	blobCapacity     = bytesPerElement * elementsPerBlob
)

// ErrEmptyLog is returned when committing to a log with no events.
var ErrEmptyLog = errors.New("trace: cannot commit to empty log")

// Committer computes KZG commitments over serialized trace logs using the
// Ethereum ceremony trusted setup.
type Committer struct {
	ctx *goethkzg.Context
}

// NewCommitter initializes a Committer. Loading the setup takes a few
// seconds; callers should reuse one Committer across runs.
func NewCommitter() (*Committer, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, fmt.Errorf("trace: initializing kzg context: %w", err)
	}
	return &Committer{ctx: ctx}, nil
}

// serializeEvent renders one row. The layout is fixed so that identical
// runs serialize to identical bytes: seq, kind, pc, context, segment,
// offset, value, tape index.
func serializeEvent(ev *Event, out []byte) {
	_ = out[RowSize-1]
	binary.BigEndian.PutUint64(out[0:8], ev.Seq)
	out[8] = byte(ev.Kind)
	binary.BigEndian.PutUint64(out[9:17], ev.Pc)
	binary.BigEndian.PutUint64(out[17:25], uint64(ev.Addr.Context))
	out[25] = byte(ev.Addr.Segment)
	binary.BigEndian.PutUint64(out[26:34], ev.Addr.Virt)
	val := ev.Value.Bytes32()
	copy(out[34:66], val[:])
	binary.BigEndian.PutUint64(out[66:74], uint64(ev.Index))
	// Channel names are drawn from a fixed set; record a compact tag
	// rather than the string to keep rows fixed width.
	binary.BigEndian.PutUint32(out[74:78], channelTag(ev.Channel))
	// Two spare bytes, zero.
}

// channelTag maps a channel name to a stable 32-bit tag.
func channelTag(name string) uint32 {
	var tag uint32
	for i := 0; i < len(name) && i < 4; i++ {
		tag = tag<<8 | uint32(name[i])
	}
	return tag
}

// Serialize renders the whole log as fixed-width rows.
func Serialize(l *Log) []byte {
	out := make([]byte, len(l.events)*RowSize)
	for i := range l.events {
		serializeEvent(&l.events[i], out[i*RowSize:(i+1)*RowSize])
	}
	return out
}

// Commit serializes the log, packs it into blobs and returns one 48-byte
// KZG commitment per blob. The result is the public hand-off artifact
// consumed by the outer proving layer; identical logs yield identical
// commitments.
func (c *Committer) Commit(l *Log) ([]goethkzg.KZGCommitment, error) {
	if l.Len() == 0 {
		return nil, ErrEmptyLog
	}
	data := Serialize(l)

	var commitments []goethkzg.KZGCommitment
	for off := 0; off < len(data); off += blobCapacity {
		end := off + blobCapacity
		if end > len(data) {
			end = len(data)
		}
		blob := packBlob(data[off:end])
		comm, err := c.ctx.BlobToKZGCommitment(blob, 0)
		if err != nil {
			return nil, fmt.Errorf("trace: committing blob %d: %w", off/blobCapacity, err)
		}
		commitments = append(commitments, comm)
	}
	metrics.TraceEvents.Observe(float64(l.Len()))
	metrics.TraceCommitments.Add(int64(len(commitments)))
	return commitments, nil
}

// packBlob packs up to blobCapacity bytes into one blob, 31 bytes per
// field element with a zero lead byte so every element is canonical.
func packBlob(data []byte) *goethkzg.Blob {
	var blob goethkzg.Blob
	for i := 0; len(data) > 0; i++ {
		n := len(data)
		if n > bytesPerElement {
			n = bytesPerElement
		}
		copy(blob[i*fieldElementSize+1:], data[:n])
		data = data[n:]
	}
	return &blob
}
