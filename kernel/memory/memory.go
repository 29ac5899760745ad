// Package memory implements the kernel's segmented memory: a conceptually
// infinite, zero-initialized store of 256-bit cells addressed by
// (context, segment, offset) triples. Segments are grown on demand; reads
// from unwritten cells yield zero and no offset is out of bounds. The
// surrounding proving system charges for the highest offset touched, so the
// kernel itself never raises a bounds error.
package memory

import (
	"sort"

	"github.com/holiman/uint256"
)

// Address identifies a single memory cell. Addresses are always resolved
// relative to a context; context 0 is reserved for kernel-internal use.
type Address struct {
	Context int
	Segment Segment
	Virt    uint64
}

// NewAddress returns the address of cell virt in the given context segment.
func NewAddress(context int, segment Segment, virt uint64) Address {
	return Address{Context: context, Segment: segment, Virt: virt}
}

// WriteObserver is invoked for every cell write, in execution order. It is
// how the trace layer sees memory mutations; it must not mutate memory.
type WriteObserver func(addr Address, value *uint256.Int)

// contextState holds the segment arenas of one execution context.
type contextState struct {
	segments [numSegments][]uint256.Int
}

// State is the memory of one kernel run. It is not safe for concurrent use;
// each run owns its State exclusively.
type State struct {
	contexts []*contextState
	observer WriteObserver
}

// New returns an empty memory state.
func New() *State {
	return &State{}
}

// SetObserver registers the write observer. A nil observer disables
// observation.
func (s *State) SetObserver(o WriteObserver) {
	s.observer = o
}

// context returns the state of ctx, allocating intermediate contexts on
// demand.
func (s *State) context(ctx int) *contextState {
	for len(s.contexts) <= ctx {
		s.contexts = append(s.contexts, &contextState{})
	}
	return s.contexts[ctx]
}

// Get returns the value of the cell at addr. Unwritten cells read as zero.
func (s *State) Get(addr Address) uint256.Int {
	if addr.Context < 0 || addr.Context >= len(s.contexts) {
		return uint256.Int{}
	}
	seg := s.contexts[addr.Context].segments[addr.Segment]
	if addr.Virt >= uint64(len(seg)) {
		return uint256.Int{}
	}
	return seg[addr.Virt]
}

// Set writes value into the cell at addr, growing the segment as needed.
func (s *State) Set(addr Address, value *uint256.Int) {
	c := s.context(addr.Context)
	seg := c.segments[addr.Segment]
	for uint64(len(seg)) <= addr.Virt {
		seg = append(seg, uint256.Int{})
	}
	seg[addr.Virt] = *value
	c.segments[addr.Segment] = seg
	if s.observer != nil {
		s.observer(addr, value)
	}
}

// SetByte writes a single byte value into the cell at addr.
func (s *State) SetByte(addr Address, b byte) {
	v := uint256.NewInt(uint64(b))
	s.Set(addr, v)
}

// GetByte reads the cell at addr as a byte. ok is false if the cell holds a
// value outside [0, 255], which indicates a kernel bug (a word written where
// a byte-oriented region was expected).
func (s *State) GetByte(addr Address) (byte, bool) {
	v := s.Get(addr)
	if !v.IsUint64() || v.Uint64() > 0xff {
		return 0, false
	}
	return byte(v.Uint64()), true
}

// SetRange writes the low n bytes of value, in big-endian order, into the n
// consecutive cells starting at addr (one byte per cell). n must be in
// [1, 32]. Cells outside [addr.Virt, addr.Virt+n) are untouched.
func (s *State) SetRange(addr Address, n int, value *uint256.Int) {
	var buf [32]byte
	value.WriteToArray32(&buf)
	for i := 0; i < n; i++ {
		s.SetByte(Address{addr.Context, addr.Segment, addr.Virt + uint64(i)}, buf[32-n+i])
	}
}

// GetRange packs the n consecutive byte cells starting at addr into a word,
// big-endian (the first cell becomes the most significant byte of the
// result's low n bytes). ok is false if any cell is not a byte.
func (s *State) GetRange(addr Address, n int) (uint256.Int, bool) {
	var out uint256.Int
	for i := 0; i < n; i++ {
		b, ok := s.GetByte(Address{addr.Context, addr.Segment, addr.Virt + uint64(i)})
		if !ok {
			return uint256.Int{}, false
		}
		out.Lsh(&out, 8)
		var cell uint256.Int
		cell.SetUint64(uint64(b))
		out.Or(&out, &cell)
	}
	return out, true
}

// SetBytes writes b into consecutive byte cells starting at addr.
func (s *State) SetBytes(addr Address, b []byte) {
	for i, v := range b {
		s.SetByte(Address{addr.Context, addr.Segment, addr.Virt + uint64(i)}, v)
	}
}

// Bytes reads n consecutive byte cells starting at addr. ok is false if any
// cell is not a byte.
func (s *State) Bytes(addr Address, n uint64) ([]byte, bool) {
	out := make([]byte, n)
	for i := uint64(0); i < n; i++ {
		b, ok := s.GetByte(Address{addr.Context, addr.Segment, addr.Virt + i})
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// SegmentLen returns the number of cells allocated in the given context
// segment (the highest written offset plus one, or zero).
func (s *State) SegmentLen(ctx int, segment Segment) uint64 {
	if ctx < 0 || ctx >= len(s.contexts) {
		return 0
	}
	return uint64(len(s.contexts[ctx].segments[segment]))
}

// Cell pairs an address with its value in a memory snapshot.
type Cell struct {
	Addr  Address
	Value uint256.Int
}

// Snapshot enumerates all non-zero cells in deterministic address order
// (context, then segment, then offset). This is the final-state view handed
// to the proving system; two identical runs produce identical snapshots.
func (s *State) Snapshot() []Cell {
	var cells []Cell
	for ctx, c := range s.contexts {
		if c == nil {
			continue
		}
		for seg := Segment(0); seg < numSegments; seg++ {
			for virt, v := range c.segments[seg] {
				if !v.IsZero() {
					cells = append(cells, Cell{
						Addr:  Address{ctx, seg, uint64(virt)},
						Value: v,
					})
				}
			}
		}
	}
	// Construction order above is already (context, segment, offset), but
	// sort anyway so the contract does not depend on iteration details.
	sort.Slice(cells, func(i, j int) bool {
		a, b := cells[i].Addr, cells[j].Addr
		if a.Context != b.Context {
			return a.Context < b.Context
		}
		if a.Segment != b.Segment {
			return a.Segment < b.Segment
		}
		return a.Virt < b.Virt
	})
	return cells
}
