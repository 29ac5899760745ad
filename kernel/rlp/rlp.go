// Package rlp implements the canonical recursive byte-serialization codec
// over kernel memory. Unlike a conventional codec it does not operate on Go
// byte slices: encoding appends byte cells to a raw-bytes segment past a
// reserved prefix zone and finalizes by writing the computed length header
// backwards into that zone, and decoding walks byte cells in place,
// returning field boundaries without copying.
package rlp

import "errors"

// MaxPrefixSize is the size of the reserved header zone at the start of an
// RLP buffer. The longest possible header is one type byte plus eight
// big-endian length bytes.
const MaxPrefixSize = 9

// Prefix constants of the RLP wire format.
const (
	emptyStringPrefix = 0x80 // also the base of short string headers
	shortStringMax    = 0xb7
	longStringBase    = 0xb7
	longStringMax     = 0xbf
	shortListBase     = 0xc0
	shortListMax      = 0xf7
	longListBase      = 0xf7

	// shortFormMax is the largest payload length encodable in the short
	// single-byte header form.
	shortFormMax = 55
)

var (
	// ErrMalformedRlp is returned when a header is inconsistent with the
	// data that follows it, or when a value uses a non-canonical encoding
	// (short form where a single byte suffices, length bytes with leading
	// zeros, long form below 56 bytes, scalars with leading zeros).
	ErrMalformedRlp = errors.New("rlp: malformed encoding")

	// ErrUnsupportedEncoding is returned when the input requires a
	// representation outside the supported canonical forms, such as a
	// scalar wider than 256 bits.
	ErrUnsupportedEncoding = errors.New("rlp: unsupported encoding")
)

// Kind represents the type of an RLP item.
type Kind int

const (
	// Byte is a single byte in [0x00, 0x7f], encoded as itself.
	Byte Kind = iota

	// String is a byte string (including the empty string).
	String

	// List is a recursive list of items.
	List
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Byte:
		return "Byte"
	case String:
		return "String"
	case List:
		return "List"
	default:
		return "InvalidKind"
	}
}
