package types

import (
	"bytes"
	"testing"
)

func TestHashSetBytesPadding(t *testing.T) {
	h := BytesToHash([]byte{0x01, 0x02})
	if h[30] != 0x01 || h[31] != 0x02 {
		t.Fatalf("short input not left-padded: %x", h)
	}
	for i := 0; i < 30; i++ {
		if h[i] != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, h[i])
		}
	}

	long := make([]byte, 40)
	for i := range long {
		long[i] = byte(i)
	}
	h = BytesToHash(long)
	if !bytes.Equal(h.Bytes(), long[8:]) {
		t.Fatalf("long input did not keep trailing bytes: %x", h)
	}
}

func TestAddressSetBytesPadding(t *testing.T) {
	a := BytesToAddress([]byte{0xFF})
	if a[19] != 0xFF {
		t.Fatalf("short input not left-padded: %x", a)
	}

	long := make([]byte, 32)
	for i := range long {
		long[i] = byte(i)
	}
	a = BytesToAddress(long)
	if !bytes.Equal(a.Bytes(), long[12:]) {
		t.Fatalf("long input did not keep trailing bytes: %x", a)
	}
}

func TestHashAddressTruncation(t *testing.T) {
	var h Hash
	for i := range h {
		h[i] = byte(i)
	}
	a := h.Address()
	if !bytes.Equal(a.Bytes(), h[12:]) {
		t.Fatalf("Address() = %x, want %x", a, h[12:])
	}
}

func TestHexRoundTrip(t *testing.T) {
	const s = "0x00000000000000000000000000000000deadbeef"
	a := HexToAddress(s)
	if a.Hex() != s {
		t.Fatalf("Hex = %s, want %s", a.Hex(), s)
	}
	h := HexToHash("0x42")
	if h[31] != 0x42 {
		t.Fatalf("HexToHash short form = %x", h)
	}
	if !HexToHash("").IsZero() {
		t.Fatal("empty hex is not zero")
	}
}

func TestIsZero(t *testing.T) {
	if !(Hash{}).IsZero() || !(Address{}).IsZero() {
		t.Fatal("zero values not reported zero")
	}
	if HexToAddress("0x01").IsZero() {
		t.Fatal("nonzero address reported zero")
	}
}
