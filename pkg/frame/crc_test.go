package frame

import "testing"

func TestCrc16CCITT_KnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE("123456789") = 0x29B1, the standard check
	// value for this polynomial/init/xorout combination.
	got := crc16CCITT([]byte("123456789"))
	if got != 0x29B1 {
		t.Errorf("crc16CCITT = %#04x, want %#04x", got, 0x29B1)
	}
}

func TestCrc16CCITT_DifferentInputsDiffer(t *testing.T) {
	a := crc16CCITT([]byte{0x01, 0x02, 0x03})
	b := crc16CCITT([]byte{0x01, 0x02, 0x04})
	if a == b {
		t.Error("expected different CRCs for different inputs")
	}
}
