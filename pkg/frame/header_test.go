package frame

import "testing"

func sampleHeader() *Header {
	return &Header{
		Flags:    [FlagsLength]byte{0x00, 0x00, 0x00},
		RPT2:     "XRF001 G",
		RPT1:     "XRF001 C",
		YourCall: "CQCQCQ  ",
		MyCall1:  "G4KLX   ",
		MyCall2:  "G4KL",
	}
}

func TestHeader_RoundTrip(t *testing.T) {
	h := sampleHeader()
	encoded := h.Encode()

	if len(encoded) != HeaderSize {
		t.Fatalf("encoded header is %d bytes, want %d", len(encoded), HeaderSize)
	}

	parsed, err := ParseHeader(encoded)
	if err != nil {
		t.Fatalf("ParseHeader returned error: %v", err)
	}

	if *parsed != *h {
		t.Errorf("round trip mismatch: got %+v, want %+v", *parsed, *h)
	}
}

func TestHeader_CrcMismatch(t *testing.T) {
	h := sampleHeader()
	encoded := h.Encode()
	encoded[headerOffsetCRC] ^= 0xFF

	_, err := ParseHeader(encoded)
	if err == nil {
		t.Fatal("expected CRC error, got nil")
	}
}

func TestHeader_ShortBuffer(t *testing.T) {
	_, err := ParseHeader(make([]byte, HeaderSize-1))
	if err == nil {
		t.Fatal("expected short-buffer error, got nil")
	}
}

func TestPadCallsign(t *testing.T) {
	padded := PadCallsign("W1AW", CallsignLength)
	if len(padded) != CallsignLength {
		t.Fatalf("padded length = %d, want %d", len(padded), CallsignLength)
	}
	if string(padded) != "W1AW    " {
		t.Errorf("padded = %q, want %q", string(padded), "W1AW    ")
	}
}

func TestPadCallsign_Truncates(t *testing.T) {
	padded := PadCallsign("TOOLONGCALL", CallsignLength)
	if len(padded) != CallsignLength {
		t.Fatalf("padded length = %d, want %d", len(padded), CallsignLength)
	}
	if string(padded) != "TOOLONGC" {
		t.Errorf("padded = %q, want %q", string(padded), "TOOLONGC")
	}
}
