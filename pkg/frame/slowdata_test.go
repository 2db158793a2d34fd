package frame

import (
	"bytes"
	"testing"
)

func TestScrambleSlowData_IsInvolution(t *testing.T) {
	original := [SlowDataLength]byte{0x11, 0x22, 0x33}
	scrambled := ScrambleSlowData(original)
	if scrambled == original {
		t.Fatal("scrambled output should differ from input for a non-zero key")
	}

	descrambled := ScrambleSlowData(scrambled)
	if descrambled != original {
		t.Errorf("descramble(scramble(x)) = %v, want %v", descrambled, original)
	}
}

func TestSlowDataAssembler_AssemblesPairs(t *testing.T) {
	a := NewSlowDataAssembler()

	// A 6-byte block: type=2, length=4, payload "ABCD".
	raw := [slowDataBlockSize]byte{0x24, 'A', 'B', 'C', 'D', 0x00}
	var frag1, frag2 [SlowDataLength]byte
	copy(frag1[:], raw[:SlowDataLength])
	copy(frag2[:], raw[SlowDataLength:])

	scrambled1 := ScrambleSlowData(frag1)
	scrambled2 := ScrambleSlowData(frag2)

	_, ok, err := a.Feed(scrambled1)
	if err != nil {
		t.Fatalf("unexpected error on first fragment: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false after only one fragment")
	}

	block, ok, err := a.Feed(scrambled2)
	if err != nil {
		t.Fatalf("unexpected error on second fragment: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true once a pair has accumulated")
	}
	if block.Type != 2 {
		t.Errorf("block.Type = %d, want 2", block.Type)
	}
	if !bytes.Equal(block.Payload, []byte("ABCD")) {
		t.Errorf("block.Payload = %q, want %q", block.Payload, "ABCD")
	}
}

func TestSlowDataAssembler_MalformedLength(t *testing.T) {
	a := NewSlowDataAssembler()

	raw := [slowDataBlockSize]byte{0x0F, 0, 0, 0, 0, 0} // length nibble 0x0F > 5
	var frag1, frag2 [SlowDataLength]byte
	copy(frag1[:], raw[:SlowDataLength])
	copy(frag2[:], raw[SlowDataLength:])

	a.Feed(ScrambleSlowData(frag1))
	_, _, err := a.Feed(ScrambleSlowData(frag2))
	if err == nil {
		t.Fatal("expected malformed-length error")
	}
}

func TestSlowDataAssembler_ResetDropsPending(t *testing.T) {
	a := NewSlowDataAssembler()
	a.Feed(ScrambleSlowData([SlowDataLength]byte{1, 2, 3}))
	a.Reset()

	// Feeding a fresh pair after Reset should assemble cleanly rather
	// than pairing with the discarded fragment.
	raw := [slowDataBlockSize]byte{0x11, 'Z', 0, 0, 0, 0}
	var frag1, frag2 [SlowDataLength]byte
	copy(frag1[:], raw[:SlowDataLength])
	copy(frag2[:], raw[SlowDataLength:])

	a.Feed(ScrambleSlowData(frag1))
	block, ok, err := a.Feed(ScrambleSlowData(frag2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a completed block after reset and a fresh pair")
	}
	if block.Payload[0] != 'Z' {
		t.Errorf("block.Payload[0] = %q, want 'Z'", block.Payload[0])
	}
}
