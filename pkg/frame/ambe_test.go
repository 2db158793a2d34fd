package frame

import (
	"bytes"
	"testing"
)

func TestAMBEDatagram_RoundTrip(t *testing.T) {
	d := &AMBEDatagram{
		StreamID: 0x1234,
		Seq:      5,
		Voice:    [VoiceLength]byte{1, 2, 3, 4, 5, 6, 7, 8, 9},
		SlowData: [SlowDataLength]byte{0xAA, 0xBB, 0xCC},
	}

	encoded := d.Encode()
	if len(encoded) != AMBEDatagramSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), AMBEDatagramSize)
	}

	parsed, err := ParseAMBEDatagram(encoded)
	if err != nil {
		t.Fatalf("ParseAMBEDatagram returned error: %v", err)
	}

	if parsed.StreamID != d.StreamID {
		t.Errorf("StreamID = %#04x, want %#04x", parsed.StreamID, d.StreamID)
	}
	if parsed.Seq != d.Seq {
		t.Errorf("Seq = %d, want %d", parsed.Seq, d.Seq)
	}
	if !bytes.Equal(parsed.Voice[:], d.Voice[:]) {
		t.Errorf("Voice = %v, want %v", parsed.Voice, d.Voice)
	}
	if !bytes.Equal(parsed.SlowData[:], d.SlowData[:]) {
		t.Errorf("SlowData = %v, want %v", parsed.SlowData, d.SlowData)
	}
}

func TestAMBEDatagram_EndFlag(t *testing.T) {
	d := &AMBEDatagram{Seq: 3}
	if d.IsEnd() {
		t.Error("expected IsEnd false for seq without end flag")
	}
	if d.SeqValue() != 3 {
		t.Errorf("SeqValue = %d, want 3", d.SeqValue())
	}

	d.Seq = 3 | SeqEndFlag
	if !d.IsEnd() {
		t.Error("expected IsEnd true once SeqEndFlag is set")
	}
	if d.SeqValue() != 3 {
		t.Errorf("SeqValue = %d, want 3 with end flag masked off", d.SeqValue())
	}
}

func TestAMBEDatagram_IsSync(t *testing.T) {
	cases := map[byte]bool{
		0:  true,
		1:  false,
		20: false,
		21: true,
	}
	for seq, want := range cases {
		d := &AMBEDatagram{Seq: seq}
		if got := d.IsSync(); got != want {
			t.Errorf("seq %d: IsSync() = %v, want %v", seq, got, want)
		}
	}
}

func TestParseAMBEDatagram_ShortBuffer(t *testing.T) {
	_, err := ParseAMBEDatagram(make([]byte, AMBEDatagramSize-1))
	if err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestSyncPositions(t *testing.T) {
	got := SyncPositions(50)
	want := []int{0, 21, 42}
	if len(got) != len(want) {
		t.Fatalf("SyncPositions(50) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SyncPositions(50)[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
