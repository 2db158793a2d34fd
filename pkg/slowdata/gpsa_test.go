package slowdata

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dstargw/core/pkg/frame"
)

// buildGPSALine constructs a well-formed "$$CRC<hex4>,<payload>\r\n"
// frame the way an encoder would, computing the CRC the validator
// will check (spec §8 "GPS-A CRC" round-trip property).
func buildGPSALine(payload string) string {
	body := payload + "\r\n"
	crc := frame.CRC16CCITT([]byte(body))
	return fmt.Sprintf("$$CRC%04X,%s", crc, body)
}

func TestGPSACollector_AcceptsValidFrame(t *testing.T) {
	line := buildGPSALine("G4KLX,4807.038N,01131.000E,00100")
	c := NewGPSACollector()
	c.SetMyCall("G4KLX")

	var complete bool
	for i := 0; i < len(line); i++ {
		if c.WriteData(line[i]) {
			complete = true
		}
	}

	if !complete {
		t.Fatal("expected the final byte to complete the frame")
	}

	out, ok := c.GetData()
	if !ok {
		t.Fatal("expected GetData to return a line")
	}
	if !strings.HasPrefix(out, "G4KLX   >APDPRS,DSTAR*:G4KLX,4807.038N") {
		t.Errorf("unexpected line: %q", out)
	}
	if !strings.HasSuffix(out, string([]byte{aprsOverlay, aprsSymbol})) {
		t.Errorf("expected overlay+symbol suffix, got: %q", out)
	}
}

func TestGPSACollector_RejectsBadCRC(t *testing.T) {
	body := "G4KLX,4807.038N,01131.000E,00100\r\n"
	badCRC := frame.CRC16CCITT([]byte(body)) ^ 0xFFFF
	corrupted := fmt.Sprintf("$$CRC%04X,%s", badCRC, body) // CRC field does not match the payload
	c := NewGPSACollector()
	c.SetMyCall("G4KLX")

	for i := 0; i < len(corrupted); i++ {
		c.WriteData(corrupted[i])
	}

	if _, ok := c.GetData(); ok {
		t.Fatal("expected no data for a malformed frame")
	}
}

func TestGPSACollector_RejectsTamperedPayload(t *testing.T) {
	line := buildGPSALine("G4KLX,4807.038N,01131.000E,00100")
	tampered := strings.Replace(line, "00100", "99999", 1)
	c := NewGPSACollector()
	c.SetMyCall("G4KLX")

	for i := 0; i < len(tampered); i++ {
		c.WriteData(tampered[i])
	}

	if _, ok := c.GetData(); ok {
		t.Fatal("expected CRC mismatch after tampering with payload")
	}
}
