package slowdata

import (
	"strings"
	"testing"
)

func TestAPRSCollector_RoutesToMatchingSubCollector(t *testing.T) {
	c := NewAPRSCollector()
	c.WriteHeader("G4KLX")

	var complete bool
	for i := 0; i < len(sampleRMC); i++ {
		if c.WriteData(sampleRMC[i]) {
			complete = true
		}
	}

	if !complete {
		t.Fatal("expected WriteData to report completion once the RMC sentence validates")
	}

	line, ok := c.GetData(DataTypeNMEA)
	if !ok {
		t.Fatal("expected a completed NMEA line")
	}
	if !strings.HasPrefix(line, "G4KLX   >APDPRS,DSTAR*:$GPRMC,") {
		t.Errorf("unexpected line: %q", line)
	}

	if _, ok := c.GetData(DataTypeGPSA); ok {
		t.Fatal("GPS-A collector should not have produced a line")
	}
}

func TestAPRSCollector_ResetAndSync(t *testing.T) {
	c := NewAPRSCollector()
	c.WriteHeader("G4KLX")

	for i := 0; i < len(sampleRMC); i++ {
		c.WriteData(sampleRMC[i])
	}
	c.Reset()

	if _, ok := c.GetData(DataTypeNMEA); ok {
		t.Fatal("expected Reset to clear every sub-collector")
	}

	// Sync should be safe to call with nothing pending.
	c.Sync()
}
