package slowdata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dstargw/core/pkg/frame"
)

// NMEACollector assembles one NMEA sentence type (e.g. "$GPRMC"),
// matching the teacher's generalized text-collector role through
// original_source's CNMEASentenceCollector (not individually kept,
// but named by CAPRSCollector's constructor — spec §4.2).
type NMEACollector struct {
	prefix  string
	myCall  string
	state   state
	buf     []byte
	line    string
	haveOut bool
}

// NewNMEACollector returns a collector that only accepts sentences
// beginning with prefix, e.g. "$GPRMC".
func NewNMEACollector(prefix string) *NMEACollector {
	return &NMEACollector{prefix: prefix, state: stateIdle}
}

func (c *NMEACollector) SetMyCall(callsign string) { c.myCall = callsign }

func (c *NMEACollector) DataType() DataType { return DataTypeNMEA }

// WriteData feeds one descrambled byte into the assembler. It returns
// true exactly when this byte completes and validates a sentence.
func (c *NMEACollector) WriteData(b byte) bool {
	switch c.state {
	case stateIdle:
		if b == '$' {
			c.buf = []byte{'$'}
			c.state = stateAccumulating
		}
		return false

	case stateAccumulating:
		c.buf = append(c.buf, b)
		if len(c.buf) > maxSentenceLength {
			c.Reset()
			return false
		}
		if hasCRLFSuffix(c.buf) {
			return c.validate()
		}
		return false

	default:
		// COMPLETE/VALIDATED: a fresh sentence starts a new cycle.
		if b == '$' {
			c.buf = []byte{'$'}
			c.state = stateAccumulating
		}
		return false
	}
}

func hasCRLFSuffix(buf []byte) bool {
	return len(buf) >= 2 && buf[len(buf)-2] == '\r' && buf[len(buf)-1] == '\n'
}

func (c *NMEACollector) validate() bool {
	sentence := string(c.buf)

	if !strings.HasPrefix(sentence, c.prefix) {
		c.Reset()
		return false
	}

	star := strings.IndexByte(sentence, '*')
	if star < 1 || star+4 > len(sentence) {
		c.Reset()
		return false
	}

	wantHex := sentence[star+1 : star+3]
	want, err := strconv.ParseUint(wantHex, 16, 8)
	if err != nil {
		c.Reset()
		return false
	}

	var got byte
	for i := 1; i < star; i++ {
		got ^= sentence[i]
	}

	if got != byte(want) {
		c.Reset()
		return false
	}

	c.state = stateComplete
	c.line = fmt.Sprintf("%s>APDPRS,DSTAR*:%s", string(frame.PadCallsign(c.myCall, frame.CallsignLength)), sentence)
	c.haveOut = true
	c.state = stateValidated
	return true
}

func (c *NMEACollector) GetData() (string, bool) {
	if !c.haveOut {
		return "", false
	}
	return c.line, true
}

func (c *NMEACollector) Sync() { c.Reset() }

func (c *NMEACollector) Reset() {
	c.state = stateIdle
	c.buf = nil
	c.line = ""
	c.haveOut = false
}
