package slowdata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dstargw/core/pkg/frame"
)

// gpsaPrefix marks a GPS-A text frame (spec §3 "text ($$CRC GPS-A)").
const gpsaPrefix = "$$CRC"

// aprsOverlay and aprsSymbol are appended to a GPS-A position report
// per spec §4.2 ("with overlay character \\ and symbol K appended").
const (
	aprsOverlay = '\\'
	aprsSymbol  = 'K'
)

// GPSACollector assembles Icom's GPS-A text frames, grounded on
// original_source's GPSACollector.h.
type GPSACollector struct {
	myCall  string
	state   state
	buf     []byte
	line    string
	haveOut bool
}

func NewGPSACollector() *GPSACollector {
	return &GPSACollector{state: stateIdle}
}

func (c *GPSACollector) SetMyCall(callsign string) { c.myCall = callsign }

func (c *GPSACollector) DataType() DataType { return DataTypeGPSA }

func (c *GPSACollector) WriteData(b byte) bool {
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
		if b == '$' {
			c.buf = []byte{'$'}
			c.state = stateAccumulating
		}
		return false
	}
}

func (c *GPSACollector) validate() bool {
	sentence := string(c.buf)

	if !strings.HasPrefix(sentence, gpsaPrefix) {
		c.Reset()
		return false
	}

	rest := sentence[len(gpsaPrefix):]
	if len(rest) < 5 || rest[4] != ',' {
		c.Reset()
		return false
	}

	wantCRC, err := strconv.ParseUint(rest[:4], 16, 16)
	if err != nil {
		c.Reset()
		return false
	}

	payload := rest[5:] // includes the trailing \r\n
	got := frame.CRC16CCITT([]byte(payload))
	if got != uint16(wantCRC) {
		c.Reset()
		return false
	}

	c.state = stateComplete
	body := strings.TrimRight(payload, "\r\n")
	c.line = fmt.Sprintf("%s>APDPRS,DSTAR*:%s%c%c", string(frame.PadCallsign(c.myCall, frame.CallsignLength)), body, aprsOverlay, aprsSymbol)
	c.haveOut = true
	c.state = stateValidated
	return true
}

func (c *GPSACollector) GetData() (string, bool) {
	if !c.haveOut {
		return "", false
	}
	return c.line, true
}

func (c *GPSACollector) Sync() { c.Reset() }

func (c *GPSACollector) Reset() {
	c.state = stateIdle
	c.buf = nil
	c.line = ""
	c.haveOut = false
}
