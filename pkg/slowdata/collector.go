// Package slowdata assembles NMEA and GPS-A sentences out of the
// byte stream pkg/frame demultiplexes from the D-Star slow-data
// channel, validates their checksums, and formats them as APRS-IS
// position lines (spec §4.2), grounded on the collector hierarchy in
// original_source's SlowDataCollector.h/GPSACollector.h/APRSCollector.cpp.
package slowdata

// DataType distinguishes the side-channel content a Collector handles
// (spec §3 "Slow-data buffer": text/GPS-A, NMEA, or DTMF — DTMF carries
// no APRS payload and has no Collector implementation here).
type DataType byte

const (
	DataTypeNMEA DataType = iota
	DataTypeGPSA
)

// state is the per-collector assembly state machine (spec §3
// "Collector state": IDLE → ACCUMULATING → COMPLETE → VALIDATED).
type state int

const (
	stateIdle state = iota
	stateAccumulating
	stateComplete
	stateValidated
)

// maxSentenceLength bounds a single accumulating sentence; anything
// longer without a terminating CRLF is considered a framing error and
// resets the collector rather than growing without bound.
const maxSentenceLength = 120

// Collector consumes descrambled slow-data bytes one at a time and
// emits exactly one complete, checksum-validated APRS-IS line when
// ready (spec §4.2).
type Collector interface {
	SetMyCall(callsign string)
	WriteData(b byte) bool
	Sync()
	Reset()
	GetData() (line string, ok bool)
	DataType() DataType
}
