package frame

import (
	"encoding/binary"
	"fmt"
)

// Header is the 41-byte D-Star header (spec §3 "Header").
type Header struct {
	Flags    [FlagsLength]byte
	RPT2     string // 8 bytes, space-padded
	RPT1     string // 8 bytes, space-padded
	YourCall string // 8 bytes, space-padded
	MyCall1  string // 8 bytes, space-padded
	MyCall2  string // 4 bytes, space-padded
}

// ParseHeader parses a 41-byte buffer into a Header, validating the
// trailing CRC over the 39 preceding bytes.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) != HeaderSize {
		return nil, fmt.Errorf("%w: header is %d bytes, want %d", ErrShortBuffer, len(data), HeaderSize)
	}

	want := binary.LittleEndian.Uint16(data[headerOffsetCRC : headerOffsetCRC+2])
	got := crc16CCITT(data[:headerBodySize])
	if want != got {
		return nil, fmt.Errorf("%w: got %#04x want %#04x", ErrCRC, got, want)
	}

	h := &Header{}
	copy(h.Flags[:], data[headerOffsetFlags:headerOffsetFlags+FlagsLength])
	h.RPT2 = string(data[headerOffsetRPT2 : headerOffsetRPT2+CallsignLength])
	h.RPT1 = string(data[headerOffsetRPT1 : headerOffsetRPT1+CallsignLength])
	h.YourCall = string(data[headerOffsetYourCall : headerOffsetYourCall+CallsignLength])
	h.MyCall1 = string(data[headerOffsetMyCall1 : headerOffsetMyCall1+CallsignLength])
	h.MyCall2 = string(data[headerOffsetMyCall2 : headerOffsetMyCall2+MyCall2Length])

	return h, nil
}

// Encode serializes the header to its 41-byte wire form, computing
// the trailing CRC over the preceding 39 bytes.
func (h *Header) Encode() []byte {
	data := make([]byte, HeaderSize)

	copy(data[headerOffsetFlags:headerOffsetFlags+FlagsLength], h.Flags[:])
	copy(data[headerOffsetRPT2:headerOffsetRPT2+CallsignLength], PadCallsign(h.RPT2, CallsignLength))
	copy(data[headerOffsetRPT1:headerOffsetRPT1+CallsignLength], PadCallsign(h.RPT1, CallsignLength))
	copy(data[headerOffsetYourCall:headerOffsetYourCall+CallsignLength], PadCallsign(h.YourCall, CallsignLength))
	copy(data[headerOffsetMyCall1:headerOffsetMyCall1+CallsignLength], PadCallsign(h.MyCall1, CallsignLength))
	copy(data[headerOffsetMyCall2:headerOffsetMyCall2+MyCall2Length], PadCallsign(h.MyCall2, MyCall2Length))

	crc := crc16CCITT(data[:headerBodySize])
	binary.LittleEndian.PutUint16(data[headerOffsetCRC:headerOffsetCRC+2], crc)

	return data
}

// PadCallsign right-pads s with spaces to width, truncating if s is
// already longer (spec §3: "all comparisons and map keys use the
// space-padded form").
func PadCallsign(s string, width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}
