package frame

import "fmt"

// ScrambleSlowData XORs a 3-byte slow-data fragment with the fixed
// key (spec §4.1). The operation is its own inverse, so the same
// function scrambles on send and descrambles on receive.
func ScrambleSlowData(block [SlowDataLength]byte) [SlowDataLength]byte {
	var out [SlowDataLength]byte
	for i := range block {
		out[i] = block[i] ^ slowDataKey[i]
	}
	return out
}

// SlowDataBlock is one reassembled 6-byte logical block: a type
// nibble and up to 5 payload bytes (spec §4.1, §3 "Slow-data buffer").
type SlowDataBlock struct {
	Type    byte
	Payload []byte
}

// SlowDataAssembler concatenates consecutive descrambled 3-byte
// fragments into 6-byte logical blocks and decodes their type/length
// prefix. It holds no more than one pending fragment at a time.
type SlowDataAssembler struct {
	pending     [SlowDataLength]byte
	havePending bool
}

// NewSlowDataAssembler returns an assembler ready to receive the
// first fragment of a stream.
func NewSlowDataAssembler() *SlowDataAssembler {
	return &SlowDataAssembler{}
}

// Reset discards any pending fragment. Called on sync frames, which
// reset the slow-data assembler (spec §4.1).
func (a *SlowDataAssembler) Reset() {
	a.havePending = false
}

// Feed descrambles one fragment and, once a pair has accumulated,
// returns the decoded block. ok is false while only the first half of
// a pair has been seen. A length nibble above MaxSlowDataBlockLength
// yields ErrMalformed; the caller should Reset and continue rather
// than dropping the carrying voice frame (spec §4.1 failure model).
func (a *SlowDataAssembler) Feed(fragment [SlowDataLength]byte) (block SlowDataBlock, ok bool, err error) {
	descrambled := ScrambleSlowData(fragment)

	if !a.havePending {
		a.pending = descrambled
		a.havePending = true
		return SlowDataBlock{}, false, nil
	}
	a.havePending = false

	var raw [slowDataBlockSize]byte
	copy(raw[:SlowDataLength], a.pending[:])
	copy(raw[SlowDataLength:], descrambled[:])

	length := raw[0] & 0x0F
	if length > MaxSlowDataBlockLength {
		return SlowDataBlock{}, false, fmt.Errorf("%w: length %d", ErrMalformed, length)
	}

	payload := make([]byte, length)
	copy(payload, raw[1:1+length])

	return SlowDataBlock{Type: raw[0] >> 4, Payload: payload}, true, nil
}
