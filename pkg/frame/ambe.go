package frame

import (
	"encoding/binary"
	"fmt"
)

// AMBEDatagram is one voice frame: a stream id, a sequence counter
// with an end-of-stream flag in its high bit, 9 bytes of opaque AMBE
// voice, and 3 bytes of scrambled slow data (spec §3 "AMBE datagram").
//
// The core never decodes or re-encodes the voice payload (spec §1
// Non-goals) — it is carried through unchanged.
type AMBEDatagram struct {
	StreamID uint16
	Seq      byte // low 7 bits are the counter, SeqEndFlag marks the last frame
	Voice    [VoiceLength]byte
	SlowData [SlowDataLength]byte
}

// SeqValue returns the sequence counter with the end-flag bit masked off.
func (d *AMBEDatagram) SeqValue() byte { return d.Seq & seqValueMask }

// IsEnd reports whether this datagram terminates its stream.
func (d *AMBEDatagram) IsEnd() bool { return d.Seq&SeqEndFlag != 0 }

// IsSync reports whether this datagram falls on a sync-frame boundary:
// seq 0 every SyncCadence frames (spec §4.1).
func (d *AMBEDatagram) IsSync() bool { return d.SeqValue()%SyncCadence == 0 }

// ParseAMBEDatagram parses the logical (protocol-independent) AMBE
// datagram layout. Reflector-specific wire wrapping (DExtra/DCS/D-Plus
// framing) is applied by pkg/reflector around this core codec.
func ParseAMBEDatagram(data []byte) (*AMBEDatagram, error) {
	if len(data) != AMBEDatagramSize {
		return nil, fmt.Errorf("%w: ambe datagram is %d bytes, want %d", ErrShortBuffer, len(data), AMBEDatagramSize)
	}

	d := &AMBEDatagram{
		StreamID: binary.BigEndian.Uint16(data[0:2]),
		Seq:      data[2],
	}
	copy(d.Voice[:], data[3:3+VoiceLength])
	copy(d.SlowData[:], data[3+VoiceLength:3+VoiceLength+SlowDataLength])

	return d, nil
}

// Encode serializes the datagram to its logical wire form.
func (d *AMBEDatagram) Encode() []byte {
	data := make([]byte, AMBEDatagramSize)
	binary.BigEndian.PutUint16(data[0:2], d.StreamID)
	data[2] = d.Seq
	copy(data[3:3+VoiceLength], d.Voice[:])
	copy(data[3+VoiceLength:3+VoiceLength+SlowDataLength], d.SlowData[:])
	return data
}

// SyncPositions returns every frame index in [0, n) that falls on a
// sync-frame boundary, used to verify the emitter's cadence (spec §8).
func SyncPositions(n int) []int {
	var positions []int
	for i := 0; i < n; i += SyncCadence {
		positions = append(positions, i)
	}
	return positions
}
