// Package frame implements the D-Star header/AMBE wire codec and the
// slow-data scrambler/reassembler (spec §4.1), generalized from the
// teacher's DMRD/RPTx fixed-offset field codecs in pkg/protocol.
package frame

// CallsignLength is the fixed, space-padded width of every D-Star
// callsign field except MyCall2.
const CallsignLength = 8

// MyCall2Length is the width of the MYCALL2 suffix field.
const MyCall2Length = 4

// HeaderSize is the total encoded header length, body plus CRC.
const HeaderSize = 41

// headerBodySize is the number of bytes the CRC is computed over.
const headerBodySize = HeaderSize - 2

// Header field byte offsets within the 41-byte encoded form.
const (
	headerOffsetFlags    = 0
	headerOffsetRPT2     = 3
	headerOffsetRPT1     = 11
	headerOffsetYourCall = 19
	headerOffsetMyCall1  = 27
	headerOffsetMyCall2  = 35
	headerOffsetCRC      = 39
)

// FlagsLength is the width of the header's flags field.
const FlagsLength = 3

// VoiceLength and SlowDataLength are the two payload sections of one
// AMBE datagram (spec §3 "AMBE datagram").
const (
	VoiceLength    = 9
	SlowDataLength = 3
)

// AMBEDatagramSize is the logical (unwrapped) AMBE datagram length:
// 2-byte stream id, 1-byte seq, 9 bytes voice, 3 bytes slow data.
const AMBEDatagramSize = 2 + 1 + VoiceLength + SlowDataLength

// SeqEndFlag marks the final frame of a stream in the AMBE seq byte.
const SeqEndFlag = 0x80

// seqValueMask isolates the 7-bit sequence counter from the end flag.
const seqValueMask = 0x7F

// SyncCadence is the number of voice frames between sync frames
// (spec §4.1: "every 21st frame after the start").
const SyncCadence = 21

// slowDataKey is the fixed 3-byte XOR pattern slow data is scrambled with.
var slowDataKey = [SlowDataLength]byte{0x70, 0x4F, 0x93}

// MaxSlowDataBlockLength is the largest valid payload length a
// reassembled 6-byte slow-data block may declare in its low nibble.
const MaxSlowDataBlockLength = 5

// slowDataBlockSize is the size of one reassembled logical slow-data
// block: a 1-byte type/length prefix plus up to 5 payload bytes.
const slowDataBlockSize = 6
