package frame

import "errors"

// ErrCRC is returned when a header's trailing CRC does not match the
// CRC computed over its preceding bytes (spec §7 CrcError).
var ErrCRC = errors.New("frame: crc mismatch")

// ErrMalformed is returned when a slow-data block declares a length
// field outside 0..5 (spec §7 Malformed).
var ErrMalformed = errors.New("frame: malformed slow-data block")

// ErrShortBuffer is returned when an encoded buffer is too small for
// the structure being parsed.
var ErrShortBuffer = errors.New("frame: buffer too short")
