// Package reflector implements the per-protocol DExtra/DCS/D-Plus UDP
// handlers and their shared per-link state machine (spec §4.3), generalized
// from the teacher's pkg/network.Client authentication handshake (read-
// deadline polling, a mutex-guarded ConnectionState enum, a keepalive-ticker
// goroutine) from a single DMR master handshake to three independent
// D-Star reflector wire protocols.
package reflector

import (
	"errors"
	"net"

	"github.com/dstargw/core/pkg/frame"
)

// Kind classifies the datagram a handler's Read returned (spec §4.3).
type Kind int

const (
	KindNone Kind = iota
	KindHeader
	KindAMBE
	KindPoll
	KindConnect
	KindConnectAck
	KindDisconnect
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindHeader:
		return "HEADER"
	case KindAMBE:
		return "AMBE"
	case KindPoll:
		return "POLL"
	case KindConnect:
		return "CONNECT"
	case KindConnectAck:
		return "CONNECT_ACK"
	case KindDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// Protocol identifies which reflector wire protocol a handler speaks.
type Protocol int

const (
	ProtocolDExtra Protocol = iota
	ProtocolDCS
	ProtocolDPlus
)

func (p Protocol) String() string {
	switch p {
	case ProtocolDExtra:
		return "DEXTRA"
	case ProtocolDCS:
		return "DCS"
	case ProtocolDPlus:
		return "DPLUS"
	default:
		return "UNKNOWN"
	}
}

// Direction is the requested link direction (spec §3 "Reflector link").
type Direction byte

const (
	DirectionOut Direction = 'U' // "up" / outgoing link from this gateway
	DirectionIn  Direction = 'L' // incoming link accepted from a peer
	DirectionBi  Direction = 'A' // bidirectional
)

// directionToByte maps Direction to DExtra's wire letters
// ('L','U','A','N' — spec §4.3); 'N' (none/unlink) has no Direction value
// and is handled as a disconnect instead.
func directionToByte(d Direction) byte { return byte(d) }

// VoiceFrame carries one AMBE voice payload plus its scrambled slow-data
// tail, independent of which reflector protocol wrapped it on the wire.
type VoiceFrame struct {
	StreamID uint16
	Seq      byte // low 7 bits counter, high bit end-of-stream flag (frame.SeqEndFlag)
	Voice    [frame.VoiceLength]byte
	SlowData [frame.SlowDataLength]byte
}

// ErrNotReady is returned by a ReadXxx call when the last Read did not
// classify as the matching Kind.
var ErrNotReady = errors.New("reflector: no payload of the requested kind is ready")

// ErrClosed is returned by handler operations after Close.
var ErrClosed = errors.New("reflector: handler is closed")

// Handler is one protocol-specific UDP socket plus its single-link state
// machine (spec §4.3). A Handler is not safe for concurrent use — the
// handler pool's routing loop owns it single-threaded (spec §4.4).
type Handler interface {
	// Read performs a single, non-blocking classification of the next
	// pending datagram. The result is stashed for the matching ReadXxx
	// call. Returns KindNone if nothing is pending.
	Read() (Kind, error)

	ReadHeader() (streamID uint16, h *frame.Header, err error)
	ReadData() (VoiceFrame, error)
	ReadPoll() (callsign string, err error)
	ReadConnect() (from string, dir Direction, err error)

	WriteHeader(streamID uint16, h *frame.Header) error
	WriteData(streamID uint16, vf VoiceFrame) error
	WritePoll(callsign string) error
	WriteConnect(from, to string, addr *net.UDPAddr, dir Direction) error
	WriteConnectAck(accept bool) error
	WriteDisconnect(callsign string) error

	Protocol() Protocol
	LocalAddr() net.Addr
	Link() *Link

	// Clock advances the handler's keepalive/timeout/retry timers (spec
	// §4.8); the caller drives this from clockbus at tick granularity.
	Clock(elapsedMs int64)

	Close() error
}
