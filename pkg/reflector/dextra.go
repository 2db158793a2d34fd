package reflector

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/dstargw/core/pkg/frame"
	"github.com/dstargw/core/pkg/logger"
)

// DExtra wire layout (spec §4.3, bit-exact):
//
//	connect:  9 bytes  <fromCall:8><dir:1>         dir ∈ {'L','U','A','N'}
//	poll:     9 bytes  <callsign:8>\0
//	voice:   56 bytes  <streamID:2><seq:1><block:45><fromCall:8>
//
// block is either a 41-byte Header (4 bytes zero-padded) or a 12-byte
// AMBE+slow-data payload (33 bytes zero-padded); the type is inferred
// from context the way the original protocol handler does — a stream's
// first voice datagram (seq 0, no prior HEADER on that stream) carries a
// header block, everything else carries AMBE.
const (
	dextraConnectSize = 9
	dextraPollSize    = 9
	dextraVoiceSize   = 56
	dextraBlockSize   = 45
	dextraKeepAliveMs = 1_000
)

const dextraAckDirection = 'N' // reflector NAK/ack marker reuses the 'N' direction slot

// DExtraHandler speaks the DExtra reflector wire protocol over one UDP
// socket (spec §4.3).
type DExtraHandler struct {
	conn *net.UDPConn
	log  *logger.Logger
	link *Link

	lastKind    Kind
	lastHeader  *frame.Header
	lastVoice   VoiceFrame
	lastPollID  string
	lastConnect string
	lastDir     Direction

	// openStreams tracks which stream ids have already seen a header,
	// so a subsequent voice datagram is classified as AMBE not HEADER.
	openStreams map[uint16]bool

	closed bool
}

// NewDExtraHandler binds localAddr and returns a ready handler.
func NewDExtraHandler(localAddr *net.UDPAddr, log *logger.Logger) (*DExtraHandler, error) {
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("dextra: listen: %w", err)
	}
	return &DExtraHandler{
		conn:        conn,
		log:         log.WithComponent("reflector.dextra"),
		openStreams: make(map[uint16]bool),
	}, nil
}

func (h *DExtraHandler) Protocol() Protocol   { return ProtocolDExtra }
func (h *DExtraHandler) LocalAddr() net.Addr  { return h.conn.LocalAddr() }
func (h *DExtraHandler) Link() *Link          { return h.link }
func (h *DExtraHandler) Clock(elapsedMs int64) {
	if h.link != nil {
		h.link.Clock(elapsedMs)
	}
}

func (h *DExtraHandler) Close() error {
	h.closed = true
	return h.conn.Close()
}

// Read performs one non-blocking classification pass (spec §4.3).
func (h *DExtraHandler) Read() (Kind, error) {
	if h.closed {
		return KindNone, ErrClosed
	}

	h.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	buf := make([]byte, 2048)
	n, addr, err := h.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return KindNone, nil
		}
		return KindNone, fmt.Errorf("dextra: read: %w", err)
	}
	data := buf[:n]

	switch {
	case n == dextraConnectSize:
		from := string(data[0:frame.CallsignLength])
		dir := Direction(data[8])
		h.lastConnect = from
		h.lastDir = dir
		if h.link != nil {
			h.link.Touch(time.Now())
		}
		if h.link != nil && h.link.State() == LinkWaitAck {
			if dir == dextraAckDirection {
				h.link.Reject()
			} else {
				h.link.Accept(time.Now())
			}
			return KindConnectAck, nil
		}
		if dir == dextraAckDirection {
			return KindConnectAck, nil
		}
		return KindConnect, nil

	case n == dextraPollSize:
		h.lastPollID = string(data[0:frame.CallsignLength])
		if h.link != nil {
			h.link.Touch(time.Now())
		}
		return KindPoll, nil

	case n == dextraVoiceSize:
		streamID := binary.BigEndian.Uint16(data[0:2])
		seq := data[2]
		block := data[3 : 3+dextraBlockSize]
		if h.link != nil {
			h.link.Touch(time.Now())
		}

		if seq&frame.SeqEndFlag == 0 && seq == 0 && !h.openStreams[streamID] {
			hdr, err := frame.ParseHeader(block[:frame.HeaderSize])
			if err != nil {
				return KindNone, fmt.Errorf("dextra: header: %w", err)
			}
			h.openStreams[streamID] = true
			h.lastHeader = hdr
			h.lastVoice.StreamID = streamID
			return KindHeader, nil
		}

		var vf VoiceFrame
		vf.StreamID = streamID
		vf.Seq = seq
		copy(vf.Voice[:], block[0:frame.VoiceLength])
		copy(vf.SlowData[:], block[frame.VoiceLength:frame.VoiceLength+frame.SlowDataLength])
		h.lastVoice = vf
		if vf.Seq&frame.SeqEndFlag != 0 {
			delete(h.openStreams, streamID)
		}
		return KindAMBE, nil

	default:
		_ = addr
		return KindNone, nil
	}
}

func (h *DExtraHandler) ReadHeader() (uint16, *frame.Header, error) {
	if h.lastHeader == nil {
		return 0, nil, ErrNotReady
	}
	return h.lastVoice.StreamID, h.lastHeader, nil
}

func (h *DExtraHandler) ReadData() (VoiceFrame, error) {
	return h.lastVoice, nil
}

func (h *DExtraHandler) ReadPoll() (string, error) {
	if h.lastPollID == "" {
		return "", ErrNotReady
	}
	return h.lastPollID, nil
}

func (h *DExtraHandler) ReadConnect() (string, Direction, error) {
	if h.lastConnect == "" {
		return "", 0, ErrNotReady
	}
	return h.lastConnect, h.lastDir, nil
}

func (h *DExtraHandler) WriteHeader(streamID uint16, hdr *frame.Header) error {
	buf := make([]byte, dextraVoiceSize)
	binary.BigEndian.PutUint16(buf[0:2], streamID)
	buf[2] = 0
	copy(buf[3:3+frame.HeaderSize], hdr.Encode())
	copy(buf[3+dextraBlockSize:], frame.PadCallsign(hdr.MyCall1, frame.CallsignLength))
	return h.send(buf)
}

func (h *DExtraHandler) WriteData(streamID uint16, vf VoiceFrame) error {
	buf := make([]byte, dextraVoiceSize)
	binary.BigEndian.PutUint16(buf[0:2], streamID)
	buf[2] = vf.Seq
	copy(buf[3:3+frame.VoiceLength], vf.Voice[:])
	copy(buf[3+frame.VoiceLength:3+frame.VoiceLength+frame.SlowDataLength], vf.SlowData[:])
	if h.link != nil {
		copy(buf[3+dextraBlockSize:], frame.PadCallsign(h.link.LocalModule, frame.CallsignLength))
	}
	return h.send(buf)
}

func (h *DExtraHandler) WritePoll(callsign string) error {
	buf := make([]byte, dextraPollSize)
	copy(buf[0:frame.CallsignLength], frame.PadCallsign(callsign, frame.CallsignLength))
	buf[8] = 0
	return h.send(buf)
}

func (h *DExtraHandler) WriteConnect(from, to string, addr *net.UDPAddr, dir Direction) error {
	h.link = NewLink(ProtocolDExtra, from, to, addr, dir, dextraKeepAliveMs)
	buf := make([]byte, dextraConnectSize)
	copy(buf[0:frame.CallsignLength], frame.PadCallsign(from, frame.CallsignLength))
	buf[8] = directionToByte(dir)
	if err := h.send(buf); err != nil {
		return err
	}
	h.link.MarkWaitingAck()
	return nil
}

func (h *DExtraHandler) WriteConnectAck(accept bool) error {
	buf := make([]byte, dextraConnectSize)
	if h.link != nil {
		copy(buf[0:frame.CallsignLength], frame.PadCallsign(h.link.LocalModule, frame.CallsignLength))
	}
	if accept {
		buf[8] = directionToByte(DirectionIn)
	} else {
		buf[8] = dextraAckDirection
	}
	return h.send(buf)
}

func (h *DExtraHandler) WriteDisconnect(callsign string) error {
	buf := make([]byte, dextraConnectSize)
	copy(buf[0:frame.CallsignLength], frame.PadCallsign(callsign, frame.CallsignLength))
	buf[8] = dextraAckDirection
	return h.send(buf)
}

func (h *DExtraHandler) send(buf []byte) error {
	if h.link == nil || h.link.RemoteAddr == nil {
		return fmt.Errorf("dextra: no remote address to send to")
	}
	_, err := h.conn.WriteToUDP(buf, h.link.RemoteAddr)
	return err
}

var _ Handler = (*DExtraHandler)(nil)
