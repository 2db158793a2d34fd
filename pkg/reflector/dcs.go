package reflector

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/dstargw/core/pkg/frame"
	"github.com/dstargw/core/pkg/logger"
)

// DCS wire layout (spec §4.3, bit-exact):
//
//	connect:     17 bytes  <tag:1=0xDC><fromCall:8><module:1><reserved:7>
//	connect ack: 17 bytes  <tag:1=0xDC><result:1='A'|'N'><fromCall:8><reserved:7>
//	poll:        22 bytes  <tag:1=0xDC><fromCall:8><toCall:8><counter:1><reserved:4>
//	voice:      100 bytes  <tag:1><kind:1><streamID:2><seq:1><counter21:1>
//	                       <fromCall:8><toCall:8><block:74><reserved:4>
//
// counter21 rotates 0..20 in step with the AMBE sync cadence (spec §4.1);
// block holds either a zero-padded 41-byte Header or a 12-byte AMBE+slow
// payload, the same "first datagram of a stream is a header" convention
// DExtra uses.
const (
	dcsTag            = 0xDC
	dcsConnectSize    = 17
	dcsConnectAckSize = 17
	dcsPollSize       = 22
	dcsVoiceSize      = 100
	dcsBlockSize      = 74
	dcsKeepAliveMs    = 3_000

	dcsKindHeader = 0
	dcsKindVoice  = 1
)

// DCSHandler speaks the DCS reflector wire protocol (also used by XLX
// reflectors on the radio side, spec §4.5) over one UDP socket.
type DCSHandler struct {
	conn *net.UDPConn
	log  *logger.Logger
	link *Link

	lastHeader  *frame.Header
	lastVoice   VoiceFrame
	lastPollID  string
	lastConnect string
	lastAccept  bool

	counter21   byte
	openStreams map[uint16]bool

	closed bool
}

// NewDCSHandler binds localAddr and returns a ready handler.
func NewDCSHandler(localAddr *net.UDPAddr, log *logger.Logger) (*DCSHandler, error) {
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("dcs: listen: %w", err)
	}
	return &DCSHandler{
		conn:        conn,
		log:         log.WithComponent("reflector.dcs"),
		openStreams: make(map[uint16]bool),
	}, nil
}

func (h *DCSHandler) Protocol() Protocol  { return ProtocolDCS }
func (h *DCSHandler) LocalAddr() net.Addr { return h.conn.LocalAddr() }
func (h *DCSHandler) Link() *Link         { return h.link }
func (h *DCSHandler) Clock(elapsedMs int64) {
	if h.link != nil {
		h.link.Clock(elapsedMs)
	}
}

func (h *DCSHandler) Close() error {
	h.closed = true
	return h.conn.Close()
}

func (h *DCSHandler) Read() (Kind, error) {
	if h.closed {
		return KindNone, ErrClosed
	}

	h.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	buf := make([]byte, 2048)
	n, _, err := h.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return KindNone, nil
		}
		return KindNone, fmt.Errorf("dcs: read: %w", err)
	}
	data := buf[:n]

	if n < 1 || data[0] != dcsTag {
		return KindNone, nil
	}

	switch n {
	case dcsConnectAckSize:
		// connect and connect-ack share a size; distinguish by the
		// second byte being a result letter vs. a callsign character.
		result := data[1]
		if result == 'A' || result == 'N' {
			h.lastConnect = string(data[2 : 2+frame.CallsignLength])
			h.lastAccept = result == 'A'
			if h.link != nil {
				h.link.Touch(time.Now())
				if h.link.State() == LinkWaitAck {
					if h.lastAccept {
						h.link.Accept(time.Now())
					} else {
						h.link.Reject()
					}
				}
			}
			return KindConnectAck, nil
		}
		h.lastConnect = string(data[1 : 1+frame.CallsignLength])
		if h.link != nil {
			h.link.Touch(time.Now())
		}
		return KindConnect, nil

	case dcsPollSize:
		h.lastPollID = string(data[1 : 1+frame.CallsignLength])
		if h.link != nil {
			h.link.Touch(time.Now())
		}
		return KindPoll, nil

	case dcsVoiceSize:
		kind := data[1]
		streamID := binary.BigEndian.Uint16(data[2:4])
		seq := data[4]
		h.counter21 = data[5]
		block := data[6+2*frame.CallsignLength : 6+2*frame.CallsignLength+dcsBlockSize]
		if h.link != nil {
			h.link.Touch(time.Now())
		}

		if kind == dcsKindHeader {
			hdr, err := frame.ParseHeader(block[:frame.HeaderSize])
			if err != nil {
				return KindNone, fmt.Errorf("dcs: header: %w", err)
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
		return KindNone, nil
	}
}

func (h *DCSHandler) ReadHeader() (uint16, *frame.Header, error) {
	if h.lastHeader == nil {
		return 0, nil, ErrNotReady
	}
	return h.lastVoice.StreamID, h.lastHeader, nil
}

func (h *DCSHandler) ReadData() (VoiceFrame, error) { return h.lastVoice, nil }

func (h *DCSHandler) ReadPoll() (string, error) {
	if h.lastPollID == "" {
		return "", ErrNotReady
	}
	return h.lastPollID, nil
}

func (h *DCSHandler) ReadConnect() (string, Direction, error) {
	if h.lastConnect == "" {
		return "", 0, ErrNotReady
	}
	return h.lastConnect, DirectionOut, nil
}

func (h *DCSHandler) voiceBlock(streamID uint16, seq byte, fromCall, toCall string, block [dcsBlockSize]byte, kind byte) []byte {
	buf := make([]byte, dcsVoiceSize)
	buf[0] = dcsTag
	buf[1] = kind
	binary.BigEndian.PutUint16(buf[2:4], streamID)
	buf[4] = seq
	buf[5] = h.counter21
	h.counter21 = (h.counter21 + 1) % frame.SyncCadence
	off := 6
	copy(buf[off:off+frame.CallsignLength], frame.PadCallsign(fromCall, frame.CallsignLength))
	off += frame.CallsignLength
	copy(buf[off:off+frame.CallsignLength], frame.PadCallsign(toCall, frame.CallsignLength))
	off += frame.CallsignLength
	copy(buf[off:off+dcsBlockSize], block[:])
	return buf
}

func (h *DCSHandler) WriteHeader(streamID uint16, hdr *frame.Header) error {
	var block [dcsBlockSize]byte
	copy(block[:frame.HeaderSize], hdr.Encode())
	from, to := hdr.MyCall1, hdr.RPT1
	return h.send(h.voiceBlock(streamID, 0, from, to, block, dcsKindHeader))
}

func (h *DCSHandler) WriteData(streamID uint16, vf VoiceFrame) error {
	var block [dcsBlockSize]byte
	copy(block[0:frame.VoiceLength], vf.Voice[:])
	copy(block[frame.VoiceLength:frame.VoiceLength+frame.SlowDataLength], vf.SlowData[:])
	from, to := "", ""
	if h.link != nil {
		from, to = h.link.LocalModule, h.link.RemoteCallsign
	}
	return h.send(h.voiceBlock(streamID, vf.Seq, from, to, block, dcsKindVoice))
}

func (h *DCSHandler) WritePoll(callsign string) error {
	buf := make([]byte, dcsPollSize)
	buf[0] = dcsTag
	copy(buf[1:1+frame.CallsignLength], frame.PadCallsign(callsign, frame.CallsignLength))
	to := ""
	if h.link != nil {
		to = h.link.RemoteCallsign
	}
	copy(buf[1+frame.CallsignLength:1+2*frame.CallsignLength], frame.PadCallsign(to, frame.CallsignLength))
	return h.send(buf)
}

func (h *DCSHandler) WriteConnect(from, to string, addr *net.UDPAddr, dir Direction) error {
	h.link = NewLink(ProtocolDCS, from, to, addr, dir, dcsKeepAliveMs)
	buf := make([]byte, dcsConnectSize)
	buf[0] = dcsTag
	copy(buf[1:1+frame.CallsignLength], frame.PadCallsign(from, frame.CallsignLength))
	buf[9] = moduleLetter(to)
	if err := h.send(buf); err != nil {
		return err
	}
	h.link.MarkWaitingAck()
	return nil
}

func (h *DCSHandler) WriteConnectAck(accept bool) error {
	buf := make([]byte, dcsConnectAckSize)
	buf[0] = dcsTag
	if accept {
		buf[1] = 'A'
	} else {
		buf[1] = 'N'
	}
	if h.link != nil {
		copy(buf[2:2+frame.CallsignLength], frame.PadCallsign(h.link.LocalModule, frame.CallsignLength))
	}
	return h.send(buf)
}

func (h *DCSHandler) WriteDisconnect(callsign string) error {
	buf := make([]byte, dcsConnectSize)
	buf[0] = dcsTag
	copy(buf[1:1+frame.CallsignLength], frame.PadCallsign(callsign, frame.CallsignLength))
	return h.send(buf)
}

func (h *DCSHandler) send(buf []byte) error {
	if h.link == nil || h.link.RemoteAddr == nil {
		return fmt.Errorf("dcs: no remote address to send to")
	}
	_, err := h.conn.WriteToUDP(buf, h.link.RemoteAddr)
	return err
}

func moduleLetter(callsign string) byte {
	if len(callsign) == 0 {
		return ' '
	}
	return callsign[len(callsign)-1]
}

var _ Handler = (*DCSHandler)(nil)
