package reflector

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/dstargw/core/pkg/frame"
	"github.com/dstargw/core/pkg/logger"
)

// D-Plus wire layout (spec §4.3, bit-exact):
//
//	connect:  4 bytes  <tag:1=0x18><dir:1><reserved:2>   dir ∈ {'L','U','A','N'}
//	poll:     4 bytes  <tag:1=0x20><reserved:3>
//	DV-dongle frame: 16-byte header, magic 0x58 0x01, followed by either a
//	  41-byte Header block (frame type 0x10) or a 12-byte AMBE+slow block
//	  (frame type 0x20):
//	    <0x58><0x01><frameType:1><streamID:2><seq:1><reserved:10>
const (
	dplusConnectSize = 4
	dplusPollSize    = 4
	dplusConnectTag  = 0x18
	dplusPollTag     = 0x20
	dplusKeepAliveMs = 1_000

	dvHeaderSize = 16
	dvMagic0     = 0x58
	dvMagic1     = 0x01
	dvTypeHeader = 0x10
	dvTypeVoice  = 0x20
)

// DPlusHandler speaks the D-Plus reflector wire protocol (a TCP-style
// handshake simulated over UDP, spec §4.3) over one UDP socket.
type DPlusHandler struct {
	conn *net.UDPConn
	log  *logger.Logger
	link *Link

	lastHeader  *frame.Header
	lastVoice   VoiceFrame
	sawPoll     bool
	lastConnect string
	lastDir     Direction

	openStreams map[uint16]bool
	closed      bool
}

// NewDPlusHandler binds localAddr and returns a ready handler.
func NewDPlusHandler(localAddr *net.UDPAddr, log *logger.Logger) (*DPlusHandler, error) {
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("dplus: listen: %w", err)
	}
	return &DPlusHandler{
		conn:        conn,
		log:         log.WithComponent("reflector.dplus"),
		openStreams: make(map[uint16]bool),
	}, nil
}

func (h *DPlusHandler) Protocol() Protocol  { return ProtocolDPlus }
func (h *DPlusHandler) LocalAddr() net.Addr { return h.conn.LocalAddr() }
func (h *DPlusHandler) Link() *Link         { return h.link }
func (h *DPlusHandler) Clock(elapsedMs int64) {
	if h.link != nil {
		h.link.Clock(elapsedMs)
	}
}

func (h *DPlusHandler) Close() error {
	h.closed = true
	return h.conn.Close()
}

func (h *DPlusHandler) Read() (Kind, error) {
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
		return KindNone, fmt.Errorf("dplus: read: %w", err)
	}
	data := buf[:n]

	switch {
	case n == dplusConnectSize && data[0] == dplusConnectTag:
		dir := Direction(data[1])
		h.lastDir = dir
		if h.link != nil {
			h.link.Touch(time.Now())
		}
		if dir == 'N' {
			return KindDisconnect, nil
		}
		if h.link != nil && h.link.State() == LinkWaitAck {
			h.link.Accept(time.Now())
			return KindConnectAck, nil
		}
		return KindConnect, nil

	case n == dplusPollSize && data[0] == dplusPollTag:
		h.sawPoll = true
		if h.link != nil {
			h.link.Touch(time.Now())
		}
		return KindPoll, nil

	case n >= dvHeaderSize && data[0] == dvMagic0 && data[1] == dvMagic1:
		frameType := data[2]
		streamID := binary.BigEndian.Uint16(data[3:5])
		seq := data[5]
		payload := data[dvHeaderSize:]
		if h.link != nil {
			h.link.Touch(time.Now())
		}

		switch frameType {
		case dvTypeHeader:
			if len(payload) < frame.HeaderSize {
				return KindNone, fmt.Errorf("dplus: short header payload")
			}
			hdr, err := frame.ParseHeader(payload[:frame.HeaderSize])
			if err != nil {
				return KindNone, fmt.Errorf("dplus: header: %w", err)
			}
			h.openStreams[streamID] = true
			h.lastHeader = hdr
			h.lastVoice.StreamID = streamID
			return KindHeader, nil

		case dvTypeVoice:
			if len(payload) < frame.VoiceLength+frame.SlowDataLength {
				return KindNone, fmt.Errorf("dplus: short voice payload")
			}
			var vf VoiceFrame
			vf.StreamID = streamID
			vf.Seq = seq
			copy(vf.Voice[:], payload[0:frame.VoiceLength])
			copy(vf.SlowData[:], payload[frame.VoiceLength:frame.VoiceLength+frame.SlowDataLength])
			h.lastVoice = vf
			if vf.Seq&frame.SeqEndFlag != 0 {
				delete(h.openStreams, streamID)
			}
			return KindAMBE, nil
		}
		return KindNone, nil

	default:
		return KindNone, nil
	}
}

func (h *DPlusHandler) ReadHeader() (uint16, *frame.Header, error) {
	if h.lastHeader == nil {
		return 0, nil, ErrNotReady
	}
	return h.lastVoice.StreamID, h.lastHeader, nil
}

func (h *DPlusHandler) ReadData() (VoiceFrame, error) { return h.lastVoice, nil }

func (h *DPlusHandler) ReadPoll() (string, error) {
	if !h.sawPoll {
		return "", ErrNotReady
	}
	callsign := ""
	if h.link != nil {
		callsign = h.link.RemoteCallsign
	}
	return callsign, nil
}

func (h *DPlusHandler) ReadConnect() (string, Direction, error) {
	if h.lastDir == 0 {
		return "", 0, ErrNotReady
	}
	from := ""
	if h.link != nil {
		from = h.link.RemoteCallsign
	}
	return from, h.lastDir, nil
}

func dvFrameHeader(frameType byte, streamID uint16, seq byte) []byte {
	buf := make([]byte, dvHeaderSize)
	buf[0] = dvMagic0
	buf[1] = dvMagic1
	buf[2] = frameType
	binary.BigEndian.PutUint16(buf[3:5], streamID)
	buf[5] = seq
	return buf
}

func (h *DPlusHandler) WriteHeader(streamID uint16, hdr *frame.Header) error {
	buf := append(dvFrameHeader(dvTypeHeader, streamID, 0), hdr.Encode()...)
	return h.send(buf)
}

func (h *DPlusHandler) WriteData(streamID uint16, vf VoiceFrame) error {
	payload := make([]byte, frame.VoiceLength+frame.SlowDataLength)
	copy(payload[0:frame.VoiceLength], vf.Voice[:])
	copy(payload[frame.VoiceLength:], vf.SlowData[:])
	buf := append(dvFrameHeader(dvTypeVoice, streamID, vf.Seq), payload...)
	return h.send(buf)
}

func (h *DPlusHandler) WritePoll(callsign string) error {
	buf := make([]byte, dplusPollSize)
	buf[0] = dplusPollTag
	return h.send(buf)
}

func (h *DPlusHandler) WriteConnect(from, to string, addr *net.UDPAddr, dir Direction) error {
	h.link = NewLink(ProtocolDPlus, from, to, addr, dir, dplusKeepAliveMs)
	buf := make([]byte, dplusConnectSize)
	buf[0] = dplusConnectTag
	buf[1] = directionToByte(dir)
	if err := h.send(buf); err != nil {
		return err
	}
	h.link.MarkWaitingAck()
	return nil
}

func (h *DPlusHandler) WriteConnectAck(accept bool) error {
	buf := make([]byte, dplusConnectSize)
	buf[0] = dplusConnectTag
	if accept {
		buf[1] = directionToByte(DirectionIn)
	} else {
		buf[1] = 'N'
	}
	return h.send(buf)
}

func (h *DPlusHandler) WriteDisconnect(callsign string) error {
	buf := make([]byte, dplusConnectSize)
	buf[0] = dplusConnectTag
	buf[1] = 'N'
	return h.send(buf)
}

func (h *DPlusHandler) send(buf []byte) error {
	if h.link == nil || h.link.RemoteAddr == nil {
		return fmt.Errorf("dplus: no remote address to send to")
	}
	_, err := h.conn.WriteToUDP(buf, h.link.RemoteAddr)
	return err
}

var _ Handler = (*DPlusHandler)(nil)
