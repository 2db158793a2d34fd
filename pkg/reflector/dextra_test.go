package reflector

import (
	"net"
	"testing"
	"time"

	"github.com/dstargw/core/pkg/frame"
	"github.com/dstargw/core/pkg/logger"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func waitForKind(t *testing.T, h Handler, want Kind) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		kind, err := h.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if kind == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", want)
}

func TestDExtraConnectAckVoiceRoundTrip(t *testing.T) {
	local, err := NewDExtraHandler(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}, newTestLogger())
	if err != nil {
		t.Fatalf("local handler: %v", err)
	}
	defer local.Close()

	remote, err := NewDExtraHandler(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}, newTestLogger())
	if err != nil {
		t.Fatalf("remote handler: %v", err)
	}
	defer remote.Close()

	remoteAddr := remote.conn.LocalAddr().(*net.UDPAddr)
	if err := local.WriteConnect("G4KLX  B", "XRF001 A", remoteAddr, DirectionOut); err != nil {
		t.Fatalf("write connect: %v", err)
	}

	waitForKind(t, remote, KindConnect)
	from, dir, err := remote.ReadConnect()
	if err != nil {
		t.Fatalf("read connect: %v", err)
	}
	if from != "G4KLX  B" {
		t.Fatalf("got from=%q", from)
	}
	if dir != DirectionOut {
		t.Fatalf("got dir=%q", dir)
	}

	localAddr := local.conn.LocalAddr().(*net.UDPAddr)
	remote.link = NewLink(ProtocolDExtra, "XRF001 A", "G4KLX  B", localAddr, DirectionIn, dextraKeepAliveMs)
	if err := remote.WriteConnectAck(true); err != nil {
		t.Fatalf("write connect ack: %v", err)
	}

	waitForKind(t, local, KindConnectAck)
	local.link.Accept(time.Now())
	if local.link.State() != LinkLinked {
		t.Fatalf("want LINKED, got %s", local.link.State())
	}

	hdr := &frame.Header{
		RPT2:     "XRF001 G",
		RPT1:     "XRF001 A",
		YourCall: "CQCQCQ  ",
		MyCall1:  "G4KLX  B",
		MyCall2:  "    ",
	}
	if err := local.WriteHeader(42, hdr); err != nil {
		t.Fatalf("write header: %v", err)
	}

	waitForKind(t, remote, KindHeader)
	streamID, gotHdr, err := remote.ReadHeader()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if streamID != 42 {
		t.Fatalf("got streamID=%d", streamID)
	}
	if gotHdr.MyCall1 != hdr.MyCall1 {
		t.Fatalf("got mycall1=%q", gotHdr.MyCall1)
	}

	vf := VoiceFrame{StreamID: 42, Seq: 1}
	copy(vf.Voice[:], []byte("123456789"))
	if err := local.WriteData(42, vf); err != nil {
		t.Fatalf("write data: %v", err)
	}

	waitForKind(t, remote, KindAMBE)
	gotVF, err := remote.ReadData()
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if gotVF.Seq != 1 || gotVF.Voice != vf.Voice {
		t.Fatalf("voice frame mismatch: %+v", gotVF)
	}
}
