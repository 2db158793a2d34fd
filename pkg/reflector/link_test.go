package reflector

import (
	"net"
	"testing"
	"time"
)

func testAddr(t *testing.T) *net.UDPAddr {
	t.Helper()
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 30001}
}

func TestLinkHappyPath(t *testing.T) {
	l := NewLink(ProtocolDExtra, "XRF001 A", "XRF001 A", testAddr(t), DirectionOut, 1_000)
	if l.State() != LinkLinking {
		t.Fatalf("want LINKING, got %s", l.State())
	}

	l.MarkWaitingAck()
	if l.State() != LinkWaitAck {
		t.Fatalf("want WAIT_ACK, got %s", l.State())
	}

	now := time.Now()
	l.Accept(now)
	if l.State() != LinkLinked {
		t.Fatalf("want LINKED, got %s", l.State())
	}

	l.Clock(1_001)
	if !l.PollDue() {
		t.Fatal("expected a poll to be due after one keepalive interval")
	}

	l.Clock(30_001)
	if l.State() != LinkUnlinking {
		t.Fatalf("want UNLINKING after inactivity, got %s", l.State())
	}
}

func TestLinkRetriesThenFails(t *testing.T) {
	l := NewLink(ProtocolDExtra, "XRF001 A", "XRF001 A", testAddr(t), DirectionOut, 1_000)

	for i := 0; i < maxLinkRetries; i++ {
		if l.State() == LinkFailed {
			break
		}
		l.Clock(9_000)
	}

	if l.State() != LinkFailed {
		t.Fatalf("want FAILED after %d retries, got %s", maxLinkRetries, l.State())
	}
}

func TestLinkRejectFails(t *testing.T) {
	l := NewLink(ProtocolDExtra, "XRF001 A", "XRF001 A", testAddr(t), DirectionOut, 1_000)
	l.MarkWaitingAck()
	l.Reject()
	if l.State() != LinkFailed {
		t.Fatalf("want FAILED after reject, got %s", l.State())
	}
}

func TestLinkTouchResetsInactivity(t *testing.T) {
	l := NewLink(ProtocolDExtra, "XRF001 A", "XRF001 A", testAddr(t), DirectionOut, 1_000)
	l.Accept(time.Now())

	l.Clock(25_000)
	l.Touch(time.Now())
	l.Clock(25_000)

	if l.State() != LinkLinked {
		t.Fatalf("touch should have reset inactivity, got %s", l.State())
	}
}
