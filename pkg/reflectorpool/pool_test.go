package reflectorpool

import (
	"net"
	"testing"

	"github.com/dstargw/core/pkg/logger"
	"github.com/dstargw/core/pkg/reflector"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func testFactory(addr *net.UDPAddr, log *logger.Logger) (reflector.Handler, error) {
	return reflector.NewDExtraHandler(addr, log)
}

func TestAcquireAssignsDistinctPorts(t *testing.T) {
	p := New(testFactory, testLogger(), net.ParseIP("127.0.0.1"), 40000, 40010)

	h1, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	h2, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	defer p.CloseAll()

	if h1.LocalAddr().String() == h2.LocalAddr().String() {
		t.Fatal("acquired handlers share a local address")
	}
	if p.Size() != 2 {
		t.Fatalf("want size 2, got %d", p.Size())
	}
}

func TestReleaseRemovesFromPool(t *testing.T) {
	p := New(testFactory, testLogger(), net.ParseIP("127.0.0.1"), 40100, 40110)

	h, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := p.Release(h); err != nil {
		t.Fatalf("release: %v", err)
	}

	if p.Size() != 0 {
		t.Fatalf("want size 0 after release, got %d", p.Size())
	}
}

func TestReadWrapsAndReturnsNoneWhenNothingPending(t *testing.T) {
	p := New(testFactory, testLogger(), net.ParseIP("127.0.0.1"), 40200, 40210)

	if _, err := p.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := p.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer p.CloseAll()

	h, kind, err := p.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if h != nil || kind != reflector.KindNone {
		t.Fatalf("expected no pending datagram, got handler=%v kind=%s", h, kind)
	}
}
