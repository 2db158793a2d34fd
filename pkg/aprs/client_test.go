package aprs

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/dstargw/core/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func fakeServer(t *testing.T) (addr string, login chan string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	login = make(chan string, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("# javAPRSSrvr banner\r\n"))

		reader := bufio.NewReader(conn)
		line, err := reader.ReadString('\n')
		if err == nil {
			login <- line
		}
		conn.Write([]byte("# logresp OK, verified\r\n"))

		// keep the connection open so the client can stay CONNECTED
		buf := make([]byte, 512)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String(), login, func() { ln.Close() }
}

func TestClientConnectsAndLogsIn(t *testing.T) {
	addr, loginCh, stop := fakeServer(t)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}

	c := New(Config{
		Hostname: host,
		Port:     port,
		Callsign: "G4KLX",
		SSID:     "10",
		Passcode: "12345",
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go c.Start(ctx)

	select {
	case line := <-loginCh:
		if got := line; len(got) == 0 {
			t.Fatal("expected a login line")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for login line")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.IsConnected() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("client never reached CONNECTED")
}

func TestWriteDropsWhenDisconnected(t *testing.T) {
	c := New(Config{Hostname: "127.0.0.1", Port: 1}, testLogger())
	c.Write("this should be dropped silently")
	select {
	case <-c.outbound:
		t.Fatal("expected nothing queued while disconnected")
	default:
	}
}

func TestOutboundQueueDropsWhenFull(t *testing.T) {
	c := New(Config{Hostname: "127.0.0.1", Port: 1}, testLogger())
	c.setState(StateConnected)

	for i := 0; i < OutboundQueueSize; i++ {
		c.Write("line")
	}
	if len(c.outbound) != OutboundQueueSize {
		t.Fatalf("want queue full at %d, got %d", OutboundQueueSize, len(c.outbound))
	}

	c.Write("one too many")
	if len(c.outbound) != OutboundQueueSize {
		t.Fatalf("queue grew past capacity: %d", len(c.outbound))
	}
}
