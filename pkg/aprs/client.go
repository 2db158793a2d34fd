// Package aprs implements the reconnecting APRS-IS TCP client (spec §4.6),
// grounded on the teacher's pkg/network.Client connect/authenticate/
// receiveLoop/keepaliveLoop shape (read-deadline banner read, credential
// line, ack line, background loops under a cancellable context) and
// original_source's APRSWriter.cpp/APRSWriterThread.cpp for the exact
// login-line format, outbound queue semantics, and back-off schedule.
package aprs

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dstargw/core/pkg/logger"
)

// State is the client's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// OutboundQueueSize is the bounded outbound queue capacity (spec §4.6).
const OutboundQueueSize = 20

// bannerTimeout bounds the wait for the server's initial banner line.
const bannerTimeout = 10 * time.Second

// Frame is one parsed inbound APRS-IS line: "source>path:payload".
type Frame struct {
	Source  string
	Path    string
	Payload string
	Raw     string
}

// Config configures a Client (spec §6 "aprs" configuration surface).
type Config struct {
	Hostname string
	Port     int
	Callsign string // login callsign, without SSID
	SSID     string
	Passcode string
	Filter   string
	Product  string // "vers" field, e.g. "dstargw 1.0"
}

// Client is a single reconnecting TCP connection to an APRS-IS server
// (default rotate.aprs2.net:14580, spec §4.6).
type Client struct {
	cfg Config
	log *logger.Logger

	stateMu sync.RWMutex
	state   State
	tries   int

	connMu sync.Mutex
	conn   net.Conn

	outbound chan string

	cbMu      sync.RWMutex
	callbacks []func(Frame)

	dialFunc func(network, addr string) (net.Conn, error)
}

// New returns a Client ready to Start.
func New(cfg Config, log *logger.Logger) *Client {
	if cfg.Product == "" {
		cfg.Product = "dstargw 1.0"
	}
	return &Client{
		cfg:      cfg,
		log:      log.WithComponent("aprs"),
		outbound: make(chan string, OutboundQueueSize),
		dialFunc: net.Dial,
	}
}

// AddReadCallback registers cb to be invoked, by value copy, for every
// inbound frame (spec §4.6: "dispatched to every registered callback by
// value-copy so callbacks may mutate independently").
func (c *Client) AddReadCallback(cb func(Frame)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// IsConnected reports whether the client currently has an open session.
func (c *Client) IsConnected() bool {
	return c.getState() == StateConnected
}

// Write enqueues line for transmission. It is dropped silently while
// disconnected, or dropped with a WARN log if the outbound queue is full
// (spec §4.6, §7 Backpressure).
func (c *Client) Write(line string) {
	if !c.IsConnected() {
		return
	}

	clean := strings.ReplaceAll(strings.ReplaceAll(line, "\r", ""), "\n", "")

	select {
	case c.outbound <- clean:
	default:
		c.log.Warn("aprs outbound queue full, dropping line", logger.String("line", clean))
	}
}

// Start runs the reconnect loop until ctx is cancelled.
func (c *Client) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		default:
		}

		if err := c.runSession(ctx); err != nil {
			c.log.Warn("aprs session ended", logger.Error(err))
		}

		c.tries++
		backoff := time.Duration(min(c.tries, 10)) * 60 * time.Second
		c.setState(StateReconnecting)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// Stop closes the active connection, if any.
func (c *Client) Stop() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.setState(StateDisconnected)
}

func (c *Client) runSession(ctx context.Context) error {
	c.setState(StateConnecting)

	addr := fmt.Sprintf("%s:%d", c.cfg.Hostname, c.cfg.Port)
	conn, err := c.dialFunc("tcp", addr)
	if err != nil {
		return fmt.Errorf("aprs: dial %s: %w", addr, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer func() {
		conn.Close()
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
	}()

	reader := bufio.NewReader(conn)

	conn.SetReadDeadline(time.Now().Add(bannerTimeout))
	if _, err := reader.ReadString('\n'); err != nil {
		return fmt.Errorf("aprs: banner: %w", err)
	}

	login := fmt.Sprintf("user %s-%s pass %s vers %s", c.cfg.Callsign, c.cfg.SSID, c.cfg.Passcode, c.cfg.Product)
	if c.cfg.Filter != "" {
		login += " filter " + c.cfg.Filter
	}
	login += "\r\n"
	if _, err := conn.Write([]byte(login)); err != nil {
		return fmt.Errorf("aprs: login write: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(bannerTimeout))
	if _, err := reader.ReadString('\n'); err != nil {
		return fmt.Errorf("aprs: login ack: %w", err)
	}

	c.tries = 0
	c.setState(StateConnected)
	conn.SetReadDeadline(time.Time{})

	errCh := make(chan error, 2)
	go func() { errCh <- c.readLoop(reader) }()
	go func() { errCh <- c.writeLoop(ctx, conn) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// readLoop parses inbound lines and dispatches them to every registered
// callback; server comments beginning with "#" are ignored (spec §4.6).
func (c *Client) readLoop(reader *bufio.Reader) error {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("aprs: read: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		frame, ok := parseFrame(line)
		if !ok {
			continue
		}

		c.cbMu.RLock()
		callbacks := append(([]func(Frame))(nil), c.callbacks...)
		c.cbMu.RUnlock()

		for _, cb := range callbacks {
			cb(frame)
		}
	}
}

// writeLoop drains the outbound queue onto the wire, appending CRLF to
// every line (spec §4.6). A write failure propagates to trigger a
// reconnect without discarding whatever remains queued.
func (c *Client) writeLoop(ctx context.Context, conn net.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-c.outbound:
			if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
				return fmt.Errorf("aprs: write: %w", err)
			}
		}
	}
}

func parseFrame(line string) (Frame, bool) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return Frame{}, false
	}
	header := line[:colon]
	payload := line[colon+1:]

	gt := strings.Index(header, ">")
	if gt < 0 {
		return Frame{}, false
	}

	return Frame{
		Source:  header[:gt],
		Path:    header[gt+1:],
		Payload: payload,
		Raw:     line,
	}, true
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

func (c *Client) getState() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// State returns the client's current connection state.
func (c *Client) State() State { return c.getState() }
