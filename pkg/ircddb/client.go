// Package ircddb implements the ircDDB directory client (spec §4.7): an
// IRC connection used purely as a transport for a small UPDATE/SENDLIST/
// FIND application protocol. Grounded on original_source/IRCDDBApp.cpp
// for the state machine and wire language, and the teacher's
// pkg/peer/manager.go for the mutex-per-map ownership style applied to
// the user/repeater/module tables.
package ircddb

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dstargw/core/pkg/logger"
)

// State is one of the 11 ircDDB connection states (spec §4.7).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateRegistering
	StateJoiningChannel
	StateElectingServer
	StateSelectTable
	StateSendList
	StateAwaitListEnd
	StateInitComplete
	StateStandby
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateRegistering:
		return "REGISTERING"
	case StateJoiningChannel:
		return "JOINING_CHANNEL"
	case StateElectingServer:
		return "ELECTING_SERVER"
	case StateSelectTable:
		return "SELECT_TABLE"
	case StateSendList:
		return "SEND_LIST"
	case StateAwaitListEnd:
		return "AWAIT_LIST_END"
	case StateInitComplete:
		return "INIT_COMPLETE"
	case StateStandby:
		return "STANDBY"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// table identifies one of the ircDDB SENDLIST table ids (spec §4.7).
type table int

const (
	tableRepeaters table = iota
	tableUsers
	tableCount
)

// listEndTimeout bounds how long a SENDLIST request may run before the
// client re-elects a server and retries (spec §4.7: "15 minute timeout").
const listEndTimeout = 15 * time.Minute

// Config configures a Client (spec §6 "ircddb" configuration surface).
type Config struct {
	Hostname string
	Port     int
	Nick     string
	Password string
	Channel  string // e.g. "#dstar"
}

// Client is one ircDDB directory connection.
type Client struct {
	cfg Config
	log *logger.Logger

	stateMu sync.RWMutex
	state   State

	users      *userTable
	repeaters  *repeaterTable
	modules    *moduleTable
	currentTbl table

	elecMu   sync.Mutex
	server   string // elected server peer nick, "" if none
	lastOp   string // our own nick as seen in channel; not read or set by this client

	sendListMu   sync.Mutex
	sendListSent time.Time

	connMu sync.Mutex
	conn   net.Conn

	queries *queryManager

	dialFunc func(network, addr string) (net.Conn, error)
}

// New returns a Client ready to Run.
func New(cfg Config, log *logger.Logger) *Client {
	if cfg.Channel == "" {
		cfg.Channel = "#dstar"
	}
	return &Client{
		cfg:       cfg,
		log:       log.WithComponent("ircddb"),
		users:     newUserTable(),
		repeaters: newRepeaterTable(),
		modules:   newModuleTable(),
		queries:   newQueryManager(),
		dialFunc:  net.Dial,
	}
}

// State returns the client's current FSM state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
	c.log.Debug("ircddb state transition", logger.String("state", s.String()))
}

// Run connects and services the ircDDB session until ctx is cancelled,
// reconnecting on failure with a fixed 30s delay (spec §4.7: "reconnect
// on any session error").
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		default:
		}

		if err := c.runSession(ctx); err != nil {
			c.log.Warn("ircddb session ended", logger.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
		}
	}
}

func (c *Client) runSession(ctx context.Context) error {
	c.setState(StateConnecting)

	addr := fmt.Sprintf("%s:%d", c.cfg.Hostname, c.cfg.Port)
	conn, err := c.dialFunc("tcp", addr)
	if err != nil {
		return fmt.Errorf("ircddb: dial %s: %w", addr, err)
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

	c.setState(StateRegistering)
	if c.cfg.Password != "" {
		c.sendLine("PASS " + c.cfg.Password)
	}
	c.sendLine("NICK " + c.cfg.Nick)
	c.sendLine(fmt.Sprintf("USER %s 0 * :%s", c.cfg.Nick, c.cfg.Nick))

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.readLoop(sessCtx, conn) }()

	go c.listEndWatchdog(sessCtx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (c *Client) readLoop(ctx context.Context, conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<16)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		c.handleLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("ircddb: read: %w", err)
	}
	return fmt.Errorf("ircddb: connection closed")
}

func (c *Client) sendLine(line string) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return
	}
	c.conn.Write([]byte(line + "\r\n"))
}

func (c *Client) handleLine(raw string) {
	if strings.HasPrefix(raw, "PING") {
		c.sendLine("PONG" + strings.TrimPrefix(raw, "PING"))
		return
	}

	l, ok := parseIRCLine(raw)
	if !ok {
		return
	}

	switch l.command {
	case "001": // RPL_WELCOME
		c.setState(StateJoiningChannel)
		c.sendLine("JOIN " + c.cfg.Channel)
	case "JOIN":
		c.onJoin(l)
	case "PART", "QUIT":
		nick := nickFromPrefix(l.prefix)
		c.users.remove(nick)
		if nick != "" && nick == c.currentServer() {
			c.onElectionPoint()
		}
	case "NICK":
		old := nickFromPrefix(l.prefix)
		if u, ok := c.users.get(old); ok {
			c.users.remove(old)
			u.Nick = lastParam(l)
			u.USN++
			c.users.put(u)
		}
	case "353": // RPL_NAMREPLY
		c.onNames(l)
	case "366": // RPL_ENDOFNAMES
		c.onElectionPoint()
	case "MODE":
		c.onMode(l)
	case "PRIVMSG":
		c.onPrivmsg(l)
	}
}

func (c *Client) onJoin(l ircLine) {
	nick := nickFromPrefix(l.prefix)
	c.users.put(User{Nick: nick, Host: l.prefix})
}

// onNames ingests a RPL_NAMREPLY member list; "@nick" marks a channel
// operator.
func (c *Client) onNames(l ircLine) {
	if len(l.params) == 0 {
		return
	}
	names := strings.Fields(l.params[len(l.params)-1])
	for _, n := range names {
		op := strings.HasPrefix(n, "@")
		nick := strings.TrimLeft(n, "@+%&~")
		u, _ := c.users.get(nick)
		u.Nick = nick
		u.Op = op
		c.users.put(u)
	}
}

func (c *Client) onMode(l ircLine) {
	if len(l.params) < 3 {
		return
	}
	mode, nick := l.params[1], l.params[2]
	u, ok := c.users.get(nick)
	if !ok {
		return
	}
	switch mode {
	case "+o":
		u.Op = true
	case "-o":
		u.Op = false
	default:
		return
	}
	c.users.put(u)
}

// onElectionPoint runs after the channel membership settles (end of
// NAMES) and whenever the current server peer drops out.
func (c *Client) onElectionPoint() {
	c.setState(StateElectingServer)
	c.elect()
	c.setState(StateSelectTable)
	c.currentTbl = tableRepeaters
	c.requestSendList()
}

func (c *Client) elect() {
	c.elecMu.Lock()
	defer c.elecMu.Unlock()
	chosen := electServer(c.users.snapshot(), c.server)
	if chosen != c.server {
		c.log.Info("ircddb elected server peer", logger.String("server", chosen))
	}
	c.server = chosen
}

func (c *Client) currentServer() string {
	c.elecMu.Lock()
	defer c.elecMu.Unlock()
	return c.server
}

func (c *Client) requestSendList() {
	srv := c.currentServer()
	if srv == "" {
		c.setState(StateDisconnected)
		return
	}

	c.setState(StateSendList)
	maxTime := c.repeaters.getMaxTime()
	date, clock := formatDateTime(maxTime)
	fields := []string{date, clock}
	if c.currentTbl != tableRepeaters {
		fields = append([]string{tableName(c.currentTbl)}, fields...)
	}
	cmd := ddbCommand{kind: "SENDLIST", fields: fields}
	c.sendPrivmsg(srv, cmd.String())

	c.sendListMu.Lock()
	c.sendListSent = time.Now()
	c.sendListMu.Unlock()

	c.setState(StateAwaitListEnd)
}

func tableName(t table) string {
	switch t {
	case tableRepeaters:
		return "0"
	case tableUsers:
		return "1"
	default:
		return "0"
	}
}

func (c *Client) sendPrivmsg(target, text string) {
	c.sendLine(fmt.Sprintf("PRIVMSG %s :%s", target, text))
}

func (c *Client) onPrivmsg(l ircLine) {
	if len(l.params) < 2 {
		return
	}
	target, text := l.params[0], l.params[len(l.params)-1]
	if !strings.EqualFold(target, c.cfg.Channel) && !strings.EqualFold(target, c.cfg.Nick) {
		return
	}

	cmd, ok := parseDDBCommand(text)
	if !ok {
		return
	}

	switch cmd.kind {
	case "UPDATE":
		c.applyUpdate(cmd)
	case "SENDLIST":
		// another client's request; not our concern unless we are the
		// elected server, which this client never is.
	case "FIND":
		c.handleFind(nickFromPrefix(l.prefix), cmd)
	case "NOT_FOUND":
		if len(cmd.fields) > 0 {
			c.queries.resolve(padKey(cmd.fields[0]), QueryResult{Found: false})
		}
	case "LIST_MORE":
		// server paginating SENDLIST; nothing more to do, data already
		// arrives via UPDATE lines interleaved in the stream.
	case "LIST_END":
		if c.State() == StateAwaitListEnd {
			c.advanceTable()
		}
	}
}

// applyUpdate absorbs one UPDATE record into the repeater or user-route
// table (spec §4.7 "update language", §8 scenario 5).
//
// Wire form, per original_source/IRCDDBApp.cpp's doUpdate: an optional
// leading table-id digit, then a space-separated "<date> <time>" pair,
// then the two callsigns. The table digit matches this client's own
// table numbering (tableRepeaters=0, tableUsers=1, see requestSendList);
// when absent it defaults to the repeater table, per spec §8 scenario 5's
// worked example.
func (c *Client) applyUpdate(cmd ddbCommand) {
	fields := cmd.fields
	tableID := int(tableRepeaters)
	if len(fields) == 5 {
		if n, err := strconv.Atoi(fields[0]); err == nil {
			tableID = n
			fields = fields[1:]
		}
	}
	if len(fields) != 4 {
		return
	}

	changed, ok := parseDateTime(fields[0], fields[1])
	if !ok {
		changed = time.Now().UTC()
	}
	call1 := padKey(fields[2])
	call2 := padKey(fields[3])

	if tableID == int(tableUsers) {
		c.repeaters.putUserRoute(call1, call2, changed)
	} else {
		c.repeaters.putRepeater(Repeater{AreaCall: call1, ZoneCall: call2, LastChanged: changed})
	}
	c.queries.resolve(call1, QueryResult{Found: true, Extra: strings.TrimSpace(call2)})
}

func (c *Client) advanceTable() {
	c.currentTbl++
	if c.currentTbl >= tableCount {
		c.setState(StateInitComplete)
		c.enterStandby()
		return
	}
	c.setState(StateSelectTable)
	c.requestSendList()
}

func (c *Client) enterStandby() {
	c.setState(StateStandby)
}

// listEndWatchdog re-elects a server and retries the in-flight SENDLIST
// if no LIST_END arrives within listEndTimeout (spec §4.7).
func (c *Client) listEndWatchdog(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sendListMu.Lock()
			sent := c.sendListSent
			c.sendListMu.Unlock()
			if c.State() == StateAwaitListEnd && !sent.IsZero() && time.Since(sent) > listEndTimeout {
				c.log.Warn("ircddb SENDLIST timed out, re-electing server")
				c.onElectionPoint()
			}
		}
	}
}

func lastParam(l ircLine) string {
	if len(l.params) == 0 {
		return ""
	}
	return l.params[len(l.params)-1]
}
