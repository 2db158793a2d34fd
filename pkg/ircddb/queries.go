package ircddb

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// QueryKind distinguishes the three lookup flavors the gateway issues
// against ircDDB (spec §4.7).
type QueryKind int

const (
	QueryUser QueryKind = iota
	QueryRepeater
	QueryGateway
)

// QueryResult is returned by FindUser/FindRepeater/FindGateway once
// resolved, either from the local tables, a FIND round-trip, or gateway
// DNS.
type QueryResult struct {
	Found   bool
	Address string
	Extra   string // repeater callsign for a user query, gateway callsign for a repeater query
}

// queryManager tracks in-flight FIND requests keyed by the callsign
// being searched for, so a NOT_FOUND/UPDATE arriving later can resolve
// the right waiter (spec §4.7 "reply queue").
type queryManager struct {
	mu      sync.Mutex
	pending map[string][]chan QueryResult
}

func newQueryManager() *queryManager {
	return &queryManager{pending: make(map[string][]chan QueryResult)}
}

func (q *queryManager) register(key string) chan QueryResult {
	ch := make(chan QueryResult, 1)
	q.mu.Lock()
	q.pending[key] = append(q.pending[key], ch)
	q.mu.Unlock()
	return ch
}

func (q *queryManager) resolve(key string, result QueryResult) {
	q.mu.Lock()
	chans := q.pending[key]
	delete(q.pending, key)
	q.mu.Unlock()

	for _, ch := range chans {
		ch <- result
	}
}

// reflectorDNSSuffix is the zone ircDDB publishes reflector gateway
// addresses under, bypassing the IRC directory entirely (spec §4.7
// "gateway lookup bypass").
const reflectorDNSSuffix = ".reflector.ircddb.net"

// reflectorPrefixes are the callsign prefixes resolved via DNS instead
// of the IRC FIND protocol.
var reflectorPrefixes = []string{"XRF", "REF", "DCS", "XLX"}

func isReflectorCallsign(callsign string) bool {
	up := strings.ToUpper(strings.TrimSpace(callsign))
	for _, p := range reflectorPrefixes {
		if strings.HasPrefix(up, p) {
			return true
		}
	}
	return false
}

// FindGateway resolves a reflector's gateway address via DNS when
// callsign carries a recognized reflector prefix, per spec §4.7: looks
// up "<6-char-prefix>.reflector.ircddb.net".
func (c *Client) FindGateway(ctx context.Context, callsign string) QueryResult {
	trimmed := strings.TrimSpace(strings.ToUpper(callsign))
	if !isReflectorCallsign(trimmed) {
		return c.findViaIRC(ctx, QueryGateway, trimmed)
	}

	name := trimmed
	if len(name) > 6 {
		name = name[:6]
	}
	host := strings.ToLower(name) + reflectorDNSSuffix

	resolver := net.DefaultResolver
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return QueryResult{Found: false}
	}
	return QueryResult{Found: true, Address: addrs[0]}
}

// FindRepeater resolves a repeater's owning gateway callsign, checking
// the local table before issuing a FIND round-trip (spec §4.7).
func (c *Client) FindRepeater(ctx context.Context, areaCall string) QueryResult {
	key := padKey(areaCall)
	if r, ok := c.repeaters.find(key); ok {
		return QueryResult{Found: true, Extra: strings.TrimSpace(r.ZoneCall)}
	}
	return c.findViaIRC(ctx, QueryRepeater, key)
}

// FindUser resolves the repeater a user was last heard on, checking the
// local table before issuing a FIND round-trip (spec §4.7).
func (c *Client) FindUser(ctx context.Context, userCall string) QueryResult {
	key := padKey(userCall)
	if rpt, ok := c.repeaters.findUserRoute(key); ok {
		return QueryResult{Found: true, Extra: strings.TrimSpace(rpt)}
	}
	return c.findViaIRC(ctx, QueryUser, key)
}

// findViaIRC issues a "FIND <callsign>" round-trip to the elected server
// (original_source/IRCDDBApp.cpp's findUser: "FIND " + usr, callsign
// padding escaped as underscores). The query kind is purely local to this
// client — the wire request carries only the bare callsign — and kind is
// not used to match the reply: the resulting UPDATE/NOT_FOUND is routed by
// callsign alone.
func (c *Client) findViaIRC(ctx context.Context, kind QueryKind, key string) QueryResult {
	srv := c.currentServer()
	if srv == "" {
		return QueryResult{Found: false}
	}

	waiter := c.queries.register(key)
	cmd := ddbCommand{kind: "FIND", fields: []string{escapeCallsign(key)}}
	c.sendPrivmsg(srv, cmd.String())

	select {
	case res := <-waiter:
		return res
	case <-ctx.Done():
		return QueryResult{Found: false}
	case <-time.After(10 * time.Second):
		return QueryResult{Found: false}
	}
}

// handleFind answers an incoming FIND from a peer against our own
// tables; this client never acts as the elected server so it only
// replies to direct addressed lookups (defensive: real ircDDB deployments
// route FIND exclusively to the elected "s-" server).
func (c *Client) handleFind(from string, cmd ddbCommand) {
	if len(cmd.fields) < 1 {
		return
	}
	key := padKey(cmd.fields[0])
	if r, ok := c.repeaters.find(key); ok {
		date, clock := formatDateTime(r.LastChanged)
		reply := ddbCommand{kind: "UPDATE", fields: []string{date, clock, escapeCallsign(key), escapeCallsign(r.ZoneCall)}}
		c.sendPrivmsg(from, reply.String())
		return
	}
	reply := ddbCommand{kind: "NOT_FOUND", fields: []string{escapeCallsign(key)}}
	c.sendPrivmsg(from, reply.String())
}

// RptrQTH stages a repeater's QTH (location) line for the next standby
// publication pass (spec §4.7 rptrQTH).
func (c *Client) RptrQTH(module, qth string) { c.modules.stageQTH(module, qth) }

// RptrQRG stages a repeater's QRG (frequency) line (spec §4.7 rptrQRG).
func (c *Client) RptrQRG(module, qrg string) { c.modules.stageQRG(module, qrg) }

// KickWatchdog records recent local traffic on module, refreshing its
// liveness timestamp for the next standby publication pass (spec §4.7
// kickWatchdog).
func (c *Client) KickWatchdog(module string) { c.modules.kickWatchdog(module) }

// PublishPending flushes every module's staged QTH/QRG/watchdog updates
// to the elected server as "IRCDDB RPTRQTH:", "IRCDDB RPTRQRG:" and
// "IRCDDB RPTRSW:" lines. Intended to be called
// periodically (e.g. from the clock bus) while in StateStandby.
func (c *Client) PublishPending() {
	if c.State() != StateStandby {
		return
	}
	srv := c.currentServer()
	if srv == "" {
		return
	}

	for module, s := range c.modules.drainDirty() {
		if s.qthDirty {
			c.sendPrivmsg(srv, fmt.Sprintf("IRCDDB RPTRQTH: %s %s", module, s.qth))
		}
		if s.qrgDirty {
			c.sendPrivmsg(srv, fmt.Sprintf("IRCDDB RPTRQRG: %s %s", module, s.qrg))
		}
		if s.watchdogDirty {
			date, clock := formatDateTime(s.lastWatchdog)
			c.sendPrivmsg(srv, fmt.Sprintf("IRCDDB RPTRSW: %s %s %s", module, date, clock))
		}
	}
}
