package reflector

import (
	"net"
	"sync"
	"time"

	"github.com/dstargw/core/pkg/clockbus"
)

// LinkState is the per-link state machine (spec §4.3):
//
//	LINKING --link req--> WAIT_ACK --ACK--> LINKED --unlink req--> UNLINKING --unlink ack--> closed
//	   |--timeout(5s x3)--> FAILED     |--NAK--> FAILED    |--inactivity(30s)--> UNLINKING
type LinkState int

const (
	LinkLinking LinkState = iota
	LinkWaitAck
	LinkLinked
	LinkUnlinking
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkLinking:
		return "LINKING"
	case LinkWaitAck:
		return "WAIT_ACK"
	case LinkLinked:
		return "LINKED"
	case LinkUnlinking:
		return "UNLINKING"
	case LinkFailed:
		return "FAILED"
	case LinkClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Default timing constants from spec §4.3.
const (
	linkAttemptTimeoutMs = 5_000
	maxLinkRetries       = 3
	inactivityTimeoutMs  = 30_000
)

// retryBackoffMs is the linear back-off schedule between link attempts:
// 1s, 2s, 4s (spec §4.3). Clock fails the link at the maxLinkRetries-th
// expired attempt, so only the first two entries are applied.
var retryBackoffMs = []int64{1_000, 2_000, 4_000}

// Link is the shared per-link session state every protocol Handler
// embeds and drives identically; only the wire encoding of
// connect/poll/voice frames differs per protocol (spec §4.3, §9).
type Link struct {
	mu sync.RWMutex

	LocalModule    string
	RemoteCallsign string
	RemoteAddr     *net.UDPAddr
	Protocol       Protocol
	Direction      Direction

	state     LinkState
	lastHeard time.Time
	linkedAt  time.Time
	retries   int

	linkTimer       *clockbus.Timer
	keepAliveTimer  *clockbus.Timer
	inactivityTimer *clockbus.Timer

	pollDue bool
}

// NewLink creates a link in state LINKING, arming its attempt timer.
// keepAliveMs is the per-protocol poll cadence (1s DExtra/D-Plus, 3s DCS).
func NewLink(protocol Protocol, localModule, remoteCallsign string, addr *net.UDPAddr, dir Direction, keepAliveMs int64) *Link {
	l := &Link{
		LocalModule:     localModule,
		RemoteCallsign:  remoteCallsign,
		RemoteAddr:      addr,
		Protocol:        protocol,
		Direction:       dir,
		state:           LinkLinking,
		linkTimer:       clockbus.NewTimer(linkAttemptTimeoutMs),
		keepAliveTimer:  clockbus.NewTimer(keepAliveMs),
		inactivityTimer: clockbus.NewTimer(inactivityTimeoutMs),
	}
	l.linkTimer.Start()
	return l
}

// State returns the current link state.
func (l *Link) State() LinkState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// LastHeard returns the last time any traffic was observed from the peer.
func (l *Link) LastHeard() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastHeard
}

// LinkedAt returns when the link transitioned to LINKED (zero if never).
func (l *Link) LinkedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.linkedAt
}

// MarkWaitingAck transitions LINKING -> WAIT_ACK after the connect
// request is sent on the wire.
func (l *Link) MarkWaitingAck() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == LinkLinking {
		l.state = LinkWaitAck
	}
}

// Accept transitions WAIT_ACK -> LINKED on a CONNECT_ACK accept,
// starting the inactivity and keepalive timers.
func (l *Link) Accept(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = LinkLinked
	l.linkedAt = now
	l.lastHeard = now
	l.linkTimer.Stop()
	l.inactivityTimer.Start()
	l.keepAliveTimer.Start()
}

// Reject transitions WAIT_ACK -> FAILED on a CONNECT_ACK reject (NAK).
func (l *Link) Reject() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = LinkFailed
	l.linkTimer.Stop()
}

// Touch resets the inactivity timer; called on any poll or data
// received from the peer while LINKED.
func (l *Link) Touch(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastHeard = now
	if l.state == LinkLinked {
		l.inactivityTimer.Start()
	}
}

// BeginUnlink transitions LINKED -> UNLINKING (operator request or
// inactivity timeout).
func (l *Link) BeginUnlink() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == LinkLinked {
		l.state = LinkUnlinking
	}
}

// Close transitions UNLINKING -> closed on the peer's UNLINK ack.
func (l *Link) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = LinkClosed
	l.keepAliveTimer.Stop()
	l.inactivityTimer.Stop()
}

// PollDue reports and clears whether a keepalive poll should be sent.
func (l *Link) PollDue() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	due := l.pollDue
	l.pollDue = false
	return due
}

// Clock advances the link's timers and applies timeout-driven
// transitions (spec §4.3, §7 LinkTimeout). It returns true if the
// caller should (re)send a connect request, i.e. the retry budget was
// not exhausted.
func (l *Link) Clock(elapsedMs int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.linkTimer.Clock(elapsedMs)
	l.keepAliveTimer.Clock(elapsedMs)
	l.inactivityTimer.Clock(elapsedMs)

	retry := false

	switch l.state {
	case LinkLinking, LinkWaitAck:
		if l.linkTimer.HasExpired() {
			l.retries++
			if l.retries >= maxLinkRetries {
				l.state = LinkFailed
				l.linkTimer.Stop()
			} else {
				backoff := retryBackoffMs[min(l.retries-1, len(retryBackoffMs)-1)]
				l.linkTimer.SetTimeout(linkAttemptTimeoutMs + backoff)
				l.linkTimer.Start()
				l.state = LinkLinking
				retry = true
			}
		}

	case LinkLinked:
		if l.inactivityTimer.HasExpired() {
			l.state = LinkUnlinking
		} else if l.keepAliveTimer.HasExpired() {
			l.pollDue = true
			l.keepAliveTimer.Start()
		}
	}

	return retry
}
