// Package localrepeater implements the UDP ingestion loop for one
// locally attached repeater or hotspot (spec §2 "local repeater port"),
// grounded on the teacher's pkg/network.Server receive/cleanup loop
// shape (a UDP listener with a receiveLoop goroutine selecting against
// ctx.Done alongside an errChan), applied here to the protocol-
// independent frame.Header/AMBE framing a repeater speaks directly
// (no reflector envelope) and bridged onto whichever reflector.Handler
// is currently linked via pkg/reflectorpool.
package localrepeater

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dstargw/core/pkg/config"
	"github.com/dstargw/core/pkg/database"
	"github.com/dstargw/core/pkg/frame"
	"github.com/dstargw/core/pkg/gateway"
	"github.com/dstargw/core/pkg/logger"
	"github.com/dstargw/core/pkg/metrics"
	"github.com/dstargw/core/pkg/reflector"
	"github.com/dstargw/core/pkg/reflectorpool"
)

// pollInterval bounds how often the relay loop polls the active handler
// for pending datagrams.
const pollInterval = 20 * time.Millisecond

// Repeater bridges one local UDP-attached repeater to a dynamically
// linked reflector (spec §2, §4.5).
type Repeater struct {
	cfg   config.RepeaterConfig
	log   *logger.Logger
	cache *gateway.Cache
	pools map[reflector.Protocol]*reflectorpool.Pool

	repo    *database.LinkSessionRepository // may be nil: persistence is best-effort (spec §7 StoreFailed)
	metrics *metrics.Collector

	conn *net.UDPConn

	mu         sync.Mutex
	remoteAddr *net.UDPAddr
	handler    reflector.Handler
	sessionID  uint
	streamID   uint16
}

// New returns a Repeater ready to Start.
func New(cfg config.RepeaterConfig, cache *gateway.Cache, pools map[reflector.Protocol]*reflectorpool.Pool, repo *database.LinkSessionRepository, mc *metrics.Collector, log *logger.Logger) *Repeater {
	return &Repeater{
		cfg:     cfg,
		log:     log.WithComponent("localrepeater." + cfg.Callsign),
		cache:   cache,
		pools:   pools,
		repo:    repo,
		metrics: mc,
	}
}

// Start opens the repeater's UDP socket and runs until ctx is cancelled.
func (r *Repeater) Start(ctx context.Context) error {
	addr := &net.UDPAddr{IP: net.ParseIP(r.cfg.Address), Port: r.cfg.Port}
	if addr.IP == nil {
		addr.IP = net.IPv4zero
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("localrepeater: listen %s: %w", addr, err)
	}
	r.conn = conn
	defer conn.Close()

	r.log.Info("local repeater port open", logger.String("addr", conn.LocalAddr().String()))

	if r.cfg.ReflectorAtStartup && r.cfg.Reflector != "" {
		if err := r.link(r.cfg.Reflector); err != nil {
			r.log.Warn("startup reflector link failed", logger.String("reflector", r.cfg.Reflector), logger.Error(err))
		}
	}

	errCh := make(chan error, 2)
	go func() { errCh <- r.receiveLoop(ctx) }()
	go func() { errCh <- r.relayLoop(ctx) }()

	select {
	case <-ctx.Done():
		r.unlink("shutdown")
		return nil
	case err := <-errCh:
		r.unlink("receive error")
		return err
	}
}

func (r *Repeater) receiveLoop(ctx context.Context) error {
	buf := make([]byte, 128)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		r.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("localrepeater: read: %w", err)
		}

		r.mu.Lock()
		r.remoteAddr = addr
		r.mu.Unlock()

		switch n {
		case frame.HeaderSize:
			h, err := frame.ParseHeader(buf[:n])
			if err != nil {
				r.log.Warn("malformed header from repeater", logger.Error(err))
				continue
			}
			r.onHeader(h)
		case frame.AMBEDatagramSize:
			vf, err := frame.ParseAMBEDatagram(buf[:n])
			if err != nil {
				r.log.Warn("malformed AMBE datagram from repeater", logger.Error(err))
				continue
			}
			r.onVoice(vf)
		default:
			r.log.Debug("ignoring unrecognized datagram size", logger.Int("bytes", n))
		}
	}
}

func (r *Repeater) onHeader(h *frame.Header) {
	r.mu.Lock()
	linked := r.handler != nil
	r.mu.Unlock()

	if !linked {
		target := strings.TrimSpace(r.cfg.Reflector)
		if target == "" {
			return
		}
		if err := r.link(target); err != nil {
			r.log.Warn("on-demand reflector link failed", logger.String("reflector", target), logger.Error(err))
			return
		}
	}

	r.mu.Lock()
	handler := r.handler
	r.streamID++
	streamID := r.streamID
	r.mu.Unlock()

	if handler == nil {
		return
	}
	if err := handler.WriteHeader(streamID, h); err != nil {
		r.log.Warn("failed to forward header to reflector", logger.Error(err))
	}
}

func (r *Repeater) onVoice(vf *frame.AMBEDatagram) {
	r.mu.Lock()
	handler := r.handler
	r.mu.Unlock()
	if handler == nil {
		return
	}

	out := reflector.VoiceFrame{StreamID: vf.StreamID, Seq: vf.Seq, Voice: vf.Voice, SlowData: vf.SlowData}
	if err := handler.WriteData(vf.StreamID, out); err != nil {
		r.log.Warn("failed to forward voice to reflector", logger.Error(err))
	}
}

// relayLoop polls the active handler for reflector-originated datagrams
// and forwards them back onto the repeater's UDP socket.
func (r *Repeater) relayLoop(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.pollHandler()
		}
	}
}

func (r *Repeater) pollHandler() {
	r.mu.Lock()
	handler := r.handler
	remote := r.remoteAddr
	r.mu.Unlock()
	if handler == nil {
		return
	}

	kind, err := handler.Read()
	if err != nil {
		r.log.Warn("handler read error", logger.Error(err))
		return
	}

	switch kind {
	case reflector.KindHeader:
		streamID, h, err := handler.ReadHeader()
		if err != nil || remote == nil {
			return
		}
		_, _ = r.conn.WriteToUDP(h.Encode(), remote)
		_ = streamID
	case reflector.KindAMBE:
		vf, err := handler.ReadData()
		if err != nil || remote == nil {
			return
		}
		dg := &frame.AMBEDatagram{StreamID: vf.StreamID, Seq: vf.Seq, Voice: vf.Voice, SlowData: vf.SlowData}
		_, _ = r.conn.WriteToUDP(dg.Encode(), remote)
	case reflector.KindConnectAck:
		r.onConnectOutcome(handler)
	case reflector.KindDisconnect:
		r.unlink("peer disconnect")
	}
}

func (r *Repeater) onConnectOutcome(handler reflector.Handler) {
	link := handler.Link()
	if link == nil {
		return
	}
	if link.State() == reflector.LinkLinked {
		if r.metrics != nil {
			r.metrics.LinkOpened(handler.Protocol().String())
		}
		return
	}

	r.log.Warn("reflector rejected link", logger.String("reflector", r.cfg.Reflector))
	if r.metrics != nil {
		r.metrics.LinkFailed(handler.Protocol().String(), "rejected")
	}
	r.releaseHandler("rejected")
}

// link acquires a handler from the pool matching reflectorCallsign's
// protocol and issues the connect request (spec §4.3 LINKING state).
func (r *Repeater) link(reflectorCallsign string) error {
	rec, ok := r.cache.Find(reflectorCallsign)
	if !ok {
		return fmt.Errorf("localrepeater: reflector %q not found in gateway cache", reflectorCallsign)
	}

	pool, ok := r.pools[rec.Protocol]
	if !ok {
		return fmt.Errorf("localrepeater: no pool configured for protocol %s", rec.Protocol)
	}

	handler, err := pool.Acquire()
	if err != nil {
		return fmt.Errorf("localrepeater: acquire handler: %w", err)
	}

	addr, err := gateway.ResolveAddr(rec)
	if err != nil {
		pool.Release(handler)
		return fmt.Errorf("localrepeater: resolve %s: %w", rec.Address, err)
	}

	from := strings.TrimSpace(r.cfg.Callsign) + strings.TrimSpace(r.cfg.Band)
	if err := handler.WriteConnect(from, reflectorCallsign, addr, reflector.DirectionOut); err != nil {
		pool.Release(handler)
		return fmt.Errorf("localrepeater: write connect: %w", err)
	}

	r.mu.Lock()
	r.handler = handler
	r.mu.Unlock()

	if r.repo != nil {
		session := &database.LinkSession{
			LocalModule:    r.cfg.Band,
			RemoteCallsign: reflectorCallsign,
			Protocol:       rec.Protocol.String(),
			Direction:      "outbound",
		}
		if err := r.repo.Create(session); err != nil {
			r.log.Warn("failed to persist link session", logger.Error(err))
		} else {
			r.mu.Lock()
			r.sessionID = session.ID
			r.mu.Unlock()
		}
	}

	return nil
}

func (r *Repeater) unlink(reason string) {
	r.mu.Lock()
	handler := r.handler
	r.handler = nil
	sessionID := r.sessionID
	r.sessionID = 0
	r.mu.Unlock()

	if handler == nil {
		return
	}

	_ = handler.WriteDisconnect(strings.TrimSpace(r.cfg.Callsign))
	if pool, ok := r.pools[handler.Protocol()]; ok {
		pool.Release(handler)
	}
	if r.metrics != nil {
		if link := handler.Link(); link != nil && (link.State() == reflector.LinkLinked || link.State() == reflector.LinkUnlinking) {
			r.metrics.LinkClosed(handler.Protocol().String())
		}
	}
	if r.repo != nil && sessionID != 0 {
		if err := r.repo.Close(sessionID, time.Now(), reason); err != nil {
			r.log.Warn("failed to close link session record", logger.Error(err))
		}
	}
}

func (r *Repeater) releaseHandler(reason string) { r.unlink(reason) }
