// Package reflectorpool implements the dynamic pool of reflector.Handler
// instances: on-demand UDP port allocation and a cursor-remembering
// round-robin read (spec §4.4), grounded on original_source's
// DCSProtocolHandlerPool.cpp (port-probe getHandler, map-based release,
// cursor-remembering read) and the teacher's pkg/bridge.Router, which scans
// its rule set with the same "hold a cursor, advance until a hit" shape.
package reflectorpool

import (
	"fmt"
	"net"

	"github.com/dstargw/core/pkg/logger"
	"github.com/dstargw/core/pkg/reflector"
)

// Factory constructs a protocol-specific Handler bound to localAddr.
type Factory func(localAddr *net.UDPAddr, log *logger.Logger) (reflector.Handler, error)

// Pool allocates reflector.Handler instances on demand, one per local UDP
// port, and round-robins reads across them (spec §4.4). It is not
// internally synchronized — the containing routing loop owns it and calls
// it single-threaded (spec §4.4 Concurrency note).
type Pool struct {
	factory  Factory
	log      *logger.Logger
	baseAddr net.IP
	basePort int
	maxPort  int

	handlers []reflector.Handler
	byPort   map[int]reflector.Handler
	cursor   int
}

// New returns an empty pool that allocates ports starting at basePort on
// baseAddr (spec §4.4: "opens a new UDP socket on the first free local
// port starting at a configured base").
func New(factory Factory, log *logger.Logger, baseAddr net.IP, basePort, maxPort int) *Pool {
	return &Pool{
		factory:  factory,
		log:      log.WithComponent("reflectorpool"),
		baseAddr: baseAddr,
		basePort: basePort,
		maxPort:  maxPort,
		byPort:   make(map[int]reflector.Handler),
	}
}

// Acquire opens a new handler on the first free port, never returning one
// already tracked by the pool (spec §4.4 invariant: "at most one handler
// per local port").
func (p *Pool) Acquire() (reflector.Handler, error) {
	for port := p.basePort; port <= p.maxPort; port++ {
		if _, used := p.byPort[port]; used {
			continue
		}

		h, err := p.factory(&net.UDPAddr{IP: p.baseAddr, Port: port}, p.log)
		if err != nil {
			// Port may be in use by something outside the pool; try the next one.
			continue
		}

		p.handlers = append(p.handlers, h)
		p.byPort[port] = h
		return h, nil
	}

	return nil, fmt.Errorf("reflectorpool: no free port in range [%d, %d]", p.basePort, p.maxPort)
}

// Release closes h and removes it from the pool.
func (p *Pool) Release(h reflector.Handler) error {
	for i, existing := range p.handlers {
		if existing != h {
			continue
		}
		p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)
		if p.cursor > i {
			p.cursor--
		}
		break
	}

	for port, existing := range p.byPort {
		if existing == h {
			delete(p.byPort, port)
			break
		}
	}

	return h.Close()
}

// Size returns the number of handlers currently held by the pool.
func (p *Pool) Size() int { return len(p.handlers) }

// Handlers returns a snapshot of every handler currently pooled.
func (p *Pool) Handlers() []reflector.Handler {
	return append([]reflector.Handler(nil), p.handlers...)
}

// Read scans from the cursor until it finds a handler with a pending
// datagram, leaving the cursor on that handler so the caller's next
// ReadXxx call reads from it. If the scan wraps without a hit it returns
// KindNone (spec §4.4).
func (p *Pool) Read() (reflector.Handler, reflector.Kind, error) {
	n := len(p.handlers)
	if n == 0 {
		return nil, reflector.KindNone, nil
	}

	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		h := p.handlers[idx]

		kind, err := h.Read()
		if err != nil {
			p.log.Warn("handler read error, isolating", logger.String("port", h.LocalAddr().String()), logger.Error(err))
			continue
		}
		if kind != reflector.KindNone {
			p.cursor = idx
			return h, kind, nil
		}
	}

	return nil, reflector.KindNone, nil
}

// Clock advances every pooled handler's timers (spec §4.8).
func (p *Pool) Clock(elapsedMs int64) {
	for _, h := range p.handlers {
		h.Clock(elapsedMs)
	}
}

// CloseAll releases every handler in the pool.
func (p *Pool) CloseAll() {
	for _, h := range append([]reflector.Handler(nil), p.handlers...) {
		_ = p.Release(h)
	}
}
