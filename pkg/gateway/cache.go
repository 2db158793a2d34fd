// Package gateway implements the callsign → gateway-record cache and
// hosts-file manager (spec §4.5), grounded on original_source's
// Common/HostsFilesManager.h (internet/custom directory precedence, a
// single-flight download timer) and the teacher's pkg/peer/acl.go for its
// hand-rolled, no-library line-oriented parsing texture applied here to the
// "CALLSIGN ADDRESS #comment" host-file grammar.
package gateway

import (
	"net"
	"sync"

	"github.com/dstargw/core/pkg/frame"
	"github.com/dstargw/core/pkg/reflector"
)

// Record is one cached gateway entry (spec §3 "Gateway record").
type Record struct {
	Callsign string
	Address  string // IPv4 literal or DNS name, resolved lazily on first use
	Port     int
	Protocol reflector.Protocol
	Locked   bool // set for entries from the operator's custom host file
}

// Cache maps padded callsign to gateway Record (spec §4.5). Every method
// takes the cache's own RWMutex, so callers need no lock of their own
// (spec §5: "single writer, many readers in practice").
type Cache struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{records: make(map[string]Record)}
}

// Find returns the record for callsign and whether it was present. The
// key is the space-padded, module-suffixed callsign (spec §3 "Callsign").
func (c *Cache) Find(callsign string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[key(callsign)]
	return r, ok
}

// Insert stores rec, last-writer-wins except that a locked entry is never
// overwritten by an unlocked one (spec §4.5, §8 invariant).
func (c *Cache) Insert(rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(rec.Callsign)
	if existing, ok := c.records[k]; ok && existing.Locked && !rec.Locked {
		return
	}
	c.records[k] = rec
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]Record)
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// ResolveAddr resolves rec.Address to a UDP endpoint, preferring an IPv4
// literal and falling back to DNS resolution (spec §4.5 "resolved lazily
// on first use").
func ResolveAddr(rec Record) (*net.UDPAddr, error) {
	if ip := net.ParseIP(rec.Address); ip != nil {
		return &net.UDPAddr{IP: ip, Port: rec.Port}, nil
	}
	addrs, err := net.LookupIP(rec.Address)
	if err != nil {
		return nil, err
	}
	for _, ip := range addrs {
		if v4 := ip.To4(); v4 != nil {
			return &net.UDPAddr{IP: v4, Port: rec.Port}, nil
		}
	}
	if len(addrs) > 0 {
		return &net.UDPAddr{IP: addrs[0], Port: rec.Port}, nil
	}
	return nil, &net.DNSError{Err: "no address found", Name: rec.Address}
}

// key normalizes callsign to the cache's map key form: uppercased and
// space-padded to the full 8-character field (spec §3 "Callsign").
func key(callsign string) string {
	return string(frame.PadCallsign(upper(callsign), frame.CallsignLength))
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
