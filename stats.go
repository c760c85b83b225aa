package ldap

import (
	"sync/atomic"
	"time"

	"github.com/modulecore/ldap/internal/coarsetime"
)

// ClientStats is a snapshot of client-side counters. All fields are
// safe for concurrent access; Stats() returns a point-in-time copy.
//
// The uint64 counters come first, followed by the state flags and then
// the LastActivity and LastReconnectError fields.
type ClientStats struct {
	Binds        uint64
	Adds         uint64
	Deletes      uint64
	Modifies     uint64
	ModifyDNs    uint64
	Compares     uint64
	Extended     uint64
	Searches     uint64
	Abandons     uint64
	Reconnects   uint64
	Errors       uint64
	Connected    bool
	Reconnecting bool

	// LastActivity is the coarse (≤50ms resolution) time the most
	// recent operation was issued, or the zero Time if none yet.
	LastActivity time.Time

	// LastReconnectError is the error from the most recent connect or
	// reconnect attempt, or nil if the most recent attempt succeeded or
	// none has been made yet.
	LastReconnectError error
}

type statsCollector struct {
	binds        uint64
	adds         uint64
	deletes      uint64
	modifies     uint64
	modifyDNs    uint64
	compares     uint64
	extended     uint64
	searches     uint64
	abandons     uint64
	reconnects   uint64
	errors       uint64
	connected    atomic.Bool
	reconnecting atomic.Bool
	lastActivity atomic.Value // time.Time, via coarsetime.Now()
}

func (s *statsCollector) recordOp(op string) {
	s.lastActivity.Store(coarsetime.Now())
	switch op {
	case "bind":
		atomic.AddUint64(&s.binds, 1)
	case "add":
		atomic.AddUint64(&s.adds, 1)
	case "delete":
		atomic.AddUint64(&s.deletes, 1)
	case "modify":
		atomic.AddUint64(&s.modifies, 1)
	case "modifyDN":
		atomic.AddUint64(&s.modifyDNs, 1)
	case "compare":
		atomic.AddUint64(&s.compares, 1)
	case "extended":
		atomic.AddUint64(&s.extended, 1)
	case "search":
		atomic.AddUint64(&s.searches, 1)
	case "abandon":
		atomic.AddUint64(&s.abandons, 1)
	}
}

func (s *statsCollector) recordReconnect() { atomic.AddUint64(&s.reconnects, 1) }
func (s *statsCollector) recordError()     { atomic.AddUint64(&s.errors, 1) }

func (s *statsCollector) snapshot() ClientStats {
	var lastActivity time.Time
	if v, ok := s.lastActivity.Load().(time.Time); ok {
		lastActivity = v
	}
	return ClientStats{
		LastActivity: lastActivity,
		Binds:        atomic.LoadUint64(&s.binds),
		Adds:         atomic.LoadUint64(&s.adds),
		Deletes:      atomic.LoadUint64(&s.deletes),
		Modifies:     atomic.LoadUint64(&s.modifies),
		ModifyDNs:    atomic.LoadUint64(&s.modifyDNs),
		Compares:     atomic.LoadUint64(&s.compares),
		Extended:     atomic.LoadUint64(&s.extended),
		Searches:     atomic.LoadUint64(&s.searches),
		Abandons:     atomic.LoadUint64(&s.abandons),
		Reconnects:   atomic.LoadUint64(&s.reconnects),
		Errors:       atomic.LoadUint64(&s.errors),
		Connected:    s.connected.Load(),
		Reconnecting: s.reconnecting.Load(),
	}
}

// Stats returns a snapshot of client counters and connection state.
func (c *Client) Stats() ClientStats {
	snap := c.stats.snapshot()
	c.mu.Lock()
	snap.LastReconnectError = c.lastConnectErr
	c.mu.Unlock()
	return snap
}
