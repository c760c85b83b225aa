package ldap

import (
	"sync"
	"time"
)

// queueEntry is one buffered outbound request (spec.md §3 QueueEntry),
// held while no Transport is available.
type queueEntry struct {
	send func() // re-invokes submit against the now-live transport
	fail func(error)
}

// requestQueue is the bounded FIFO with freeze/flush/purge semantics
// of spec.md §4.D, modeled on the teacher's channel-based pool
// (pool_channel.go) for its mutex-guarded slice-as-FIFO shape, adapted
// here to entries rather than pooled connections.
type requestQueue struct {
	mu       sync.Mutex
	entries  []*queueEntry
	frozen   bool
	size     int // 0 = unbounded
	timeout  time.Duration
	timer    *timerHandle
	onExpire func()
}

func newRequestQueue(size int, timeout time.Duration, startFrozen bool) *requestQueue {
	return &requestQueue{size: size, timeout: timeout, frozen: startFrozen}
}

// enqueue appends entry unless the queue is frozen or at capacity. The
// timer, if configured, is armed exactly on the empty-to-non-empty
// transition (spec.md §4.D; this implementation takes the documented
// contract as authoritative over the source's apparent off-by-one).
func (q *requestQueue) enqueue(entry *queueEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.frozen {
		return false
	}
	if q.size > 0 && len(q.entries) >= q.size {
		return false
	}

	wasEmpty := len(q.entries) == 0
	q.entries = append(q.entries, entry)

	if wasEmpty && q.timeout > 0 && q.onExpire != nil {
		q.timer = afterFunc(q.timeout, q.onExpire)
	}
	return true
}

// flush synchronously drains the queue in FIFO order, invoking handler
// once per entry, and clears the timer.
func (q *requestQueue) flush(handler func(*queueEntry)) {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	if q.timer != nil {
		q.timer.stop()
		q.timer = nil
	}
	q.mu.Unlock()

	for _, e := range entries {
		handler(e)
	}
}

// purge is flush with every entry failed as QueueTimeout.
func (q *requestQueue) purge() {
	q.flush(func(e *queueEntry) {
		e.fail(&QueueTimeout{})
	})
}

func (q *requestQueue) freeze() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frozen = true
}

func (q *requestQueue) thaw() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frozen = false
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
