package ldap

import "sync"

// pendingKind discriminates how a PendingRequest's completion is
// invoked, per spec.md §3's PendingRequest union.
type pendingKind int

const (
	pendingTerminal pendingKind = iota // single completion, error or final response
	pendingStream                      // search: entry/reference events then one end/error
	pendingAbandon                     // write-only, no response expected
	pendingUnbind                      // write-only sentinel, resolves the transport teardown successfully
)

// pendingRequest is one entry in a Transport's request table (spec.md
// §4.C), correlating a messageID with how to deliver its outcome.
type pendingRequest struct {
	messageID    int64
	kind         pendingKind
	expected     map[int64]bool // expected result codes; nil for pendingAbandon/pendingUnbind
	request      *pagedRequestState
	complete     func(error, any) // terminal completion; any is the decoded response
	sink         *searchSink      // non-nil only for pendingStream
	timeoutTimer *timerHandle
}

// requestTable is the keyed map from messageID to pendingRequest,
// owned exclusively by one Transport (spec.md §4.C). Mutation is
// guarded by a mutex because timers and the reader goroutine both
// touch it, even though each Transport has only one logical owner.
type requestTable struct {
	mu      sync.Mutex
	entries map[int64]*pendingRequest
}

func newRequestTable() *requestTable {
	return &requestTable{entries: make(map[int64]*pendingRequest)}
}

func (t *requestTable) install(p *pendingRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[p.messageID] = p
}

func (t *requestTable) take(id int64) (*pendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return p, ok
}

func (t *requestTable) peek(id int64) (*pendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	return p, ok
}

func (t *requestTable) remove(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

func (t *requestTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// drain removes every entry and resolves it with err, except that the
// single pendingUnbind entry (if any) resolves successfully — spec.md
// §3 invariant and §8 property 6.
func (t *requestTable) drain(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[int64]*pendingRequest)
	t.mu.Unlock()

	for _, p := range entries {
		if p.timeoutTimer != nil {
			p.timeoutTimer.stop()
		}
		switch p.kind {
		case pendingUnbind:
			if p.complete != nil {
				p.complete(nil, nil)
			}
		case pendingStream:
			if p.sink != nil {
				p.sink.fail(err)
			}
		default:
			if p.complete != nil {
				p.complete(err, nil)
			}
		}
	}
}
