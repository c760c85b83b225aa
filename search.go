package ldap

import (
	"context"
	"sync"

	"github.com/modulecore/ldap/ber"
	"github.com/modulecore/ldap/filter"
)

// Entry is one directory entry delivered by a search, the ergonomic
// shape of a decoded ber.SearchResultEntry.
type Entry struct {
	DN         string
	Attributes []ber.PartialAttribute
}

// GetAttribute returns the first value of attr, or "" if absent.
func (e *Entry) GetAttribute(attr string) string {
	for _, a := range e.Attributes {
		if a.Type == attr && len(a.Values) > 0 {
			return a.Values[0]
		}
	}
	return ""
}

// SearchSink is the streaming sink of spec.md §6: entry (one per
// SearchResultEntry), reference (one per SearchResultReference), end
// (final SearchResultDone), error (terminal failure). Exactly one of
// End or Err fires, exactly once, after zero or more entries/refs.
type SearchSink struct {
	Entries    chan *Entry
	References chan []string
	done       chan struct{}

	mu     sync.Mutex
	result ber.LDAPResult
	err    error
}

func newSearchSink() *SearchSink {
	return &SearchSink{
		Entries:    make(chan *Entry, 16),
		References: make(chan []string, 4),
		done:       make(chan struct{}),
	}
}

// Done returns a channel closed once the search has a terminal
// outcome; check Err() afterward.
func (s *SearchSink) Done() <-chan struct{} { return s.done }

// Err returns the terminal error, if any, once Done is closed.
func (s *SearchSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result returns the terminal SearchResultDone payload on success.
func (s *SearchSink) Result() ber.LDAPResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// searchSink is the internal delivery-side wrapper the dispatcher
// writes to; pendingRequest references it directly to avoid a type
// assertion on every delivered event.
type searchSink struct{ s *SearchSink }

func (w *searchSink) entry(e ber.SearchResultEntry) {
	w.s.Entries <- &Entry{DN: e.ObjectName, Attributes: e.Attributes}
}

func (w *searchSink) reference(r ber.SearchResultReference) {
	w.s.References <- r.URIs
}

func (w *searchSink) end(result ber.LDAPResult) {
	w.s.mu.Lock()
	w.s.result = result
	w.s.mu.Unlock()
	close(w.s.Entries)
	close(w.s.References)
	close(w.s.done)
}

func (w *searchSink) fail(err error) {
	w.s.mu.Lock()
	w.s.err = err
	w.s.mu.Unlock()
	close(w.s.Entries)
	close(w.s.References)
	close(w.s.done)
}

// pagedRequestState carries what continuePagedSearch needs to
// re-serialize a SearchRequest with an updated cookie and resend it
// under the same messageID and sink (spec.md §4.H).
type pagedRequestState struct {
	messageID int64
	op        ber.SearchRequest
	pageSize  int64
	critical  bool
}

// continuePagedSearch inspects a terminal SearchResultDone's controls
// for PagedResults. A non-empty cookie re-sends the same SearchRequest
// with a PagedResults control carrying that cookie, reusing the
// messageID/sink; the resent message carries only that control, not
// any other controls the first request had. An empty
// cookie or absent control means the search is complete and the
// caller should fall through to normal completion.
func (c *Client) continuePagedSearch(t *transport, pending *pendingRequest, msg *ber.Message, result ber.LDAPResult) bool {
	if pending.request == nil {
		return false
	}
	for _, ctrl := range msg.Controls {
		if ctrl.Type != ber.OIDPagedResults {
			continue
		}
		pr, err := ber.DecodePagedResults(ctrl)
		if err != nil || len(pr.Cookie) == 0 {
			return false
		}
		state := pending.request
		nextCtrl := ber.PagedResults{Size: state.pageSize, Cookie: pr.Cookie}.Encode(state.critical)
		out := &ber.Message{
			MessageID: state.messageID,
			Op:        state.op,
			Controls:  []ber.Control{nextCtrl},
		}
		t.write(berEncodeMessage(out))
		return true
	}
	return false
}

// SearchOptions configures Search; zero-value fields take spec.md
// §4.G's documented defaults (scope=base, filter=(objectClass=*),
// timeLimit=10, sizeLimit=0).
type SearchOptions struct {
	BaseObject   string
	Scope        ber.Scope
	DerefAliases ber.DerefAliases
	SizeLimit    int64
	TimeLimit    int64
	TypesOnly    bool
	Filter       *filter.Filter
	FilterString string
	Attributes   []string

	// PageSize, when > 0, requests PagedResults pagination (RFC 2696)
	// and the dispatcher drives continuation transparently.
	PageSize int64
}

func (o SearchOptions) resolveFilter() (*filter.Filter, error) {
	if o.Filter != nil {
		return o.Filter, nil
	}
	if o.FilterString != "" {
		return filter.Parse(o.FilterString)
	}
	return filter.Present("objectClass"), nil
}

// Search issues a searchRequest and returns a SearchSink delivering
// entries as they arrive. The default filter is "(objectClass=*)", the
// default scope is base, the default timeLimit is 10 seconds' worth of
// server-side limit (RFC 4511 semantics: a count in seconds), and the
// default sizeLimit is 0 (unbounded). Any caller-supplied controls are
// sent alongside the PagedResults control PageSize adds automatically.
func (c *Client) Search(ctx context.Context, opts SearchOptions, controls ...ber.Control) (*SearchSink, error) {
	f, err := opts.resolveFilter()
	if err != nil {
		return nil, &InvalidArgument{Field: "Filter", Message: err.Error()}
	}
	timeLimit := opts.TimeLimit
	if timeLimit == 0 {
		timeLimit = 10
	}

	req := ber.SearchRequest{
		BaseObject:   opts.BaseObject,
		Scope:        opts.Scope,
		DerefAliases: opts.DerefAliases,
		SizeLimit:    opts.SizeLimit,
		TimeLimit:    timeLimit,
		TypesOnly:    opts.TypesOnly,
		Filter:       f,
		Attributes:   opts.Attributes,
	}

	if opts.PageSize > 0 {
		controls = append(controls, ber.PagedResults{Size: opts.PageSize}.Encode(false))
	}

	sink := newSearchSink()
	c.stats.recordOp("search")

	err = c.send(ctx, sendArgs{
		op:       req,
		controls: controls,
		expected: successOnly,
		sink:     &searchSink{s: sink},
		pagedState: &pagedRequestState{
			op:       req,
			pageSize: opts.PageSize,
			critical: false,
		},
	})
	if err != nil {
		return nil, err
	}
	return sink, nil
}
