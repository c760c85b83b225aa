package ldap

import (
	"context"
	"strings"

	"github.com/modulecore/ldap/ber"
)

var (
	successOnly   = map[int64]bool{int64(ber.ResultSuccess): true}
	compareCodes  = map[int64]bool{int64(ber.ResultCompareTrue): true, int64(ber.ResultCompareFalse): true}
)

// sendArgs is the normalized shape of spec.md §4.G's
// send(message, expected, sink, completion, bypass?).
type sendArgs struct {
	op         ber.ProtocolOp
	controls   []ber.Control
	expected   map[int64]bool
	sink       *searchSink
	pagedState *pagedRequestState
	complete   func(error, any)
	bypass     bool
	abandon    bool // write-only, fires complete(nil) immediately after write
	unbind     bool // write-only sentinel, closes the transport
}

// send implements spec.md §4.G's dispatch rule:
//  1. bypass + writable transport: submit immediately.
//  2. no transport, or not connected: enqueue (or fail synchronously
//     if the queue refuses, or the client is destroyed).
//  3. otherwise: submit directly (the queue was already flushed on
//     connect, so there is nothing ahead of this request).
func (c *Client) send(ctx context.Context, args sendArgs) error {
	c.mu.Lock()
	state := c.state
	t := c.transport
	c.mu.Unlock()

	if state == stateDestroyed {
		return c.failSynchronously(args, &ClientDestroyed{})
	}

	if c.restricted && !setupHookAllows(args.op) {
		return c.failSynchronously(args, &InvalidArgument{
			Field:   "op",
			Message: "setup hooks may only Bind, Search, or Unbind",
		})
	}

	if args.bypass && t != nil {
		return c.submit(ctx, t, args)
	}

	if t == nil || state != stateConnected {
		return c.enqueue(ctx, args)
	}

	return c.submit(ctx, t, args)
}

// setupHookAllows reports whether op is one of the three operations a
// restricted setup-hook client may submit.
func setupHookAllows(op ber.ProtocolOp) bool {
	switch op.(type) {
	case ber.BindRequest, ber.SearchRequest, ber.UnbindRequest:
		return true
	default:
		return false
	}
}

func (c *Client) failSynchronously(args sendArgs, err error) error {
	if args.sink != nil {
		args.sink.fail(err)
		return nil
	}
	if args.complete != nil {
		args.complete(err, nil)
		return nil
	}
	return err
}

func (c *Client) enqueue(ctx context.Context, args sendArgs) error {
	done := make(chan error, 1)
	entry := &queueEntry{
		send: func() {
			if err := c.submit(ctx, c.currentTransport(), args); err != nil {
				done <- err
				return
			}
			done <- nil
		},
		fail: func(err error) {
			c.failSynchronously(args, err)
			done <- err
		},
	}
	if !c.queue.enqueue(entry) {
		return c.failSynchronously(args, errQueueFull)
	}
	// Streaming and fire-and-forget ops resolve asynchronously through
	// the sink/complete callback once the queued entry is eventually
	// sent; callers that need a synchronous accept/reject (e.g. tests)
	// can still observe errQueueFull above.
	return nil
}

func (c *Client) currentTransport() *transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// submit allocates a messageID, installs the continuation, arms the
// per-request timer, marks the client non-idle, serializes the PDU,
// and writes it — spec.md §4.G "submit".
func (c *Client) submit(ctx context.Context, t *transport, args sendArgs) error {
	if t == nil {
		return c.failSynchronously(args, &ConnectionError{Message: "no transport"})
	}

	id := t.nextMessageID()
	if args.pagedState != nil {
		args.pagedState.messageID = id
	}

	pending := &pendingRequest{
		messageID: id,
		expected:  args.expected,
		request:   args.pagedState,
		complete:  args.complete,
		sink:      args.sink,
	}
	switch {
	case args.abandon:
		pending.kind = pendingAbandon
	case args.unbind:
		pending.kind = pendingUnbind
	case args.sink != nil:
		pending.kind = pendingStream
	default:
		pending.kind = pendingTerminal
	}

	// Unbind is installed too (as a pendingUnbind sentinel) so a race
	// between its write and a server-initiated close is resolved by
	// requestTable.drain's unbind exception instead of being left
	// untracked. It gets no per-request timeout: there is no response
	// PDU to wait for.
	if !args.abandon {
		t.table.install(pending)
		c.markActive()
		if c.cfg.RequestTimeout > 0 && !args.unbind {
			pending.timeoutTimer = afterFunc(c.cfg.RequestTimeout, func() {
				c.fireRequestTimeout(t, id)
			})
		}
	}

	msg := &ber.Message{MessageID: id, Op: args.op, Controls: args.controls}
	packet := berEncodeMessage(msg)

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				c.cancelRequest(t, id, ctx.Err())
			case <-t.closeCh:
			}
		}()
	}

	if !t.write(packet) {
		if !args.abandon {
			t.table.remove(id)
		}
		return c.failSynchronously(args, &ConnectionError{Message: "write failed, transport closed"})
	}

	switch {
	case args.abandon:
		if args.complete != nil {
			args.complete(nil, nil)
		}
	case args.unbind:
		// The pendingUnbind entry installed above resolves when
		// t.close() tears the transport down and onTransportError
		// drains the table — drain's unbind exception is what calls
		// args.complete(nil, nil), not this switch.
		t.close()
	}
	return nil
}

// fireRequestTimeout synthesizes a local LDAPResult with resultCode 80
// and feeds it through the normal completion path (spec.md §4.G
// "Per-request timeout"). A later server reply for the same messageID
// is dropped as unsolicited since the entry is already gone.
func (c *Client) fireRequestTimeout(t *transport, id int64) {
	pending, ok := t.table.take(id)
	if !ok {
		return
	}
	c.afterRequestCompleted(t)
	result := ber.LDAPResult{
		ResultCode:   ber.ResultOther,
		ErrorMessage: "request timeout (client interrupt)",
	}
	err := &RequestTimeout{Underlying: result}
	c.emitTimeout(id)
	if pending.sink != nil {
		pending.sink.fail(err)
		return
	}
	if pending.complete != nil {
		pending.complete(err, result)
	}
}

// cancelRequest is the WithContext-cancellation supplement (SPEC_FULL
// §12): cancellation tears the pending request down the same way a
// timeout does.
func (c *Client) cancelRequest(t *transport, id int64, cause error) {
	pending, ok := t.table.take(id)
	if !ok {
		return
	}
	if pending.timeoutTimer != nil {
		pending.timeoutTimer.stop()
	}
	c.afterRequestCompleted(t)
	result := ber.LDAPResult{ResultCode: ber.ResultOther, ErrorMessage: "request canceled: " + cause.Error()}
	err := &RequestTimeout{Underlying: result}
	if pending.sink != nil {
		pending.sink.fail(err)
		return
	}
	if pending.complete != nil {
		pending.complete(err, result)
	}
}

// ---- Public operation methods (spec.md §4.G table) ----

// BindResult is the decoded response of a successful Bind.
type BindResult struct{ Result ber.LDAPResult }

// Bind performs a simple bind with dn/password.
func (c *Client) Bind(ctx context.Context, dn, password string, controls ...ber.Control) (*BindResult, error) {
	if dn == "" {
		return nil, &InvalidArgument{Field: "dn", Message: "must not be empty"}
	}
	c.stats.recordOp("bind")
	resultCh := make(chan result1, 1)
	err := c.send(ctx, sendArgs{
		op:       ber.BindRequest{Version: 3, Name: dn, Password: password},
		controls: controls,
		expected: successOnly,
		complete: func(err error, resp any) { resultCh <- result1{err, resp} },
	})
	if err != nil {
		return nil, err
	}
	r := <-resultCh
	if r.err != nil {
		return nil, r.err
	}
	return &BindResult{Result: r.resp.(ber.LDAPResult)}, nil
}

// Add creates a new entry.
func (c *Client) Add(ctx context.Context, dn string, attrs []ber.PartialAttribute, controls ...ber.Control) error {
	if dn == "" {
		return &InvalidArgument{Field: "dn", Message: "must not be empty"}
	}
	c.stats.recordOp("add")
	return c.syncOp(ctx, ber.AddRequest{Entry: dn, Attributes: attrs}, successOnly, controls)
}

// Delete removes an entry.
func (c *Client) Delete(ctx context.Context, dn string, controls ...ber.Control) error {
	if dn == "" {
		return &InvalidArgument{Field: "dn", Message: "must not be empty"}
	}
	c.stats.recordOp("delete")
	return c.syncOp(ctx, ber.DelRequest{DN: dn}, successOnly, controls)
}

// Change is a single attribute modification within a Modify call.
type Change = ber.Change

// Modify applies one or more Changes to dn.
func (c *Client) Modify(ctx context.Context, dn string, changes []Change, controls ...ber.Control) error {
	if dn == "" {
		return &InvalidArgument{Field: "dn", Message: "must not be empty"}
	}
	if len(changes) == 0 {
		return &InvalidArgument{Field: "changes", Message: "must not be empty"}
	}
	c.stats.recordOp("modify")
	return c.syncOp(ctx, ber.ModifyRequest{Object: dn, Changes: changes}, successOnly, controls)
}

// ModifyDN renames or moves an entry. newDN's first RDN becomes the
// new RDN; any remainder becomes the new superior. deleteOldRdn is
// always true.
func (c *Client) ModifyDN(ctx context.Context, dn, newDN string, controls ...ber.Control) error {
	if dn == "" || newDN == "" {
		return &InvalidArgument{Field: "dn", Message: "dn and newDN must not be empty"}
	}
	newRDN, newSuperior := splitRDN(newDN)
	c.stats.recordOp("modifyDN")
	return c.syncOp(ctx, ber.ModifyDNRequest{
		Entry:        dn,
		NewRDN:       newRDN,
		DeleteOldRDN: true,
		NewSuperior:  newSuperior,
	}, successOnly, controls)
}

func splitRDN(dn string) (rdn, superior string) {
	parts := strings.SplitN(dn, ",", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// Compare checks whether entry dn's attribute equals value.
func (c *Client) Compare(ctx context.Context, dn, attr, value string, controls ...ber.Control) (bool, error) {
	if dn == "" || attr == "" {
		return false, &InvalidArgument{Field: "dn", Message: "dn and attr must not be empty"}
	}
	c.stats.recordOp("compare")
	resultCh := make(chan result1, 1)
	err := c.send(ctx, sendArgs{
		op:       ber.CompareRequest{Entry: dn, Attribute: attr, Value: value},
		controls: controls,
		expected: compareCodes,
		complete: func(err error, resp any) { resultCh <- result1{err, resp} },
	})
	if err != nil {
		return false, err
	}
	r := <-resultCh
	if r.err != nil {
		return false, r.err
	}
	result := r.resp.(ber.LDAPResult)
	return result.ResultCode == ber.ResultCompareTrue, nil
}

// ExtendedResult is the decoded response of a successful Extended op.
type ExtendedResult struct {
	Name  string
	Value []byte
}

// Extended issues an extended operation identified by oid, with an
// opaque request value.
func (c *Client) Extended(ctx context.Context, oid string, value []byte, controls ...ber.Control) (*ExtendedResult, error) {
	if oid == "" {
		return nil, &InvalidArgument{Field: "oid", Message: "must not be empty"}
	}
	c.stats.recordOp("extended")
	resultCh := make(chan result1, 1)
	err := c.send(ctx, sendArgs{
		op:       ber.ExtendedRequest{Name: oid, Value: value},
		controls: controls,
		expected: successOnly,
		complete: func(err error, resp any) { resultCh <- result1{err, resp} },
	})
	if err != nil {
		return nil, err
	}
	r := <-resultCh
	if r.err != nil {
		return nil, r.err
	}
	return r.resp.(*ExtendedResult), nil
}

// Abandon requests cancellation of an outstanding operation by
// messageID. It does not touch that operation's table entry, so any
// further results the server still sends for it are delivered to that
// operation as usual.
func (c *Client) Abandon(ctx context.Context, messageID int64, controls ...ber.Control) error {
	c.stats.recordOp("abandon")
	return c.send(ctx, sendArgs{
		op:       ber.AbandonRequest{MessageID: messageID},
		controls: controls,
		abandon:  true,
	})
}

// Unbind gracefully closes the transport.
func (c *Client) Unbind(ctx context.Context, controls ...ber.Control) error {
	return c.send(ctx, sendArgs{op: ber.UnbindRequest{}, controls: controls, unbind: true, bypass: true})
}

func (c *Client) syncOp(ctx context.Context, op ber.ProtocolOp, expected map[int64]bool, controls []ber.Control) error {
	resultCh := make(chan result1, 1)
	err := c.send(ctx, sendArgs{
		op:       op,
		controls: controls,
		expected: expected,
		complete: func(err error, resp any) { resultCh <- result1{err, resp} },
	})
	if err != nil {
		return err
	}
	r := <-resultCh
	return r.err
}

type result1 struct {
	err  error
	resp any
}
