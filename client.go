package ldap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/modulecore/ldap/ber"
)

// connState is the Client's transport lifecycle state (spec.md §4.G
// state machine).
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateDestroyed
)

// Client is a process-addressable handle owning at most one live
// Transport (spec.md §3). All state transitions are serialized through
// mu; I/O callbacks (the reader goroutine, timers) funnel back through
// methods that take mu, realizing the "logically single-threaded per
// Client" scheduling model of spec.md §5 without requiring the caller
// to hold any lock across a callback.
type Client struct {
	cfg    Config
	dialer *net.Dialer

	mu        sync.Mutex
	state     connState
	transport *transport
	queue     *requestQueue
	idleTimer *timerHandle

	breaker *gobreaker.CircuitBreaker[net.Conn]

	stats  *statsCollector
	events chan EventRecord

	stopReconnect  chan struct{}
	connectOnce    chan struct{} // closed after the first connect attempt resolves
	lastConnectErr error

	restricted bool // true for the setup-hook client: only Bind/Search/Unbind, bypasses the queue
}

// NewClient constructs a Client from cfg. It does not dial; call
// Connect to establish the transport.
func NewClient(cfg Config) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("ldap: applying config defaults: %w", err)
	}
	if cfg.Addr == "" && cfg.SocketPath == "" {
		return nil, &InvalidArgument{Field: "Addr", Message: "one of Addr or SocketPath is required"}
	}

	c := &Client{
		cfg:    cfg,
		dialer: &net.Dialer{Timeout: cfg.ConnectTimeout},
		stats:  &statsCollector{},
		events: make(chan EventRecord, 64),
	}
	c.queue = newRequestQueue(cfg.Queue.Size, cfg.Queue.Timeout, !cfg.Queue.Enabled)
	c.queue.onExpire = func() {
		c.cfg.Logger.Warn().Int("queued", c.queue.len()).Msg("queue timeout expired, freezing and purging")
		c.queue.freeze()
		c.queue.purge()
	}

	if cfg.Reconnect != nil {
		c.breaker = gobreaker.NewCircuitBreaker[net.Conn](gobreaker.Settings{
			Name:        cfg.Addr,
			MaxRequests: 1,
			Timeout:     cfg.Reconnect.MaxDelay,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}
	return c, nil
}

// Connect drives the connection manager (spec.md §4.E) through the
// reconnect driver (§4.F). It blocks until the first attempt resolves
// (success, or permanent failure when no Reconnect policy — or
// FailAfter attempts — is configured); subsequent reconnection after a
// later transport loss happens in the background and is observable via
// Events().
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateDestroyed {
		c.mu.Unlock()
		return &ClientDestroyed{}
	}
	c.state = stateConnecting
	c.stopReconnect = make(chan struct{})
	c.connectOnce = make(chan struct{})
	c.mu.Unlock()

	go c.reconnectLoop()

	select {
	case <-c.connectOnce:
		return c.firstConnectErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) firstConnectErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastConnectErr
}

// reconnectLoop implements spec.md §4.F: dial with exponential backoff,
// doubling from InitialDelay to MaxDelay, bounded by FailAfter if set.
// If Reconnect is nil, exactly one attempt is made.
func (c *Client) reconnectLoop() {
	delay := time.Duration(0)
	attempt := 0
	resolvedFirst := false

	resolve := func() {
		if !resolvedFirst {
			resolvedFirst = true
			close(c.connectOnce)
		}
	}

	for {
		select {
		case <-c.stopReconnect:
			resolve()
			return
		default:
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-c.stopReconnect:
				timer.Stop()
				resolve()
				return
			}
		}

		if attempt > 0 {
			c.stats.reconnecting.Store(true)
			c.cfg.Logger.Info().Int("attempt", attempt+1).Dur("delay", delay).Str("addr", c.cfg.Addr).Msg("reconnect attempt")
		}

		err := c.connectOnce_attempt()
		attempt++
		c.stats.reconnecting.Store(false)

		if err == nil {
			c.setConnectErr(nil)
			if attempt > 1 {
				c.cfg.Logger.Info().Int("attempt", attempt).Msg("reconnect succeeded")
			}
			resolve()
			if c.cfg.Reconnect == nil {
				return
			}
			// Wait for this connection to be torn down before retrying.
			c.waitForDisconnect()
			if c.destroyed() {
				return
			}
			delay = 0
			continue
		}

		c.setConnectErr(err)
		c.stats.recordError()
		c.cfg.Logger.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")

		if c.cfg.Reconnect == nil {
			resolve()
			return
		}
		c.stats.recordReconnect()

		if c.cfg.Reconnect.FailAfter > 0 && attempt >= c.cfg.Reconnect.FailAfter {
			c.cfg.Logger.Error().Int("attempts", attempt).Msg("reconnect giving up, failAfter exhausted")
			resolve()
			return
		}

		if delay == 0 {
			delay = c.cfg.Reconnect.InitialDelay
		} else {
			delay *= 2
			if delay > c.cfg.Reconnect.MaxDelay {
				delay = c.cfg.Reconnect.MaxDelay
			}
		}
	}
}

func (c *Client) setConnectErr(err error) {
	c.mu.Lock()
	c.lastConnectErr = err
	c.mu.Unlock()
}

func (c *Client) waitForDisconnect() {
	<-c.disconnected()
}

func (c *Client) disconnected() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.transport.closeCh
}

func (c *Client) destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateDestroyed
}

// connectOnce_attempt performs one dial+init+setup-hooks+commit cycle
// (spec.md §4.E), gated by the circuit breaker when Reconnect is
// configured so a known-down endpoint fails fast between backoff ticks
// instead of spending the whole delay on a doomed dial.
func (c *Client) connectOnce_attempt() error {
	dial := func() (net.Conn, error) {
		if c.cfg.dialFunc != nil {
			return c.cfg.dialFunc()
		}
		return dialTransport(c.cfg, c.dialer)
	}

	var conn net.Conn
	var err error
	if c.breaker != nil {
		conn, err = c.breaker.Execute(dial)
	} else {
		conn, err = dial()
	}
	if err != nil {
		c.emit(EventConnectError, err)
		if err, ok := err.(net.Error); ok && err.Timeout() {
			c.emit(EventConnectTimeout, err)
			return &ConnectionError{Message: "connection timeout", Cause: err}
		}
		return &ConnectionError{Message: "dial failed", Cause: err}
	}

	t := newTransport(conn)

	if err := c.runSetupHooks(t); err != nil {
		t.close()
		return err
	}

	c.mu.Lock()
	c.transport = t
	c.state = stateConnected
	c.mu.Unlock()
	c.stats.connected.Store(true)

	go t.readLoop(
		func(msg *ber.Message) { c.onMessage(t, msg) },
		func(err error) { c.onTransportError(t, err) },
	)

	c.emit(EventConnect, nil)
	c.flushQueue()
	return nil
}

// runSetupHooks invokes each hook in series against a restricted
// client bound to the not-yet-committed transport, per spec.md
// §4.E.4. A hook failure fails the connect attempt.
func (c *Client) runSetupHooks(t *transport) error {
	if len(c.cfg.SetupHooks) == 0 {
		return nil
	}
	restricted := &Client{
		cfg:        c.cfg,
		dialer:     c.dialer,
		stats:      c.stats,
		events:     c.events,
		restricted: true,
	}
	restricted.transport = t
	restricted.state = stateConnected
	restricted.queue = newRequestQueue(0, 0, true)

	for _, hook := range c.cfg.SetupHooks {
		if err := hook(restricted); err != nil {
			return &ConnectionError{Message: "setup hook failed", Cause: err}
		}
	}
	c.emit(EventSetup, nil)
	return nil
}

// onTransportError tears down t: drains its request table (resolving
// every pending request with err, except a sole pendingUnbind which
// resolves successfully), emits Error/Close, and — if t is still the
// Client's live transport — clears it so the reconnect driver can
// rebuild.
func (c *Client) onTransportError(t *transport, err error) {
	t.markClosed()
	t.table.drain(&ConnectionError{Message: "transport closed", Cause: err})

	c.mu.Lock()
	isCurrent := c.transport == t
	if isCurrent {
		c.transport = nil
		if c.state != stateDestroyed {
			c.state = stateDisconnected
		}
	}
	c.mu.Unlock()

	if !isCurrent {
		return
	}
	c.stats.connected.Store(false)
	c.stopIdleTimer()

	if errors.Is(err, io.EOF) {
		c.cfg.Logger.Info().Str("addr", c.cfg.Addr).Msg("transport closed by peer")
		c.emit(EventEnd, nil)
	} else {
		c.cfg.Logger.Warn().Err(err).Str("addr", c.cfg.Addr).Msg("transport error")
		c.emit(EventError, err)
	}
	c.emit(EventClose, nil)
}

func (c *Client) onMessage(t *transport, msg *ber.Message) {
	pending, ok := t.table.peek(msg.MessageID)
	if !ok {
		c.cfg.Logger.Warn().Int64("messageID", msg.MessageID).Msg("unsolicited message")
		return
	}

	switch op := msg.Op.(type) {
	case ber.SearchResultEntry:
		if pending.sink != nil {
			pending.sink.entry(op)
		}
		return
	case ber.SearchResultReference:
		if pending.sink != nil {
			pending.sink.reference(op)
		}
		return
	case ber.SearchResultDone:
		if c.continuePagedSearch(t, pending, msg, op.LDAPResult) {
			return
		}
		c.completeRequest(t, pending, op.LDAPResult, op)
		return
	default:
		result, ok := extractResult(op)
		if !ok {
			c.completeProtocolError(t, pending, "unrecognized protocolOp in response")
			return
		}
		c.completeRequest(t, pending, result, op)
	}
}

func extractResult(op ber.ProtocolOp) (ber.LDAPResult, bool) {
	switch v := op.(type) {
	case ber.BindResponse:
		return v.LDAPResult, true
	case ber.AddResponse:
		return v.LDAPResult, true
	case ber.DelResponse:
		return v.LDAPResult, true
	case ber.ModifyResponse:
		return v.LDAPResult, true
	case ber.ModifyDNResponse:
		return v.LDAPResult, true
	case ber.CompareResponse:
		return v.LDAPResult, true
	case ber.ExtendedResponse:
		return v.LDAPResult, true
	default:
		return ber.LDAPResult{}, false
	}
}

func (c *Client) completeProtocolError(t *transport, pending *pendingRequest, msg string) {
	t.table.remove(pending.messageID)
	if pending.timeoutTimer != nil {
		pending.timeoutTimer.stop()
	}
	c.afterRequestCompleted(t)
	if pending.sink != nil {
		pending.sink.fail(&ProtocolError{Message: msg})
		return
	}
	if pending.complete != nil {
		pending.complete(&ProtocolError{Message: msg}, nil)
	}
}

// completeRequest finishes a non-streaming (or exhausted-stream)
// request: removes it from the table, updates idle accounting, and
// delivers success or a mapped ServerError, per spec.md §4.G "Per-
// message response handling".
func (c *Client) completeRequest(t *transport, pending *pendingRequest, result ber.LDAPResult, raw ber.ProtocolOp) {
	t.table.remove(pending.messageID)
	if pending.timeoutTimer != nil {
		pending.timeoutTimer.stop()
	}
	c.afterRequestCompleted(t)

	var err error
	if !pending.expected[int64(result.ResultCode)] {
		err = serverErrorFromResult(result)
	}

	if pending.sink != nil {
		if err != nil {
			pending.sink.fail(err)
		} else {
			pending.sink.end(result)
		}
		return
	}
	if pending.complete != nil {
		pending.complete(err, responseValue(raw, result))
	}
}

// responseValue picks what a completion callback receives on success:
// plain LDAPResult for most operations, but the richer ExtendedResult
// for Extended (name/value the generic result can't carry).
func responseValue(raw ber.ProtocolOp, result ber.LDAPResult) any {
	if ext, ok := raw.(ber.ExtendedResponse); ok {
		return &ExtendedResult{Name: ext.Name, Value: ext.Value}
	}
	return result
}

// afterRequestCompleted re-arms the idle timer once the table becomes
// empty (spec.md §4.G Idle accounting).
func (c *Client) afterRequestCompleted(t *transport) {
	if t.table.len() > 0 {
		return
	}
	c.armIdleTimer()
}

func (c *Client) armIdleTimer() {
	if c.cfg.IdleTimeout <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idleTimer != nil {
		c.idleTimer.stop()
	}
	t := c.transport
	c.idleTimer = afterFunc(c.cfg.IdleTimeout, func() {
		// Recheck at fire time to avoid a race with a newly-installed
		// request.
		if t == nil || t.table.len() > 0 {
			return
		}
		c.cfg.Logger.Debug().Str("addr", c.cfg.Addr).Msg("idle")
		c.emit(EventIdle, nil)
	})
}

func (c *Client) stopIdleTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idleTimer != nil {
		c.idleTimer.stop()
		c.idleTimer = nil
	}
}

func (c *Client) markActive() {
	c.stopIdleTimer()
}

func (c *Client) flushQueue() {
	c.queue.flush(func(e *queueEntry) {
		e.send()
	})
}

// Destroy is terminal: freezes the queue, errors all queued items,
// sends Unbind best-effort, and suppresses all future reconnects
// (spec.md §5 "destroy()").
func (c *Client) Destroy() {
	c.mu.Lock()
	if c.state == stateDestroyed {
		c.mu.Unlock()
		return
	}
	c.state = stateDestroyed
	t := c.transport
	stopCh := c.stopReconnect
	c.mu.Unlock()

	c.cfg.Logger.Info().Int("queued", c.queue.len()).Msg("destroying client, freezing and purging queue")
	c.queue.freeze()
	c.queue.flush(func(e *queueEntry) {
		e.fail(&ClientDestroyed{})
	})

	if stopCh != nil {
		close(stopCh)
	}

	if t != nil {
		_ = c.sendUnbindBestEffort(t)
		t.close()
	}
	c.stopIdleTimer()
	c.emit(EventDestroy, nil)
}

func (c *Client) sendUnbindBestEffort(t *transport) error {
	id := t.nextMessageID()
	msg := &ber.Message{MessageID: id, Op: ber.UnbindRequest{}}
	packet := berEncodeMessage(msg)
	t.write(packet)
	return nil
}

func berEncodeMessage(msg *ber.Message) []byte {
	return ber.EncodeMessage(msg).Bytes()
}
