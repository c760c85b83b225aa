package ldap

import (
	"bytes"
	"crypto/tls"
	"net"
	"sync/atomic"

	asn1 "github.com/go-asn1-ber/asn1-ber"

	"github.com/modulecore/ldap/ber"
	"github.com/modulecore/ldap/internal"
)

const maxMessageID = (1 << 31) - 1

// writeBufInitialSize sizes the pooled buffers transport.write reuses;
// most LDAP requests (binds, compares, modifies) encode well under this.
const writeBufInitialSize = 512

// transport is a single connected byte-stream, plain or TLS, owned
// exclusively by the Client while connected (spec.md §3 Transport).
type transport struct {
	conn net.Conn

	messageID atomic.Int64
	table     *requestTable

	bufPool *internal.BufferPool
	writeCh chan *bytes.Buffer
	closeCh chan struct{}
	closed  atomic.Bool
}

func dialTransport(cfg Config, dialer *net.Dialer) (net.Conn, error) {
	if cfg.SocketPath != "" {
		return dialer.Dial("unix", cfg.SocketPath)
	}
	if cfg.TLSConfig != nil {
		return tls.DialWithDialer(dialer, "tcp", cfg.Addr, cfg.TLSConfig)
	}
	return dialer.Dial("tcp", cfg.Addr)
}

func newTransport(conn net.Conn) *transport {
	t := &transport{
		conn:    conn,
		table:   newRequestTable(),
		bufPool: internal.NewBufferPool(writeBufInitialSize),
		writeCh: make(chan *bytes.Buffer, 64),
		closeCh: make(chan struct{}),
	}
	go t.writeLoop()
	return t
}

// nextMessageID allocates the next messageID, wrapping 2³¹−1 back to
// 1; 0 is never issued (spec.md §3, §4.E.2).
func (t *transport) nextMessageID() int64 {
	for {
		id := t.messageID.Add(1)
		if id > maxMessageID {
			if t.messageID.CompareAndSwap(id, 1) {
				return 1
			}
			continue
		}
		return id
	}
}

func (t *transport) writeLoop() {
	for {
		select {
		case buf, ok := <-t.writeCh:
			if !ok {
				return
			}
			_, err := t.conn.Write(buf.Bytes())
			t.bufPool.Put(buf)
			if err != nil {
				t.markClosed()
				return
			}
		case <-t.closeCh:
			// writeCh and closeCh can both be ready at once — e.g.
			// Unbind's write lands in the channel right before close()
			// runs. Drain whatever is already queued instead of
			// letting select's random choice drop it silently.
			t.drainPendingWrites()
			return
		}
	}
}

func (t *transport) drainPendingWrites() {
	for {
		select {
		case buf := <-t.writeCh:
			_, _ = t.conn.Write(buf.Bytes())
			t.bufPool.Put(buf)
		default:
			return
		}
	}
}

// write queues b for the write loop. b is copied into a pooled buffer
// so the caller's slice (typically the result of ber.Packet.Bytes())
// can be discarded immediately.
func (t *transport) write(b []byte) bool {
	if t.closed.Load() {
		return false
	}
	buf := t.bufPool.Get()
	buf.Write(b)
	select {
	case t.writeCh <- buf:
		return true
	case <-t.closeCh:
		t.bufPool.Put(buf)
		return false
	}
}

func (t *transport) markClosed() {
	if t.closed.CompareAndSwap(false, true) {
		close(t.closeCh)
	}
}

func (t *transport) close() {
	t.markClosed()
	t.conn.Close()
}

// readLoop frames incoming bytes into LDAPMessage values using the
// asn1-ber stream reader (spec.md §4.B Message parser) and dispatches
// each to onMessage. It returns when the connection errors or closes;
// the caller is responsible for tearing down the Transport and
// draining its request table.
func (t *transport) readLoop(onMessage func(*ber.Message), onError func(error)) {
	for {
		packet, err := asn1.ReadPacket(t.conn)
		if err != nil {
			onError(err)
			return
		}
		msg, err := ber.DecodeMessage(packet)
		if err != nil {
			onError(&ProtocolError{Message: "malformed LDAPMessage", Cause: err})
			return
		}
		onMessage(msg)
	}
}
