// Package testutils provides a scriptable fake LDAP peer for tests
// that exercise the connection manager and dispatcher against a real
// net.Conn pair instead of a real directory server, adapted from the
// static-buffer ConnectionMock pattern this module's teacher used for
// memcache responses into a full-duplex net.Pipe() responder capable
// of replying to requests as they arrive.
package testutils

import (
	"net"

	asn1 "github.com/go-asn1-ber/asn1-ber"
)

// FakePeer is the server side of an in-process net.Pipe() connection.
// Handler is invoked once per decoded request packet; it may write zero
// or more response packets back via Conn.
type FakePeer struct {
	Conn    net.Conn
	Handler func(req *asn1.Packet, peer *FakePeer)
}

// NewFakePeer returns (clientConn, peer). The caller hands clientConn
// to the code under test and starts peer.Serve in a goroutine.
func NewFakePeer(handler func(req *asn1.Packet, peer *FakePeer)) (net.Conn, *FakePeer) {
	client, server := net.Pipe()
	return client, &FakePeer{Conn: server, Handler: handler}
}

// Serve reads packets from Conn until it errs or closes, invoking
// Handler for each one.
func (p *FakePeer) Serve() {
	for {
		packet, err := asn1.ReadPacket(p.Conn)
		if err != nil {
			return
		}
		p.Handler(packet, p)
	}
}

// Send writes a pre-built response packet to the client.
func (p *FakePeer) Send(packet *asn1.Packet) {
	p.Conn.Write(packet.Bytes())
}

// Close closes the server side of the pipe.
func (p *FakePeer) Close() { p.Conn.Close() }
