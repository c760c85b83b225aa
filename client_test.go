package ldap

import (
	"context"
	"net"
	"testing"
	"time"

	asn1 "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/require"

	"github.com/modulecore/ldap/ber"
	"github.com/modulecore/ldap/internal/testutils"
)

// newTestClient wires cfg.dialFunc to clientConn and returns a
// connected Client, failing the test if Connect does not resolve
// within a generous deadline.
func newTestClient(t *testing.T, cfg Config, clientConn net.Conn) *Client {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "fake"
	}
	cfg.dialFunc = func() (net.Conn, error) { return clientConn, nil }

	c, err := NewClient(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	return c
}

func decodeRequest(t *testing.T, p *asn1.Packet) *ber.Message {
	t.Helper()
	msg, err := ber.DecodeMessage(p)
	require.NoError(t, err)
	return msg
}

// S1: simple bind success.
func TestBindSuccess(t *testing.T) {
	clientConn, peer := testutils.NewFakePeer(func(req *asn1.Packet, peer *testutils.FakePeer) {
		msg := decodeRequest(t, req)
		bind, ok := msg.Op.(ber.BindRequest)
		require.True(t, ok)
		require.Equal(t, "cn=admin,dc=example,dc=com", bind.Name)
		resp := &ber.Message{MessageID: msg.MessageID, Op: ber.BindResponse{LDAPResult: ber.LDAPResult{ResultCode: ber.ResultSuccess}}}
		peer.Send(ber.EncodeMessage(resp))
	})
	go peer.Serve()

	c := newTestClient(t, Config{}, clientConn)
	defer c.Destroy()

	res, err := c.Bind(context.Background(), "cn=admin,dc=example,dc=com", "secret")
	require.NoError(t, err)
	require.Equal(t, ber.ResultSuccess, res.Result.ResultCode)
	require.Equal(t, uint64(1), c.Stats().Binds)
}

// S2: Compare maps CompareTrue/CompareFalse to bool, NoSuchObject to error.
func TestCompareResultMapping(t *testing.T) {
	var nextCode ber.ResultCode
	clientConn, peer := testutils.NewFakePeer(func(req *asn1.Packet, peer *testutils.FakePeer) {
		msg := decodeRequest(t, req)
		_, ok := msg.Op.(ber.CompareRequest)
		require.True(t, ok)
		resp := &ber.Message{MessageID: msg.MessageID, Op: ber.CompareResponse{LDAPResult: ber.LDAPResult{ResultCode: nextCode}}}
		peer.Send(ber.EncodeMessage(resp))
	})
	go peer.Serve()

	c := newTestClient(t, Config{}, clientConn)
	defer c.Destroy()

	nextCode = ber.ResultCompareTrue
	ok, err := c.Compare(context.Background(), "uid=bob,dc=example,dc=com", "uid", "bob")
	require.NoError(t, err)
	require.True(t, ok)

	nextCode = ber.ResultCompareFalse
	ok, err = c.Compare(context.Background(), "uid=bob,dc=example,dc=com", "uid", "carol")
	require.NoError(t, err)
	require.False(t, ok)

	nextCode = ber.ResultNoSuchObject
	_, err = c.Compare(context.Background(), "uid=ghost,dc=example,dc=com", "uid", "ghost")
	require.Error(t, err)
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, ber.ResultNoSuchObject, serverErr.ResultCode)
}

// S3: search delivers three entries then a successful Done.
func TestSearchThreeEntries(t *testing.T) {
	clientConn, peer := testutils.NewFakePeer(func(req *asn1.Packet, peer *testutils.FakePeer) {
		msg := decodeRequest(t, req)
		_, ok := msg.Op.(ber.SearchRequest)
		require.True(t, ok)
		for i := 0; i < 3; i++ {
			entry := ber.SearchResultEntry{
				ObjectName: "uid=user" + string(rune('0'+i)) + ",dc=example,dc=com",
				Attributes: []ber.PartialAttribute{{Type: "uid", Values: []string{"user"}}},
			}
			peer.Send(ber.EncodeMessage(&ber.Message{MessageID: msg.MessageID, Op: entry}))
		}
		done := ber.SearchResultDone{LDAPResult: ber.LDAPResult{ResultCode: ber.ResultSuccess}}
		peer.Send(ber.EncodeMessage(&ber.Message{MessageID: msg.MessageID, Op: done}))
	})
	go peer.Serve()

	c := newTestClient(t, Config{}, clientConn)
	defer c.Destroy()

	sink, err := c.Search(context.Background(), SearchOptions{BaseObject: "dc=example,dc=com", Scope: ber.ScopeWholeSubtree})
	require.NoError(t, err)

	var entries []*Entry
	for e := range sink.Entries {
		entries = append(entries, e)
	}
	<-sink.Done()
	require.NoError(t, sink.Err())
	require.Len(t, entries, 3)
	require.Equal(t, ber.ResultSuccess, sink.Result().ResultCode)
}

// S4: paged search resumes across three pages under the same messageID.
func TestPagedSearchThreePages(t *testing.T) {
	var seenMessageIDs []int64
	page := 0
	clientConn, peer := testutils.NewFakePeer(func(req *asn1.Packet, peer *testutils.FakePeer) {
		msg := decodeRequest(t, req)
		_, ok := msg.Op.(ber.SearchRequest)
		require.True(t, ok)
		seenMessageIDs = append(seenMessageIDs, msg.MessageID)

		entry := ber.SearchResultEntry{ObjectName: "uid=page-entry,dc=example,dc=com"}
		peer.Send(ber.EncodeMessage(&ber.Message{MessageID: msg.MessageID, Op: entry}))

		page++
		var cookie []byte
		if page < 3 {
			cookie = []byte{byte(page)}
		}
		ctrl := ber.PagedResults{Size: 0, Cookie: cookie}.Encode(false)
		done := ber.SearchResultDone{LDAPResult: ber.LDAPResult{ResultCode: ber.ResultSuccess}}
		peer.Send(ber.EncodeMessage(&ber.Message{MessageID: msg.MessageID, Op: done, Controls: []ber.Control{ctrl}}))
	})
	go peer.Serve()

	c := newTestClient(t, Config{}, clientConn)
	defer c.Destroy()

	sink, err := c.Search(context.Background(), SearchOptions{BaseObject: "dc=example,dc=com", PageSize: 1})
	require.NoError(t, err)

	var entries []*Entry
	for e := range sink.Entries {
		entries = append(entries, e)
	}
	<-sink.Done()
	require.NoError(t, sink.Err())
	require.Len(t, entries, 3)
	require.Equal(t, 3, page)
	require.Len(t, seenMessageIDs, 3)
	require.Equal(t, seenMessageIDs[0], seenMessageIDs[1])
	require.Equal(t, seenMessageIDs[0], seenMessageIDs[2])
}

// S5: a request submitted while the transport is down (after an initial
// connect, then a drop) is queued and flushed once reconnection succeeds.
func TestReconnectFlushesQueuedRequest(t *testing.T) {
	attempts := 0
	var firstPeer *testutils.FakePeer
	firstDialDone := make(chan struct{})

	bindHandler := func(req *asn1.Packet, peer *testutils.FakePeer) {
		msg := decodeRequest(t, req)
		resp := &ber.Message{MessageID: msg.MessageID, Op: ber.BindResponse{LDAPResult: ber.LDAPResult{ResultCode: ber.ResultSuccess}}}
		peer.Send(ber.EncodeMessage(resp))
	}

	dial := func() (net.Conn, error) {
		attempts++
		clientConn, peer := testutils.NewFakePeer(bindHandler)
		go peer.Serve()
		if attempts == 1 {
			firstPeer = peer
			close(firstDialDone)
		}
		return clientConn, nil
	}

	cfg := Config{
		Addr:      "fake",
		Reconnect: &ReconnectPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
		Queue:     QueuePolicy{Enabled: true},
		dialFunc:  dial,
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	defer c.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	require.Equal(t, 1, attempts)

	<-firstDialDone
	firstPeer.Close() // simulate the connection dropping

	// Give onTransportError time to run and drop the client into the
	// disconnected state before the Bind below is submitted, so it
	// exercises the queue rather than racing a live transport.
	time.Sleep(20 * time.Millisecond)

	res, err := c.Bind(context.Background(), "cn=admin,dc=example,dc=com", "secret")
	require.NoError(t, err)
	require.Equal(t, ber.ResultSuccess, res.Result.ResultCode)
	require.GreaterOrEqual(t, attempts, 2)
}

// S6: a per-request timeout fires when the server never replies.
func TestPerRequestTimeout(t *testing.T) {
	clientConn, peer := testutils.NewFakePeer(func(req *asn1.Packet, peer *testutils.FakePeer) {
		// Never respond.
	})
	go peer.Serve()

	c := newTestClient(t, Config{RequestTimeout: 30 * time.Millisecond}, clientConn)
	defer c.Destroy()

	_, err := c.Bind(context.Background(), "cn=admin,dc=example,dc=com", "secret")
	require.Error(t, err)
	var timeoutErr *RequestTimeout
	require.ErrorAs(t, err, &timeoutErr)
}
