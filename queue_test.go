package ldap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueRespectsCapacityAndFreeze(t *testing.T) {
	q := newRequestQueue(2, 0, false)

	require.True(t, q.enqueue(&queueEntry{}))
	require.True(t, q.enqueue(&queueEntry{}))
	require.False(t, q.enqueue(&queueEntry{}), "third entry should be rejected at capacity 2")
	require.Equal(t, 2, q.len())

	q.freeze()
	require.False(t, q.enqueue(&queueEntry{}), "frozen queue must reject new entries")

	q.thaw()
	q.flush(func(*queueEntry) {})
	require.True(t, q.enqueue(&queueEntry{}), "drained, thawed queue accepts again")
}

func TestQueueFlushRunsInFIFOOrder(t *testing.T) {
	q := newRequestQueue(0, 0, false)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		q.enqueue(&queueEntry{send: func() { order = append(order, i) }})
	}

	q.flush(func(e *queueEntry) { e.send() })
	require.Equal(t, []int{0, 1, 2}, order)
	require.Equal(t, 0, q.len())
}

func TestQueuePurgeFailsEntriesWithQueueTimeout(t *testing.T) {
	q := newRequestQueue(0, 0, false)

	var got error
	q.enqueue(&queueEntry{fail: func(err error) { got = err }})
	q.purge()

	var qt *QueueTimeout
	require.ErrorAs(t, got, &qt)
	require.Equal(t, 0, q.len())
}

func TestQueueTimerFiresOnExpireOnlyOnEmptyToNonEmptyTransition(t *testing.T) {
	fired := make(chan struct{}, 8)
	q := newRequestQueue(0, 15*time.Millisecond, false)
	q.onExpire = func() { fired <- struct{}{} }

	q.enqueue(&queueEntry{})
	q.enqueue(&queueEntry{}) // must not re-arm a second timer

	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("onExpire never fired")
	}
	select {
	case <-fired:
		t.Fatal("onExpire fired more than once for a single non-empty window")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequestTableDrainResolvesUnbindSuccessfullyAndOthersWithError(t *testing.T) {
	table := newRequestTable()

	var unbindErr error
	unbindSeen := false
	table.install(&pendingRequest{
		messageID: 1,
		kind:      pendingUnbind,
		complete:  func(err error, _ any) { unbindErr = err; unbindSeen = true },
	})

	var otherErr error
	table.install(&pendingRequest{
		messageID: 2,
		kind:      pendingTerminal,
		complete:  func(err error, _ any) { otherErr = err },
	})

	sink := newSearchSink()
	table.install(&pendingRequest{
		messageID: 3,
		kind:      pendingStream,
		sink:      &searchSink{s: sink},
	})

	drainErr := &ConnectionError{Message: "transport closed"}
	table.drain(drainErr)

	require.True(t, unbindSeen)
	require.NoError(t, unbindErr)
	require.ErrorIs(t, otherErr, drainErr)
	<-sink.Done()
	require.ErrorIs(t, sink.Err(), drainErr)
	require.Equal(t, 0, table.len())
}
