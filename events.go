package ldap

// Event is the discriminant for values delivered on a Client's Events
// channel, the typed-subscription re-architecture of the emitter
// surface spec.md §9 calls for ("Event emitter ... re-architects as a
// typed subscription surface").
type Event int

const (
	EventConnect Event = iota
	EventConnectError
	EventConnectTimeout
	EventSetup
	EventError
	EventClose
	EventEnd
	EventTimeout
	EventIdle
	EventDestroy
)

func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventConnectError:
		return "connectError"
	case EventConnectTimeout:
		return "connectTimeout"
	case EventSetup:
		return "setup"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	case EventEnd:
		return "end"
	case EventTimeout:
		return "timeout"
	case EventIdle:
		return "idle"
	case EventDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// EventRecord is one value delivered on Client.Events(). MessageID is
// set for EventTimeout (a single request's per-request timer fired);
// Err is set for the error-carrying variants.
type EventRecord struct {
	Kind      Event
	MessageID int64
	Err       error
}

func (c *Client) emit(kind Event, err error) {
	rec := EventRecord{Kind: kind, Err: err}
	select {
	case c.events <- rec:
	default:
		// A slow or absent subscriber must never block the client's
		// single logical event stream; drop rather than stall.
	}
}

func (c *Client) emitTimeout(messageID int64) {
	rec := EventRecord{Kind: EventTimeout, MessageID: messageID}
	select {
	case c.events <- rec:
	default:
	}
}

// Events returns the channel events are delivered on. The channel is
// buffered; a consumer that falls behind will miss events rather than
// stall the client.
func (c *Client) Events() <-chan EventRecord {
	return c.events
}
