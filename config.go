package ldap

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
)

// ReconnectPolicy configures the exponential-backoff reconnect driver
// (spec §4.F). A nil *ReconnectPolicy on Config means exactly one
// connect attempt is made and no automatic reconnection happens.
type ReconnectPolicy struct {
	// InitialDelay is the backoff delay before the first retry.
	InitialDelay time.Duration `default:"500ms"`

	// MaxDelay caps the delay after repeated doubling.
	MaxDelay time.Duration `default:"30s"`

	// FailAfter bounds the number of attempts. Zero means unbounded.
	FailAfter int `default:"0"`
}

// QueuePolicy configures the request queue's capacity, enqueue timeout,
// and whether it starts frozen.
type QueuePolicy struct {
	// Enabled is the queue's initial accepting state while the
	// transport is not ready. NewClient's defaults pass replaces false
	// (the zero value) with true, so the queue always starts accepting
	// entries.
	Enabled bool `default:"true"`

	// Size is the maximum number of buffered entries. Zero means
	// unbounded.
	Size int `default:"0"`

	// Timeout is how long an entry may sit in the queue before the
	// queue purges itself with QueueTimeout. Zero disables the timer.
	Timeout time.Duration `default:"0s"`
}

// Config holds the settings a Client is constructed with. Fields use
// github.com/creasty/defaults struct tags; call NewClient(cfg) to
// apply them (it calls defaults.Set internally), or defaults.Set(&cfg)
// directly if you are constructing a Config to pass to tests.
type Config struct {
	// Addr is "host:port" for a TCP/TLS transport.
	Addr string

	// SocketPath is a unix-domain socket path, mutually exclusive with
	// Addr.
	SocketPath string

	// TLSConfig, if non-nil, selects LDAPS (TLS) instead of plain TCP.
	TLSConfig *tls.Config

	// RequestTimeout bounds each individual operation. A zero value is
	// replaced by the 30s default when NewClient applies the struct
	// tags; a negative value disables the per-request timer.
	RequestTimeout time.Duration `default:"30s"`

	// ConnectTimeout bounds the dial step of a single connect attempt.
	// A zero value is replaced by the 10s default when NewClient applies
	// the struct tags, so the dial step is always bounded.
	ConnectTimeout time.Duration `default:"10s"`

	// IdleTimeout emits an Idle event after this long with an empty
	// request table. Zero disables idle detection.
	IdleTimeout time.Duration `default:"0s"`

	// Reconnect configures the backoff driver. Nil disables automatic
	// reconnection (spec §4.F: "exactly one attempt is made").
	Reconnect *ReconnectPolicy

	Queue QueuePolicy

	// SetupHooks run in series, against a restricted Client that only
	// permits Bind/Search/Unbind and bypasses the queue, after the
	// transport connects and before it is committed (spec §4.E.4).
	SetupHooks []func(*Client) error

	// Logger receives structured events. Nil means zerolog.Nop(), so a
	// consumer who never sets it pays nothing.
	Logger *zerolog.Logger

	// dialFunc replaces the real dialer, for testing only.
	dialFunc func() (net.Conn, error)
}

// withDefaults returns a copy of cfg with zero-value fields populated
// per their `default` tag, following the isometry-terraform-provider-ad
// defaults.Set(config) pattern.
func (cfg Config) withDefaults() (Config, error) {
	out := cfg
	if err := defaults.Set(&out); err != nil {
		return Config{}, err
	}
	if out.Logger == nil {
		nop := zerolog.Nop()
		out.Logger = &nop
	}
	return out, nil
}
