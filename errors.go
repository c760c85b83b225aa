package ldap

import (
	"errors"
	"fmt"

	"github.com/modulecore/ldap/ber"
)

// InvalidArgument is raised synchronously from a dispatcher method when
// the caller passed something the protocol cannot represent: a missing
// required field, a malformed DN, or a control of the wrong type.
type InvalidArgument struct {
	Field   string
	Message string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("ldap: invalid argument %s: %s", e.Field, e.Message)
}

// ProtocolError reports a decoded message that is well-formed BER but
// not a recognized LDAPMessage shape, or a response whose protocolOp
// the dispatcher does not recognize. A result code outside an
// operation's expected set is reported as a ServerError instead.
type ProtocolError struct {
	Message string
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ldap: protocol error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("ldap: protocol error: %s", e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// ServerError wraps an LDAPResult whose resultCode fell outside the
// set of codes the calling operation expected.
type ServerError struct {
	ResultCode ber.ResultCode
	MatchedDN  string
	Message    string
	Referrals  []string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("ldap: server error: %s (%d): %s", e.ResultCode, e.ResultCode, e.Message)
}

// Is reports whether target is a *ServerError with the same ResultCode,
// so callers can check errors.Is(err, &ServerError{ResultCode: ...}).
func (e *ServerError) Is(target error) bool {
	other, ok := target.(*ServerError)
	if !ok {
		return false
	}
	return other.ResultCode == e.ResultCode
}

func serverErrorFromResult(r ber.LDAPResult) *ServerError {
	return &ServerError{
		ResultCode: r.ResultCode,
		MatchedDN:  r.MatchedDN,
		Message:    r.ErrorMessage,
		Referrals:  r.Referrals,
	}
}

// ConnectionError reports a dial failure, a connect timeout, or a
// transport that closed while requests were outstanding.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ldap: connection error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("ldap: connection error: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// QueueTimeout reports a queued request that sat longer than the
// configured queue timeout before a transport became available.
type QueueTimeout struct{}

func (e *QueueTimeout) Error() string { return "ldap: request timed out in queue" }

// ClientDestroyed reports an operation, or a queued entry, aborted
// because Destroy was called.
type ClientDestroyed struct{}

func (e *ClientDestroyed) Error() string { return "ldap: client destroyed" }

// RequestTimeout reports a per-request timer firing before a terminal
// response arrived. Underlying is the synthesized LDAPResult (code 80,
// "request timeout (client interrupt)") the dispatcher fed through the
// normal completion path.
type RequestTimeout struct {
	Underlying ber.LDAPResult
}

func (e *RequestTimeout) Error() string {
	return fmt.Sprintf("ldap: %s", e.Underlying.ErrorMessage)
}

var errQueueFull = errors.New("ldap: request queue full")
