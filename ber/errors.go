package ber

import "errors"

var (
	errMalformedPagedResults = errors.New("ber: malformed pagedResultsControl value")
	errMalformedMessage      = errors.New("ber: malformed LDAPMessage")
	errUnknownProtocolOp     = errors.New("ber: unrecognized protocolOp tag")
)
