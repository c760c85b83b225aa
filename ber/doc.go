// Package ber is the LDAP wire codec: it maps the structured
// LDAPMessage value (RFC 4511 §4.1.1) to and from BER-encoded bytes.
//
// It does not implement BER/ASN.1 itself — primitive tag/length/value
// encoding is delegated to github.com/go-asn1-ber/asn1-ber, the same
// primitive codec go-ldap and most other Go LDAP implementations in
// this ecosystem build on. This package owns the layer above that:
// the SEQUENCE shape of an LDAPMessage, the per-operation protocolOp
// choices, result codes, and the PagedResults control the paged
// search driver depends on.
//
// EncodeMessage produces definite-length output, as RFC 4511 requires
// of a conforming client. DecodeMessage accepts indefinite-length
// input on a wire connection (asn1-ber resolves this while framing
// each message off the stream), since some server implementations
// emit it.
package ber
