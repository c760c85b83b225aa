package ber

import (
	asn1 "github.com/go-asn1-ber/asn1-ber"

	"github.com/modulecore/ldap/filter"
)

// ChangeOperation is the modify "operation" choice, RFC 4511 §4.6.
type ChangeOperation int64

const (
	ChangeAdd     ChangeOperation = 0
	ChangeDelete  ChangeOperation = 1
	ChangeReplace ChangeOperation = 2
)

// PartialAttribute is an attribute/values pair as carried by AddRequest
// and SearchResultEntry.
type PartialAttribute struct {
	Type   string
	Values []string
}

func appendAttributes(p *asn1.Packet, attrs []PartialAttribute) {
	seq := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "AttributeList")
	for _, a := range attrs {
		entry := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "Attribute")
		entry.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, a.Type, "type"))
		vals := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSet, nil, "vals")
		for _, v := range a.Values {
			vals.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, v, "value"))
		}
		entry.AppendChild(vals)
		seq.AppendChild(entry)
	}
	p.AppendChild(seq)
}

func decodeAttributes(p *asn1.Packet) []PartialAttribute {
	var out []PartialAttribute
	for _, entry := range p.Children {
		if len(entry.Children) < 2 {
			continue
		}
		typ, _ := entry.Children[0].Value.(string)
		a := PartialAttribute{Type: typ}
		for _, v := range entry.Children[1].Children {
			if s, ok := v.Value.(string); ok {
				a.Values = append(a.Values, s)
			}
		}
		out = append(out, a)
	}
	return out
}

// Change is one attribute modification within a ModifyRequest.
type Change struct {
	Operation ChangeOperation
	Attribute PartialAttribute
}

// ---- Bind ----

// BindRequest is a simple-bind request; SASL is out of scope.
type BindRequest struct {
	Version  int64
	Name     string
	Password string
}

func (BindRequest) Tag() asn1.Tag { return ApplicationBindRequest }

func (r BindRequest) appendTo(p *asn1.Packet) {
	p.AppendChild(asn1.NewInteger(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagInteger, r.Version, "version"))
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.Name, "name"))
	p.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, asn1.Tag(0), r.Password, "simple"))
}

// BindResponse is the server reply to a BindRequest.
type BindResponse struct {
	LDAPResult
}

func (BindResponse) Tag() asn1.Tag { return ApplicationBindResponse }

func (r BindResponse) appendTo(p *asn1.Packet) { r.appendResultFields(p) }

func decodeBindResponse(p *asn1.Packet) BindResponse {
	return BindResponse{LDAPResult: decodeLDAPResult(p)}
}

// ---- Unbind ----

// UnbindRequest has no body; it is written to close the session.
type UnbindRequest struct{}

func (UnbindRequest) Tag() asn1.Tag     { return ApplicationUnbindRequest }
func (UnbindRequest) appendTo(*asn1.Packet) {}

// ---- Add ----

type AddRequest struct {
	Entry      string
	Attributes []PartialAttribute
}

func (AddRequest) Tag() asn1.Tag { return ApplicationAddRequest }

func (r AddRequest) appendTo(p *asn1.Packet) {
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.Entry, "entry"))
	appendAttributes(p, r.Attributes)
}

type AddResponse struct{ LDAPResult }

func (AddResponse) Tag() asn1.Tag         { return ApplicationAddResponse }
func (r AddResponse) appendTo(p *asn1.Packet) { r.appendResultFields(p) }

func decodeAddResponse(p *asn1.Packet) AddResponse {
	return AddResponse{LDAPResult: decodeLDAPResult(p)}
}

// ---- Delete ----

type DelRequest struct{ DN string }

func (DelRequest) Tag() asn1.Tag { return ApplicationDelRequest }

func (r DelRequest) appendTo(p *asn1.Packet) {
	// DelRequest is itself an OCTET STRING, not a SEQUENCE; the caller
	// (encodeProtocolOp) special-cases it since appendTo assumes a
	// constructed parent. See encode.go.
}

type DelResponse struct{ LDAPResult }

func (DelResponse) Tag() asn1.Tag         { return ApplicationDelResponse }
func (r DelResponse) appendTo(p *asn1.Packet) { r.appendResultFields(p) }

func decodeDelResponse(p *asn1.Packet) DelResponse {
	return DelResponse{LDAPResult: decodeLDAPResult(p)}
}

// ---- Modify ----

type ModifyRequest struct {
	Object  string
	Changes []Change
}

func (ModifyRequest) Tag() asn1.Tag { return ApplicationModifyRequest }

func (r ModifyRequest) appendTo(p *asn1.Packet) {
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.Object, "object"))
	changes := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "changes")
	for _, c := range r.Changes {
		change := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "change")
		change.AppendChild(asn1.NewInteger(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagEnumerated, int64(c.Operation), "operation"))
		appendAttributes(change, []PartialAttribute{c.Attribute})
		changes.AppendChild(change)
	}
	p.AppendChild(changes)
}

type ModifyResponse struct{ LDAPResult }

func (ModifyResponse) Tag() asn1.Tag         { return ApplicationModifyResponse }
func (r ModifyResponse) appendTo(p *asn1.Packet) { r.appendResultFields(p) }

func decodeModifyResponse(p *asn1.Packet) ModifyResponse {
	return ModifyResponse{LDAPResult: decodeLDAPResult(p)}
}

// ---- ModifyDN ----

type ModifyDNRequest struct {
	Entry        string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
}

func (ModifyDNRequest) Tag() asn1.Tag { return ApplicationModifyDNRequest }

func (r ModifyDNRequest) appendTo(p *asn1.Packet) {
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.Entry, "entry"))
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.NewRDN, "newrdn"))
	p.AppendChild(asn1.NewBoolean(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagBoolean, r.DeleteOldRDN, "deleteoldrdn"))
	if r.NewSuperior != "" {
		p.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, asn1.Tag(0), r.NewSuperior, "newSuperior"))
	}
}

type ModifyDNResponse struct{ LDAPResult }

func (ModifyDNResponse) Tag() asn1.Tag         { return ApplicationModifyDNResponse }
func (r ModifyDNResponse) appendTo(p *asn1.Packet) { r.appendResultFields(p) }

func decodeModifyDNResponse(p *asn1.Packet) ModifyDNResponse {
	return ModifyDNResponse{LDAPResult: decodeLDAPResult(p)}
}

// ---- Compare ----

type CompareRequest struct {
	Entry     string
	Attribute string
	Value     string
}

func (CompareRequest) Tag() asn1.Tag { return ApplicationCompareRequest }

func (r CompareRequest) appendTo(p *asn1.Packet) {
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.Entry, "entry"))
	ava := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "ava")
	ava.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.Attribute, "desc"))
	ava.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.Value, "value"))
	p.AppendChild(ava)
}

type CompareResponse struct{ LDAPResult }

func (CompareResponse) Tag() asn1.Tag         { return ApplicationCompareResponse }
func (r CompareResponse) appendTo(p *asn1.Packet) { r.appendResultFields(p) }

func decodeCompareResponse(p *asn1.Packet) CompareResponse {
	return CompareResponse{LDAPResult: decodeLDAPResult(p)}
}

// ---- Abandon ----

type AbandonRequest struct{ MessageID int64 }

func (AbandonRequest) Tag() asn1.Tag     { return ApplicationAbandonRequest }
func (AbandonRequest) appendTo(*asn1.Packet) {}

// ---- Extended ----

type ExtendedRequest struct {
	Name  string
	Value []byte
}

func (ExtendedRequest) Tag() asn1.Tag { return ApplicationExtendedRequest }

func (r ExtendedRequest) appendTo(p *asn1.Packet) {
	p.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, asn1.Tag(0), r.Name, "requestName"))
	if r.Value != nil {
		val := asn1.Encode(asn1.ClassContext, asn1.TypePrimitive, asn1.Tag(1), nil, "requestValue")
		val.Value = r.Value
		val.Data.Write(r.Value)
		p.AppendChild(val)
	}
}

type ExtendedResponse struct {
	LDAPResult
	Name  string
	Value []byte
}

func (ExtendedResponse) Tag() asn1.Tag { return ApplicationExtendedResponse }

func (r ExtendedResponse) appendTo(p *asn1.Packet) {
	r.appendResultFields(p)
	if r.Name != "" {
		p.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, asn1.Tag(10), r.Name, "responseName"))
	}
	if r.Value != nil {
		val := asn1.Encode(asn1.ClassContext, asn1.TypePrimitive, asn1.Tag(11), nil, "responseValue")
		val.Value = r.Value
		val.Data.Write(r.Value)
		p.AppendChild(val)
	}
}

func decodeExtendedResponse(p *asn1.Packet) ExtendedResponse {
	r := ExtendedResponse{LDAPResult: decodeLDAPResult(p)}
	for i := 3; i < len(p.Children); i++ {
		child := p.Children[i]
		switch child.Tag {
		case asn1.Tag(10):
			r.Name, _ = child.Value.(string)
		case asn1.Tag(11):
			r.Value = child.Data.Bytes()
		}
	}
	return r
}

// ---- Search ----

// SearchRequest is the searchRequest protocolOp, RFC 4511 §4.5.1.
type SearchRequest struct {
	BaseObject   string
	Scope        Scope
	DerefAliases DerefAliases
	SizeLimit    int64
	TimeLimit    int64
	TypesOnly    bool
	Filter       *filter.Filter
	Attributes   []string
}

func (SearchRequest) Tag() asn1.Tag { return ApplicationSearchRequest }

func (r SearchRequest) appendTo(p *asn1.Packet) {
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.BaseObject, "baseObject"))
	p.AppendChild(asn1.NewInteger(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagEnumerated, int64(r.Scope), "scope"))
	p.AppendChild(asn1.NewInteger(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagEnumerated, int64(r.DerefAliases), "derefAliases"))
	p.AppendChild(asn1.NewInteger(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagInteger, r.SizeLimit, "sizeLimit"))
	p.AppendChild(asn1.NewInteger(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagInteger, r.TimeLimit, "timeLimit"))
	p.AppendChild(asn1.NewBoolean(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagBoolean, r.TypesOnly, "typesOnly"))
	f := r.Filter
	if f == nil {
		f = filter.Present("objectClass")
	}
	p.AppendChild(encodeFilter(f))
	attrs := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "AttributeSelection")
	for _, a := range r.Attributes {
		attrs.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, a, "selector"))
	}
	p.AppendChild(attrs)
}

// ---- Search result carriers ----

// SearchResultEntry is one entry delivered while a search is in
// progress.
type SearchResultEntry struct {
	ObjectName string
	Attributes []PartialAttribute
}

func (SearchResultEntry) Tag() asn1.Tag     { return ApplicationSearchResultEntry }
func (SearchResultEntry) appendTo(*asn1.Packet) {}

func decodeSearchResultEntry(p *asn1.Packet) SearchResultEntry {
	e := SearchResultEntry{}
	if len(p.Children) > 0 {
		e.ObjectName, _ = p.Children[0].Value.(string)
	}
	if len(p.Children) > 1 {
		e.Attributes = decodeAttributes(p.Children[1])
	}
	return e
}

// SearchResultReference carries continuation URIs for a referral
// encountered mid-search.
type SearchResultReference struct {
	URIs []string
}

func (SearchResultReference) Tag() asn1.Tag     { return ApplicationSearchResultReference }
func (SearchResultReference) appendTo(*asn1.Packet) {}

func decodeSearchResultReference(p *asn1.Packet) SearchResultReference {
	r := SearchResultReference{}
	for _, c := range p.Children {
		if s, ok := c.Value.(string); ok {
			r.URIs = append(r.URIs, s)
		}
	}
	return r
}

// SearchResultDone is the terminal response of a search.
type SearchResultDone struct{ LDAPResult }

func (SearchResultDone) Tag() asn1.Tag         { return ApplicationSearchResultDone }
func (r SearchResultDone) appendTo(p *asn1.Packet) { r.appendResultFields(p) }

func decodeSearchResultDone(p *asn1.Packet) SearchResultDone {
	return SearchResultDone{LDAPResult: decodeLDAPResult(p)}
}
