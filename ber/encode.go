package ber

import asn1 "github.com/go-asn1-ber/asn1-ber"

// EncodeMessage renders a Message as a complete LDAPMessage SEQUENCE,
// ready to be written to the wire with Packet.Bytes().
func EncodeMessage(msg *Message) *asn1.Packet {
	p := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "LDAPMessage")
	p.AppendChild(asn1.NewInteger(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagInteger, msg.MessageID, "messageID"))
	p.AppendChild(encodeProtocolOp(msg.Op))
	appendControls(p, msg.Controls)
	return p
}

// encodeProtocolOp builds the tagged protocolOp packet. Most choices
// are a constructed [APPLICATION n] SEQUENCE whose fields are appended
// by op.appendTo. Three choices are primitive values instead of a
// SEQUENCE (DelRequest is an OCTET STRING, AbandonRequest and the
// NULL-bodied UnbindRequest carry no independent children) and are
// built directly here rather than through the generic appendTo path.
func encodeProtocolOp(op ProtocolOp) *asn1.Packet {
	switch v := op.(type) {
	case DelRequest:
		return asn1.NewString(asn1.ClassApplication, asn1.TypePrimitive, ApplicationDelRequest, v.DN, ApplicationName[ApplicationDelRequest])
	case AbandonRequest:
		return asn1.NewInteger(asn1.ClassApplication, asn1.TypePrimitive, ApplicationAbandonRequest, v.MessageID, ApplicationName[ApplicationAbandonRequest])
	case UnbindRequest:
		return asn1.Encode(asn1.ClassApplication, asn1.TypePrimitive, ApplicationUnbindRequest, nil, ApplicationName[ApplicationUnbindRequest])
	default:
		p := asn1.Encode(asn1.ClassApplication, asn1.TypeConstructed, op.Tag(), nil, ApplicationName[op.Tag()])
		op.appendTo(p)
		return p
	}
}
