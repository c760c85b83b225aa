package ber

import (
	asn1 "github.com/go-asn1-ber/asn1-ber"
)

// DecodeMessage parses a complete LDAPMessage SEQUENCE packet, as
// produced by asn1.ReadPacket off the wire, into a Message.
func DecodeMessage(p *asn1.Packet) (*Message, error) {
	if p == nil || len(p.Children) < 2 {
		return nil, errMalformedMessage
	}
	msg := &Message{MessageID: asInt(p.Children[0])}

	op, err := decodeProtocolOp(p.Children[1])
	if err != nil {
		return nil, err
	}
	msg.Op = op

	if len(p.Children) > 2 && p.Children[2].Tag == asn1.Tag(0) && p.Children[2].ClassType == asn1.ClassContext {
		msg.Controls = decodeControls(p.Children[2])
	}
	return msg, nil
}

func decodeProtocolOp(p *asn1.Packet) (ProtocolOp, error) {
	switch p.Tag {
	case ApplicationBindResponse:
		return decodeBindResponse(p), nil
	case ApplicationAddResponse:
		return decodeAddResponse(p), nil
	case ApplicationDelResponse:
		return decodeDelResponse(p), nil
	case ApplicationModifyResponse:
		return decodeModifyResponse(p), nil
	case ApplicationModifyDNResponse:
		return decodeModifyDNResponse(p), nil
	case ApplicationCompareResponse:
		return decodeCompareResponse(p), nil
	case ApplicationExtendedResponse:
		return decodeExtendedResponse(p), nil
	case ApplicationSearchResultEntry:
		return decodeSearchResultEntry(p), nil
	case ApplicationSearchResultReference:
		return decodeSearchResultReference(p), nil
	case ApplicationSearchResultDone:
		return decodeSearchResultDone(p), nil
	default:
		return nil, errUnknownProtocolOp
	}
}
