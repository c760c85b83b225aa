package ber

import asn1 "github.com/go-asn1-ber/asn1-ber"

// OIDPagedResults is the simple paged results control, RFC 2696.
const OIDPagedResults = "1.2.840.113556.1.4.319"

// Control is a generic LDAP control, RFC 4511 §4.1.11.
type Control struct {
	Type     string
	Critical bool
	Value    []byte
}

func appendControls(msg *asn1.Packet, controls []Control) {
	if len(controls) == 0 {
		return
	}
	seq := asn1.Encode(asn1.ClassContext, asn1.TypeConstructed, asn1.Tag(0), nil, "Controls")
	for _, c := range controls {
		entry := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "Control")
		entry.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, c.Type, "controlType"))
		if c.Critical {
			entry.AppendChild(asn1.NewBoolean(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagBoolean, true, "criticality"))
		}
		if c.Value != nil {
			val := asn1.Encode(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, nil, "controlValue")
			val.Value = c.Value
			val.Data.Write(c.Value)
			entry.AppendChild(val)
		}
		seq.AppendChild(entry)
	}
	msg.AppendChild(seq)
}

func decodeControls(p *asn1.Packet) []Control {
	var out []Control
	for _, entry := range p.Children {
		if len(entry.Children) == 0 {
			continue
		}
		c := Control{}
		c.Type, _ = entry.Children[0].Value.(string)
		for _, child := range entry.Children[1:] {
			if b, ok := child.Value.(bool); ok {
				c.Critical = b
				continue
			}
			if child.Data != nil {
				c.Value = child.Data.Bytes()
			}
		}
		out = append(out, c)
	}
	return out
}

// PagedResults is the pagedResultsControl value, RFC 2696 §2.
type PagedResults struct {
	Size   int64
	Cookie []byte
}

// Encode renders the PagedResults value into a Control with the
// PagedResults OID, ready to be attached to a SearchRequest's Message.
func (pr PagedResults) Encode(critical bool) Control {
	seq := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "realSearchControlValue")
	seq.AppendChild(asn1.NewInteger(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagInteger, pr.Size, "size"))
	cookie := asn1.Encode(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, nil, "cookie")
	cookie.Value = pr.Cookie
	cookie.Data.Write(pr.Cookie)
	seq.AppendChild(cookie)
	return Control{Type: OIDPagedResults, Critical: critical, Value: seq.Bytes()}
}

// DecodePagedResults parses a Control's Value as a PagedResults value.
// The caller should first check Control.Type == OIDPagedResults.
func DecodePagedResults(c Control) (PagedResults, error) {
	packet := asn1.DecodePacket(c.Value)
	if packet == nil || len(packet.Children) < 2 {
		return PagedResults{}, errMalformedPagedResults
	}
	pr := PagedResults{Size: asInt(packet.Children[0])}
	if packet.Children[1].Data != nil {
		pr.Cookie = packet.Children[1].Data.Bytes()
	}
	return pr, nil
}
