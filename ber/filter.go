package ber

import (
	asn1 "github.com/go-asn1-ber/asn1-ber"

	"github.com/modulecore/ldap/filter"
)

// Filter tags, RFC 4511 §4.5.1.
const (
	filterAnd             = asn1.Tag(0)
	filterOr              = asn1.Tag(1)
	filterNot             = asn1.Tag(2)
	filterEqualityMatch   = asn1.Tag(3)
	filterSubstrings      = asn1.Tag(4)
	filterGreaterOrEqual  = asn1.Tag(5)
	filterLessOrEqual     = asn1.Tag(6)
	filterPresent         = asn1.Tag(7)
	filterApproxMatch     = asn1.Tag(8)
	filterExtensibleMatch = asn1.Tag(9)
)

const (
	substringInitial = asn1.Tag(0)
	substringAny      = asn1.Tag(1)
	substringFinal     = asn1.Tag(2)
)

const (
	matchingRuleTag = asn1.Tag(1)
	matchingTypeTag = asn1.Tag(2)
	matchValueTag    = asn1.Tag(3)
	dnAttributesTag  = asn1.Tag(4)
)

func encodeFilter(f *filter.Filter) *asn1.Packet {
	switch f.Kind {
	case filter.KindAnd, filter.KindOr:
		tag := filterAnd
		if f.Kind == filter.KindOr {
			tag = filterOr
		}
		set := asn1.Encode(asn1.ClassContext, asn1.TypeConstructed, tag, nil, "filter")
		for _, child := range f.Children {
			set.AppendChild(encodeFilter(child))
		}
		return set
	case filter.KindNot:
		not := asn1.Encode(asn1.ClassContext, asn1.TypeConstructed, filterNot, nil, "not")
		not.AppendChild(encodeFilter(f.Children[0]))
		return not
	case filter.KindEqualityMatch:
		return encodeAVA(filterEqualityMatch, f.Attribute, f.Value)
	case filter.KindGreaterOrEqual:
		return encodeAVA(filterGreaterOrEqual, f.Attribute, f.Value)
	case filter.KindLessOrEqual:
		return encodeAVA(filterLessOrEqual, f.Attribute, f.Value)
	case filter.KindApproxMatch:
		return encodeAVA(filterApproxMatch, f.Attribute, f.Value)
	case filter.KindPresent:
		return asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, filterPresent, f.Attribute, "present")
	case filter.KindSubstrings:
		return encodeSubstrings(f)
	case filter.KindExtensibleMatch:
		return encodeExtensibleMatch(f)
	default:
		return asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, filterPresent, "objectClass", "present")
	}
}

func encodeAVA(tag asn1.Tag, attr, value string) *asn1.Packet {
	p := asn1.Encode(asn1.ClassContext, asn1.TypeConstructed, tag, nil, "ava")
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, attr, "attributeDesc"))
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, value, "assertionValue"))
	return p
}

func encodeSubstrings(f *filter.Filter) *asn1.Packet {
	p := asn1.Encode(asn1.ClassContext, asn1.TypeConstructed, filterSubstrings, nil, "substrings")
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, f.Attribute, "type"))
	seq := asn1.Encode(asn1.ClassUniversal, asn1.TypeConstructed, asn1.TagSequence, nil, "substrings")
	if f.Substrings.Initial != "" {
		seq.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, substringInitial, f.Substrings.Initial, "initial"))
	}
	for _, a := range f.Substrings.Any {
		seq.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, substringAny, a, "any"))
	}
	if f.Substrings.Final != "" {
		seq.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, substringFinal, f.Substrings.Final, "final"))
	}
	p.AppendChild(seq)
	return p
}

func encodeExtensibleMatch(f *filter.Filter) *asn1.Packet {
	p := asn1.Encode(asn1.ClassContext, asn1.TypeConstructed, filterExtensibleMatch, nil, "extensibleMatch")
	em := f.Extensible
	if em.MatchingRule != "" {
		p.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, matchingRuleTag, em.MatchingRule, "matchingRule"))
	}
	if em.Attribute != "" {
		p.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, matchingTypeTag, em.Attribute, "type"))
	}
	p.AppendChild(asn1.NewString(asn1.ClassContext, asn1.TypePrimitive, matchValueTag, em.Value, "matchValue"))
	if em.DNAttributes {
		p.AppendChild(asn1.NewBoolean(asn1.ClassContext, asn1.TypePrimitive, dnAttributesTag, true, "dnAttributes"))
	}
	return p
}

func decodeFilter(p *asn1.Packet) *filter.Filter {
	switch p.Tag {
	case filterAnd, filterOr:
		f := &filter.Filter{Kind: filter.KindAnd}
		if p.Tag == filterOr {
			f.Kind = filter.KindOr
		}
		for _, c := range p.Children {
			f.Children = append(f.Children, decodeFilter(c))
		}
		return f
	case filterNot:
		return &filter.Filter{Kind: filter.KindNot, Children: []*filter.Filter{decodeFilter(p.Children[0])}}
	case filterEqualityMatch:
		attr, val := decodeAVA(p)
		return &filter.Filter{Kind: filter.KindEqualityMatch, Attribute: attr, Value: val}
	case filterGreaterOrEqual:
		attr, val := decodeAVA(p)
		return &filter.Filter{Kind: filter.KindGreaterOrEqual, Attribute: attr, Value: val}
	case filterLessOrEqual:
		attr, val := decodeAVA(p)
		return &filter.Filter{Kind: filter.KindLessOrEqual, Attribute: attr, Value: val}
	case filterApproxMatch:
		attr, val := decodeAVA(p)
		return &filter.Filter{Kind: filter.KindApproxMatch, Attribute: attr, Value: val}
	case filterPresent:
		attr, _ := p.Value.(string)
		return &filter.Filter{Kind: filter.KindPresent, Attribute: attr}
	case filterSubstrings:
		return decodeSubstrings(p)
	case filterExtensibleMatch:
		return decodeExtensibleMatch(p)
	default:
		return &filter.Filter{Kind: filter.KindPresent, Attribute: "objectClass"}
	}
}

func decodeAVA(p *asn1.Packet) (attr, value string) {
	if len(p.Children) < 2 {
		return
	}
	attr, _ = p.Children[0].Value.(string)
	value, _ = p.Children[1].Value.(string)
	return
}

func decodeSubstrings(p *asn1.Packet) *filter.Filter {
	f := &filter.Filter{Kind: filter.KindSubstrings}
	if len(p.Children) == 0 {
		return f
	}
	f.Attribute, _ = p.Children[0].Value.(string)
	if len(p.Children) < 2 {
		return f
	}
	for _, c := range p.Children[1].Children {
		s, _ := c.Value.(string)
		switch c.Tag {
		case substringInitial:
			f.Substrings.Initial = s
		case substringAny:
			f.Substrings.Any = append(f.Substrings.Any, s)
		case substringFinal:
			f.Substrings.Final = s
		}
	}
	return f
}

func decodeExtensibleMatch(p *asn1.Packet) *filter.Filter {
	f := &filter.Filter{Kind: filter.KindExtensibleMatch}
	for _, c := range p.Children {
		switch c.Tag {
		case matchingRuleTag:
			f.Extensible.MatchingRule, _ = c.Value.(string)
		case matchingTypeTag:
			f.Extensible.Attribute, _ = c.Value.(string)
		case matchValueTag:
			f.Extensible.Value, _ = c.Value.(string)
		case dnAttributesTag:
			f.Extensible.DNAttributes, _ = c.Value.(bool)
		}
	}
	return f
}
