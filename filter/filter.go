// Package filter implements a minimal RFC 4515 search-filter string
// parser and the filter AST the wire codec in ber encodes.
//
// The core LDAP client does not own filter semantics — matching rules,
// schema-aware comparisons, and filter optimization are a server-side
// concern — but the dispatcher accepts a bare filter string as a
// convenience (see Client.Search), so something has to turn
// "(&(objectClass=person)(cn=bob))" into a structured value the codec
// can serialize. This package is that something: small, and not where
// this module's engineering effort is concentrated.
package filter

import (
	"fmt"
	"strings"
)

// Kind discriminates the filter choice, one variant per RFC 4515 §3
// production.
type Kind int

const (
	KindAnd Kind = iota
	KindOr
	KindNot
	KindEqualityMatch
	KindSubstrings
	KindGreaterOrEqual
	KindLessOrEqual
	KindPresent
	KindApproxMatch
	KindExtensibleMatch
)

// Substrings holds the three optional substring-match components.
// Any/Final may be empty; Any may contain more than one element.
type Substrings struct {
	Initial string
	Any     []string
	Final   string
}

// ExtensibleMatch mirrors RFC 4515's MatchingRuleAssertion.
type ExtensibleMatch struct {
	MatchingRule string
	Attribute    string
	Value        string
	DNAttributes bool
}

// Filter is a tagged-variant node in the filter AST. Exactly the
// fields relevant to Kind are populated.
type Filter struct {
	Kind       Kind
	Children   []*Filter // And, Or, Not
	Attribute  string    // EqualityMatch, Substrings, GreaterOrEqual, LessOrEqual, Present, ApproxMatch
	Value      string    // EqualityMatch, GreaterOrEqual, LessOrEqual, ApproxMatch
	Substrings Substrings
	Extensible ExtensibleMatch
}

// Present builds a presence filter "(attr=*)". Present("objectClass")
// is the default filter for Client.Search.
func Present(attr string) *Filter {
	return &Filter{Kind: KindPresent, Attribute: attr}
}

// Equal builds an equalityMatch filter.
func Equal(attr, value string) *Filter {
	return &Filter{Kind: KindEqualityMatch, Attribute: attr, Value: value}
}

// And builds a conjunction filter.
func And(children ...*Filter) *Filter {
	return &Filter{Kind: KindAnd, Children: children}
}

// Or builds a disjunction filter.
func Or(children ...*Filter) *Filter {
	return &Filter{Kind: KindOr, Children: children}
}

// Not negates a filter.
func Not(child *Filter) *Filter {
	return &Filter{Kind: KindNot, Children: []*Filter{child}}
}

// Parse compiles an RFC 4515 filter string into a Filter tree.
// Escapes of the form \XX (two hex digits) are decoded in attribute
// values; extensibleMatch (":dn:rule:=value") and substring filters
// ("attr=init*any*final") are supported.
func Parse(s string) (*Filter, error) {
	p := &parser{s: s}
	f, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("filter: unexpected trailing data at offset %d", p.pos)
	}
	return f, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) parseFilter() (*Filter, error) {
	if p.pos >= len(p.s) || p.s[p.pos] != '(' {
		return nil, fmt.Errorf("filter: expected '(' at offset %d", p.pos)
	}
	p.pos++ // consume '('

	if p.pos >= len(p.s) {
		return nil, fmt.Errorf("filter: unexpected end of input")
	}

	var f *Filter
	var err error

	switch p.s[p.pos] {
	case '&':
		p.pos++
		children, cerr := p.parseFilterList()
		if cerr != nil {
			return nil, cerr
		}
		f = &Filter{Kind: KindAnd, Children: children}
	case '|':
		p.pos++
		children, cerr := p.parseFilterList()
		if cerr != nil {
			return nil, cerr
		}
		f = &Filter{Kind: KindOr, Children: children}
	case '!':
		p.pos++
		child, cerr := p.parseFilter()
		if cerr != nil {
			return nil, cerr
		}
		f = &Filter{Kind: KindNot, Children: []*Filter{child}}
	default:
		f, err = p.parseItem()
		if err != nil {
			return nil, err
		}
	}

	if p.pos >= len(p.s) || p.s[p.pos] != ')' {
		return nil, fmt.Errorf("filter: expected ')' at offset %d", p.pos)
	}
	p.pos++ // consume ')'
	return f, nil
}

func (p *parser) parseFilterList() ([]*Filter, error) {
	var out []*Filter
	for p.pos < len(p.s) && p.s[p.pos] == '(' {
		f, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (p *parser) parseItem() (*Filter, error) {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != ')' {
		p.pos++
	}
	item := p.s[start:p.pos]
	return parseSimple(item)
}

func parseSimple(item string) (*Filter, error) {
	if idx := strings.Index(item, ">="); idx >= 0 {
		return &Filter{Kind: KindGreaterOrEqual, Attribute: item[:idx], Value: unescape(item[idx+2:])}, nil
	}
	if idx := strings.Index(item, "<="); idx >= 0 {
		return &Filter{Kind: KindLessOrEqual, Attribute: item[:idx], Value: unescape(item[idx+2:])}, nil
	}
	if idx := strings.Index(item, "~="); idx >= 0 {
		return &Filter{Kind: KindApproxMatch, Attribute: item[:idx], Value: unescape(item[idx+2:])}, nil
	}
	if idx := strings.Index(item, ":="); idx >= 0 {
		return parseExtensible(item[:idx], unescape(item[idx+2:]))
	}
	idx := strings.Index(item, "=")
	if idx < 0 {
		return nil, fmt.Errorf("filter: malformed item %q", item)
	}
	attr, value := item[:idx], item[idx+1:]
	if value == "*" {
		return &Filter{Kind: KindPresent, Attribute: attr}, nil
	}
	if strings.Contains(value, "*") {
		return parseSubstring(attr, value), nil
	}
	return &Filter{Kind: KindEqualityMatch, Attribute: attr, Value: unescape(value)}, nil
}

func parseExtensible(lhs, value string) (*Filter, error) {
	em := ExtensibleMatch{Value: value}
	parts := strings.Split(lhs, ":")
	for _, part := range parts {
		switch {
		case part == "":
		case part == "dn":
			em.DNAttributes = true
		case em.Attribute == "" && !strings.Contains(part, " "):
			if em.MatchingRule == "" && em.Attribute == "" && parts[0] == part {
				em.Attribute = part
				continue
			}
			em.MatchingRule = part
		default:
			em.MatchingRule = part
		}
	}
	return &Filter{Kind: KindExtensibleMatch, Extensible: em}, nil
}

func parseSubstring(attr, value string) *Filter {
	parts := strings.Split(value, "*")
	sub := Substrings{}
	for i, part := range parts {
		if part == "" {
			continue
		}
		switch {
		case i == 0:
			sub.Initial = unescape(part)
		case i == len(parts)-1:
			sub.Final = unescape(part)
		default:
			sub.Any = append(sub.Any, unescape(part))
		}
	}
	return &Filter{Kind: KindSubstrings, Attribute: attr, Substrings: sub}
}

func unescape(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+2 < len(s) {
			hi, lo := unhex(s[i+1]), unhex(s[i+2])
			if hi >= 0 && lo >= 0 {
				b.WriteByte(byte(hi<<4 | lo))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

// String renders the filter back to its RFC 4515 textual form.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	switch f.Kind {
	case KindAnd:
		return "(&" + joinChildren(f.Children) + ")"
	case KindOr:
		return "(|" + joinChildren(f.Children) + ")"
	case KindNot:
		return "(!" + f.Children[0].String() + ")"
	case KindEqualityMatch:
		return fmt.Sprintf("(%s=%s)", f.Attribute, f.Value)
	case KindGreaterOrEqual:
		return fmt.Sprintf("(%s>=%s)", f.Attribute, f.Value)
	case KindLessOrEqual:
		return fmt.Sprintf("(%s<=%s)", f.Attribute, f.Value)
	case KindApproxMatch:
		return fmt.Sprintf("(%s~=%s)", f.Attribute, f.Value)
	case KindPresent:
		return fmt.Sprintf("(%s=*)", f.Attribute)
	case KindSubstrings:
		var b strings.Builder
		b.WriteString("(")
		b.WriteString(f.Attribute)
		b.WriteString("=")
		b.WriteString(f.Substrings.Initial)
		b.WriteString("*")
		for _, a := range f.Substrings.Any {
			b.WriteString(a)
			b.WriteString("*")
		}
		b.WriteString(f.Substrings.Final)
		b.WriteString(")")
		return b.String()
	case KindExtensibleMatch:
		var b strings.Builder
		b.WriteString("(")
		if f.Extensible.Attribute != "" {
			b.WriteString(f.Extensible.Attribute)
		}
		if f.Extensible.MatchingRule != "" {
			b.WriteString(":")
			b.WriteString(f.Extensible.MatchingRule)
		}
		if f.Extensible.DNAttributes {
			b.WriteString(":dn")
		}
		b.WriteString(":=")
		b.WriteString(f.Extensible.Value)
		b.WriteString(")")
		return b.String()
	default:
		return ""
	}
}

func joinChildren(children []*Filter) string {
	var b strings.Builder
	for _, c := range children {
		b.WriteString(c.String())
	}
	return b.String()
}
