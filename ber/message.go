package ber

import asn1 "github.com/go-asn1-ber/asn1-ber"

// Application tags for each protocolOp choice, RFC 4511 §4.1.1.
const (
	ApplicationBindRequest           = asn1.Tag(0)
	ApplicationBindResponse          = asn1.Tag(1)
	ApplicationUnbindRequest         = asn1.Tag(2)
	ApplicationSearchRequest         = asn1.Tag(3)
	ApplicationSearchResultEntry     = asn1.Tag(4)
	ApplicationSearchResultDone      = asn1.Tag(5)
	ApplicationModifyRequest         = asn1.Tag(6)
	ApplicationModifyResponse        = asn1.Tag(7)
	ApplicationAddRequest            = asn1.Tag(8)
	ApplicationAddResponse           = asn1.Tag(9)
	ApplicationDelRequest            = asn1.Tag(10)
	ApplicationDelResponse           = asn1.Tag(11)
	ApplicationModifyDNRequest       = asn1.Tag(12)
	ApplicationModifyDNResponse      = asn1.Tag(13)
	ApplicationCompareRequest        = asn1.Tag(14)
	ApplicationCompareResponse       = asn1.Tag(15)
	ApplicationAbandonRequest        = asn1.Tag(16)
	ApplicationSearchResultReference = asn1.Tag(19)
	ApplicationExtendedRequest       = asn1.Tag(23)
	ApplicationExtendedResponse      = asn1.Tag(24)
)

// ApplicationName gives a human-readable label for logging, mirroring
// the ApplicationMap helper used throughout the reference clients this
// codec is grounded on.
var ApplicationName = map[asn1.Tag]string{
	ApplicationBindRequest:           "Bind Request",
	ApplicationBindResponse:          "Bind Response",
	ApplicationUnbindRequest:         "Unbind Request",
	ApplicationSearchRequest:         "Search Request",
	ApplicationSearchResultEntry:     "Search Result Entry",
	ApplicationSearchResultDone:      "Search Result Done",
	ApplicationModifyRequest:         "Modify Request",
	ApplicationModifyResponse:        "Modify Response",
	ApplicationAddRequest:            "Add Request",
	ApplicationAddResponse:           "Add Response",
	ApplicationDelRequest:            "Del Request",
	ApplicationDelResponse:           "Del Response",
	ApplicationModifyDNRequest:       "ModifyDN Request",
	ApplicationModifyDNResponse:      "ModifyDN Response",
	ApplicationCompareRequest:        "Compare Request",
	ApplicationCompareResponse:       "Compare Response",
	ApplicationAbandonRequest:        "Abandon Request",
	ApplicationSearchResultReference: "Search Result Reference",
	ApplicationExtendedRequest:       "Extended Request",
	ApplicationExtendedResponse:      "Extended Response",
}

// ResultCode is the integer resultCode carried by every LDAPResult,
// RFC 4511 Appendix A.
type ResultCode int64

const (
	ResultSuccess                      ResultCode = 0
	ResultOperationsError              ResultCode = 1
	ResultProtocolError                ResultCode = 2
	ResultTimeLimitExceeded            ResultCode = 3
	ResultSizeLimitExceeded            ResultCode = 4
	ResultCompareFalse                 ResultCode = 5
	ResultCompareTrue                  ResultCode = 6
	ResultAuthMethodNotSupported       ResultCode = 7
	ResultStrongerAuthRequired         ResultCode = 8
	ResultReferral                     ResultCode = 10
	ResultAdminLimitExceeded           ResultCode = 11
	ResultUnavailableCriticalExtension ResultCode = 12
	ResultConfidentialityRequired      ResultCode = 13
	ResultSASLBindInProgress           ResultCode = 14
	ResultNoSuchAttribute              ResultCode = 16
	ResultUndefinedAttributeType       ResultCode = 17
	ResultInappropriateMatching        ResultCode = 18
	ResultConstraintViolation          ResultCode = 19
	ResultAttributeOrValueExists       ResultCode = 20
	ResultInvalidAttributeSyntax       ResultCode = 21
	ResultNoSuchObject                 ResultCode = 32
	ResultAliasProblem                 ResultCode = 33
	ResultInvalidDNSyntax              ResultCode = 34
	ResultAliasDereferencingProblem    ResultCode = 36
	ResultInappropriateAuthentication  ResultCode = 48
	ResultInvalidCredentials           ResultCode = 49
	ResultInsufficientAccessRights     ResultCode = 50
	ResultBusy                         ResultCode = 51
	ResultUnavailable                  ResultCode = 52
	ResultUnwillingToPerform           ResultCode = 53
	ResultLoopDetect                   ResultCode = 54
	ResultNamingViolation              ResultCode = 64
	ResultObjectClassViolation         ResultCode = 65
	ResultNotAllowedOnNonLeaf          ResultCode = 66
	ResultNotAllowedOnRDN              ResultCode = 67
	ResultEntryAlreadyExists           ResultCode = 68
	ResultObjectClassModsProhibited    ResultCode = 69
	ResultAffectsMultipleDSAs          ResultCode = 71
	ResultOther                        ResultCode = 80
)

var resultCodeName = map[ResultCode]string{
	ResultSuccess:                      "Success",
	ResultOperationsError:              "Operations Error",
	ResultProtocolError:                "Protocol Error",
	ResultTimeLimitExceeded:            "Time Limit Exceeded",
	ResultSizeLimitExceeded:            "Size Limit Exceeded",
	ResultCompareFalse:                 "Compare False",
	ResultCompareTrue:                  "Compare True",
	ResultAuthMethodNotSupported:       "Auth Method Not Supported",
	ResultStrongerAuthRequired:         "Stronger Auth Required",
	ResultReferral:                     "Referral",
	ResultAdminLimitExceeded:           "Admin Limit Exceeded",
	ResultUnavailableCriticalExtension: "Unavailable Critical Extension",
	ResultConfidentialityRequired:      "Confidentiality Required",
	ResultSASLBindInProgress:           "SASL Bind In Progress",
	ResultNoSuchAttribute:              "No Such Attribute",
	ResultUndefinedAttributeType:       "Undefined Attribute Type",
	ResultInappropriateMatching:        "Inappropriate Matching",
	ResultConstraintViolation:          "Constraint Violation",
	ResultAttributeOrValueExists:       "Attribute Or Value Exists",
	ResultInvalidAttributeSyntax:       "Invalid Attribute Syntax",
	ResultNoSuchObject:                 "No Such Object",
	ResultAliasProblem:                 "Alias Problem",
	ResultInvalidDNSyntax:              "Invalid DN Syntax",
	ResultAliasDereferencingProblem:    "Alias Dereferencing Problem",
	ResultInappropriateAuthentication:  "Inappropriate Authentication",
	ResultInvalidCredentials:           "Invalid Credentials",
	ResultInsufficientAccessRights:     "Insufficient Access Rights",
	ResultBusy:                         "Busy",
	ResultUnavailable:                  "Unavailable",
	ResultUnwillingToPerform:           "Unwilling To Perform",
	ResultLoopDetect:                   "Loop Detect",
	ResultNamingViolation:              "Naming Violation",
	ResultObjectClassViolation:         "Object Class Violation",
	ResultNotAllowedOnNonLeaf:          "Not Allowed On Non Leaf",
	ResultNotAllowedOnRDN:              "Not Allowed On RDN",
	ResultEntryAlreadyExists:           "Entry Already Exists",
	ResultObjectClassModsProhibited:    "Object Class Mods Prohibited",
	ResultAffectsMultipleDSAs:          "Affects Multiple DSAs",
	ResultOther:                       "Other",
}

// String renders the result code's name, e.g. "Invalid Credentials",
// or "Unknown" for a code not in the table. The numeric code is not
// included.
func (c ResultCode) String() string {
	name, ok := resultCodeName[c]
	if !ok {
		name = "Unknown"
	}
	return name
}

// Scope is the LDAP search scope, RFC 4511 §4.5.1.
type Scope int64

const (
	ScopeBaseObject   Scope = 0
	ScopeSingleLevel  Scope = 1
	ScopeWholeSubtree Scope = 2
)

// DerefAliases controls alias dereferencing during a search, RFC 4511 §4.5.1.
type DerefAliases int64

const (
	NeverDerefAliases   DerefAliases = 0
	DerefInSearching    DerefAliases = 1
	DerefFindingBaseObj DerefAliases = 2
	DerefAlways         DerefAliases = 3
)

// Message is the decoded LDAPMessage PDU: a messageID, exactly one
// protocolOp, and optionally a set of controls.
type Message struct {
	MessageID int64
	Op        ProtocolOp
	Controls  []Control
}

// ProtocolOp is the tagged-variant discriminant over the Request and
// Response protocolOp choices an LDAPMessage can carry.
type ProtocolOp interface {
	// Tag identifies which protocolOp choice this is.
	Tag() asn1.Tag
	appendTo(*asn1.Packet)
}

// LDAPResult is the common trailer of every non-streaming response,
// RFC 4511 §4.1.9.
type LDAPResult struct {
	ResultCode   ResultCode
	MatchedDN    string
	ErrorMessage string
	Referrals    []string
}

func (r *LDAPResult) appendResultFields(p *asn1.Packet) {
	p.AppendChild(asn1.NewInteger(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagEnumerated, int64(r.ResultCode), "resultCode"))
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.MatchedDN, "matchedDN"))
	p.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, r.ErrorMessage, "errorMessage"))
	if len(r.Referrals) > 0 {
		ref := asn1.Encode(asn1.ClassContext, asn1.TypeConstructed, asn1.Tag(3), nil, "referral")
		for _, uri := range r.Referrals {
			ref.AppendChild(asn1.NewString(asn1.ClassUniversal, asn1.TypePrimitive, asn1.TagOctetString, uri, "URI"))
		}
		p.AppendChild(ref)
	}
}

func decodeLDAPResult(p *asn1.Packet) LDAPResult {
	r := LDAPResult{}
	if len(p.Children) > 0 {
		r.ResultCode = ResultCode(asInt(p.Children[0]))
	}
	if len(p.Children) > 1 {
		r.MatchedDN, _ = p.Children[1].Value.(string)
	}
	if len(p.Children) > 2 {
		r.ErrorMessage, _ = p.Children[2].Value.(string)
	}
	for i := 3; i < len(p.Children); i++ {
		child := p.Children[i]
		if child.Tag != asn1.Tag(3) {
			continue
		}
		for _, uri := range child.Children {
			if s, ok := uri.Value.(string); ok {
				r.Referrals = append(r.Referrals, s)
			}
		}
	}
	return r
}

func asInt(p *asn1.Packet) int64 {
	switch v := p.Value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return 0
	}
}
