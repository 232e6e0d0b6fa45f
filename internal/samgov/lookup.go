package samgov

// noticeTypes decodes the single-letter notice type codes.
var noticeTypes = map[string]string{
	"p": "Presolicitation",
	"a": "Award Notice",
	"m": "Modification/Amendment",
	"r": "Sources Sought",
	"s": "Special Notice",
	"f": "Foreign Government Standard",
	"g": "Sale of Surplus Property",
	"k": "Combined Synopsis/Solicitation",
	"j": "Justification and Approval (J&A)",
	"i": "Intent to Bundle Requirements",
	"l": "Fair Opportunity / Limited Sources Justification",
	"o": "Solicitation",
	"u": "Justification",
}

// setAsides decodes program codes.
var setAsides = map[string]string{
	"8A":  "8(a) Set-Aside (FAR 19.8)",
	"8AN": "8(a) Sole Source (FAR 19.8)",
}

// DecodeNoticeType maps a type code to its label. Unknown codes pass through.
func DecodeNoticeType(code string) string {
	if label, ok := noticeTypes[code]; ok {
		return label
	}
	return code
}

// DecodeSetAside maps a set-aside code to its label. Unknown codes pass through.
func DecodeSetAside(code string) string {
	if label, ok := setAsides[code]; ok {
		return label
	}
	return code
}
