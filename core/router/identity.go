package router

import (
	"regexp"
	"strings"
)

var (
	idNumberPattern = regexp.MustCompile(`(?:my id number is|id number|mi número de identificación es|mi id es)\s*(\S+)`)
	codePattern     = regexp.MustCompile(`(?:my employee code is|employee code|mi código de empleado es|mi código es)\s*(\d+)`)
)

// Credentials are the identity values found in a message
type Credentials struct {
	IDNumber string
	Code     string
}

// HasCredentialKeywords reports whether a lowercased message talks about
// an id number and an employee code.
func HasCredentialKeywords(lower string) bool {
	return (strings.Contains(lower, "id number") || strings.Contains(lower, "employee id")) &&
		strings.Contains(lower, "employee code")
}

// ParseCredentials extracts the id number and the numeric employee code from
// a lowercased message. ok is false unless both are present.
func ParseCredentials(lower string) (Credentials, bool) {
	idMatch := idNumberPattern.FindStringSubmatch(lower)
	codeMatch := codePattern.FindStringSubmatch(lower)
	if idMatch == nil || codeMatch == nil {
		return Credentials{}, false
	}

	return Credentials{
		IDNumber: strings.TrimSpace(idMatch[1]),
		Code:     strings.TrimSpace(codeMatch[1]),
	}, true
}
