package dispatcher

import (
	"regexp"
	"strings"
)

// template tokens substituted per recipient
const (
	TokenFirstName = "{{firstName}}"
	TokenLastName  = "{{lastName}}"
)

// placeholders used when a name is known but blank
const (
	PlaceholderFirstName = "[First Name]"
	PlaceholderLastName  = "[Last Name]"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

var knownTokens = map[string]bool{
	"firstName": true,
	"lastName":  true,
}

// Names holds the resolved display name of a recipient. A nil field means
// the value is unknown and its token is left untouched.
type Names struct {
	First *string
	Last  *string
}

// Substitute replaces the name tokens in text.
func Substitute(text string, names Names) string {
	text = replaceToken(text, TokenFirstName, names.First, PlaceholderFirstName)
	text = replaceToken(text, TokenLastName, names.Last, PlaceholderLastName)
	return text
}

func replaceToken(text, token string, value *string, placeholder string) string {
	if value == nil {
		return text
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		v = placeholder
	}
	return strings.ReplaceAll(text, token, v)
}

// UnknownTokens lists the {{...}} tokens in text that Substitute never fills,
// in order of first appearance.
func UnknownTokens(text string) []string {
	var unknown []string
	seen := map[string]bool{}

	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if knownTokens[name] && m[0] == "{{"+name+"}}" {
			continue
		}
		if !seen[m[0]] {
			seen[m[0]] = true
			unknown = append(unknown, m[0])
		}
	}

	return unknown
}
