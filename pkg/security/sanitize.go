package security

import (
	"regexp"
	"strings"
)

// SQL-injection heuristics. Conservative by intent: a value matching any of
// these is rejected outright rather than repaired, and false positives are
// an accepted cost.
var sqlInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(union|select|insert|update|delete|drop|alter|truncate|exec)\b`),
	regexp.MustCompile(`--`),
	regexp.MustCompile(`/\*[\s\S]*?\*/`),
	regexp.MustCompile(`(?i)\b(or|and)\b\s*['"]?\d+['"]?\s*=\s*['"]?\d+`),
	regexp.MustCompile(`(?i);\s*(select|insert|update|delete|drop)\b`),
}

// HTML/script heuristics for values that should never carry markup
var htmlTagPattern = regexp.MustCompile(`(?i)<\s*/?\s*[a-z!]`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// ContainsSQLInjection reports whether the value matches any SQL-injection
// pattern
func ContainsSQLInjection(value string) bool {
	for _, p := range sqlInjectionPatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// ContainsHTML reports whether the value appears to contain an HTML tag
func ContainsHTML(value string) bool {
	return htmlTagPattern.MatchString(value)
}

// NormalizeWhitespace trims the value and collapses internal whitespace
// runs to a single space
func NormalizeWhitespace(value string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(value), " ")
}

// Entities EscapeHTML emits and therefore must not re-escape
var knownEntities = []string{"amp;", "lt;", "gt;", "quot;", "#39;"}

// EscapeHTML encodes <, >, ", ' and & so a value is inert when rendered.
// Unlike html.EscapeString it leaves already-encoded entities alone, which
// makes it idempotent: escaping twice equals escaping once.
func EscapeHTML(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#39;")
		case '&':
			if followsKnownEntity(value[i+1:]) {
				b.WriteByte('&')
			} else {
				b.WriteString("&amp;")
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// followsKnownEntity reports whether s starts with the remainder of an
// entity EscapeHTML itself produces
func followsKnownEntity(s string) bool {
	for _, e := range knownEntities {
		if strings.HasPrefix(s, e) {
			return true
		}
	}
	return false
}
