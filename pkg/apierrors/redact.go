package apierrors

import "regexp"

// Redaction patterns for substrings that must never leave a production
// deployment inside an error message. Placeholders keep the message readable
// while stripping anything an attacker or a log aggregator should not see.
var (
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ipv4Pattern   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	apiKeyPattern = regexp.MustCompile(`\b(?:sk|pk|key|token|api|secret)[_\-][A-Za-z0-9_\-]{8,}\b`)
	pathPattern   = regexp.MustCompile(`(?:/[A-Za-z0-9._\-]+){2,}/?`)
)

// Redact replaces emails, IPv4 addresses, API-key-shaped tokens, and
// filesystem-path-like substrings with placeholders. Emails run first so the
// host part is not half-eaten by the path pattern.
func Redact(s string) string {
	s = emailPattern.ReplaceAllString(s, "[email]")
	s = ipv4Pattern.ReplaceAllString(s, "[ip]")
	s = apiKeyPattern.ReplaceAllString(s, "[key]")
	s = pathPattern.ReplaceAllString(s, "[path]")
	return s
}
