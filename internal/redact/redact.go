// Package redact strips credentials, storage locations and local paths from
// error text before it is logged or stored where a user can read it, such
// as the error message of a failed import task.
package redact

import "regexp"

// Placeholders substituted for redacted fragments.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedObjectPlaceholder     = "[REDACTED_OBJECT]"
	RedactedCollectionPlaceholder = "[REDACTED_COLLECTION]"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// rules run in order; later rules see the output of earlier ones.
var rules = []rule{
	// Everything from a panic or goroutine dump onwards.
	{regexp.MustCompile(`(?:goroutine \d+ \[|panic: )[\s\S]*`), "[STACK_TRACE_REDACTED]"},

	// Authorization headers, whatever the scheme.
	{
		regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)(?:(?:bearer|basic|token)\s+)?[^\s,;"']+`),
		"${1}" + RedactedCredentialPlaceholder,
	},
	{regexp.MustCompile(`(?i)\b(bearer\s+)[A-Za-z0-9._~+/=-]{8,}`), "${1}" + RedactedTokenPlaceholder},

	// Media bucket locations carry the owner id in the object key.
	{regexp.MustCompile(`\b(?:gs://|https://storage\.googleapis\.com/)[^\s"'<>:]+`), RedactedObjectPlaceholder},

	// user:password@ in URLs and DSNs.
	{
		regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://)[^/\s:@]+(?::[^/\s@]*)?@`),
		"${1}" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|api[_-]?key|access[_-]?token|token|signature|sig)(\s*=\s*)[^\s&,;"']{3,}`),
		"${1}${2}" + RedactionPlaceholder,
	},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},

	// Temporary collection databases, then any other absolute path.
	{regexp.MustCompile(`(?:[A-Za-z]:)?[\w./\\-]*anki-collection-[\w.-]*`), RedactedCollectionPlaceholder},
	{regexp.MustCompile(`(^|[\s:=("'])(?:/[\w.-]+){2,}`), "${1}" + RedactedPathPlaceholder},

	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
}

// String redacts sensitive fragments from input.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.re.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive fragments from err.Error().
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
