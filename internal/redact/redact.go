// Package redact removes credential material from strings destined for logs
// or user-visible error messages.
package redact

import "regexp"

const mask = "[REDACTED]"

var patterns = []*regexp.Regexp{
	// key=value / key: value pairs for common credential field names.
	regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token|refresh[_-]?token|client[_-]?secret|subscription[_-]?key|authorization)(["']?\s*[:=]\s*["']?)([^\s"'&,}{]+)`),
	// Bearer tokens in headers or error bodies.
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._~+/=-]+)`),
	// Credentials passed as query parameters.
	regexp.MustCompile(`(?i)([?&](?:api_?key|token|key|secret)=)([^&\s"']+)`),
}

// String returns s with any recognizable API keys or bearer tokens replaced
// by a redaction marker.
func String(s string) string {
	for i, p := range patterns {
		if i == 0 {
			s = p.ReplaceAllString(s, "${1}${2}"+mask)
		} else {
			s = p.ReplaceAllString(s, "${1}"+mask)
		}
	}
	return s
}

// Error returns the sanitized message of err, or "" for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
