package agent

import (
	"regexp"
	"strings"
)

var sessionTagRegex = regexp.MustCompile(`\[SESSION_ID:\s*([A-Za-z0-9_\-]+)\s*\]`)

// WithSessionTag appends the session marker the remote agent uses to locate session files.
func WithSessionTag(message, sessionID string) string {
	return strings.TrimRight(message, "\n") + "\n[SESSION_ID: " + sessionID + "]"
}

// SessionTag returns the session id embedded in message, if any.
func SessionTag(message string) (string, bool) {
	m := sessionTagRegex.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}
