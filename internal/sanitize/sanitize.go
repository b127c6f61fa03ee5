// Package sanitize cleans candidate-provided text before it is relayed to the agents.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// sessionTagRegex matches [SESSION_ID: ...] markers, including malformed ones.
	sessionTagRegex = regexp.MustCompile(`(?i)\[\s*SESSION[_ ]?ID\s*:[^\]\n]*\]`)

	// controlRegex matches control characters other than tab and newline.
	controlRegex = regexp.MustCompile(`[\x00-\x08\x0B-\x1F\x7F]`)

	blankLinesRegex = regexp.MustCompile(`\n{3,}`)
)

// StripSessionTags removes every session marker from text.
func StripSessionTags(text string) string {
	return sessionTagRegex.ReplaceAllString(text, "")
}

// StripControl removes non-printing control characters.
func StripControl(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return controlRegex.ReplaceAllString(text, "")
}

// HasContent reports whether anything but whitespace remains after cleaning.
func HasContent(text string) bool {
	return Answer(text) != ""
}

// Answer performs full cleaning on a transcribed or typed answer.
// This is the function to use before embedding candidate text in an agent message.
func Answer(text string) string {
	text = StripControl(text)
	text = StripSessionTags(text)
	text = blankLinesRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
