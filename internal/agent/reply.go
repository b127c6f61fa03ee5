package agent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ddokterview/ddokterview/pkg/models"
)

// ErrEmptyResponse is returned when an agent stream yields no events.
var ErrEmptyResponse = errors.New("agent returned no events")

const rawPrefixLimit = 500

// ParseError is returned when the agent's final text is not a JSON object.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("agent response is not valid JSON: %v (raw: %q)", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reply is the decoded JSON object an agent answered with.
type Reply map[string]any

// String returns key as a string, or "".
func (r Reply) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int returns key as a whole number.
func (r Reply) Int(key string) (int, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return models.AsInt(v)
}

// Bool returns key as a boolean, accepting "true"/"false" strings.
func (r Reply) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

type eventPart struct {
	Text string `json:"text"`
}

type eventContent struct {
	Parts []eventPart `json:"parts"`
}

type structuredEvent struct {
	Content *eventContent `json:"content"`
}

// ExtractText returns the text carried by one event: the first non-empty
// content part of a structured event, a JSON string event, or the raw bytes.
func ExtractText(ev Event) string {
	trimmed := strings.TrimSpace(string(ev))
	if trimmed == "" {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(ev, &s); err == nil {
			return s
		}
	case '{':
		var se structuredEvent
		if err := json.Unmarshal(ev, &se); err == nil && se.Content != nil {
			for _, p := range se.Content.Parts {
				if p.Text != "" {
					return p.Text
				}
			}
			return ""
		}
	}
	return trimmed
}

var fenceRE = regexp.MustCompile("(?s)```(?i:json)?[ \t]*\n?(.*?)\n?[ \t]*```")

// StripFence returns the body of the first ``` or ```json code fence in text,
// or the trimmed text when there is none. Prose around the fence is dropped.
func StripFence(text string) string {
	if m := fenceRE.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ParseReply decodes the text of the last event into a Reply.
func ParseReply(text string) (Reply, error) {
	body := StripFence(text)
	var r Reply
	if err := json.Unmarshal([]byte(body), &r); err != nil || r == nil {
		if err == nil {
			err = errors.New("not a JSON object")
		}
		return nil, &ParseError{Raw: truncate(text, rawPrefixLimit), Err: err}
	}
	return r, nil
}

// LastReply parses the final event of a response stream.
func LastReply(events []Event) (Reply, error) {
	if len(events) == 0 {
		return nil, ErrEmptyResponse
	}
	return ParseReply(ExtractText(events[len(events)-1]))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
