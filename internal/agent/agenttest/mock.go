// Package agenttest provides a mock agent client for tests.
package agenttest

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/mock"

	"github.com/ddokterview/ddokterview/internal/agent"
)

// Client is a testify mock of agent.Client.
type Client struct {
	mock.Mock
}

var _ agent.Client = (*Client)(nil)

func (c *Client) CreateSession(ctx context.Context, userID string) (string, error) {
	args := c.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (c *Client) StreamQuery(ctx context.Context, userID, sessionID, message string) ([]agent.Event, error) {
	args := c.Called(ctx, userID, sessionID, message)
	events, _ := args.Get(0).([]agent.Event)
	return events, args.Error(1)
}

// TextEvent builds a structured event whose single part carries text.
func TextEvent(text string) agent.Event {
	ev := map[string]any{
		"content": map[string]any{
			"role":  "model",
			"parts": []map[string]any{{"text": text}},
		},
	}
	data, _ := json.Marshal(ev)
	return agent.Event(data)
}

// ReplyEvents wraps reply as a fenced JSON block in a one-event stream.
func ReplyEvents(reply map[string]any) []agent.Event {
	data, _ := json.Marshal(reply)
	return []agent.Event{TextEvent("```json\n" + string(data) + "\n```")}
}

// Contains matches a message argument containing every fragment.
func Contains(fragments ...string) interface{} {
	return mock.MatchedBy(func(msg string) bool {
		for _, f := range fragments {
			if !strings.Contains(msg, f) {
				return false
			}
		}
		return true
	})
}
