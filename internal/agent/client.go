// Package agent talks to hosted conversational agents on Vertex AI Agent Engine.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// Agent Engine class methods of an ADK application.
const (
	methodCreateSession = "async_create_session"
	methodStreamQuery   = "async_stream_query"
)

// Event is one raw event of an agent's response stream.
type Event = json.RawMessage

// Client is the narrow surface the service needs from a remote agent.
type Client interface {
	// CreateSession opens a new remote conversation owned by userID.
	CreateSession(ctx context.Context, userID string) (string, error)
	// StreamQuery sends message and collects every event of the response.
	// An empty sessionID lets the agent pick or create its own session.
	StreamQuery(ctx context.Context, userID, sessionID, message string) ([]Event, error)
}

// EngineConfig identifies one deployed reasoning engine.
type EngineConfig struct {
	Project  string
	Location string
	EngineID string
	// Endpoint overrides {location}-aiplatform.googleapis.com:443.
	Endpoint string
	// ClientOptions are passed to the execution client after the endpoint.
	ClientOptions []option.ClientOption
}

// EngineClient calls a reasoning engine through the Vertex AI execution service.
type EngineClient struct {
	exec     *aiplatform.ReasoningEngineExecutionClient
	resource string
}

// NewEngineClient dials the regional execution service. Application default
// credentials are used unless ClientOptions say otherwise.
func NewEngineClient(ctx context.Context, cfg EngineConfig) (*EngineClient, error) {
	if cfg.Project == "" || cfg.Location == "" || cfg.EngineID == "" {
		return nil, errors.New("project, location and engine id are required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s-aiplatform.googleapis.com:443", cfg.Location)
	}
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, cfg.ClientOptions...)

	exec, err := aiplatform.NewReasoningEngineExecutionClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create execution client: %w", err)
	}

	resource := cfg.EngineID
	if !strings.HasPrefix(resource, "projects/") {
		resource = fmt.Sprintf("projects/%s/locations/%s/reasoningEngines/%s", cfg.Project, cfg.Location, cfg.EngineID)
	}
	return &EngineClient{exec: exec, resource: resource}, nil
}

// Resource returns the fully qualified engine name.
func (c *EngineClient) Resource() string {
	return c.resource
}

// Close releases the underlying connection.
func (c *EngineClient) Close() error {
	return c.exec.Close()
}

func (c *EngineClient) CreateSession(ctx context.Context, userID string) (string, error) {
	input, err := structpb.NewStruct(map[string]any{"user_id": userID})
	if err != nil {
		return "", err
	}
	resp, err := c.exec.QueryReasoningEngine(ctx, &aiplatformpb.QueryReasoningEngineRequest{
		Name:        c.resource,
		ClassMethod: methodCreateSession,
		Input:       input,
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	id := outputSessionID(resp.GetOutput())
	if id == "" {
		return "", errors.New("create session: response carries no session id")
	}

	log.Debug().Str("engine", c.resource).Str("remoteSessionId", id).Msg("Remote agent session created")
	return id, nil
}

// outputSessionID accepts either a session object or a bare id string.
func outputSessionID(out *structpb.Value) string {
	if s := out.GetStructValue(); s != nil {
		return s.GetFields()["id"].GetStringValue()
	}
	return out.GetStringValue()
}

func (c *EngineClient) StreamQuery(ctx context.Context, userID, sessionID, message string) ([]Event, error) {
	fields := map[string]any{"user_id": userID, "message": message}
	if sessionID != "" {
		fields["session_id"] = sessionID
	}
	input, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	stream, err := c.exec.StreamQueryReasoningEngine(ctx, &aiplatformpb.StreamQueryReasoningEngineRequest{
		Name:        c.resource,
		ClassMethod: methodStreamQuery,
		Input:       input,
	})
	if err != nil {
		return nil, fmt.Errorf("stream query: %w", err)
	}

	var events []Event
	for {
		body, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read event stream: %w", err)
		}
		events = append(events, splitEvents(body.GetData())...)
	}
	return events, nil
}

// splitEvents accepts newline-delimited JSON and SSE "data:" framing inside
// one stream chunk.
func splitEvents(chunk []byte) []Event {
	var events []Event
	for _, line := range bytes.Split(chunk, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			line = bytes.TrimSpace(rest)
		}
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		events = append(events, Event(bytes.Clone(line)))
	}
	return events
}
