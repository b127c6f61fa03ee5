// Package bridge binds application interview sessions to remote agent conversations.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/ddokterview/ddokterview/internal/agent"
	"github.com/ddokterview/ddokterview/internal/metrics"
)

// ErrSessionNotFound is returned for a follow-up turn with no bound remote session.
var ErrSessionNotFound = errors.New("no agent session bound to this interview session")

// DefaultCreateTimeout bounds one remote session creation.
const DefaultCreateTimeout = 30 * time.Second

// BindingStore persists appSessionID -> remoteSessionID.
type BindingStore interface {
	// GetBinding returns ok=false when no binding exists.
	GetBinding(ctx context.Context, appSessionID string) (remoteSessionID string, ok bool, err error)
	// PutBinding creates or replaces the binding.
	PutBinding(ctx context.Context, appSessionID, remoteSessionID string) error
}

// Bridge sends interview turns to the session agent.
type Bridge struct {
	client   agent.Client
	bindings BindingStore
	userID   string
	metrics  *metrics.Metrics
	creating singleflight.Group

	createTimeout time.Duration
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics records agent call latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithCreateTimeout bounds remote session creation. Defaults to DefaultCreateTimeout.
func WithCreateTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.createTimeout = d
		}
	}
}

// New creates a bridge that speaks to client as userID.
func New(client agent.Client, bindings BindingStore, userID string, opts ...Option) *Bridge {
	b := &Bridge{client: client, bindings: bindings, userID: userID, createTimeout: DefaultCreateTimeout}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ResolveRemoteSession returns the remote session for appSessionID. A first turn
// always opens a new remote session and replaces any previous binding; later
// turns must find an existing binding.
func (b *Bridge) ResolveRemoteSession(ctx context.Context, appSessionID string, isFirstTurn bool) (string, error) {
	if isFirstTurn {
		return b.createBinding(ctx, appSessionID)
	}

	remote, ok, err := b.bindings.GetBinding(ctx, appSessionID)
	if err != nil {
		return "", fmt.Errorf("load agent binding: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", appSessionID, ErrSessionNotFound)
	}
	return remote, nil
}

// createBinding collapses concurrent first turns of the same session into one
// remote session. The shared creation runs detached from any single caller, so
// one caller giving up does not fail the others that joined it.
func (b *Bridge) createBinding(ctx context.Context, appSessionID string) (string, error) {
	ch := b.creating.DoChan(appSessionID, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.createTimeout)
		defer cancel()

		remote, err := b.client.CreateSession(fctx, b.userID)
		if err != nil {
			return "", fmt.Errorf("create agent session: %w", err)
		}
		if err := b.bindings.PutBinding(fctx, appSessionID, remote); err != nil {
			return "", fmt.Errorf("store agent binding: %w", err)
		}
		log.Info().
			Str("sessionId", appSessionID).
			Str("remoteSessionId", remote).
			Msg("Agent session bound")
		return remote, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Debug().Str("sessionId", appSessionID).Msg("Joined in-flight agent session creation")
		}
		return res.Val.(string), nil
	}
}

// SendTurn resolves the remote session and sends message, returning the
// decoded reply of the stream's last event. Failures are not retried.
func (b *Bridge) SendTurn(ctx context.Context, appSessionID, message string, isFirstTurn bool) (agent.Reply, error) {
	remote, err := b.ResolveRemoteSession(ctx, appSessionID, isFirstTurn)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	events, err := b.client.StreamQuery(ctx, b.userID, remote, message)
	b.metrics.ObserveAgentCall("session", err, time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("sessionId", appSessionID).Str("remoteSessionId", remote).Msg("Agent turn failed")
		return nil, fmt.Errorf("agent turn: %w", err)
	}

	reply, err := agent.LastReply(events)
	if err != nil {
		log.Error().Err(err).
			Str("sessionId", appSessionID).
			Int("events", len(events)).
			Msg("Unusable agent response")
		return nil, err
	}

	log.Debug().
		Str("sessionId", appSessionID).
		Int("events", len(events)).
		Str("status", reply.String("status")).
		Msg("Agent turn completed")
	return reply, nil
}
