// Package interview drives an interview session from resume upload to completion.
package interview

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/internal/agent"
	"github.com/ddokterview/ddokterview/internal/bridge"
	"github.com/ddokterview/ddokterview/internal/metrics"
	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/internal/progress"
	"github.com/ddokterview/ddokterview/internal/speech"
	"github.com/ddokterview/ddokterview/pkg/models"
)

// Publisher receives progress notifications.
type Publisher interface {
	Publish(ev models.ProgressEvent)
}

// Options tunes the orchestration.
type Options struct {
	// QuestionUserID is the caller identity for question-agent calls.
	QuestionUserID string
	// TargetTotal is the number of questions planned for a new interview.
	TargetTotal          int
	AnalysisWaitTimeout  time.Duration
	AnalysisPollInterval time.Duration
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store         objstore.Store
	Sessions      SessionStore
	Bridge        *bridge.Bridge
	QuestionAgent agent.Client
	Tracker       *progress.Tracker
	Transcriber   speech.Transcriber
	Synthesizer   speech.Synthesizer
	Events        Publisher
	Metrics       *metrics.Metrics
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
}

// Service implements the interview state machine.
type Service struct {
	store       objstore.Store
	sessions    SessionStore
	bridge      *bridge.Bridge
	questions   agent.Client
	tracker     *progress.Tracker
	transcriber speech.Transcriber
	synth       speech.Synthesizer
	events      Publisher
	metrics     *metrics.Metrics
	now         func() time.Time
	opts        Options
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.ProgressEvent) {}

// NewService creates a Service.
func NewService(deps Deps, opts Options) *Service {
	if opts.QuestionUserID == "" {
		opts.QuestionUserID = "web_user"
	}
	if opts.TargetTotal <= 0 {
		opts.TargetTotal = models.DefaultTargetTotal
	}
	if opts.AnalysisWaitTimeout <= 0 {
		opts.AnalysisWaitTimeout = 30 * time.Second
	}
	if opts.AnalysisPollInterval <= 0 {
		opts.AnalysisPollInterval = 2 * time.Second
	}
	s := &Service{
		store:       deps.Store,
		sessions:    deps.Sessions,
		bridge:      deps.Bridge,
		questions:   deps.QuestionAgent,
		tracker:     deps.Tracker,
		transcriber: deps.Transcriber,
		synth:       deps.Synthesizer,
		events:      deps.Events,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		opts:        opts,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.synth == nil {
		s.synth = speech.Disabled{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Session returns the lifecycle state of id.
func (s *Service) Session(ctx context.Context, id string) (*models.InterviewSession, error) {
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}
	sess, ok, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownSession)
	}
	return sess, nil
}

// Status returns the full progress record of id.
func (s *Service) Status(ctx context.Context, id string) (*models.ProgressRecord, error) {
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}
	return s.tracker.Get(ctx, id)
}

func (s *Service) saveSession(ctx context.Context, sess *models.InterviewSession, phase models.Phase) error {
	prev := sess.Phase
	sess.Phase = phase
	sess.UpdatedAt = s.now()
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		log.Error().Err(err).Str("sessionId", sess.ID).Str("phase", string(phase)).Msg("Failed to save session state")
		return fmt.Errorf("save session: %w", err)
	}
	if prev != phase {
		log.Info().
			Str("sessionId", sess.ID).
			Str("from", string(prev)).
			Str("to", string(phase)).
			Int("turn", sess.Turn).
			Msg("Interview phase changed")
	}
	return nil
}
