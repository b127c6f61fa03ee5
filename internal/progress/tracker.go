// Package progress maintains the per-session question and answer log.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/internal/lock"
	"github.com/ddokterview/ddokterview/internal/metrics"
	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/pkg/models"
)

var (
	// ErrNotFound is returned when a session has no progress record.
	ErrNotFound = errors.New("progress record not found")
	// ErrInvalidTurn is returned for a turn without session id or with a non-positive number.
	ErrInvalidTurn = errors.New("invalid turn")
)

// TurnInput is one question, optionally with its answer.
type TurnInput struct {
	SessionID      string
	QuestionNumber int
	QuestionText   string
	IsTailQuestion bool
	// Answer is nil until the candidate has answered. An empty answer counts as none.
	Answer *string
	// TargetTotal replaces the stored target when positive.
	TargetTotal int
}

// Tracker reads and writes progress records in the object store.
type Tracker struct {
	store   objstore.Store
	locks   lock.Locker
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMetrics counts swallowed media attachment failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker. Writes to one session are serialized through locks.
func NewTracker(store objstore.Store, locks lock.Locker, opts ...Option) *Tracker {
	t := &Tracker{
		store: store,
		locks: locks,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get loads the record of sessionID.
func (t *Tracker) Get(ctx context.Context, sessionID string) (*models.ProgressRecord, error) {
	rec, err := t.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	return rec, nil
}

// RecordTurn merges in into the session's record by question number and
// returns the recomputed counters.
func (t *Tracker) RecordTurn(ctx context.Context, in TurnInput) (models.Counters, error) {
	if in.SessionID == "" || in.QuestionNumber < 1 {
		return models.Counters{}, fmt.Errorf("%w: session %q question %d", ErrInvalidTurn, in.SessionID, in.QuestionNumber)
	}

	unlock, err := t.locks.Lock(ctx, "progress:"+in.SessionID)
	if err != nil {
		return models.Counters{}, fmt.Errorf("lock progress: %w", err)
	}
	defer unlock()

	rec, err := t.load(ctx, in.SessionID)
	if err != nil {
		return models.Counters{}, err
	}
	now := t.now()
	if rec == nil {
		target := in.TargetTotal
		if target <= 0 {
			target = models.DefaultTargetTotal
		}
		rec = &models.ProgressRecord{
			SessionID:   in.SessionID,
			TargetTotal: target,
			StartTime:   now,
			Questions:   []*models.QuestionEntry{},
		}
	} else if in.TargetTotal > 0 {
		rec.TargetTotal = in.TargetTotal
	}

	answered := in.Answer != nil && *in.Answer != ""
	if entry := rec.Entry(in.QuestionNumber); entry != nil {
		if answered {
			a := *in.Answer
			entry.Answer = &a
			entry.AnsweredAt = &now
		}
	} else {
		entry := &models.QuestionEntry{
			Number:         in.QuestionNumber,
			Question:       in.QuestionText,
			IsTailQuestion: in.IsTailQuestion,
			AskedAt:        now,
		}
		if answered {
			a := *in.Answer
			entry.Answer = &a
			entry.AnsweredAt = &now
		}
		rec.Questions = append(rec.Questions, entry)
	}

	counters := rec.Recount(in.QuestionNumber, now)
	if err := t.save(ctx, rec); err != nil {
		return models.Counters{}, err
	}

	log.Info().
		Str("sessionId", in.SessionID).
		Int("question", in.QuestionNumber).
		Bool("tail", in.IsTailQuestion).
		Bool("answered", answered).
		Int("asked", counters.AskedQuestions).
		Int("remaining", counters.RemainingSlots).
		Msg("Progress recorded")
	return counters, nil
}

// AttachMedia sets the media URL of an existing entry. Every failure is
// logged and swallowed; a missing record is never created.
func (t *Tracker) AttachMedia(ctx context.Context, sessionID string, questionNumber int, mediaURL string) {
	if err := t.attachMedia(ctx, sessionID, questionNumber, mediaURL); err != nil {
		t.metrics.IncMediaAttachFailure()
		log.Warn().Err(err).
			Str("sessionId", sessionID).
			Int("question", questionNumber).
			Msg("Media not attached to progress record")
	}
}

func (t *Tracker) attachMedia(ctx context.Context, sessionID string, questionNumber int, mediaURL string) error {
	unlock, err := t.locks.Lock(ctx, "progress:"+sessionID)
	if err != nil {
		return fmt.Errorf("lock progress: %w", err)
	}
	defer unlock()

	rec, err := t.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	entry := rec.Entry(questionNumber)
	if entry == nil {
		return fmt.Errorf("question %d not in progress record", questionNumber)
	}
	now := t.now()
	url := mediaURL
	entry.VideoURL = &url
	entry.UploadedAt = &now
	return t.save(ctx, rec)
}

func (t *Tracker) load(ctx context.Context, sessionID string) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	err := objstore.GetJSON(ctx, t.store, objstore.ProgressPath(sessionID), &rec)
	if errors.Is(err, objstore.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if rec.Questions == nil {
		rec.Questions = []*models.QuestionEntry{}
	}
	return &rec, nil
}

func (t *Tracker) save(ctx context.Context, rec *models.ProgressRecord) error {
	if err := objstore.PutJSON(ctx, t.store, objstore.ProgressPath(rec.SessionID), rec); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
