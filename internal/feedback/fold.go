package feedback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/internal/lock"
	"github.com/ddokterview/ddokterview/internal/metrics"
	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/pkg/models"
)

var (
	// ErrNotFound is returned when a session has no feedback yet.
	ErrNotFound = errors.New("feedback not found")
	// ErrInvalidEntry is returned for an empty entry or a non-positive question number.
	ErrInvalidEntry = errors.New("invalid feedback entry")
)

// Folder merges feedback entries into the aggregate report of a session.
type Folder struct {
	store   objstore.Store
	locks   lock.Locker
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Folder.
type Option func(*Folder)

// WithMetrics counts folds.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Folder) { f.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Folder) { f.now = now }
}

// NewFolder creates a folder.
func NewFolder(store objstore.Store, locks lock.Locker, opts ...Option) *Folder {
	f := &Folder{
		store: store,
		locks: locks,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fold stores entry as the feedback of questionNumber and merges it into the
// aggregate. When isFinal, the summary fields of entry are promoted to the
// top of the aggregate and createdAt is moved to the last key.
func (f *Folder) Fold(ctx context.Context, sessionID string, questionNumber int, entry *models.Object, isFinal bool) (*models.Object, error) {
	if entry.Len() == 0 || questionNumber < 1 {
		return nil, fmt.Errorf("%w: question %d", ErrInvalidEntry, questionNumber)
	}
	entry = entry.Clone()
	entry.Set(models.FeedbackKeyQuestionID, questionNumber)
	if isFinal {
		if err := fillTotalScore(entry); err != nil {
			return nil, err
		}
	}

	unlock, err := f.locks.Lock(ctx, "feedback:"+sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock feedback: %w", err)
	}
	defer unlock()

	if err := objstore.PutJSON(ctx, f.store, objstore.FeedbackEntryPath(sessionID, questionNumber), entry); err != nil {
		return nil, fmt.Errorf("save feedback entry: %w", err)
	}

	agg, err := f.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	f.merge(sessionID, agg, questionNumber, entry, isFinal)
	if err := f.save(ctx, sessionID, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// Collect refolds every stored per-question entry of the session in question
// order, treating the highest-numbered one as final.
func (f *Folder) Collect(ctx context.Context, sessionID string) (*models.Object, error) {
	unlock, err := f.locks.Lock(ctx, "feedback:"+sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock feedback: %w", err)
	}
	defer unlock()

	paths, err := f.store.List(ctx, objstore.FeedbackEntryPrefix(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list feedback entries: %w", err)
	}
	numbers := make(map[int]string, len(paths))
	for _, p := range paths {
		if n, ok := objstore.ParseFeedbackEntryPath(sessionID, p); ok {
			numbers[n] = p
		}
	}
	if len(numbers) == 0 {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	order := make([]int, 0, len(numbers))
	for n := range numbers {
		order = append(order, n)
	}
	sort.Ints(order)

	agg, err := f.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i, n := range order {
		data, err := f.store.Get(ctx, numbers[n])
		if err != nil {
			return nil, fmt.Errorf("load feedback entry %d: %w", n, err)
		}
		entry, err := models.ParseObject(data)
		if err != nil {
			return nil, fmt.Errorf("decode feedback entry %d: %w", n, err)
		}
		entry.Set(models.FeedbackKeyQuestionID, n)
		final := i == len(order)-1
		if final {
			if err := fillTotalScore(entry); err != nil {
				return nil, err
			}
		}
		f.merge(sessionID, agg, n, entry, final)
	}
	if err := f.save(ctx, sessionID, agg); err != nil {
		return nil, err
	}

	log.Info().Str("sessionId", sessionID).Int("entries", len(order)).Msg("Feedback collected")
	return agg, nil
}

// Get loads the aggregate report.
func (f *Folder) Get(ctx context.Context, sessionID string) (*models.Object, error) {
	data, err := f.store.Get(ctx, objstore.FeedbackAggregatePath(sessionID))
	if errors.Is(err, objstore.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	return models.ParseObject(data)
}

func (f *Folder) merge(sessionID string, agg *models.Object, questionNumber int, entry *models.Object, isFinal bool) {
	questions, _ := agg.Get(models.FeedbackKeyQuestions)
	list, _ := questions.([]any)

	merged := false
	for _, item := range list {
		existing, ok := item.(*models.Object)
		if !ok {
			continue
		}
		if id, ok := existing.Int(models.FeedbackKeyQuestionID); ok && id == questionNumber {
			existing.Merge(entry)
			merged = true
			break
		}
	}
	if !merged {
		list = append(list, entry.Clone())
	}
	agg.Set(models.FeedbackKeyQuestions, list)

	if isFinal {
		for _, k := range models.PromotedFeedbackKeys {
			if v, ok := entry.Get(k); ok {
				agg.Set(k, v)
			}
		}
		agg.MoveToEnd(models.FeedbackKeyCreatedAt)
	}

	f.metrics.IncFeedbackFold(isFinal)
	log.Debug().
		Str("sessionId", sessionID).
		Int("question", questionNumber).
		Bool("merged", merged).
		Bool("final", isFinal).
		Msg("Feedback folded")
}

func (f *Folder) load(ctx context.Context, sessionID string) (*models.Object, error) {
	data, err := f.store.Get(ctx, objstore.FeedbackAggregatePath(sessionID))
	if errors.Is(err, objstore.ErrNotExist) {
		agg := models.NewObject()
		agg.Set(models.FeedbackKeySessionID, sessionID)
		agg.Set(models.FeedbackKeyCreatedAt, f.now().Format(time.RFC3339))
		agg.Set(models.FeedbackKeyQuestions, []any{})
		return agg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	agg, err := models.ParseObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	return agg, nil
}

func (f *Folder) save(ctx context.Context, sessionID string, agg *models.Object) error {
	if err := objstore.PutJSON(ctx, f.store, objstore.FeedbackAggregatePath(sessionID), agg); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

// fillTotalScore computes totalScore from the sub-scores when the entry has all
// twelve but no composite of its own.
func fillTotalScore(entry *models.Object) error {
	if entry.Has(models.FeedbackKeyTotalScore) {
		return nil
	}
	scores, ok := models.ScoresFrom(entry)
	if !ok {
		return nil
	}
	total, err := TotalScore(scores)
	if err != nil {
		return err
	}
	entry.Set(models.FeedbackKeyTotalScore, total)
	return nil
}
