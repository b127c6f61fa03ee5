package progress

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ddokterview/ddokterview/internal/lock"
	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/pkg/models"
)

// TrackerSuite is a test suite for the progress tracker.
type TrackerSuite struct {
	suite.Suite
	store   *objstore.FilesystemStore
	tracker *Tracker
	ctx     context.Context
	clock   time.Time
}

func (s *TrackerSuite) SetupTest() {
	var err error
	s.store, err = objstore.NewFilesystemStore(s.T().TempDir())
	s.Require().NoError(err)
	s.clock = time.Date(2025, 11, 6, 10, 30, 0, 0, time.UTC)
	s.tracker = NewTracker(s.store, lock.NewLocal(), WithClock(func() time.Time {
		s.clock = s.clock.Add(time.Second)
		return s.clock
	}))
	s.ctx = context.Background()
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func strPtr(s string) *string { return &s }

func (s *TrackerSuite) TestScenarioThreeTurns() {
	c, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 1, QuestionText: "Q1", TargetTotal: 3})
	s.Require().NoError(err)
	s.Equal(2, c.RemainingSlots)

	c, err = s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 2, QuestionText: "Q2", Answer: strPtr("A2"), TargetTotal: 3})
	s.Require().NoError(err)
	s.Equal(1, c.RemainingSlots)

	rec, err := s.tracker.Get(s.ctx, "s1")
	s.Require().NoError(err)
	s.Require().NotNil(rec.Entry(2).Answer)
	s.Equal("A2", *rec.Entry(2).Answer)
	s.NotNil(rec.Entry(2).AnsweredAt)
	s.Nil(rec.Entry(1).Answer)
	s.Nil(rec.Entry(1).AnsweredAt)

	c, err = s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 3, QuestionText: "Q3", Answer: strPtr("A3"), TargetTotal: 3})
	s.Require().NoError(err)
	s.Equal(0, c.RemainingSlots)
	s.Equal(3, c.AskedQuestions)
	s.Equal(3, c.CurrentQuestion)
	s.Equal(3, c.TotalQuestions)
}

func (s *TrackerSuite) TestIdempotentMerge() {
	in := TurnInput{SessionID: "s1", QuestionNumber: 4, QuestionText: "Q4", Answer: strPtr("first"), TargetTotal: 12}
	_, err := s.tracker.RecordTurn(s.ctx, in)
	s.Require().NoError(err)

	in.Answer = strPtr("second")
	c, err := s.tracker.RecordTurn(s.ctx, in)
	s.Require().NoError(err)
	s.Equal(1, c.AskedQuestions)

	rec, err := s.tracker.Get(s.ctx, "s1")
	s.Require().NoError(err)
	s.Len(rec.Questions, 1)
	s.Equal("second", *rec.Questions[0].Answer)
	s.Equal("Q4", rec.Questions[0].Question)
}

func (s *TrackerSuite) TestExistingEntryWithoutAnswerIsUntouched() {
	_, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 1, QuestionText: "Q1", Answer: strPtr("A1")})
	s.Require().NoError(err)
	_, err = s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 1, QuestionText: "changed", Answer: strPtr("")})
	s.Require().NoError(err)

	rec, err := s.tracker.Get(s.ctx, "s1")
	s.Require().NoError(err)
	s.Equal("Q1", rec.Entry(1).Question)
	s.Equal("A1", *rec.Entry(1).Answer)
}

func (s *TrackerSuite) TestDerivedCounters() {
	for i := 1; i <= 5; i++ {
		_, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: i, QuestionText: fmt.Sprintf("Q%d", i), TargetTotal: 12})
		s.Require().NoError(err)
	}

	rec, err := s.tracker.Get(s.ctx, "s1")
	s.Require().NoError(err)
	s.Equal(5, rec.AskedQuestions)
	s.Equal(len(rec.Questions), rec.AskedQuestions)
	s.Equal(7, rec.RemainingSlots)
	s.Equal(12, rec.TargetTotal)
}

func (s *TrackerSuite) TestRemainingSlotsNeverNegative() {
	for i := 1; i <= 4; i++ {
		c, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: i, TargetTotal: 2})
		s.Require().NoError(err)
		s.GreaterOrEqual(c.RemainingSlots, 0)
	}
}

func (s *TrackerSuite) TestDefaultAndStoredTarget() {
	c, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 1})
	s.Require().NoError(err)
	s.Equal(models.DefaultTargetTotal, c.TotalQuestions)

	_, err = s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s2", QuestionNumber: 1, TargetTotal: 5})
	s.Require().NoError(err)
	c, err = s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s2", QuestionNumber: 2})
	s.Require().NoError(err)
	s.Equal(5, c.TotalQuestions)
	s.Equal(3, c.RemainingSlots)
}

func (s *TrackerSuite) TestInvalidTurn() {
	_, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 0})
	s.ErrorIs(err, ErrInvalidTurn)
	_, err = s.tracker.RecordTurn(s.ctx, TurnInput{QuestionNumber: 1})
	s.ErrorIs(err, ErrInvalidTurn)
}

func (s *TrackerSuite) TestAttachMedia() {
	_, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 1, QuestionText: "Q1"})
	s.Require().NoError(err)

	s.tracker.AttachMedia(s.ctx, "s1", 1, "gs://bucket/video/s1_q1.webm")

	rec, err := s.tracker.Get(s.ctx, "s1")
	s.Require().NoError(err)
	s.Require().NotNil(rec.Entry(1).VideoURL)
	s.Equal("gs://bucket/video/s1_q1.webm", *rec.Entry(1).VideoURL)
	s.NotNil(rec.Entry(1).UploadedAt)
}

func (s *TrackerSuite) TestAttachMediaMissingRecordIsNoop() {
	s.NotPanics(func() {
		s.tracker.AttachMedia(s.ctx, "ghost", 1, "gs://bucket/video/ghost_q1.webm")
	})

	ok, err := s.store.Exists(s.ctx, objstore.ProgressPath("ghost"))
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.tracker.Get(s.ctx, "ghost")
	s.ErrorIs(err, ErrNotFound)
}

func (s *TrackerSuite) TestAttachMediaMissingEntryIsNoop() {
	_, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 1, QuestionText: "Q1"})
	s.Require().NoError(err)

	s.tracker.AttachMedia(s.ctx, "s1", 9, "gs://bucket/video/s1_q9.webm")

	rec, err := s.tracker.Get(s.ctx, "s1")
	s.Require().NoError(err)
	s.Len(rec.Questions, 1)
	s.Nil(rec.Entry(1).VideoURL)
}

func (s *TrackerSuite) TestConcurrentTurnsDoNotLoseUpdates() {
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: n, QuestionText: "Q", TargetTotal: 30})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	rec, err := s.tracker.Get(s.ctx, "s1")
	s.Require().NoError(err)
	s.Len(rec.Questions, 20)
	s.Equal(10, rec.RemainingSlots)
}

func (s *TrackerSuite) TestStoredJSONShape() {
	_, err := s.tracker.RecordTurn(s.ctx, TurnInput{SessionID: "s1", QuestionNumber: 1, QuestionText: "Q1", TargetTotal: 3})
	s.Require().NoError(err)

	raw, err := s.store.Get(s.ctx, objstore.ProgressPath("s1"))
	s.Require().NoError(err)
	body := string(raw)
	s.Contains(body, `"sessionId": "s1"`)
	s.Contains(body, `"answer": null`)
	s.Contains(body, `"videoUrl": null`)
	s.Contains(body, `"remainingSlots": 2`)
	s.NotContains(body, "uploadedAt")
}
