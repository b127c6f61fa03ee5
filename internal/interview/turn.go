package interview

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/internal/agent"
	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/internal/progress"
	"github.com/ddokterview/ddokterview/internal/sanitize"
	"github.com/ddokterview/ddokterview/internal/speech"
	"github.com/ddokterview/ddokterview/pkg/models"
)

// Agent reply statuses.
const (
	StatusContinue  = "continue"
	StatusCompleted = "completed"
)

const (
	startMessage             = "면접을 시작하겠습니다. 첫 번째 질문을 주세요."
	defaultCompletionMessage = "면접이 종료되었습니다."
)

// TurnResult is the response to a start or answer turn.
type TurnResult struct {
	Status         string `json:"status"`
	QuestionID     *int   `json:"questionId,omitempty"`
	Question       string `json:"question,omitempty"`
	IsTailQuestion *bool  `json:"isTailQuestion,omitempty"`
	SessionID      string `json:"sessionId"`
	RemainingSlots int    `json:"remainingSlots"`
	Message        string `json:"message,omitempty"`
	AudioData      string `json:"audioData,omitempty"`
}

// AnswerInput is one uploaded answer recording.
type AnswerInput struct {
	SessionID      string
	QuestionNumber int
	Filename       string
	Data           []byte
}

// StartInterview opens a fresh agent conversation and asks the first question.
// Starting again while in progress rebinds the session to a new conversation.
func (s *Service) StartInterview(ctx context.Context, sessionID string) (*TurnResult, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	logger := log.With().Str("sessionId", sessionID).Logger()

	sess, err := s.startableSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	reply, err := s.bridge.SendTurn(ctx, sessionID, agent.WithSessionTag(startMessage, sessionID), true)
	if err != nil {
		s.metrics.IncTurn("error")
		return nil, err
	}
	if isCompleted(reply) {
		return s.complete(ctx, sess, reply, logger)
	}
	return s.ask(ctx, sess, reply, s.opts.TargetTotal, logger)
}

// startableSession loads the session, adopting sessions whose analysis exists
// but that have no recorded state.
func (s *Service) startableSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	sess, ok, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		analysisPath := objstore.AnalysisPath(sessionID)
		exists, err := s.store.Exists(ctx, analysisPath)
		if err != nil {
			return nil, fmt.Errorf("check analysis: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%s: %w", sessionID, ErrUnknownSession)
		}
		now := s.now()
		sess = &models.InterviewSession{
			ID:          sessionID,
			Phase:       models.PhaseQuestionsReady,
			AnalysisURI: s.store.URI(analysisPath),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		log.Info().Str("sessionId", sessionID).Msg("Adopted session with existing analysis")
	}

	switch sess.Phase {
	case models.PhaseQuestionsReady, models.PhaseInProgress:
		return sess, nil
	default:
		return nil, fmt.Errorf("%w: cannot start session %s in phase %s", ErrInvalidTransition, sessionID, sess.Phase)
	}
}

// SubmitAnswer stores the recording, transcribes it and relays the answer to the agent.
func (s *Service) SubmitAnswer(ctx context.Context, in AnswerInput) (*TurnResult, error) {
	if err := ValidateSessionID(in.SessionID); err != nil {
		return nil, err
	}
	if in.QuestionNumber < 1 {
		return nil, fmt.Errorf("%w: questionNumber must be positive, got %d", ErrInvalidInput, in.QuestionNumber)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: answer recording is empty", ErrInvalidInput)
	}
	logger := log.With().Str("sessionId", in.SessionID).Int("question", in.QuestionNumber).Logger()

	sess, ok, err := s.sessions.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", in.SessionID, ErrUnknownSession)
	}
	if sess.Phase != models.PhaseInProgress {
		return nil, fmt.Errorf("%w: cannot answer in phase %s", ErrInvalidTransition, sess.Phase)
	}
	rec, err := s.tracker.Get(ctx, in.SessionID)
	if err != nil && !errors.Is(err, progress.ErrNotFound) {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if rec == nil || rec.Entry(in.QuestionNumber) == nil {
		return nil, fmt.Errorf("%w: question %d was never asked", ErrInvalidInput, in.QuestionNumber)
	}
	if in.QuestionNumber != sess.Turn {
		logger.Warn().Int("currentTurn", sess.Turn).Msg("Answer to an earlier question")
	}

	ext, contentType := mediaType(in.Filename)
	mediaPath := objstore.MediaPath(in.SessionID, in.QuestionNumber, ext)
	if err := s.store.Put(ctx, mediaPath, in.Data, contentType); err != nil {
		logger.Error().Err(err).Str("path", mediaPath).Msg("Failed to upload answer recording")
		return nil, fmt.Errorf("upload answer: %w", err)
	}
	mediaURI := s.store.URI(mediaPath)
	logger.Info().Int("bytes", len(in.Data)).Str("uri", mediaURI).Msg("Answer recording uploaded")

	s.tracker.AttachMedia(ctx, in.SessionID, in.QuestionNumber, mediaURI)

	transcript, err := s.transcriber.Transcribe(ctx, path.Base(mediaPath), contentType, in.Data)
	if err != nil {
		logger.Error().Err(err).Msg("Transcription failed")
		s.metrics.IncTurn("error")
		return nil, fmt.Errorf("transcribe answer: %w", err)
	}
	answer := sanitize.Answer(transcript)
	if answer == "" {
		s.metrics.IncTurn("error")
		return nil, fmt.Errorf("transcribe answer: %w", speech.ErrEmptyTranscript)
	}

	counters, err := s.tracker.RecordTurn(ctx, progress.TurnInput{
		SessionID:      in.SessionID,
		QuestionNumber: in.QuestionNumber,
		Answer:         &answer,
	})
	if err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}
	s.events.Publish(models.ProgressEvent{
		Type:           models.EventAnswerRecorded,
		SessionID:      in.SessionID,
		QuestionNumber: in.QuestionNumber,
		RemainingSlots: counters.RemainingSlots,
		Timestamp:      s.now(),
	})

	reply, err := s.bridge.SendTurn(ctx, in.SessionID, agent.WithSessionTag(answer, in.SessionID), false)
	if err != nil {
		s.metrics.IncTurn("error")
		return nil, err
	}
	if isCompleted(reply) {
		return s.complete(ctx, sess, reply, logger)
	}
	return s.ask(ctx, sess, reply, 0, logger)
}

// ask records the question carried by reply, voices it and advances the turn.
func (s *Service) ask(ctx context.Context, sess *models.InterviewSession, reply agent.Reply, targetTotal int, logger zerolog.Logger) (*TurnResult, error) {
	question := strings.TrimSpace(reply.String("question"))
	questionID, ok := reply.Int("questionId")
	if question == "" || !ok || questionID < 1 {
		s.metrics.IncTurn("error")
		raw, _ := json.Marshal(reply)
		return nil, &agent.ParseError{Raw: string(raw), Err: errors.New("reply carries no question")}
	}
	isTail := reply.Bool("isTailQuestion")

	counters, err := s.tracker.RecordTurn(ctx, progress.TurnInput{
		SessionID:      sess.ID,
		QuestionNumber: questionID,
		QuestionText:   question,
		IsTailQuestion: isTail,
		TargetTotal:    targetTotal,
	})
	if err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}

	remaining, ok := reply.Int("remainingSlots")
	if !ok {
		remaining = counters.RemainingSlots
	}

	sess.Turn = questionID
	if err := s.saveSession(ctx, sess, models.PhaseInProgress); err != nil {
		return nil, err
	}

	audio := s.synth.Synthesize(ctx, question, isTail)
	s.events.Publish(models.ProgressEvent{
		Type:           models.EventQuestionAsked,
		SessionID:      sess.ID,
		QuestionNumber: questionID,
		Question:       question,
		IsTailQuestion: isTail,
		RemainingSlots: remaining,
		Timestamp:      s.now(),
	})
	s.metrics.IncTurn(StatusContinue)
	logger.Info().
		Int("nextQuestion", questionID).
		Bool("tail", isTail).
		Int("remaining", remaining).
		Bool("audio", audio != "").
		Msg("Question asked")

	status := reply.String("status")
	if status == "" {
		status = StatusContinue
	}
	return &TurnResult{
		Status:         status,
		QuestionID:     &questionID,
		Question:       question,
		IsTailQuestion: &isTail,
		SessionID:      sess.ID,
		RemainingSlots: remaining,
		AudioData:      audio,
	}, nil
}

func (s *Service) complete(ctx context.Context, sess *models.InterviewSession, reply agent.Reply, logger zerolog.Logger) (*TurnResult, error) {
	if err := s.saveSession(ctx, sess, models.PhaseCompleted); err != nil {
		return nil, err
	}
	message := reply.String("message")
	if message == "" {
		message = defaultCompletionMessage
	}
	s.events.Publish(models.ProgressEvent{
		Type:      models.EventInterviewCompleted,
		SessionID: sess.ID,
		Timestamp: s.now(),
	})
	s.metrics.IncTurn(StatusCompleted)
	logger.Info().Int("lastTurn", sess.Turn).Msg("Interview completed")

	return &TurnResult{
		Status:         StatusCompleted,
		SessionID:      sess.ID,
		RemainingSlots: 0,
		Message:        message,
	}, nil
}

func isCompleted(reply agent.Reply) bool {
	return reply.String("status") == StatusCompleted
}

// mediaType maps an uploaded filename to a storage extension and content type.
// Anything that is not mp4 is stored as webm.
func mediaType(filename string) (ext, contentType string) {
	if strings.EqualFold(path.Ext(filename), ".mp4") {
		return "mp4", "video/mp4"
	}
	return "webm", "video/webm"
}
