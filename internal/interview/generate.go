package interview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/internal/agent"
	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/pkg/models"
)

const pdfMagic = "%PDF-"

var errAnalysisPending = errors.New("analysis artifact not written yet")

// GenerateResult is returned once the resume has been analyzed.
type GenerateResult struct {
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	SessionID   string    `json:"sessionId"`
	CompanyName string    `json:"companyName"`
	AnalysisURI string    `json:"analysisUri"`
	PDFPath     string    `json:"pdfPath"`
	Timestamp   time.Time `json:"timestamp"`
}

type analysisArtifact struct {
	CompanyName string `json:"company_name"`
}

// GenerateQuestions stores the resume, asks the question agent to analyze it
// and waits for the analysis artifact to appear.
func (s *Service) GenerateQuestions(ctx context.Context, filename string, data []byte) (*GenerateResult, error) {
	if err := validateResume(filename, data); err != nil {
		return nil, err
	}

	now := s.now()
	sess := &models.InterviewSession{
		ID:        NewSessionID(now),
		Phase:     models.PhaseCreated,
		CreatedAt: now,
	}
	logger := log.With().Str("sessionId", sess.ID).Logger()

	pdfPath := objstore.ResumePath(sess.ID)
	if err := s.store.Put(ctx, pdfPath, data, "application/pdf"); err != nil {
		logger.Error().Err(err).Str("path", pdfPath).Msg("Failed to upload resume")
		return nil, fmt.Errorf("upload resume: %w", err)
	}
	sess.ResumeURI = s.store.URI(pdfPath)
	logger.Info().Str("file", filename).Int("bytes", len(data)).Str("uri", sess.ResumeURI).Msg("Resume uploaded")

	if err := s.saveSession(ctx, sess, models.PhaseQuestionsGenerating); err != nil {
		return nil, err
	}

	message := agent.WithSessionTag(questionAgentMessage(sess.ResumeURI), sess.ID)
	start := time.Now()
	events, err := s.questions.StreamQuery(ctx, s.opts.QuestionUserID, "", message)
	s.metrics.ObserveAgentCall("question", err, time.Since(start))
	if err != nil {
		logger.Error().Err(err).Msg("Question agent call failed")
		return nil, fmt.Errorf("question agent: %w", err)
	}
	logger.Info().Int("events", len(events)).Dur("took", time.Since(start)).Msg("Question agent finished")

	analysisPath := objstore.AnalysisPath(sess.ID)
	raw, err := s.awaitAnalysis(ctx, analysisPath)
	if err != nil {
		logger.Error().Err(err).Str("path", analysisPath).Int("events", len(events)).Msg("Analysis artifact unavailable")
		return nil, err
	}

	var analysis analysisArtifact
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("%w: %s is not valid JSON: %v", ErrAnalysisNotPersisted, analysisPath, err)
	}
	if analysis.CompanyName == "" {
		analysis.CompanyName = "Unknown"
	}

	sess.CompanyName = analysis.CompanyName
	sess.AnalysisURI = s.store.URI(analysisPath)
	if err := s.saveSession(ctx, sess, models.PhaseQuestionsReady); err != nil {
		return nil, err
	}

	s.events.Publish(models.ProgressEvent{
		Type:        models.EventQuestionsReady,
		SessionID:   sess.ID,
		CompanyName: sess.CompanyName,
		Timestamp:   s.now(),
	})
	logger.Info().Str("company", sess.CompanyName).Msg("Resume and company analysis completed")

	return &GenerateResult{
		Status:      "success",
		Message:     "자기소개서 및 기업 분석이 완료되었습니다.",
		SessionID:   sess.ID,
		CompanyName: sess.CompanyName,
		AnalysisURI: sess.AnalysisURI,
		PDFPath:     pdfPath,
		Timestamp:   s.now(),
	}, nil
}

// awaitAnalysis polls for the artifact with exponential backoff until the
// configured wait timeout elapses.
func (s *Service) awaitAnalysis(ctx context.Context, p string) ([]byte, error) {
	timeout := s.opts.AnalysisWaitTimeout
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.AnalysisPollInterval
	b.MaxInterval = 4 * s.opts.AnalysisPollInterval
	b.RandomizationFactor = 0.2

	checks := 0
	data, err := backoff.Retry(waitCtx, func() ([]byte, error) {
		checks++
		data, err := s.store.Get(waitCtx, p)
		if errors.Is(err, objstore.ErrNotExist) {
			return nil, errAnalysisPending
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return data, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(timeout))

	switch {
	case err == nil:
	case errors.Is(err, errAnalysisPending),
		errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, fmt.Errorf("%w: %s after %s (%d checks)", ErrAnalysisTimedOut, p, timeout, checks)
	default:
		return nil, fmt.Errorf("read analysis: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrAnalysisNotPersisted, p)
	}
	return data, nil
}

func validateResume(filename string, data []byte) error {
	if !strings.EqualFold(path.Ext(filename), ".pdf") {
		return fmt.Errorf("%w: PDF 파일만 업로드 가능합니다 (got %q)", ErrInvalidInput, filename)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: resume file is empty", ErrInvalidInput)
	}
	if !bytes.HasPrefix(data, []byte(pdfMagic)) {
		return fmt.Errorf("%w: %q is not a PDF document", ErrInvalidInput, filename)
	}
	return nil
}

func questionAgentMessage(resumeURI string) string {
	return "안녕하세요! 자기소개서 PDF를 업로드했습니다.\n\n" +
		"GCS URI: " + resumeURI + "\n\n" +
		"이 자기소개서를 분석하고, 지원 기업을 파악한 후,\n" +
		"해당 기업 정보를 웹 검색하여 면접 분석 데이터를 GCS에 저장해주세요.\n\n" +
		"자동으로 모든 단계를 진행하고 GCS에 저장까지 완료해주세요!"
}
