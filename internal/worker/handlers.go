package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ddokterview/ddokterview/internal/interview"
	"github.com/ddokterview/ddokterview/internal/progress"
	"github.com/ddokterview/ddokterview/pkg/models"
)

// multipartMemory is kept in memory before spilling uploads to disk.
const multipartMemory = 8 << 20

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	if !s.ready.Load() {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":  http.StatusText(status),
		"ready":   s.ready.Load(),
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"checks":  checks,
		"clients": s.sseBroadcaster.ClientCount(),
	})
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Service) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	name, data, err := readFormFile(r, "resume_file")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.interview.GenerateQuestions(r.Context(), name, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	sessionID, err := requiredFormValue(r, "sessionId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.interview.StartInterview(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleUploadAnswer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	name, data, err := readFormFile(r, "videoFile")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sessionID, err := requiredFormValue(r, "sessionId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rawNumber, err := requiredFormValue(r, "questionNumber")
	if err != nil {
		writeError(w, r, err)
		return
	}
	number, err := strconv.Atoi(rawNumber)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: questionNumber %q is not a number", interview.ErrInvalidInput, rawNumber))
		return
	}

	res, err := s.interview.SubmitAnswer(r.Context(), interview.AnswerInput{
		SessionID:      sessionID,
		QuestionNumber: number,
		Filename:       name,
		Data:           data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.interview.Status(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// turnRequest is the body of the progress callback used by the session agent.
type turnRequest struct {
	QuestionNumber int     `json:"questionNumber"`
	QuestionText   string  `json:"questionText"`
	IsTailQuestion bool    `json:"isTailQuestion"`
	AnswerText     *string `json:"answerText"`
	TargetTotal    int     `json:"targetTotal"`
}

type turnResponse struct {
	Status string `json:"status"`
	models.Counters
}

func (s *Service) handleRecordTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if err := interview.ValidateSessionID(sessionID); err != nil {
		writeError(w, r, err)
		return
	}

	var req turnRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", interview.ErrInvalidInput, err))
		return
	}

	counters, err := s.tracker.RecordTurn(r.Context(), progress.TurnInput{
		SessionID:      sessionID,
		QuestionNumber: req.QuestionNumber,
		QuestionText:   req.QuestionText,
		IsTailQuestion: req.IsTailQuestion,
		Answer:         req.AnswerText,
		TargetTotal:    req.TargetTotal,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Status: "success", Counters: counters})
}

func (s *Service) handleFoldFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if err := interview.ValidateSessionID(sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "questionNumber"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: question number %q", interview.ErrInvalidInput, chi.URLParam(r, "questionNumber")))
		return
	}
	isFinal, _ := strconv.ParseBool(r.URL.Query().Get("final"))

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := models.ParseObject(body)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: feedback entry: %v", interview.ErrInvalidInput, err))
		return
	}

	agg, err := s.feedback.Fold(r.Context(), sessionID, number, entry, isFinal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Service) handleCollectFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if err := interview.ValidateSessionID(sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	agg, err := s.feedback.Collect(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Service) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if err := interview.ValidateSessionID(sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	agg, err := s.feedback.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func requiredFormValue(r *http.Request, key string) (string, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", interview.ErrInvalidInput, key)
	}
	return v, nil
}

func readFormFile(r *http.Request, field string) (string, []byte, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: expected multipart form: %v", interview.ErrInvalidInput, err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s is required", interview.ErrInvalidInput, field)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", field, err)
	}
	return header.Filename, data, nil
}
