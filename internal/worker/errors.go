package worker

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/internal/agent"
	"github.com/ddokterview/ddokterview/internal/bridge"
	"github.com/ddokterview/ddokterview/internal/feedback"
	"github.com/ddokterview/ddokterview/internal/interview"
	"github.com/ddokterview/ddokterview/internal/progress"
)

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	var parseErr *agent.ParseError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, interview.ErrInvalidInput),
		errors.Is(err, progress.ErrInvalidTurn),
		errors.Is(err, feedback.ErrInvalidEntry),
		errors.Is(err, feedback.ErrInvalidScore):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, interview.ErrUnknownSession),
		errors.Is(err, progress.ErrNotFound),
		errors.Is(err, feedback.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interview.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, agent.ErrEmptyResponse), errors.As(err, &parseErr):
		return http.StatusBadGateway
	case errors.Is(err, interview.ErrAnalysisTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, bridge.ErrSessionNotFound),
		errors.Is(err, interview.ErrAnalysisNotPersisted):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// writeError logs err with request context and writes {"detail": ...}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Err(err).
		Str("requestId", RequestIDFrom(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")
	writeDetail(w, status, err.Error())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response body")
	}
}
