package interview

import "errors"

var (
	// ErrInvalidInput is returned for client-correctable request problems.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownSession is returned when no interview session exists for an id.
	ErrUnknownSession = errors.New("unknown interview session")
	// ErrInvalidTransition is returned when a session is not in a phase that allows the operation.
	ErrInvalidTransition = errors.New("operation not allowed in current interview phase")
	// ErrAnalysisNotPersisted is returned when the analysis artifact exists but is unusable.
	ErrAnalysisNotPersisted = errors.New("analysis artifact was not persisted")
	// ErrAnalysisTimedOut is returned when the analysis artifact did not appear in time.
	ErrAnalysisTimedOut = errors.New("timed out waiting for analysis artifact")
)
