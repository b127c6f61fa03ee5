// Package models contains domain models for the interview service.
package models

import "time"

// Phase is the orchestration state of an interview session.
type Phase string

const (
	PhaseCreated             Phase = "created"
	PhaseQuestionsGenerating Phase = "questions_generating"
	PhaseQuestionsReady      Phase = "questions_ready"
	PhaseInProgress          Phase = "in_progress"
	PhaseCompleted           Phase = "completed"
)

// Terminal reports whether no further transition is allowed out of p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted
}

// InterviewSession tracks where one interview attempt is in its lifecycle.
type InterviewSession struct {
	ID          string    `json:"sessionId"`
	Phase       Phase     `json:"phase"`
	Turn        int       `json:"turn"`
	CompanyName string    `json:"companyName,omitempty"`
	AnalysisURI string    `json:"analysisUri,omitempty"`
	ResumeURI   string    `json:"resumeUri,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AgentBinding maps an application session to the remote agent conversation serving it.
type AgentBinding struct {
	AppSessionID    string    `json:"sessionId"`
	RemoteSessionID string    `json:"remoteSessionId"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Progress event types pushed to live subscribers.
const (
	EventQuestionsReady     = "questions_ready"
	EventQuestionAsked      = "question_asked"
	EventAnswerRecorded     = "answer_recorded"
	EventInterviewCompleted = "interview_completed"
)

// ProgressEvent is a notification about a session's progress.
type ProgressEvent struct {
	Type           string    `json:"type"`
	SessionID      string    `json:"sessionId"`
	QuestionNumber int       `json:"questionNumber,omitempty"`
	Question       string    `json:"question,omitempty"`
	IsTailQuestion bool      `json:"isTailQuestion,omitempty"`
	RemainingSlots int       `json:"remainingSlots"`
	CompanyName    string    `json:"companyName,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
