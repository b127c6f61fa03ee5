package objstore

import (
	"fmt"
	"path"
	"strings"
)

// Artifact folders.
const (
	ResumeFolder   = "pdf"
	AnalysisFolder = "interview_questions"
	MediaFolder    = "video"
	ProgressFolder = "progress_interview"
	FeedbackFolder = "feedback_results"
	SessionFolder  = "sessions"
)

// ResumePath is where the uploaded resume document is stored.
func ResumePath(sessionID string) string {
	return path.Join(ResumeFolder, sessionID+"_resume.pdf")
}

// AnalysisPath is where the question agent writes its resume analysis.
func AnalysisPath(sessionID string) string {
	return path.Join(AnalysisFolder, sessionID+"_analysis.json")
}

// MediaPath is where the answer recording for question n is stored. ext may include the dot.
func MediaPath(sessionID string, n int, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "webm"
	}
	return path.Join(MediaFolder, fmt.Sprintf("%s_q%d.%s", sessionID, n, ext))
}

// ProgressPath is where the progress record lives.
func ProgressPath(sessionID string) string {
	return path.Join(ProgressFolder, sessionID+"_progress.json")
}

// FeedbackEntryPath is where the feedback for question n lives.
func FeedbackEntryPath(sessionID string, n int) string {
	return path.Join(FeedbackFolder, fmt.Sprintf("%s_q%d_feedback.json", sessionID, n))
}

// FeedbackEntryPrefix lists every per-question feedback file of a session.
func FeedbackEntryPrefix(sessionID string) string {
	return path.Join(FeedbackFolder, sessionID+"_q")
}

// FeedbackAggregatePath is where the folded feedback report lives.
func FeedbackAggregatePath(sessionID string) string {
	return path.Join(FeedbackFolder, sessionID+"_final.json")
}

// SessionPath holds the lifecycle state of a session.
func SessionPath(sessionID string) string {
	return path.Join(SessionFolder, sessionID+"_session.json")
}

// BindingPath holds the remote agent session bound to an application session.
func BindingPath(sessionID string) string {
	return path.Join(SessionFolder, sessionID+"_agent.json")
}

// ParseFeedbackEntryPath returns the question number encoded in a per-question feedback path.
func ParseFeedbackEntryPath(sessionID, p string) (int, bool) {
	name := path.Base(p)
	rest, ok := strings.CutPrefix(name, sessionID+"_q")
	if !ok {
		return 0, false
	}
	num, ok := strings.CutSuffix(rest, "_feedback.json")
	if !ok {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(num, "%d", &n); err != nil || fmt.Sprint(n) != num {
		return 0, false
	}
	return n, true
}
