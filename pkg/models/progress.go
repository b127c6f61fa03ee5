package models

import "time"

// DefaultTargetTotal is the number of questions planned for an interview when none is given.
const DefaultTargetTotal = 12

// ProgressRecord is the persisted question/answer log of one session.
type ProgressRecord struct {
	SessionID       string           `json:"sessionId"`
	TargetTotal     int              `json:"targetTotal"`
	StartTime       time.Time        `json:"startTime"`
	Questions       []*QuestionEntry `json:"questions"`
	CurrentQuestion int              `json:"currentQuestion"`
	TotalQuestions  int              `json:"totalQuestions"`
	AskedQuestions  int              `json:"askedQuestions"`
	RemainingSlots  int              `json:"remainingSlots"`
	Timestamp       time.Time        `json:"timestamp"`
}

// QuestionEntry is one asked question and, once known, its answer and media.
type QuestionEntry struct {
	Number         int        `json:"number"`
	Question       string     `json:"question"`
	IsTailQuestion bool       `json:"isTailQuestion"`
	Answer         *string    `json:"answer"`
	VideoURL       *string    `json:"videoUrl"`
	AskedAt        time.Time  `json:"askedAt"`
	AnsweredAt     *time.Time `json:"answeredAt"`
	UploadedAt     *time.Time `json:"uploadedAt,omitempty"`
}

// Counters are the derived progress values relayed to clients after each turn.
type Counters struct {
	CurrentQuestion int `json:"currentQuestion"`
	TotalQuestions  int `json:"totalQuestions"`
	AskedQuestions  int `json:"askedQuestions"`
	RemainingSlots  int `json:"remainingSlots"`
}

// Entry returns the entry with the given number, or nil.
func (r *ProgressRecord) Entry(number int) *QuestionEntry {
	for _, q := range r.Questions {
		if q.Number == number {
			return q
		}
	}
	return nil
}

// Recount recomputes the derived counters from the entries. current is the
// question number the caller just touched.
func (r *ProgressRecord) Recount(current int, now time.Time) Counters {
	asked := len(r.Questions)
	remaining := r.TargetTotal - asked
	if remaining < 0 {
		remaining = 0
	}
	r.AskedQuestions = asked
	r.RemainingSlots = remaining
	r.CurrentQuestion = current
	r.TotalQuestions = r.TargetTotal
	r.Timestamp = now
	return r.Counters()
}

// Counters returns the stored derived counters.
func (r *ProgressRecord) Counters() Counters {
	return Counters{
		CurrentQuestion: r.CurrentQuestion,
		TotalQuestions:  r.TotalQuestions,
		AskedQuestions:  r.AskedQuestions,
		RemainingSlots:  r.RemainingSlots,
	}
}
