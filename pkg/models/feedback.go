package models

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Feedback document keys.
const (
	FeedbackKeySessionID       = "sessionId"
	FeedbackKeyCreatedAt       = "createdAt"
	FeedbackKeyQuestions       = "questions"
	FeedbackKeyQuestionID      = "questionId"
	FeedbackKeyGeneralFeedback = "generalFeedback"
	FeedbackKeyPros            = "pros"
	FeedbackKeyCons            = "cons"
	FeedbackKeyTotalScore      = "totalScore"
)

// PromotedFeedbackKeys are copied from the final question's entry to the top of the aggregate.
var PromotedFeedbackKeys = []string{
	FeedbackKeyGeneralFeedback,
	FeedbackKeyPros,
	FeedbackKeyCons,
	FeedbackKeyTotalScore,
}

// LinguisticScoreKeys name the six answer-content sub-scores.
var LinguisticScoreKeys = []string{
	"suitability",
	"intendunderstanding",
	"problemsolving",
	"accuracy",
	"experience",
	"logicality",
}

// BehavioralScoreKeys name the six delivery sub-scores.
var BehavioralScoreKeys = []string{
	"confidence",
	"speed",
	"voice",
	"gesture",
	"attitude",
	"gazing",
}

// ScoreKeys returns all twelve sub-score names, linguistic first.
func ScoreKeys() []string {
	keys := make([]string, 0, len(LinguisticScoreKeys)+len(BehavioralScoreKeys))
	keys = append(keys, LinguisticScoreKeys...)
	return append(keys, BehavioralScoreKeys...)
}

// Scores holds the twelve named sub-scores of a final feedback entry.
type Scores map[string]int

// ScoresFrom extracts the sub-scores present on entry. ok is false unless all twelve are integers.
func ScoresFrom(entry *Object) (Scores, bool) {
	scores := make(Scores, 12)
	for _, k := range ScoreKeys() {
		v, present := entry.Int(k)
		if !present {
			return scores, false
		}
		scores[k] = v
	}
	return scores, true
}

// AsInt converts a decoded JSON value into an int when it holds a whole number.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}
