// Package feedback folds per-question interview feedback into one session report.
package feedback

import (
	"errors"
	"fmt"
	"math"

	"github.com/ddokterview/ddokterview/pkg/models"
)

const (
	MinSubScore = 1
	MaxSubScore = 10
)

// ErrInvalidScore is returned when sub-scores are missing or out of range.
var ErrInvalidScore = errors.New("invalid sub-score")

// TotalScore normalizes the twelve sub-scores to a 1..100 composite:
// round(sum / 120 * 100), rounding halves to even.
func TotalScore(scores models.Scores) (int, error) {
	keys := models.ScoreKeys()
	sum := 0
	for _, k := range keys {
		v, ok := scores[k]
		if !ok {
			return 0, fmt.Errorf("%w: %s missing", ErrInvalidScore, k)
		}
		if v < MinSubScore || v > MaxSubScore {
			return 0, fmt.Errorf("%w: %s=%d outside [%d,%d]", ErrInvalidScore, k, v, MinSubScore, MaxSubScore)
		}
		sum += v
	}
	maxSum := float64(len(keys) * MaxSubScore)
	return int(math.RoundToEven(float64(sum) / maxSum * 100)), nil
}
