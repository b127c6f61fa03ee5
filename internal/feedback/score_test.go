package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddokterview/ddokterview/pkg/models"
)

func uniformScores(v int) models.Scores {
	s := models.Scores{}
	for _, k := range models.ScoreKeys() {
		s[k] = v
	}
	return s
}

func TestTotalScore(t *testing.T) {
	sum96 := uniformScores(8)

	mixed := uniformScores(1)
	mixed["suitability"] = 4 // sum 15 -> 12.5, rounds to even

	tests := []struct {
		name   string
		scores models.Scores
		want   int
	}{
		{"all ten", uniformScores(10), 100},
		{"all one", uniformScores(1), 10},
		{"sum 96", sum96, 80},
		{"half rounds to even", mixed, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TotalScore(tt.scores)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotalScore_Invalid(t *testing.T) {
	tooHigh := uniformScores(5)
	tooHigh["gazing"] = 11
	_, err := TotalScore(tooHigh)
	assert.ErrorIs(t, err, ErrInvalidScore)

	zero := uniformScores(5)
	zero["voice"] = 0
	_, err = TotalScore(zero)
	assert.ErrorIs(t, err, ErrInvalidScore)

	missing := uniformScores(5)
	delete(missing, "speed")
	_, err = TotalScore(missing)
	assert.ErrorIs(t, err, ErrInvalidScore)
}
