package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripSessionTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no tags",
			input:    "저는 로봇을 만들었습니다",
			expected: "저는 로봇을 만들었습니다",
		},
		{
			name:     "single tag",
			input:    "답변입니다 [SESSION_ID: session_20250101_120000_abc123] 끝",
			expected: "답변입니다  끝",
		},
		{
			name:     "lowercase and spaced",
			input:    "a [session id : other] b",
			expected: "a  b",
		},
		{
			name:     "multiple tags",
			input:    "[SESSION_ID: x]a[SESSION_ID:y]",
			expected: "a",
		},
		{
			name:     "unclosed tag",
			input:    "a [SESSION_ID: x",
			expected: "a [SESSION_ID: x",
		},
		{
			name:     "ordinary brackets",
			input:    "[참고] 내용",
			expected: "[참고] 내용",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripSessionTags(tt.input))
		})
	}
}

func TestStripControl(t *testing.T) {
	assert.Equal(t, "a\nb\tc", StripControl("a\r\nb\tc\x00\x1b"))
}

func TestAnswer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "trims whitespace",
			input:    "  답변  \n",
			expected: "답변",
		},
		{
			name:     "collapses blank lines",
			input:    "첫째\n\n\n\n둘째",
			expected: "첫째\n\n둘째",
		},
		{
			name:     "entirely tag",
			input:    "[SESSION_ID: s1]",
			expected: "",
		},
		{
			name:     "tag and control characters",
			input:    "\x07네 [SESSION_ID: s1] 맞습니다",
			expected: "네  맞습니다",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Answer(tt.input))
		})
	}
}

func TestHasContent(t *testing.T) {
	assert.False(t, HasContent(" [SESSION_ID: s1] \n"))
	assert.False(t, HasContent(""))
	assert.True(t, HasContent("네"))
}
