package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ObjectSuite is a test suite for ordered JSON objects.
type ObjectSuite struct {
	suite.Suite
}

func TestObjectSuite(t *testing.T) {
	suite.Run(t, new(ObjectSuite))
}

func (s *ObjectSuite) TestParsePreservesKeyOrder() {
	o, err := ParseObject([]byte(`{"z":1,"a":"x","m":{"y":true,"b":null},"l":[1,{"k":2}]}`))
	s.Require().NoError(err)

	s.Equal([]string{"z", "a", "m", "l"}, o.Keys())

	nested, ok := o.Get("m")
	s.Require().True(ok)
	s.Equal([]string{"y", "b"}, nested.(*Object).Keys())

	out, err := json.Marshal(o)
	s.Require().NoError(err)
	s.Equal(`{"z":1,"a":"x","m":{"y":true,"b":null},"l":[1,{"k":2}]}`, string(out))
}

func (s *ObjectSuite) TestParseRejectsNonObject() {
	_, err := ParseObject([]byte(`[1,2]`))
	s.Error(err)

	_, err = ParseObject([]byte(`{"a":`))
	s.Error(err)
}

func (s *ObjectSuite) TestSetReplacesInPlace() {
	o := NewObject()
	o.Set("a", 1)
	o.Set("b", 2)
	o.Set("a", 3)

	s.Equal([]string{"a", "b"}, o.Keys())
	v, _ := o.Get("a")
	s.Equal(3, v)
}

func (s *ObjectSuite) TestMoveToEnd() {
	o := NewObject()
	o.Set("sessionId", "s1")
	o.Set("createdAt", "t0")
	o.Set("questions", []any{})

	o.MoveToEnd("createdAt")
	s.Equal([]string{"sessionId", "questions", "createdAt"}, o.Keys())

	o.MoveToEnd("missing")
	s.Equal(3, o.Len())
}

func (s *ObjectSuite) TestMergeIsShallow() {
	dst, err := ParseObject([]byte(`{"questionId":1,"question":"Q","nested":{"a":1,"b":2}}`))
	s.Require().NoError(err)
	src, err := ParseObject([]byte(`{"nested":{"a":9},"pros":"good"}`))
	s.Require().NoError(err)

	dst.Merge(src)

	s.Equal([]string{"questionId", "question", "nested", "pros"}, dst.Keys())
	nested, _ := dst.Get("nested")
	s.Equal([]string{"a"}, nested.(*Object).Keys())
}

func (s *ObjectSuite) TestNoHTMLEscaping() {
	o := NewObject()
	o.Set("text", "<b>a & b</b>")

	out, err := o.MarshalJSON()
	s.Require().NoError(err)
	s.Equal(`{"text":"<b>a & b</b>"}`, string(out))
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{"int", 7, 7, true},
		{"whole float", float64(8), 8, true},
		{"fraction", 8.5, 0, false},
		{"number", json.Number("9"), 9, true},
		{"number float", json.Number("10.0"), 10, true},
		{"string", " 4 ", 4, true},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsInt(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoresFrom(t *testing.T) {
	entry := NewObject()
	for i, k := range ScoreKeys() {
		entry.Set(k, json.Number([]string{"1", "2", "3"}[i%3]))
	}

	scores, ok := ScoresFrom(entry)
	require.True(t, ok)
	assert.Len(t, scores, 12)
	assert.Equal(t, 1, scores["suitability"])

	entry.Delete("gazing")
	_, ok = ScoresFrom(entry)
	assert.False(t, ok)
}
