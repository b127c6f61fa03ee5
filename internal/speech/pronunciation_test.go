package speech

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDictionaryApply(t *testing.T) {
	d := NewDictionary(DefaultGroups)

	tests := []struct {
		in   string
		want string
	}{
		{"KAIST 출신이시네요", "카이스트 출신이시네요"},
		{"LIG Nex1 지원 동기는?", "엘아이지 넥스원 지원 동기는?"},
		{"LIG 계열사", "엘아이지 계열사"},
		{"Python과 C++ 중", "파이썬과 씨플플 중"},
		{"ROS 기반 SLAM", "로스 기반 슬램"},
		{"변경 없음", "변경 없음"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Apply(tt.in))
		})
	}
}

func TestLoadDictionaryMissingFile(t *testing.T) {
	d, err := LoadDictionary("/nonexistent/path/pronunciations.yml")
	require.NoError(t, err)
	_, ok := d.Group("institutions")
	assert.True(t, ok)

	d, err = LoadDictionary("")
	require.NoError(t, err)
	assert.Len(t, d.Groups(), len(DefaultGroups))
}

func TestLoadDictionaryYAML(t *testing.T) {
	const content = `
groups:
  - name: companies
    description: Hiring companies
    terms:
      "NAVER": "네이버"
  - name: tech
    terms:
      "GPU": "지피유"
`
	path := filepath.Join(t.TempDir(), "pronunciations.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	d, err := LoadDictionary(path)
	require.NoError(t, err)

	groups := d.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "companies", groups[0].Name)
	assert.Equal(t, "네이버 지피유 팀", d.Apply("NAVER GPU 팀"))
	assert.Equal(t, "AI", d.Apply("AI"))
}

func TestLoadDictionaryInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("groups: [unclosed"), 0o600))

	_, err := LoadDictionary(path)
	assert.Error(t, err)
}
