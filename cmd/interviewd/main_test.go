package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddokterview/ddokterview/internal/feedback"
	"github.com/ddokterview/ddokterview/internal/lock"
	"github.com/ddokterview/ddokterview/internal/objstore"
	"github.com/ddokterview/ddokterview/internal/progress"
	"github.com/ddokterview/ddokterview/pkg/models"
)

const testSessionID = "session_20250101_120000_abc123"

func filesystemEnv(t *testing.T) objstore.Store {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_BACKEND", "filesystem")
	t.Setenv("STORAGE_DIR", dir)
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_LEVEL", "error")

	store, err := objstore.NewFilesystemStore(dir)
	require.NoError(t, err)
	return store
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	store := filesystemEnv(t)
	tracker := progress.NewTracker(store, lock.NewLocal())
	_, err := tracker.RecordTurn(context.Background(), progress.TurnInput{
		SessionID:      testSessionID,
		QuestionNumber: 1,
		QuestionText:   "자기소개 해주세요.",
		TargetTotal:    5,
	})
	require.NoError(t, err)

	out, err := execute(t, "status", testSessionID)
	require.NoError(t, err)

	var rec models.ProgressRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, 5, rec.TargetTotal)
	assert.Equal(t, 4, rec.RemainingSlots)
	require.Len(t, rec.Questions, 1)
	assert.Equal(t, "자기소개 해주세요.", rec.Questions[0].Question)
}

func TestStatusCommand_Errors(t *testing.T) {
	filesystemEnv(t)

	_, err := execute(t, "status", testSessionID)
	assert.ErrorIs(t, err, progress.ErrNotFound)

	_, err = execute(t, "status", "../escape")
	assert.Error(t, err)
}

func TestFeedbackCollectCommand(t *testing.T) {
	store := filesystemEnv(t)
	folder := feedback.NewFolder(store, lock.NewLocal())
	entry, err := models.ParseObject([]byte(`{"question":"Q1","generalFeedback":"좋습니다","totalScore":77}`))
	require.NoError(t, err)
	_, err = folder.Fold(context.Background(), testSessionID, 1, entry, false)
	require.NoError(t, err)

	out, err := execute(t, "feedback", "collect", testSessionID)
	require.NoError(t, err)

	agg, err := models.ParseObject([]byte(out))
	require.NoError(t, err)
	total, ok := agg.Int("totalScore")
	assert.True(t, ok)
	assert.Equal(t, 77, total)
	assert.Equal(t, "좋습니다", agg.String("generalFeedback"))

	out, err = execute(t, "feedback", "show", testSessionID)
	require.NoError(t, err)
	assert.Contains(t, out, `"totalScore": 77`)
}

func TestSessionsCommandRequiresDatabase(t *testing.T) {
	filesystemEnv(t)

	_, err := execute(t, "sessions")
	assert.EqualError(t, err, "listing sessions requires DATABASE_DSN")
}

func TestMigrateCommand(t *testing.T) {
	filesystemEnv(t)

	_, err := execute(t, "migrate")
	assert.Error(t, err)

	t.Setenv("DATABASE_DSN", "sqlite://"+t.TempDir()+"/registry.db")
	_, err = execute(t, "migrate")
	assert.NoError(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	setupLogging("warn", "json")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	setupLogging("nonsense", "console")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
