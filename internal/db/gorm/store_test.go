package gorm

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ddokterview/ddokterview/pkg/models"
)

// StoreSuite is a test suite for the registry database.
type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	var err error
	s.store, err = NewStore(Config{DSN: "sqlite://" + filepath.Join(s.T().TempDir(), "test.db")})
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) TestMigrationsAndPragmas() {
	s.Equal("sqlite", s.store.Dialect())
	s.NoError(s.store.Ping())

	var journalMode string
	s.Require().NoError(s.store.DB.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	s.Equal("wal", journalMode)

	for _, table := range []string{"interview_sessions", "agent_bindings", "migrations"} {
		s.True(s.store.DB.Migrator().HasTable(table), table)
	}
}

func (s *StoreSuite) TestSessionRoundTrip() {
	sessions := NewSessionStore(s.store)

	_, ok, err := sessions.GetSession(s.ctx, "s1")
	s.Require().NoError(err)
	s.False(ok)

	sess := &models.InterviewSession{ID: "s1", Phase: models.PhaseQuestionsGenerating}
	s.Require().NoError(sessions.SaveSession(s.ctx, sess))
	created := sess.CreatedAt

	time.Sleep(5 * time.Millisecond)
	sess.Phase = models.PhaseQuestionsReady
	sess.CompanyName = "Acme"
	s.Require().NoError(sessions.SaveSession(s.ctx, sess))

	got, ok, err := sessions.GetSession(s.ctx, "s1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(models.PhaseQuestionsReady, got.Phase)
	s.Equal("Acme", got.CompanyName)
	s.True(got.CreatedAt.Equal(created))
	s.True(got.UpdatedAt.After(created))
}

func (s *StoreSuite) TestListSessions() {
	sessions := NewSessionStore(s.store)
	for _, id := range []string{"a", "b", "c"} {
		s.Require().NoError(sessions.SaveSession(s.ctx, &models.InterviewSession{ID: id, Phase: models.PhaseCreated}))
		time.Sleep(2 * time.Millisecond)
	}

	list, err := sessions.ListSessions(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("c", list[0].ID)
}

func (s *StoreSuite) TestBindingUpsert() {
	bindings := NewBindingStore(s.store)

	_, ok, err := bindings.GetBinding(s.ctx, "s1")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(bindings.PutBinding(s.ctx, "s1", "remote-1"))
	s.Require().NoError(bindings.PutBinding(s.ctx, "s1", "remote-2"))

	got, ok, err := bindings.GetBinding(s.ctx, "s1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("remote-2", got)

	var count int64
	s.Require().NoError(s.store.DB.Model(&AgentBinding{}).Count(&count).Error)
	s.Equal(int64(1), count)
}
