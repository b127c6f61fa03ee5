package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ddokterview/ddokterview/pkg/models"
)

// SessionStore keeps interview lifecycle state.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore creates a session store on top of store.
func NewSessionStore(store *Store) *SessionStore {
	return &SessionStore{db: store.DB}
}

// GetSession returns ok=false for an unknown id.
func (s *SessionStore) GetSession(ctx context.Context, id string) (*models.InterviewSession, bool, error) {
	var row InterviewSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.toModel(), true, nil
}

// SaveSession inserts or fully replaces the row.
func (s *SessionStore) SaveSession(ctx context.Context, sess *models.InterviewSession) error {
	row := sessionFromModel(sess)
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phase", "turn", "company_name", "analysis_uri", "resume_uri", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return err
	}
	sess.CreatedAt = row.CreatedAt
	sess.UpdatedAt = row.UpdatedAt
	return nil
}

// ListSessions returns the most recently updated sessions first.
func (s *SessionStore) ListSessions(ctx context.Context, limit int) ([]*models.InterviewSession, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []InterviewSession
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.InterviewSession, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}
