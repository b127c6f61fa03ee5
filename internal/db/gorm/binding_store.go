package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BindingStore persists interview session to agent session bindings.
type BindingStore struct {
	db *gorm.DB
}

// NewBindingStore creates a binding store on top of store.
func NewBindingStore(store *Store) *BindingStore {
	return &BindingStore{db: store.DB}
}

func (b *BindingStore) GetBinding(ctx context.Context, appSessionID string) (string, bool, error) {
	var row AgentBinding
	err := b.db.WithContext(ctx).Where("app_session_id = ?", appSessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.RemoteSessionID, true, nil
}

func (b *BindingStore) PutBinding(ctx context.Context, appSessionID, remoteSessionID string) error {
	row := AgentBinding{
		AppSessionID:    appSessionID,
		RemoteSessionID: remoteSessionID,
		UpdatedAt:       time.Now().UTC(),
	}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "app_session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"remote_session_id", "updated_at"}),
	}).Create(&row).Error
}
