package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_interview_sessions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&InterviewSession{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("interview_sessions")
			},
		},
		{
			ID: "002_agent_bindings",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&AgentBinding{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("agent_bindings")
			},
		},
		{
			ID: "003_interview_sessions_updated_idx",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_interview_sessions_updated ON interview_sessions(updated_at DESC)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_interview_sessions_updated").Error
			},
		},
	})
	return m.Migrate()
}
