package gorm

import (
	"time"

	"gorm.io/gorm"

	"github.com/ddokterview/ddokterview/pkg/models"
)

// InterviewSession is the lifecycle row of one interview attempt.
type InterviewSession struct {
	ID          string `gorm:"primaryKey;type:varchar(128)"`
	Phase       string `gorm:"type:varchar(32);index;not null"`
	Turn        int    `gorm:"default:0"`
	CompanyName string `gorm:"type:text"`
	AnalysisURI string `gorm:"type:text"`
	ResumeURI   string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (InterviewSession) TableName() string { return "interview_sessions" }

// BeforeCreate defaults the phase of new rows.
func (s *InterviewSession) BeforeCreate(tx *gorm.DB) error {
	if s.Phase == "" {
		s.Phase = string(models.PhaseCreated)
	}
	return nil
}

func (s *InterviewSession) toModel() *models.InterviewSession {
	return &models.InterviewSession{
		ID:          s.ID,
		Phase:       models.Phase(s.Phase),
		Turn:        s.Turn,
		CompanyName: s.CompanyName,
		AnalysisURI: s.AnalysisURI,
		ResumeURI:   s.ResumeURI,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func sessionFromModel(m *models.InterviewSession) *InterviewSession {
	return &InterviewSession{
		ID:          m.ID,
		Phase:       string(m.Phase),
		Turn:        m.Turn,
		CompanyName: m.CompanyName,
		AnalysisURI: m.AnalysisURI,
		ResumeURI:   m.ResumeURI,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// AgentBinding maps an interview session to its remote agent conversation.
type AgentBinding struct {
	AppSessionID    string `gorm:"primaryKey;type:varchar(128)"`
	RemoteSessionID string `gorm:"type:text;not null"`
	UpdatedAt       time.Time
}

func (AgentBinding) TableName() string { return "agent_bindings" }
