package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// AnnotationSession is one user's pass over one video. ProjectID is nil for
// videos in the central unassigned store.
type AnnotationSession struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	VideoID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"video_id"`
	ProjectID *uuid.UUID    `gorm:"type:uuid;index" json:"project_id"`
	Status    SessionStatus `gorm:"type:session_status;not null;default:ACTIVE" json:"status"`
	CreatedBy uuid.UUID     `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AnnotationSession) TableName() string {
	return "annotation_sessions"
}

func (s *AnnotationSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
