package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VideoStatus string

const (
	VideoStatusUploading  VideoStatus = "UPLOADING"
	VideoStatusProcessing VideoStatus = "PROCESSING"
	VideoStatusCompleted  VideoStatus = "COMPLETED"
	VideoStatusFailed     VideoStatus = "FAILED"
)

// DefaultFrameRate is assumed when a video reports no frame rate.
const DefaultFrameRate = 30.0

type Video struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	ProjectID   *uuid.UUID  `gorm:"type:uuid;index" json:"project_id"`
	Name        string      `gorm:"type:varchar(255);not null" json:"name"`
	Status      VideoStatus `gorm:"type:video_status;not null;default:UPLOADING" json:"status"`
	Duration    float64     `gorm:"not null;default:0" json:"duration"`
	FrameRate   float64     `gorm:"not null;default:0" json:"frame_rate"`
	Width       int         `gorm:"not null;default:0" json:"width"`
	Height      int         `gorm:"not null;default:0" json:"height"`
	StoragePath string      `gorm:"type:text" json:"storage_path"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Video) TableName() string {
	return "videos"
}

func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// EffectiveFrameRate returns the frame rate used for timestamp derivation.
func (v *Video) EffectiveFrameRate() float64 {
	if v.FrameRate > 0 {
		return v.FrameRate
	}
	return DefaultFrameRate
}

// CanTransitionTo enforces the uploading -> processing -> completed|failed
// status flow.
func (v *Video) CanTransitionTo(next VideoStatus) bool {
	switch v.Status {
	case VideoStatusUploading:
		return next == VideoStatusProcessing || next == VideoStatusFailed
	case VideoStatusProcessing:
		return next == VideoStatusCompleted || next == VideoStatusFailed
	default:
		return false
	}
}
