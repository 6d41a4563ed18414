package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DetectionJobStatus string

const (
	DetectionJobStatusPending   DetectionJobStatus = "PENDING"
	DetectionJobStatusRunning   DetectionJobStatus = "RUNNING"
	DetectionJobStatusCompleted DetectionJobStatus = "COMPLETED"
	DetectionJobStatusFailed    DetectionJobStatus = "FAILED"
)

// DetectionSource records where a job's detections came from, for UI
// provenance display only.
type DetectionSource string

const (
	DetectionSourceBackend  DetectionSource = "backend"
	DetectionSourceFallback DetectionSource = "fallback"
	DetectionSourceMock     DetectionSource = "mock"
)

// DetectionJob is the audit record of one detection run against a video.
type DetectionJob struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	VideoID          uuid.UUID          `gorm:"type:uuid;not null;index" json:"video_id"`
	SessionID        *uuid.UUID         `gorm:"type:uuid;index" json:"session_id"`
	Status           DetectionJobStatus `gorm:"type:detection_job_status;not null;default:PENDING" json:"status"`
	Source           DetectionSource    `gorm:"type:varchar(16)" json:"source"`
	DetectionCount   int                `gorm:"not null;default:0" json:"detection_count"`
	ProcessingTimeMs int64              `gorm:"not null;default:0" json:"processing_time_ms"`
	Error            *string            `gorm:"type:text" json:"error"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DetectionJob) TableName() string {
	return "detection_jobs"
}

func (j *DetectionJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
