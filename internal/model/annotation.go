package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BoundingBox is stored inline on the annotation row. Coordinates are in
// source-video pixels, confidence is 1.0 for manually drawn boxes and the
// model-reported value for detections.
type BoundingBox struct {
	X          float64 `gorm:"column:bbox_x;not null" json:"x"`
	Y          float64 `gorm:"column:bbox_y;not null" json:"y"`
	Width      float64 `gorm:"column:bbox_width;not null" json:"width"`
	Height     float64 `gorm:"column:bbox_height;not null" json:"height"`
	Confidence float64 `gorm:"column:bbox_confidence;not null;default:1.0" json:"confidence"`
	Label      string  `gorm:"column:bbox_label;type:varchar(64);not null" json:"label"`
}

type Annotation struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	VideoID     uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_annotations_video_detection" json:"video_id"`
	DetectionID string      `gorm:"type:varchar(64);not null;uniqueIndex:idx_annotations_video_detection" json:"detection_id"`
	FrameNumber int         `gorm:"not null;index" json:"frame_number"`
	Timestamp   float64     `gorm:"not null" json:"timestamp"`
	VRUType     VRUType     `gorm:"type:vru_type;not null" json:"vru_type"`
	BoundingBox BoundingBox `gorm:"embedded" json:"bounding_box"`
	Occluded    bool        `gorm:"not null;default:false" json:"occluded"`
	Truncated   bool        `gorm:"not null;default:false" json:"truncated"`
	Difficult   bool        `gorm:"not null;default:false" json:"difficult"`
	Validated   bool        `gorm:"not null;default:false" json:"validated"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Annotation) TableName() string {
	return "annotations"
}

func (a *Annotation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AnnotationUpdate carries the mutable subset of an annotation for partial
// updates. Nil fields are left untouched.
type AnnotationUpdate struct {
	FrameNumber *int
	Timestamp   *float64
	VRUType     *VRUType
	BoundingBox *BoundingBox
	Occluded    *bool
	Truncated   *bool
	Difficult   *bool
	Validated   *bool
}

// Apply copies the set fields onto the annotation.
func (u AnnotationUpdate) Apply(a *Annotation) {
	if u.FrameNumber != nil {
		a.FrameNumber = *u.FrameNumber
	}
	if u.Timestamp != nil {
		a.Timestamp = *u.Timestamp
	}
	if u.VRUType != nil {
		a.VRUType = *u.VRUType
	}
	if u.BoundingBox != nil {
		a.BoundingBox = *u.BoundingBox
	}
	if u.Occluded != nil {
		a.Occluded = *u.Occluded
	}
	if u.Truncated != nil {
		a.Truncated = *u.Truncated
	}
	if u.Difficult != nil {
		a.Difficult = *u.Difficult
	}
	if u.Validated != nil {
		a.Validated = *u.Validated
	}
}
