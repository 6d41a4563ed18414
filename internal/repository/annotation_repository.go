package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"annotation-service/internal/model"
)

type AnnotationRepository struct {
	db *gorm.DB
}

func NewAnnotationRepository(db *gorm.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

func (r *AnnotationRepository) Create(ctx context.Context, annotation *model.Annotation) error {
	return r.db.WithContext(ctx).Create(annotation).Error
}

// CreateBatch persists detection results in one insert. Used by the bulk
// merge path so a backfill is all-or-nothing.
func (r *AnnotationRepository) CreateBatch(ctx context.Context, annotations []model.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&annotations).Error
}

func (r *AnnotationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Annotation, error) {
	var annotation model.Annotation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&annotation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &annotation, nil
}

func (r *AnnotationRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]model.Annotation, error) {
	var annotations []model.Annotation
	err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("frame_number ASC, created_at ASC").
		Find(&annotations).Error
	if err != nil {
		return nil, err
	}
	return annotations, nil
}

func (r *AnnotationRepository) Update(ctx context.Context, annotation *model.Annotation) error {
	return r.db.WithContext(ctx).Save(annotation).Error
}

func (r *AnnotationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Annotation{}, "id = ?", id).Error
}

// TypeCount is one row of a per-type aggregate query.
type TypeCount struct {
	VRUType model.VRUType `gorm:"column:vru_type"`
	Count   int64         `gorm:"column:count"`
}

func (r *AnnotationRepository) CountByVideo(ctx context.Context, videoID uuid.UUID) (total, validated int64, err error) {
	err = r.db.WithContext(ctx).Model(&model.Annotation{}).
		Where("video_id = ?", videoID).
		Count(&total).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&model.Annotation{}).
		Where("video_id = ? AND validated = ?", videoID, true).
		Count(&validated).Error
	if err != nil {
		return 0, 0, err
	}
	return total, validated, nil
}

func (r *AnnotationRepository) CountByTypeForVideo(ctx context.Context, videoID uuid.UUID) ([]TypeCount, error) {
	var counts []TypeCount
	err := r.db.WithContext(ctx).Model(&model.Annotation{}).
		Select("vru_type, COUNT(*) AS count").
		Where("video_id = ?", videoID).
		Group("vru_type").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *AnnotationRepository) CountByTypeForProject(ctx context.Context, projectID uuid.UUID) ([]TypeCount, error) {
	var counts []TypeCount
	err := r.db.WithContext(ctx).Model(&model.Annotation{}).
		Select("annotations.vru_type, COUNT(*) AS count").
		Joins("JOIN videos ON videos.id = annotations.video_id").
		Where("videos.project_id = ?", projectID).
		Group("annotations.vru_type").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *AnnotationRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (total, validated int64, err error) {
	base := r.db.WithContext(ctx).Model(&model.Annotation{}).
		Joins("JOIN videos ON videos.id = annotations.video_id").
		Where("videos.project_id = ?", projectID)

	if err = base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = base.Session(&gorm.Session{}).Where("annotations.validated = ?", true).Count(&validated).Error; err != nil {
		return 0, 0, err
	}
	return total, validated, nil
}
