package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"annotation-service/internal/model"
)

type DetectionJobRepository struct {
	db *gorm.DB
}

func NewDetectionJobRepository(db *gorm.DB) *DetectionJobRepository {
	return &DetectionJobRepository{db: db}
}

func (r *DetectionJobRepository) Create(ctx context.Context, job *model.DetectionJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *DetectionJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DetectionJob, error) {
	var job model.DetectionJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *DetectionJobRepository) Update(ctx context.Context, job *model.DetectionJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *DetectionJobRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]model.DetectionJob, error) {
	var jobs []model.DetectionJob
	err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
