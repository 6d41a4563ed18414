package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"annotation-service/internal/model"
	"annotation-service/internal/repository"
)

// StatisticsService builds the dashboard read models straight from the
// store; the engine's in-session statistics cover only the open video.
type StatisticsService struct {
	annotationRepo *repository.AnnotationRepository
	videoRepo      *repository.VideoRepository
	projectRepo    *repository.ProjectRepository
}

func NewStatisticsService(
	annotationRepo *repository.AnnotationRepository,
	videoRepo *repository.VideoRepository,
	projectRepo *repository.ProjectRepository,
) *StatisticsService {
	return &StatisticsService{
		annotationRepo: annotationRepo,
		videoRepo:      videoRepo,
		projectRepo:    projectRepo,
	}
}

type ProjectStatistics struct {
	ProjectID            uuid.UUID               `json:"project_id"`
	VideoCount           int64                   `json:"video_count"`
	TotalAnnotations     int64                   `json:"total_annotations"`
	ValidatedAnnotations int64                   `json:"validated_annotations"`
	AnnotationsByType    map[model.VRUType]int64 `json:"annotations_by_type"`
}

func (s *StatisticsService) ForProject(ctx context.Context, principal model.Principal, projectID string) (*ProjectStatistics, error) {
	id, err := uuid.Parse(projectID)
	if err != nil {
		return nil, ErrInvalidInput
	}

	if _, err := s.projectRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	videoCount, err := s.videoRepo.CountByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	total, validated, err := s.annotationRepo.CountByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	typeCounts, err := s.annotationRepo.CountByTypeForProject(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ProjectStatistics{
		ProjectID:            id,
		VideoCount:           videoCount,
		TotalAnnotations:     total,
		ValidatedAnnotations: validated,
		AnnotationsByType:    typeCountMap(typeCounts),
	}, nil
}

type VideoStatistics struct {
	VideoID              uuid.UUID               `json:"video_id"`
	TotalAnnotations     int64                   `json:"total_annotations"`
	ValidatedAnnotations int64                   `json:"validated_annotations"`
	AnnotationsByType    map[model.VRUType]int64 `json:"annotations_by_type"`
}

func (s *StatisticsService) ForVideo(ctx context.Context, principal model.Principal, videoID string) (*VideoStatistics, error) {
	id, err := uuid.Parse(videoID)
	if err != nil {
		return nil, ErrInvalidInput
	}

	if _, err := s.videoRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	total, validated, err := s.annotationRepo.CountByVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	typeCounts, err := s.annotationRepo.CountByTypeForVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	return &VideoStatistics{
		VideoID:              id,
		TotalAnnotations:     total,
		ValidatedAnnotations: validated,
		AnnotationsByType:    typeCountMap(typeCounts),
	}, nil
}

func typeCountMap(counts []repository.TypeCount) map[model.VRUType]int64 {
	out := make(map[model.VRUType]int64, len(counts))
	for _, c := range counts {
		out[c.VRUType] = c.Count
	}
	return out
}
