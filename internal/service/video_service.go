package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"annotation-service/internal/model"
	"annotation-service/internal/repository"
)

type VideoService struct {
	videoRepo   *repository.VideoRepository
	projectRepo *repository.ProjectRepository
}

func NewVideoService(videoRepo *repository.VideoRepository, projectRepo *repository.ProjectRepository) *VideoService {
	return &VideoService{
		videoRepo:   videoRepo,
		projectRepo: projectRepo,
	}
}

type CreateVideoInput struct {
	Name        string
	ProjectID   *string
	Duration    float64
	FrameRate   float64
	Width       int
	Height      int
	StoragePath string
}

// Create registers a video. ProjectID may be nil: the video then lives in
// the central unassigned store until a project claims it.
func (s *VideoService) Create(ctx context.Context, principal model.Principal, input CreateVideoInput) (*model.Video, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	var projectID *uuid.UUID
	if input.ProjectID != nil && *input.ProjectID != "" {
		parsed, err := uuid.Parse(*input.ProjectID)
		if err != nil {
			return nil, ErrInvalidInput
		}
		if _, err := s.projectRepo.GetByID(ctx, parsed); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		projectID = &parsed
	}

	video := &model.Video{
		ProjectID:   projectID,
		Name:        name,
		Status:      model.VideoStatusUploading,
		Duration:    input.Duration,
		FrameRate:   input.FrameRate,
		Width:       input.Width,
		Height:      input.Height,
		StoragePath: input.StoragePath,
	}
	if err := s.videoRepo.Create(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

func (s *VideoService) Get(ctx context.Context, principal model.Principal, id string) (*model.Video, error) {
	videoID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidInput
	}

	video, err := s.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return video, nil
}

func (s *VideoService) List(ctx context.Context, principal model.Principal, filter repository.VideoListFilter) ([]model.Video, error) {
	return s.videoRepo.List(ctx, filter)
}

type UpdateVideoInput struct {
	Name        *string
	Duration    *float64
	FrameRate   *float64
	Width       *int
	Height      *int
	StoragePath *string
}

// Update patches video metadata. Status and project assignment have their
// own endpoints and are not touched here.
func (s *VideoService) Update(ctx context.Context, principal model.Principal, id string, input UpdateVideoInput) (*model.Video, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}

	video, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		video.Name = name
	}
	if input.Duration != nil {
		video.Duration = *input.Duration
	}
	if input.FrameRate != nil {
		video.FrameRate = *input.FrameRate
	}
	if input.Width != nil {
		video.Width = *input.Width
	}
	if input.Height != nil {
		video.Height = *input.Height
	}
	if input.StoragePath != nil {
		video.StoragePath = *input.StoragePath
	}

	if err := s.videoRepo.Update(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

// UpdateStatus advances the processing state machine; transitions outside
// uploading -> processing -> completed|failed are conflicts.
func (s *VideoService) UpdateStatus(ctx context.Context, principal model.Principal, id string, status model.VideoStatus) (*model.Video, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}

	video, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	if !video.CanTransitionTo(status) {
		return nil, ErrConflict
	}

	video.Status = status
	if err := s.videoRepo.Update(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

// AssignToProject moves a video from the unassigned store into a project,
// or out of one when projectID is nil.
func (s *VideoService) AssignToProject(ctx context.Context, principal model.Principal, id string, projectID *string) (*model.Video, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}

	video, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	if projectID == nil || *projectID == "" {
		video.ProjectID = nil
	} else {
		parsed, err := uuid.Parse(*projectID)
		if err != nil {
			return nil, ErrInvalidInput
		}
		if _, err := s.projectRepo.GetByID(ctx, parsed); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		video.ProjectID = &parsed
	}

	if err := s.videoRepo.Update(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

func (s *VideoService) Delete(ctx context.Context, principal model.Principal, id string) error {
	if !principal.IsAdmin() {
		return ErrPermissionDenied
	}

	video, err := s.Get(ctx, principal, id)
	if err != nil {
		return err
	}

	return s.videoRepo.Delete(ctx, video.ID)
}
