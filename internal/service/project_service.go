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

type ProjectService struct {
	projectRepo *repository.ProjectRepository
}

func NewProjectService(projectRepo *repository.ProjectRepository) *ProjectService {
	return &ProjectService{projectRepo: projectRepo}
}

type CreateProjectInput struct {
	Name        string
	Description string
}

func (s *ProjectService) Create(ctx context.Context, principal model.Principal, input CreateProjectInput) (*model.Project, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	project := &model.Project{
		Name:        name,
		Description: input.Description,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, principal model.Principal, id string) (*model.Project, error) {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidInput
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, principal model.Principal) ([]model.Project, error) {
	return s.projectRepo.List(ctx)
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
}

func (s *ProjectService) Update(ctx context.Context, principal model.Principal, id string, input UpdateProjectInput) (*model.Project, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	project, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Delete(ctx context.Context, principal model.Principal, id string) error {
	if !principal.IsAdmin() {
		return ErrPermissionDenied
	}

	project, err := s.Get(ctx, principal, id)
	if err != nil {
		return err
	}

	return s.projectRepo.Delete(ctx, project.ID)
}
