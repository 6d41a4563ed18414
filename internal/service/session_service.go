package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"annotation-service/internal/engine"
	"annotation-service/internal/model"
	"annotation-service/internal/realtime"
	"annotation-service/internal/repository"
)

type SessionService struct {
	sessionRepo *repository.SessionRepository
	videoRepo   *repository.VideoRepository
	manager     *engine.Manager
	hub         *realtime.Hub
}

func NewSessionService(
	sessionRepo *repository.SessionRepository,
	videoRepo *repository.VideoRepository,
	manager *engine.Manager,
	hub *realtime.Hub,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		videoRepo:   videoRepo,
		manager:     manager,
		hub:         hub,
	}
}

type CreateSessionInput struct {
	VideoID   string
	ProjectID *string
}

// CreateSessionResult reports the persisted session plus a warning when the
// initial annotation load failed: the session is still usable with an empty
// list and the client may retry by reopening.
type CreateSessionResult struct {
	Session *model.AnnotationSession `json:"session"`
	Warning string                   `json:"warning,omitempty"`
}

// Create opens an annotation session over a video: persists the session
// row, spins up the reconciliation engine for the video, and loads the
// stored annotations into it.
func (s *SessionService) Create(ctx context.Context, principal model.Principal, input CreateSessionInput) (*CreateSessionResult, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}

	videoID, err := uuid.Parse(input.VideoID)
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

	var projectID *uuid.UUID
	if input.ProjectID != nil && *input.ProjectID != "" {
		parsed, err := uuid.Parse(*input.ProjectID)
		if err != nil {
			return nil, ErrInvalidInput
		}
		projectID = &parsed
	} else {
		// Inherit the video's project, which may itself be absent.
		projectID = video.ProjectID
	}

	session := &model.AnnotationSession{
		VideoID:   video.ID,
		ProjectID: projectID,
		Status:    model.SessionStatusActive,
		CreatedBy: principal.UserID,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	result := &CreateSessionResult{Session: session}
	if _, err := s.manager.Open(ctx, session.ID, video.ID, video.EffectiveFrameRate()); err != nil {
		// Ready with an empty list; the failure is surfaced, not fatal.
		result.Warning = "failed to load existing annotations: " + err.Error()
	}
	return result, nil
}

func (s *SessionService) Get(ctx context.Context, principal model.Principal, id string) (*model.AnnotationSession, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) List(ctx context.Context, principal model.Principal, filter repository.SessionListFilter) ([]model.AnnotationSession, error) {
	return s.sessionRepo.List(ctx, filter)
}

// Close completes the session, tears the engine session down, and
// disconnects realtime subscribers of the video. Events that were already
// in flight for the video are dropped by the hub afterwards.
func (s *SessionService) Close(ctx context.Context, principal model.Principal, id string) (*model.AnnotationSession, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}

	session, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionStatusCompleted {
		return nil, ErrConflict
	}

	session.Status = model.SessionStatusCompleted
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	s.manager.Close(session.ID)
	s.hub.CloseVideo(session.VideoID)
	return session, nil
}

// Engine resolves the live reconciliation session for an active annotation
// session, reopening it (e.g. after a restart) when necessary.
func (s *SessionService) Engine(ctx context.Context, id string) (*engine.Session, *model.AnnotationSession, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if session.Status != model.SessionStatusActive {
		return nil, nil, ErrConflict
	}

	if engineSession, ok := s.manager.Get(session.ID); ok {
		return engineSession, session, nil
	}

	video, err := s.videoRepo.GetByID(ctx, session.VideoID)
	if err != nil {
		return nil, nil, err
	}
	engineSession, err := s.manager.Open(ctx, session.ID, video.ID, video.EffectiveFrameRate())
	if err != nil {
		return nil, nil, err
	}
	return engineSession, session, nil
}
