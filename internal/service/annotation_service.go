package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"annotation-service/internal/engine"
	"annotation-service/internal/model"
	"annotation-service/internal/utils"
)

// AnnotationService exposes the reconciliation engine's operations over an
// open annotation session. All list mutations go through the engine so the
// in-memory set, the tracker, and the store stay in step.
type AnnotationService struct {
	sessionService *SessionService
}

func NewAnnotationService(sessionService *SessionService) *AnnotationService {
	return &AnnotationService{sessionService: sessionService}
}

func (s *AnnotationService) List(ctx context.Context, principal model.Principal, sessionID string) ([]model.Annotation, error) {
	engineSession, _, err := s.sessionService.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return engineSession.Annotations(), nil
}

func (s *AnnotationService) ListAtFrame(ctx context.Context, principal model.Principal, sessionID string, frameNumber int) ([]model.Annotation, error) {
	engineSession, _, err := s.sessionService.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return engineSession.AnnotationsAtFrame(frameNumber), nil
}

type CreateAnnotationInput struct {
	VRUType     string
	FrameNumber int
	X           *float64
	Y           *float64
	Width       *float64
	Height      *float64
	Confidence  *float64
	Label       string
}

func (s *AnnotationService) Create(ctx context.Context, principal model.Principal, sessionID string, input CreateAnnotationInput) (*model.Annotation, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}
	if input.FrameNumber < 0 {
		return nil, ErrInvalidInput
	}
	vruType, ok := utils.NormalizeVRUType(input.VRUType)
	if !ok {
		return nil, ErrInvalidInput
	}

	engineSession, _, err := s.sessionService.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	annotation, err := engineSession.CreateAnnotation(ctx, vruType, engine.AnnotationDraft{
		FrameNumber: input.FrameNumber,
		X:           input.X,
		Y:           input.Y,
		Width:       input.Width,
		Height:      input.Height,
		Confidence:  input.Confidence,
		Label:       input.Label,
	})
	if err != nil {
		return nil, mapEngineError(err)
	}
	return annotation, nil
}

type UpdateAnnotationInput struct {
	FrameNumber *int
	VRUType     *string
	X           *float64
	Y           *float64
	Width       *float64
	Height      *float64
	Confidence  *float64
	Label       *string
	Occluded    *bool
	Truncated   *bool
	Difficult   *bool
}

func (s *AnnotationService) Update(ctx context.Context, principal model.Principal, sessionID, annotationID string, input UpdateAnnotationInput) (*model.Annotation, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}

	id, err := uuid.Parse(annotationID)
	if err != nil {
		return nil, ErrInvalidInput
	}

	engineSession, _, err := s.sessionService.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	update := model.AnnotationUpdate{
		FrameNumber: input.FrameNumber,
		Occluded:    input.Occluded,
		Truncated:   input.Truncated,
		Difficult:   input.Difficult,
	}
	if input.VRUType != nil {
		vruType, ok := utils.NormalizeVRUType(*input.VRUType)
		if !ok {
			return nil, ErrInvalidInput
		}
		update.VRUType = &vruType
	}
	if input.X != nil || input.Y != nil || input.Width != nil || input.Height != nil || input.Confidence != nil || input.Label != nil {
		current, found := s.findCurrent(engineSession, id)
		if !found {
			return nil, ErrNotFound
		}
		box := current.BoundingBox
		if input.X != nil {
			box.X = *input.X
		}
		if input.Y != nil {
			box.Y = *input.Y
		}
		if input.Width != nil {
			box.Width = *input.Width
		}
		if input.Height != nil {
			box.Height = *input.Height
		}
		if input.Confidence != nil {
			box.Confidence = *input.Confidence
		}
		if input.Label != nil {
			box.Label = *input.Label
		}
		update.BoundingBox = &box
	}

	annotation, err := engineSession.UpdateAnnotation(ctx, id, update)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return annotation, nil
}

func (s *AnnotationService) Delete(ctx context.Context, principal model.Principal, sessionID, annotationID string) error {
	if !principal.CanAnnotate() {
		return ErrPermissionDenied
	}

	id, err := uuid.Parse(annotationID)
	if err != nil {
		return ErrInvalidInput
	}

	engineSession, _, err := s.sessionService.Engine(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := engineSession.DeleteAnnotation(ctx, id); err != nil {
		return mapEngineError(err)
	}
	return nil
}

func (s *AnnotationService) Validate(ctx context.Context, principal model.Principal, sessionID, annotationID string, validated bool) (*model.Annotation, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}

	id, err := uuid.Parse(annotationID)
	if err != nil {
		return nil, ErrInvalidInput
	}

	engineSession, _, err := s.sessionService.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	annotation, err := engineSession.ValidateAnnotation(ctx, id, validated)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return annotation, nil
}

func (s *AnnotationService) Statistics(ctx context.Context, principal model.Principal, sessionID string) (*engine.Statistics, error) {
	engineSession, _, err := s.sessionService.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stats := engineSession.Statistics()
	return &stats, nil
}

func (s *AnnotationService) findCurrent(engineSession *engine.Session, id uuid.UUID) (model.Annotation, bool) {
	for _, a := range engineSession.Annotations() {
		if a.ID == id {
			return a, true
		}
	}
	return model.Annotation{}, false
}

func mapEngineError(err error) error {
	switch {
	case errors.Is(err, engine.ErrAnnotationNotFound):
		return ErrNotFound
	case errors.Is(err, engine.ErrInvalidVRUType):
		return ErrInvalidInput
	case errors.Is(err, engine.ErrSessionClosed):
		return ErrConflict
	default:
		return err
	}
}
