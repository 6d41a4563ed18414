package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"annotation-service/internal/client"
	"annotation-service/internal/model"
	"annotation-service/internal/realtime"
	"annotation-service/internal/repository"
)

// DetectionService runs detection jobs against the external backend and
// reconciles the results into the open annotation session, publishing
// progress over the realtime channel as it goes.
type DetectionService struct {
	jobRepo        *repository.DetectionJobRepository
	sessionService *SessionService
	detector       *client.DetectionClient
	hub            *realtime.Hub
	log            zerolog.Logger
}

func NewDetectionService(
	jobRepo *repository.DetectionJobRepository,
	sessionService *SessionService,
	detector *client.DetectionClient,
	hub *realtime.Hub,
	log zerolog.Logger,
) *DetectionService {
	return &DetectionService{
		jobRepo:        jobRepo,
		sessionService: sessionService,
		detector:       detector,
		hub:            hub,
		log:            log,
	}
}

// RunSummary is the outcome of one detection run. Merged is false when the
// video already had annotations and the backfill-only rule discarded the
// results.
type RunSummary struct {
	Job            *model.DetectionJob   `json:"job"`
	Merged         bool                  `json:"merged"`
	Source         model.DetectionSource `json:"source"`
	DetectionCount int                   `json:"detection_count"`
}

// Run executes a detection job for the session's video. Pipeline failures
// are recorded on the job and surfaced as ErrDetectionUnavailable, which
// the dashboard maps to its dedicated retry slot.
func (s *DetectionService) Run(ctx context.Context, principal model.Principal, sessionID string, detCfg client.DetectionConfig) (*RunSummary, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}

	engineSession, session, err := s.sessionService.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	job := &model.DetectionJob{
		VideoID:   session.VideoID,
		SessionID: &session.ID,
		Status:    model.DetectionJobStatusPending,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	job.Status = model.DetectionJobStatusRunning
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, err
	}
	s.publishProgress(session, 0)

	result, err := s.detector.Run(ctx, session.VideoID, detCfg)
	if err != nil {
		s.failJob(ctx, job, session, err)
		return nil, ErrDetectionUnavailable
	}

	s.publishProgress(session, 50)

	merged, err := engineSession.MergeDetectionResults(ctx, result.Detections)
	if err != nil {
		s.failJob(ctx, job, session, err)
		return nil, err
	}

	job.Status = model.DetectionJobStatusCompleted
	job.Source = result.Source
	job.DetectionCount = len(result.Detections)
	job.ProcessingTimeMs = result.ProcessingTimeMs
	if result.Error != "" {
		job.Error = &result.Error
		// Do not keep serving a fallback result from cache: a retry from
		// the dashboard should attempt the backend again.
		s.detector.Invalidate(session.VideoID)
	}
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, err
	}

	s.publishProgress(session, 100)
	s.hub.Publish(realtime.Event{
		Type:      realtime.EventComplete,
		VideoID:   session.VideoID,
		SessionID: &session.ID,
		Payload: map[string]interface{}{
			"job_id":          job.ID,
			"source":          result.Source,
			"detection_count": len(result.Detections),
			"merged":          merged,
		},
	})

	return &RunSummary{
		Job:            job,
		Merged:         merged,
		Source:         result.Source,
		DetectionCount: len(result.Detections),
	}, nil
}

// IngestRealtime merges a single streamed detection into the open session
// and fans it out to realtime subscribers. Unlike Run, this path is always
// additive.
func (s *DetectionService) IngestRealtime(ctx context.Context, principal model.Principal, sessionID string, detection model.Annotation) (*model.Annotation, error) {
	if !principal.CanAnnotate() {
		return nil, ErrPermissionDenied
	}
	if !detection.VRUType.Valid() {
		return nil, ErrInvalidInput
	}

	engineSession, session, err := s.sessionService.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	merged, err := engineSession.MergeRealtimeDetection(ctx, detection)
	if err != nil {
		return nil, mapEngineError(err)
	}

	s.hub.Publish(realtime.Event{
		Type:      realtime.EventDetection,
		VideoID:   session.VideoID,
		SessionID: &session.ID,
		Payload:   merged,
	})
	return merged, nil
}

func (s *DetectionService) ListJobs(ctx context.Context, principal model.Principal, videoID string) ([]model.DetectionJob, error) {
	id, err := uuid.Parse(videoID)
	if err != nil {
		return nil, ErrInvalidInput
	}
	return s.jobRepo.ListByVideo(ctx, id)
}

func (s *DetectionService) GetJob(ctx context.Context, principal model.Principal, jobID string) (*model.DetectionJob, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, ErrInvalidInput
	}
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *DetectionService) publishProgress(session *model.AnnotationSession, percent int) {
	s.hub.Publish(realtime.Event{
		Type:      realtime.EventProgress,
		VideoID:   session.VideoID,
		SessionID: &session.ID,
		Payload:   map[string]int{"percent": percent},
	})
}

func (s *DetectionService) failJob(ctx context.Context, job *model.DetectionJob, session *model.AnnotationSession, cause error) {
	message := cause.Error()
	job.Status = model.DetectionJobStatusFailed
	job.Error = &message
	if err := s.jobRepo.Update(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to record job failure")
	}
	s.hub.Publish(realtime.Event{
		Type:      realtime.EventError,
		VideoID:   session.VideoID,
		SessionID: &session.ID,
		Payload:   map[string]string{"error": message},
	})
}
