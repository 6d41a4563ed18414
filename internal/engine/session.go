package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"annotation-service/internal/model"
)

var (
	// ErrSessionClosed is returned when an operation targets a session whose
	// video has been closed, including store completions that resolve after
	// the close. The store write may still have been persisted; reopening
	// the video reloads it.
	ErrSessionClosed      = errors.New("annotation session closed")
	ErrInvalidVRUType     = errors.New("invalid vru type")
	ErrAnnotationNotFound = errors.New("annotation not found")
)

// AnnotationStore is the persistence seam the session reconciles against.
// Every call is a suspension point: the session drops its lock for the
// duration and revalidates its own state when the call completes.
type AnnotationStore interface {
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]model.Annotation, error)
	Create(ctx context.Context, annotation *model.Annotation) error
	CreateBatch(ctx context.Context, annotations []model.Annotation) error
	Update(ctx context.Context, annotation *model.Annotation) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Default bounding-box geometry for click-to-place annotation: a box is
// usable immediately even when the caller supplies no fields at all.
const (
	DefaultBoxX          = 100.0
	DefaultBoxY          = 100.0
	DefaultBoxWidth      = 50.0
	DefaultBoxHeight     = 100.0
	DefaultBoxConfidence = 1.0
)

// AnnotationDraft is the caller-supplied part of a new annotation. Nil
// geometry fields fall back to the defaults above.
type AnnotationDraft struct {
	FrameNumber int
	X           *float64
	Y           *float64
	Width       *float64
	Height      *float64
	Confidence  *float64
	Label       string
}

// Statistics is the derived read model over the open video's annotations.
type Statistics struct {
	TotalDetections     int                   `json:"total_detections"`
	ValidatedDetections int                   `json:"validated_detections"`
	DetectionsByType    map[model.VRUType]int `json:"detections_by_type"`
}

// Session owns the authoritative in-memory annotation set for one open
// video and the rules for merging user edits, stored annotations, and
// detection results into it. It is created on video open and discarded on
// close; the tracker table never survives across videos.
type Session struct {
	videoID   uuid.UUID
	frameRate float64
	store     AnnotationStore
	log       zerolog.Logger

	// mu is never held across a store call; completions re-acquire it and
	// revalidate against the closed flag before touching state.
	mu          sync.Mutex
	annotations []model.Annotation
	tracker     *TrackerTable
	closed      bool
}

func NewSession(videoID uuid.UUID, frameRate float64, store AnnotationStore, log zerolog.Logger) *Session {
	if frameRate <= 0 {
		frameRate = model.DefaultFrameRate
	}
	return &Session{
		videoID:   videoID,
		frameRate: frameRate,
		store:     store,
		log:       log.With().Str("video_id", videoID.String()).Logger(),
		tracker:   NewTrackerTable(),
	}
}

func (s *Session) lock()   { s.mu.Lock() }
func (s *Session) unlock() { s.mu.Unlock() }

func (s *Session) VideoID() uuid.UUID {
	return s.videoID
}

// Load fetches the stored annotations and rebuilds the tracker. On store
// failure the session still becomes ready with an empty list and the error
// is surfaced; no annotation is silently invented.
func (s *Session) Load(ctx context.Context) error {
	annotations, err := s.store.ListByVideo(ctx, s.videoID)

	s.lock()
	defer s.unlock()
	if s.closed {
		return ErrSessionClosed
	}

	s.tracker.Clear()
	s.annotations = nil
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load annotations")
		return err
	}

	s.annotations = annotations
	for _, a := range annotations {
		s.tracker.Put(a.DetectionID, trackerEntryFor(a))
	}
	return nil
}

// Close marks the session dead and clears the tracker. Any store completion
// still in flight is discarded when it observes the closed flag.
func (s *Session) Close() {
	s.lock()
	defer s.unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.annotations = nil
	s.tracker.Clear()
}

// CreateAnnotation fills in the draft defaults, persists the annotation,
// and appends it to the session on acknowledgement. There is no optimistic
// insert: a rejected store call leaves the session untouched.
func (s *Session) CreateAnnotation(ctx context.Context, vruType model.VRUType, draft AnnotationDraft) (*model.Annotation, error) {
	s.lock()
	if s.closed {
		s.unlock()
		return nil, ErrSessionClosed
	}
	if !vruType.Valid() {
		s.unlock()
		return nil, ErrInvalidVRUType
	}

	annotation := model.Annotation{
		VideoID:     s.videoID,
		DetectionID: GenerateDetectionID(vruType, draft.FrameNumber),
		FrameNumber: draft.FrameNumber,
		Timestamp:   float64(draft.FrameNumber) / s.frameRate,
		VRUType:     vruType,
		BoundingBox: boxFromDraft(vruType, draft),
	}
	s.unlock()

	if err := s.store.Create(ctx, &annotation); err != nil {
		return nil, err
	}

	s.lock()
	defer s.unlock()
	if s.closed {
		// Persisted but the video is no longer open; the annotation shows
		// up when the video is reopened.
		s.log.Debug().Str("detection_id", annotation.DetectionID).Msg("discarding stale create completion")
		return nil, ErrSessionClosed
	}

	s.annotations = append(s.annotations, annotation)
	s.tracker.Put(annotation.DetectionID, trackerEntryFor(annotation))
	return &annotation, nil
}

// UpdateAnnotation applies a partial update through the store and replaces
// the matching entry in place, preserving list order.
func (s *Session) UpdateAnnotation(ctx context.Context, annotationID uuid.UUID, update model.AnnotationUpdate) (*model.Annotation, error) {
	s.lock()
	if s.closed {
		s.unlock()
		return nil, ErrSessionClosed
	}
	idx := s.indexOf(annotationID)
	if idx < 0 {
		s.unlock()
		return nil, ErrAnnotationNotFound
	}
	updated := s.annotations[idx]
	update.Apply(&updated)
	s.unlock()

	if update.VRUType != nil && !update.VRUType.Valid() {
		return nil, ErrInvalidVRUType
	}

	if err := s.store.Update(ctx, &updated); err != nil {
		return nil, err
	}

	s.lock()
	defer s.unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	idx = s.indexOf(annotationID)
	if idx < 0 {
		return nil, ErrAnnotationNotFound
	}
	s.annotations[idx] = updated
	s.tracker.Put(updated.DetectionID, trackerEntryFor(updated))
	return &updated, nil
}

// ValidateAnnotation flips only the validated flag.
func (s *Session) ValidateAnnotation(ctx context.Context, annotationID uuid.UUID, validated bool) (*model.Annotation, error) {
	return s.UpdateAnnotation(ctx, annotationID, model.AnnotationUpdate{Validated: &validated})
}

// DeleteAnnotation removes the annotation from the store, the list, and the
// tracker in one operation.
func (s *Session) DeleteAnnotation(ctx context.Context, annotationID uuid.UUID) error {
	s.lock()
	if s.closed {
		s.unlock()
		return ErrSessionClosed
	}
	idx := s.indexOf(annotationID)
	if idx < 0 {
		s.unlock()
		return ErrAnnotationNotFound
	}
	s.unlock()

	if err := s.store.Delete(ctx, annotationID); err != nil {
		return err
	}

	s.lock()
	defer s.unlock()
	if s.closed {
		return ErrSessionClosed
	}
	idx = s.indexOf(annotationID)
	if idx < 0 {
		return nil
	}
	detectionID := s.annotations[idx].DetectionID
	s.annotations = append(s.annotations[:idx], s.annotations[idx+1:]...)
	s.tracker.Remove(detectionID)
	return nil
}

// MergeDetectionResults applies a bulk detection result. Detection is a
// backfill for empty videos only: when any annotations already exist for
// the video — at any frame — the whole result set is discarded and the
// existing annotations are kept as-is. An empty list is replaced wholesale
// and the tracker is rebuilt in one pass.
func (s *Session) MergeDetectionResults(ctx context.Context, detections []model.Annotation) (bool, error) {
	s.lock()
	if s.closed {
		s.unlock()
		return false, ErrSessionClosed
	}
	if len(s.annotations) > 0 {
		s.unlock()
		return false, nil
	}

	prepared := make([]model.Annotation, len(detections))
	for i, d := range detections {
		d.VideoID = s.videoID
		if d.DetectionID == "" {
			d.DetectionID = GenerateDetectionID(d.VRUType, d.FrameNumber)
		}
		prepared[i] = d
	}
	s.unlock()

	if len(prepared) == 0 {
		return false, nil
	}

	if err := s.store.CreateBatch(ctx, prepared); err != nil {
		return false, err
	}

	s.lock()
	defer s.unlock()
	if s.closed {
		return false, ErrSessionClosed
	}
	if len(s.annotations) > 0 {
		// An annotation landed while the batch was in flight; keep the
		// backfill-only rule and drop the in-memory merge.
		return false, nil
	}

	s.annotations = prepared
	s.tracker.Clear()
	for _, a := range prepared {
		s.tracker.Put(a.DetectionID, trackerEntryFor(a))
	}
	return true, nil
}

// MergeRealtimeDetection appends a single live-streamed detection. Unlike
// the bulk merge there is no empty-list precondition: streamed events are
// incremental, not a backfill.
func (s *Session) MergeRealtimeDetection(ctx context.Context, detection model.Annotation) (*model.Annotation, error) {
	s.lock()
	if s.closed {
		s.unlock()
		return nil, ErrSessionClosed
	}
	detection.VideoID = s.videoID
	if detection.DetectionID == "" {
		detection.DetectionID = GenerateDetectionID(detection.VRUType, detection.FrameNumber)
	}
	s.unlock()

	if err := s.store.Create(ctx, &detection); err != nil {
		return nil, err
	}

	s.lock()
	defer s.unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	s.annotations = append(s.annotations, detection)
	s.tracker.Put(detection.DetectionID, trackerEntryFor(detection))
	return &detection, nil
}

// Annotations returns a copy of the current list.
func (s *Session) Annotations() []model.Annotation {
	s.lock()
	defer s.unlock()
	out := make([]model.Annotation, len(s.annotations))
	copy(out, s.annotations)
	return out
}

// AnnotationsAtFrame returns the annotations on one frame, in list order.
func (s *Session) AnnotationsAtFrame(frameNumber int) []model.Annotation {
	s.lock()
	defer s.unlock()
	var out []model.Annotation
	for _, a := range s.annotations {
		if a.FrameNumber == frameNumber {
			out = append(out, a)
		}
	}
	return out
}

// Statistics recomputes the derived read model. Counts come from the
// tracker; the validated count is joined from the live annotation list,
// which is the single source of truth for validation state.
func (s *Session) Statistics() Statistics {
	s.lock()
	defer s.unlock()

	validated := 0
	for _, a := range s.annotations {
		if a.Validated {
			validated++
		}
	}

	return Statistics{
		TotalDetections:     s.tracker.Len(),
		ValidatedDetections: validated,
		DetectionsByType:    s.tracker.CountsByType(),
	}
}

func (s *Session) indexOf(annotationID uuid.UUID) int {
	for i, a := range s.annotations {
		if a.ID == annotationID {
			return i
		}
	}
	return -1
}

func boxFromDraft(vruType model.VRUType, draft AnnotationDraft) model.BoundingBox {
	box := model.BoundingBox{
		X:          DefaultBoxX,
		Y:          DefaultBoxY,
		Width:      DefaultBoxWidth,
		Height:     DefaultBoxHeight,
		Confidence: DefaultBoxConfidence,
		Label:      draft.Label,
	}
	if draft.X != nil {
		box.X = *draft.X
	}
	if draft.Y != nil {
		box.Y = *draft.Y
	}
	if draft.Width != nil {
		box.Width = *draft.Width
	}
	if draft.Height != nil {
		box.Height = *draft.Height
	}
	if draft.Confidence != nil {
		box.Confidence = *draft.Confidence
	}
	if box.Label == "" {
		box.Label = string(vruType)
	}
	return box
}

func trackerEntryFor(a model.Annotation) TrackerEntry {
	return TrackerEntry{
		VRUType:     a.VRUType,
		FrameNumber: a.FrameNumber,
		Timestamp:   a.Timestamp,
		BoundingBox: a.BoundingBox,
		Confidence:  a.BoundingBox.Confidence,
	}
}
