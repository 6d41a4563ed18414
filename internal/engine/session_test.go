package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-service/internal/model"
)

var errStore = errors.New("store unavailable")

// fakeStore is an in-memory AnnotationStore with switchable failures and an
// optional gate that blocks Create until released, to simulate a completion
// resolving after the session moved on.
type fakeStore struct {
	mu      sync.Mutex
	byVideo map[uuid.UUID][]model.Annotation

	failList   bool
	failCreate bool
	failUpdate bool
	failDelete bool

	createGate    chan struct{}
	createEntered chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{byVideo: make(map[uuid.UUID][]model.Annotation)}
}

func (f *fakeStore) ListByVideo(_ context.Context, videoID uuid.UUID) ([]model.Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errStore
	}
	out := make([]model.Annotation, len(f.byVideo[videoID]))
	copy(out, f.byVideo[videoID])
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, annotation *model.Annotation) error {
	if f.createEntered != nil {
		f.createEntered <- struct{}{}
	}
	if f.createGate != nil {
		<-f.createGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errStore
	}
	if annotation.ID == uuid.Nil {
		annotation.ID = uuid.New()
	}
	f.byVideo[annotation.VideoID] = append(f.byVideo[annotation.VideoID], *annotation)
	return nil
}

func (f *fakeStore) CreateBatch(_ context.Context, annotations []model.Annotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errStore
	}
	for i := range annotations {
		if annotations[i].ID == uuid.Nil {
			annotations[i].ID = uuid.New()
		}
		f.byVideo[annotations[i].VideoID] = append(f.byVideo[annotations[i].VideoID], annotations[i])
	}
	return nil
}

func (f *fakeStore) Update(_ context.Context, annotation *model.Annotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return errStore
	}
	stored := f.byVideo[annotation.VideoID]
	for i := range stored {
		if stored[i].ID == annotation.ID {
			stored[i] = *annotation
			return nil
		}
	}
	return errStore
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errStore
	}
	for videoID, stored := range f.byVideo {
		for i := range stored {
			if stored[i].ID == id {
				f.byVideo[videoID] = append(stored[:i], stored[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (f *fakeStore) countFor(videoID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byVideo[videoID])
}

func newTestSession(t *testing.T, store *fakeStore) *Session {
	t.Helper()
	s := NewSession(uuid.New(), 30, store, zerolog.Nop())
	require.NoError(t, s.Load(context.Background()))
	return s
}

func detection(videoID uuid.UUID, vruType model.VRUType, frame int) model.Annotation {
	return model.Annotation{
		ID:          uuid.New(),
		VideoID:     videoID,
		DetectionID: GenerateDetectionID(vruType, frame),
		FrameNumber: frame,
		Timestamp:   float64(frame) / 30,
		VRUType:     vruType,
		BoundingBox: model.BoundingBox{X: 10, Y: 20, Width: 30, Height: 60, Confidence: 0.85, Label: string(vruType)},
	}
}

func TestCreateAnnotationDefaults(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	created, err := s.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 12})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, model.BoundingBox{
		X:          100,
		Y:          100,
		Width:      50,
		Height:     100,
		Confidence: 1.0,
		Label:      "pedestrian",
	}, created.BoundingBox)
	assert.Equal(t, 12, created.FrameNumber)
	assert.InDelta(t, 0.4, created.Timestamp, 1e-9)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.Validated)
}

func TestCreateAnnotationPartialDraft(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	x, conf := 250.0, 0.5
	created, err := s.CreateAnnotation(context.Background(), model.VRUTypeCyclist, AnnotationDraft{
		FrameNumber: 3,
		X:           &x,
		Confidence:  &conf,
	})
	require.NoError(t, err)

	assert.Equal(t, 250.0, created.BoundingBox.X)
	assert.Equal(t, 100.0, created.BoundingBox.Y)
	assert.Equal(t, 50.0, created.BoundingBox.Width)
	assert.Equal(t, 100.0, created.BoundingBox.Height)
	assert.Equal(t, 0.5, created.BoundingBox.Confidence)
	assert.Equal(t, "cyclist", created.BoundingBox.Label)
}

func TestCreateAnnotationRejectsUnknownType(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	_, err := s.CreateAnnotation(context.Background(), model.VRUType("vehicle"), AnnotationDraft{})
	require.ErrorIs(t, err, ErrInvalidVRUType)
	assert.Empty(t, s.Annotations())
}

func TestFailedMutationsAreNoOps(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store)

	seed, err := s.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 1})
	require.NoError(t, err)
	before := s.Annotations()

	store.failCreate = true
	store.failUpdate = true
	store.failDelete = true

	_, err = s.CreateAnnotation(context.Background(), model.VRUTypeCyclist, AnnotationDraft{FrameNumber: 2})
	require.Error(t, err)

	occluded := true
	_, err = s.UpdateAnnotation(context.Background(), seed.ID, model.AnnotationUpdate{Occluded: &occluded})
	require.Error(t, err)

	_, err = s.ValidateAnnotation(context.Background(), seed.ID, true)
	require.Error(t, err)

	err = s.DeleteAnnotation(context.Background(), seed.ID)
	require.Error(t, err)

	assert.Equal(t, before, s.Annotations())
	stats := s.Statistics()
	assert.Equal(t, 1, stats.TotalDetections)
	assert.Equal(t, 0, stats.ValidatedDetections)
}

func TestUpdatePreservesListOrder(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	first, err := s.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 1})
	require.NoError(t, err)
	second, err := s.CreateAnnotation(context.Background(), model.VRUTypeCyclist, AnnotationDraft{FrameNumber: 2})
	require.NoError(t, err)

	newType := model.VRUTypeScooterRider
	updated, err := s.UpdateAnnotation(context.Background(), first.ID, model.AnnotationUpdate{VRUType: &newType})
	require.NoError(t, err)
	assert.Equal(t, model.VRUTypeScooterRider, updated.VRUType)

	list := s.Annotations()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, model.VRUTypeScooterRider, list[0].VRUType)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestValidateAnnotationFlipsOnlyFlag(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	created, err := s.CreateAnnotation(context.Background(), model.VRUTypeWheelchairUser, AnnotationDraft{FrameNumber: 7})
	require.NoError(t, err)

	validated, err := s.ValidateAnnotation(context.Background(), created.ID, true)
	require.NoError(t, err)
	assert.True(t, validated.Validated)
	assert.Equal(t, created.BoundingBox, validated.BoundingBox)
	assert.Equal(t, created.VRUType, validated.VRUType)

	stats := s.Statistics()
	assert.Equal(t, 1, stats.ValidatedDetections)

	unvalidated, err := s.ValidateAnnotation(context.Background(), created.ID, false)
	require.NoError(t, err)
	assert.False(t, unvalidated.Validated)
	assert.Equal(t, 0, s.Statistics().ValidatedDetections)
}

func TestDeleteRemovesListAndTracker(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	keep, err := s.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 1})
	require.NoError(t, err)
	drop, err := s.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 2})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAnnotation(context.Background(), drop.ID))

	list := s.Annotations()
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)

	stats := s.Statistics()
	assert.Equal(t, 1, stats.TotalDetections)
	assert.Equal(t, map[model.VRUType]int{model.VRUTypePedestrian: 1}, stats.DetectionsByType)
}

func TestMergeDetectionResultsBackfillsEmptyList(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store)

	detections := []model.Annotation{
		detection(s.VideoID(), model.VRUTypePedestrian, 1),
		detection(s.VideoID(), model.VRUTypeCyclist, 2),
		detection(s.VideoID(), model.VRUTypeMotorcyclist, 3),
	}

	merged, err := s.MergeDetectionResults(context.Background(), detections)
	require.NoError(t, err)
	assert.True(t, merged)

	list := s.Annotations()
	require.Len(t, list, 3)
	for i, d := range detections {
		assert.Equal(t, d.DetectionID, list[i].DetectionID)
	}
	assert.Equal(t, 3, s.Statistics().TotalDetections)
}

func TestMergeDetectionResultsDiscardedWhenListNonEmpty(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store)

	existing, err := s.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 99})
	require.NoError(t, err)

	// One manual annotation anywhere in the video suppresses the whole
	// backfill, even for frames with no annotations.
	merged, err := s.MergeDetectionResults(context.Background(), []model.Annotation{
		detection(s.VideoID(), model.VRUTypeCyclist, 1),
		detection(s.VideoID(), model.VRUTypeCyclist, 2),
	})
	require.NoError(t, err)
	assert.False(t, merged)

	list := s.Annotations()
	require.Len(t, list, 1)
	assert.Equal(t, existing.ID, list[0].ID)
	assert.Equal(t, 1, store.countFor(s.VideoID()))
}

func TestMergeRealtimeDetectionAlwaysAppends(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	_, err := s.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 1})
	require.NoError(t, err)

	streamed, err := s.MergeRealtimeDetection(context.Background(), detection(s.VideoID(), model.VRUTypeScooterRider, 5))
	require.NoError(t, err)

	list := s.Annotations()
	require.Len(t, list, 2)
	assert.Equal(t, streamed.DetectionID, list[1].DetectionID)

	// Still additive on a longer list.
	another, err := s.MergeRealtimeDetection(context.Background(), detection(s.VideoID(), model.VRUTypeCyclist, 6))
	require.NoError(t, err)
	list = s.Annotations()
	require.Len(t, list, 3)
	assert.Equal(t, another.DetectionID, list[2].DetectionID)
}

func TestLoadFailureLeavesEmptyReadySession(t *testing.T) {
	store := newFakeStore()
	store.failList = true

	s := NewSession(uuid.New(), 30, store, zerolog.Nop())
	err := s.Load(context.Background())
	require.ErrorIs(t, err, errStore)

	assert.Empty(t, s.Annotations())
	assert.Equal(t, 0, s.Statistics().TotalDetections)

	// The session is usable once the store recovers.
	store.failList = false
	_, err = s.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 1})
	require.NoError(t, err)
	assert.Len(t, s.Annotations(), 1)
}

func TestStaleCreateCompletionDiscarded(t *testing.T) {
	store := newFakeStore()
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	store.createGate = gate
	store.createEntered = entered

	manager := NewManager(store, zerolog.Nop())
	sessionID := uuid.New()
	videoA := uuid.New()
	videoB := uuid.New()

	sessA, err := manager.Open(context.Background(), sessionID, videoA, 30)
	require.NoError(t, err)

	pending := make(chan error, 1)
	go func() {
		_, err := sessA.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 4})
		pending <- err
	}()

	// Wait until the create reached the store, then switch the annotation
	// session to video B while the call is still in flight.
	<-entered
	sessB, err := manager.Open(context.Background(), sessionID, videoB, 30)
	require.NoError(t, err)

	close(gate)
	require.ErrorIs(t, <-pending, ErrSessionClosed)

	// Video B saw nothing.
	assert.Empty(t, sessB.Annotations())
	assert.Equal(t, 0, sessB.Statistics().TotalDetections)

	// The write was persisted, so reopening video A shows the annotation.
	assert.Equal(t, 1, store.countFor(videoA))
	store.createEntered = nil
	reopened, err := manager.Open(context.Background(), uuid.New(), videoA, 30)
	require.NoError(t, err)
	assert.Len(t, reopened.Annotations(), 1)
}

func TestManagerClosesPreviousVideoOnSwitch(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(store, zerolog.Nop())
	sessionID := uuid.New()

	sessA, err := manager.Open(context.Background(), sessionID, uuid.New(), 30)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := sessA.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: i})
		require.NoError(t, err)
	}

	sessB, err := manager.Open(context.Background(), sessionID, uuid.New(), 30)
	require.NoError(t, err)
	_, err = sessB.CreateAnnotation(context.Background(), model.VRUTypeCyclist, AnnotationDraft{FrameNumber: 1})
	require.NoError(t, err)

	// No leakage from A's tracker into B's statistics.
	stats := sessB.Statistics()
	assert.Equal(t, 1, stats.TotalDetections)
	assert.Equal(t, map[model.VRUType]int{model.VRUTypeCyclist: 1}, stats.DetectionsByType)

	// Operations on the stale handle are rejected.
	_, err = sessA.CreateAnnotation(context.Background(), model.VRUTypePedestrian, AnnotationDraft{FrameNumber: 9})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestStatisticsMatchesAnnotationList(t *testing.T) {
	s := newTestSession(t, newFakeStore())
	ctx := context.Background()

	types := []model.VRUType{
		model.VRUTypePedestrian, model.VRUTypePedestrian, model.VRUTypeCyclist,
		model.VRUTypeMotorcyclist, model.VRUTypeScooterRider, model.VRUTypePedestrian,
	}
	var created []*model.Annotation
	for i, vruType := range types {
		a, err := s.CreateAnnotation(ctx, vruType, AnnotationDraft{FrameNumber: i})
		require.NoError(t, err)
		created = append(created, a)
	}

	_, err := s.ValidateAnnotation(ctx, created[0].ID, true)
	require.NoError(t, err)
	_, err = s.ValidateAnnotation(ctx, created[2].ID, true)
	require.NoError(t, err)
	require.NoError(t, s.DeleteAnnotation(ctx, created[4].ID))

	list := s.Annotations()
	stats := s.Statistics()

	assert.Equal(t, len(list), stats.TotalDetections)

	wantByType := make(map[model.VRUType]int)
	wantValidated := 0
	for _, a := range list {
		wantByType[a.VRUType]++
		if a.Validated {
			wantValidated++
		}
	}
	assert.Equal(t, wantByType, stats.DetectionsByType)
	assert.Equal(t, wantValidated, stats.ValidatedDetections)
}

func TestAnnotationsAtFrame(t *testing.T) {
	s := newTestSession(t, newFakeStore())
	ctx := context.Background()

	for _, frame := range []int{3, 7, 3, 9} {
		_, err := s.CreateAnnotation(ctx, model.VRUTypePedestrian, AnnotationDraft{FrameNumber: frame})
		require.NoError(t, err)
	}

	atFrame := s.AnnotationsAtFrame(3)
	require.Len(t, atFrame, 2)
	for _, a := range atFrame {
		assert.Equal(t, 3, a.FrameNumber)
	}
	assert.Empty(t, s.AnnotationsAtFrame(5))
}
