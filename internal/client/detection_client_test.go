package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-service/internal/config"
	"annotation-service/internal/model"
)

func testConfig(serviceURL string, fallback bool) *config.Config {
	return &config.Config{
		Detection: config.DetectionConfig{
			ServiceURL:      serviceURL,
			InternalToken:   "test-token",
			FallbackEnabled: fallback,
			CacheTTL:        time.Minute,
			RequestTimeout:  2 * time.Second,
		},
	}
}

func TestRunAdaptsBackendDetections(t *testing.T) {
	var gotToken atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.Header.Get("X-Internal-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"processing_time_ms": 1234,
			"detections": [
				{"type": "person", "frame_number": 10, "timestamp": 0.33, "x": 1, "y": 2, "width": 3, "height": 4, "confidence": 0.9},
				{"type": "car", "frame_number": 11, "timestamp": 0.36, "x": 5, "y": 6, "width": 7, "height": 8, "confidence": 0.8},
				{"type": "Wheelchair User", "frame_number": 12, "timestamp": 0.4, "x": 9, "y": 10, "width": 11, "height": 12, "confidence": 0.7}
			]
		}`))
	}))
	defer server.Close()

	c := NewDetectionClient(testConfig(server.URL, false))
	videoID := uuid.New()

	result, err := c.Run(context.Background(), videoID, DetectionConfig{ConfidenceThreshold: 0.5})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, model.DetectionSourceBackend, result.Source)
	assert.Equal(t, int64(1234), result.ProcessingTimeMs)
	assert.Equal(t, "test-token", gotToken.Load())

	// The unknown "car" class is dropped.
	require.Len(t, result.Detections, 2)
	assert.Equal(t, model.VRUTypePedestrian, result.Detections[0].VRUType)
	assert.Equal(t, videoID, result.Detections[0].VideoID)
	assert.Equal(t, 0.9, result.Detections[0].BoundingBox.Confidence)
	assert.Equal(t, model.VRUTypeWheelchairUser, result.Detections[1].VRUType)
}

func TestRunCachesPerVideo(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"detections": [], "processing_time_ms": 5}`))
	}))
	defer server.Close()

	c := NewDetectionClient(testConfig(server.URL, false))
	videoID := uuid.New()

	_, err := c.Run(context.Background(), videoID, DetectionConfig{})
	require.NoError(t, err)
	_, err = c.Run(context.Background(), videoID, DetectionConfig{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	c.Invalidate(videoID)
	_, err = c.Run(context.Background(), videoID, DetectionConfig{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunErrorStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewDetectionClient(testConfig(server.URL, false))

	_, err := c.Run(context.Background(), uuid.New(), DetectionConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunFallsBackWhenBackendUnreachable(t *testing.T) {
	// A server that is already closed produces connection refusals, which
	// exhaust the retry budget.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewDetectionClient(testConfig(url, true))
	videoID := uuid.New()

	result, err := c.Run(context.Background(), videoID, DetectionConfig{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, model.DetectionSourceFallback, result.Source)
	assert.NotEmpty(t, result.Error)
	assert.NotEmpty(t, result.Detections)
}

func TestRunUnreachableWithoutFallbackFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewDetectionClient(testConfig(url, false))

	_, err := c.Run(context.Background(), uuid.New(), DetectionConfig{})
	require.Error(t, err)
}

func TestRunMockWhenNoBackendConfigured(t *testing.T) {
	c := NewDetectionClient(testConfig("", true))
	videoID := uuid.New()

	result, err := c.Run(context.Background(), videoID, DetectionConfig{})
	require.NoError(t, err)
	assert.Equal(t, model.DetectionSourceMock, result.Source)
	assert.NotEmpty(t, result.Detections)
	for _, d := range result.Detections {
		assert.Equal(t, videoID, d.VideoID)
		assert.True(t, d.VRUType.Valid())
	}

	// Mock results are deterministic per video.
	c.Invalidate(videoID)
	again, err := c.Run(context.Background(), videoID, DetectionConfig{})
	require.NoError(t, err)
	assert.Equal(t, result.Detections, again.Detections)

	// No backend and no fallback is a hard error.
	strict := NewDetectionClient(testConfig("", false))
	_, err = strict.Run(context.Background(), uuid.New(), DetectionConfig{})
	require.Error(t, err)
}
