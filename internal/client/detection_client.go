package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"annotation-service/internal/config"
	"annotation-service/internal/model"
	"annotation-service/internal/utils"
)

// DetectionConfig is the per-run tuning forwarded to the model backend.
type DetectionConfig struct {
	ConfidenceThreshold float64         `json:"confidence_threshold"`
	FrameStep           int             `json:"frame_step,omitempty"`
	Types               []model.VRUType `json:"types,omitempty"`
}

// wireDetection is one detection in the backend response.
type wireDetection struct {
	Type        string  `json:"type"`
	FrameNumber int     `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Confidence  float64 `json:"confidence"`
}

type detectionResponse struct {
	Detections       []wireDetection `json:"detections"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

// RunResult carries detections plus their provenance. The reconciliation
// path treats all sources identically; source is for display and job audit
// records only.
type RunResult struct {
	Success          bool                  `json:"success"`
	Detections       []model.Annotation    `json:"detections"`
	Source           model.DetectionSource `json:"source"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
	Error            string                `json:"error,omitempty"`
}

// DetectionClient talks to the external detection backend. Network errors
// are retried with backoff; when the backend stays unreachable and fallback
// is enabled, a deterministic mock result is produced instead so annotation
// work can continue offline.
type DetectionClient struct {
	baseURL         string
	internalToken   string
	fallbackEnabled bool
	httpClient      *http.Client
	cache           *gocache.Cache
}

func NewDetectionClient(cfg *config.Config) *DetectionClient {
	return &DetectionClient{
		baseURL:         cfg.Detection.ServiceURL,
		internalToken:   cfg.Detection.InternalToken,
		fallbackEnabled: cfg.Detection.FallbackEnabled,
		httpClient: &http.Client{
			Timeout: cfg.Detection.RequestTimeout,
		},
		cache: gocache.New(cfg.Detection.CacheTTL, 2*cfg.Detection.CacheTTL),
	}
}

// Run requests detections for a video. Results are cached per video for the
// configured TTL so repeated runs from the dashboard do not hammer the
// backend.
func (c *DetectionClient) Run(ctx context.Context, videoID uuid.UUID, detCfg DetectionConfig) (*RunResult, error) {
	cacheKey := videoID.String()
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*RunResult), nil
	}

	if c.baseURL == "" {
		if !c.fallbackEnabled {
			return nil, fmt.Errorf("detection service URL is not configured")
		}
		result := c.mockResult(videoID, model.DetectionSourceMock)
		c.cache.Set(cacheKey, result, gocache.DefaultExpiration)
		return result, nil
	}

	result, err := c.callBackend(ctx, videoID, detCfg)
	if err != nil {
		if !c.fallbackEnabled {
			return nil, err
		}
		result = c.mockResult(videoID, model.DetectionSourceFallback)
		result.Error = err.Error()
	}

	c.cache.Set(cacheKey, result, gocache.DefaultExpiration)
	return result, nil
}

// Invalidate drops the cached result for a video, e.g. after its
// annotations were cleared.
func (c *DetectionClient) Invalidate(videoID uuid.UUID) {
	c.cache.Delete(videoID.String())
}

func (c *DetectionClient) callBackend(ctx context.Context, videoID uuid.UUID, detCfg DetectionConfig) (*RunResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"video_id": videoID.String(),
		"config":   detCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := c.baseURL + "/internal/detection/run"

	newRequest := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.internalToken != "" {
			req.Header.Set("X-Internal-Token", c.internalToken)
		}
		return req, nil
	}

	req, err := newRequest()
	if err != nil {
		return nil, err
	}

	started := time.Now()

	var resp *http.Response
	var lastErr error
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil {
			break
		}
		if attempt == maxRetries-1 {
			return nil, fmt.Errorf("failed to execute request after %d attempts: %w", maxRetries, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
		req, err = newRequest()
		if err != nil {
			return nil, err
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("failed to execute request: %w", lastErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection service returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed detectionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	processingTime := parsed.ProcessingTimeMs
	if processingTime == 0 {
		processingTime = time.Since(started).Milliseconds()
	}

	return &RunResult{
		Success:          true,
		Detections:       adaptDetections(videoID, parsed.Detections),
		Source:           model.DetectionSourceBackend,
		ProcessingTimeMs: processingTime,
	}, nil
}

// adaptDetections converts backend detections to annotation drafts,
// dropping classes outside the VRU enumeration.
func adaptDetections(videoID uuid.UUID, detections []wireDetection) []model.Annotation {
	out := make([]model.Annotation, 0, len(detections))
	for _, d := range detections {
		vruType, ok := utils.NormalizeVRUType(d.Type)
		if !ok {
			continue
		}
		out = append(out, model.Annotation{
			VideoID:     videoID,
			FrameNumber: d.FrameNumber,
			Timestamp:   d.Timestamp,
			VRUType:     vruType,
			BoundingBox: model.BoundingBox{
				X:          d.X,
				Y:          d.Y,
				Width:      d.Width,
				Height:     d.Height,
				Confidence: d.Confidence,
				Label:      string(vruType),
			},
		})
	}
	return out
}

// mockResult generates a small deterministic detection set seeded from the
// video id, so repeated fallback runs against the same video agree.
func (c *DetectionClient) mockResult(videoID uuid.UUID, source model.DetectionSource) *RunResult {
	seed := int64(0)
	for _, b := range videoID {
		seed = seed*31 + int64(b)
	}
	rng := rand.New(rand.NewSource(seed))

	types := model.AllVRUTypes()
	count := 3 + rng.Intn(5)
	detections := make([]model.Annotation, 0, count)
	for i := 0; i < count; i++ {
		vruType := types[rng.Intn(len(types))]
		frame := i * (10 + rng.Intn(20))
		detections = append(detections, model.Annotation{
			VideoID:     videoID,
			FrameNumber: frame,
			Timestamp:   float64(frame) / model.DefaultFrameRate,
			VRUType:     vruType,
			BoundingBox: model.BoundingBox{
				X:          float64(50 + rng.Intn(500)),
				Y:          float64(50 + rng.Intn(300)),
				Width:      float64(30 + rng.Intn(60)),
				Height:     float64(60 + rng.Intn(100)),
				Confidence: 0.5 + rng.Float64()*0.45,
				Label:      string(vruType),
			},
		})
	}

	return &RunResult{
		Success:          true,
		Detections:       detections,
		Source:           source,
		ProcessingTimeMs: 0,
	}
}
