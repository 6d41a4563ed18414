package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"annotation-service/internal/client"
	"annotation-service/internal/http/middleware"
	"annotation-service/internal/model"
	"annotation-service/internal/realtime"
	"annotation-service/internal/repository"
	"annotation-service/internal/service"
)

type Handler struct {
	projectService    *service.ProjectService
	videoService      *service.VideoService
	sessionService    *service.SessionService
	annotationService *service.AnnotationService
	detectionService  *service.DetectionService
	exportService     *service.ExportService
	statisticsService *service.StatisticsService
	hub               *realtime.Hub
	log               zerolog.Logger
}

func NewHandler(
	projectService *service.ProjectService,
	videoService *service.VideoService,
	sessionService *service.SessionService,
	annotationService *service.AnnotationService,
	detectionService *service.DetectionService,
	exportService *service.ExportService,
	statisticsService *service.StatisticsService,
	hub *realtime.Hub,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		projectService:    projectService,
		videoService:      videoService,
		sessionService:    sessionService,
		annotationService: annotationService,
		detectionService:  detectionService,
		exportService:     exportService,
		statisticsService: statisticsService,
		hub:               hub,
		log:               log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := r.Group("/")
	protected.Use(authMiddleware)

	projects := protected.Group("/projects")
	{
		projects.GET("", h.listProjects)
		projects.POST("", h.createProject)
		projects.GET("/:id", h.getProject)
		projects.PATCH("/:id", h.updateProject)
		projects.DELETE("/:id", h.deleteProject)
		projects.GET("/:id/statistics", h.getProjectStatistics)
	}

	videos := protected.Group("/videos")
	{
		videos.GET("", h.listVideos)
		videos.POST("", h.createVideo)
		videos.GET("/:id", h.getVideo)
		videos.PATCH("/:id", h.updateVideo)
		videos.PUT("/:id/status", h.updateVideoStatus)
		videos.PUT("/:id/project", h.assignVideoToProject)
		videos.DELETE("/:id", h.deleteVideo)
		videos.GET("/:id/statistics", h.getVideoStatistics)
		videos.GET("/:id/jobs", h.listDetectionJobs)
		videos.GET("/:id/export", h.exportAnnotations)
	}

	sessions := protected.Group("/sessions")
	{
		sessions.POST("", h.createSession)
		sessions.GET("", h.listSessions)
		sessions.GET("/:id", h.getSession)
		sessions.PUT("/:id/close", h.closeSession)
		sessions.GET("/:id/annotations", h.listAnnotations)
		sessions.POST("/:id/annotations", h.createAnnotation)
		sessions.GET("/:id/statistics", h.getSessionStatistics)
		sessions.POST("/:id/detect", h.runDetection)
		sessions.POST("/:id/detections", h.ingestRealtimeDetection)
	}

	annotations := protected.Group("/annotations")
	{
		annotations.PATCH("/:id", h.updateAnnotation)
		annotations.DELETE("/:id", h.deleteAnnotation)
		annotations.PUT("/:id/validate", h.validateAnnotation)
	}

	jobs := protected.Group("/jobs")
	{
		jobs.GET("/:id", h.getDetectionJob)
	}

	// Browsers cannot set Authorization headers on WebSocket upgrades, so
	// the stream endpoint sits outside the auth group.
	r.GET("/videos/:id/stream", h.streamVideoEvents)
}

// Project handlers

func (h *Handler) createProject(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), principal, service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(project))
}

func (h *Handler) listProjects(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	projects, err := h.projectService.List(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(projects))
}

func (h *Handler) getProject(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(project))
}

func (h *Handler) updateProject(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), principal, c.Param("id"), service.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(project))
}

func (h *Handler) deleteProject(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) getProjectStatistics(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	stats, err := h.statisticsService.ForProject(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(stats))
}

// Video handlers

func (h *Handler) createVideo(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		Name        string  `json:"name" binding:"required"`
		ProjectID   *string `json:"project_id"`
		Duration    float64 `json:"duration"`
		FrameRate   float64 `json:"frame_rate"`
		Width       int     `json:"width"`
		Height      int     `json:"height"`
		StoragePath string  `json:"storage_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	video, err := h.videoService.Create(c.Request.Context(), principal, service.CreateVideoInput{
		Name:        req.Name,
		ProjectID:   req.ProjectID,
		Duration:    req.Duration,
		FrameRate:   req.FrameRate,
		Width:       req.Width,
		Height:      req.Height,
		StoragePath: req.StoragePath,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(video))
}

func (h *Handler) listVideos(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	filter := repository.VideoListFilter{}

	if raw := strings.TrimSpace(c.Query("project_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid project_id"))
			return
		}
		filter.ProjectID = &id
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := model.VideoStatus(strings.ToUpper(raw))
		filter.Status = &status
	}
	if c.Query("unassigned") == "true" {
		filter.Unassigned = true
	}

	videos, err := h.videoService.List(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(videos))
}

func (h *Handler) getVideo(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	video, err := h.videoService.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(video))
}

func (h *Handler) updateVideo(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		Name        *string  `json:"name"`
		Duration    *float64 `json:"duration"`
		FrameRate   *float64 `json:"frame_rate"`
		Width       *int     `json:"width"`
		Height      *int     `json:"height"`
		StoragePath *string  `json:"storage_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	video, err := h.videoService.Update(c.Request.Context(), principal, c.Param("id"), service.UpdateVideoInput{
		Name:        req.Name,
		Duration:    req.Duration,
		FrameRate:   req.FrameRate,
		Width:       req.Width,
		Height:      req.Height,
		StoragePath: req.StoragePath,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(video))
}

func (h *Handler) updateVideoStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	status := model.VideoStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	video, err := h.videoService.UpdateStatus(c.Request.Context(), principal, c.Param("id"), status)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(video))
}

func (h *Handler) assignVideoToProject(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		ProjectID *string `json:"project_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	video, err := h.videoService.AssignToProject(c.Request.Context(), principal, c.Param("id"), req.ProjectID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(video))
}

func (h *Handler) deleteVideo(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	if err := h.videoService.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) getVideoStatistics(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	stats, err := h.statisticsService.ForVideo(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(stats))
}

// Session handlers

func (h *Handler) createSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		VideoID   string  `json:"video_id" binding:"required"`
		ProjectID *string `json:"project_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result, err := h.sessionService.Create(c.Request.Context(), principal, service.CreateSessionInput{
		VideoID:   req.VideoID,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(result))
}

func (h *Handler) listSessions(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	filter := repository.SessionListFilter{}
	if raw := strings.TrimSpace(c.Query("video_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid video_id"))
			return
		}
		filter.VideoID = &id
	}
	if raw := strings.TrimSpace(c.Query("project_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid project_id"))
			return
		}
		filter.ProjectID = &id
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := model.SessionStatus(strings.ToUpper(raw))
		filter.Status = &status
	}

	sessions, err := h.sessionService.List(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(sessions))
}

func (h *Handler) getSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(session))
}

func (h *Handler) closeSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	session, err := h.sessionService.Close(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(session))
}

// Annotation handlers

func (h *Handler) listAnnotations(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	sessionID := c.Param("id")

	if raw := strings.TrimSpace(c.Query("frame")); raw != "" {
		frame, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid frame"))
			return
		}
		annotations, err := h.annotationService.ListAtFrame(c.Request.Context(), principal, sessionID, frame)
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse(annotations))
		return
	}

	annotations, err := h.annotationService.List(c.Request.Context(), principal, sessionID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(annotations))
}

func (h *Handler) createAnnotation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		VRUType     string   `json:"vru_type" binding:"required"`
		FrameNumber int      `json:"frame_number"`
		X           *float64 `json:"x"`
		Y           *float64 `json:"y"`
		Width       *float64 `json:"width"`
		Height      *float64 `json:"height"`
		Confidence  *float64 `json:"confidence"`
		Label       string   `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	annotation, err := h.annotationService.Create(c.Request.Context(), principal, c.Param("id"), service.CreateAnnotationInput{
		VRUType:     req.VRUType,
		FrameNumber: req.FrameNumber,
		X:           req.X,
		Y:           req.Y,
		Width:       req.Width,
		Height:      req.Height,
		Confidence:  req.Confidence,
		Label:       req.Label,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(annotation))
}

func (h *Handler) updateAnnotation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, errorResponse("session_id is required"))
		return
	}

	var req struct {
		FrameNumber *int     `json:"frame_number"`
		VRUType     *string  `json:"vru_type"`
		X           *float64 `json:"x"`
		Y           *float64 `json:"y"`
		Width       *float64 `json:"width"`
		Height      *float64 `json:"height"`
		Confidence  *float64 `json:"confidence"`
		Label       *string  `json:"label"`
		Occluded    *bool    `json:"occluded"`
		Truncated   *bool    `json:"truncated"`
		Difficult   *bool    `json:"difficult"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	annotation, err := h.annotationService.Update(c.Request.Context(), principal, sessionID, c.Param("id"), service.UpdateAnnotationInput{
		FrameNumber: req.FrameNumber,
		VRUType:     req.VRUType,
		X:           req.X,
		Y:           req.Y,
		Width:       req.Width,
		Height:      req.Height,
		Confidence:  req.Confidence,
		Label:       req.Label,
		Occluded:    req.Occluded,
		Truncated:   req.Truncated,
		Difficult:   req.Difficult,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(annotation))
}

func (h *Handler) deleteAnnotation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, errorResponse("session_id is required"))
		return
	}

	if err := h.annotationService.Delete(c.Request.Context(), principal, sessionID, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) validateAnnotation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, errorResponse("session_id is required"))
		return
	}

	var req struct {
		Validated *bool `json:"validated" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	annotation, err := h.annotationService.Validate(c.Request.Context(), principal, sessionID, c.Param("id"), *req.Validated)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(annotation))
}

func (h *Handler) getSessionStatistics(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	stats, err := h.annotationService.Statistics(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(stats))
}

// Detection handlers

func (h *Handler) runDetection(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		ConfidenceThreshold float64  `json:"confidence_threshold"`
		FrameStep           int      `json:"frame_step"`
		Types               []string `json:"types"`
	}
	// Config body is optional.
	_ = c.ShouldBindJSON(&req)

	detCfg := client.DetectionConfig{
		ConfidenceThreshold: req.ConfidenceThreshold,
		FrameStep:           req.FrameStep,
	}
	for _, raw := range req.Types {
		detCfg.Types = append(detCfg.Types, model.VRUType(raw))
	}

	summary, err := h.detectionService.Run(c.Request.Context(), principal, c.Param("id"), detCfg)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(summary))
}

func (h *Handler) ingestRealtimeDetection(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		VRUType     string  `json:"vru_type" binding:"required"`
		FrameNumber int     `json:"frame_number"`
		Timestamp   float64 `json:"timestamp"`
		X           float64 `json:"x"`
		Y           float64 `json:"y"`
		Width       float64 `json:"width"`
		Height      float64 `json:"height"`
		Confidence  float64 `json:"confidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	vruType := model.VRUType(req.VRUType)
	detection := model.Annotation{
		FrameNumber: req.FrameNumber,
		Timestamp:   req.Timestamp,
		VRUType:     vruType,
		BoundingBox: model.BoundingBox{
			X:          req.X,
			Y:          req.Y,
			Width:      req.Width,
			Height:     req.Height,
			Confidence: req.Confidence,
			Label:      string(vruType),
		},
	}

	merged, err := h.detectionService.IngestRealtime(c.Request.Context(), principal, c.Param("id"), detection)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(merged))
}

func (h *Handler) listDetectionJobs(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	jobs, err := h.detectionService.ListJobs(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(jobs))
}

func (h *Handler) getDetectionJob(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	job, err := h.detectionService.GetJob(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(job))
}

// Export handler

func (h *Handler) exportAnnotations(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	format := service.ExportFormat(strings.ToLower(strings.TrimSpace(c.Query("format"))))
	if format == "" {
		format = service.ExportFormatJSON
	}

	result, err := h.exportService.Export(c.Request.Context(), principal, c.Param("id"), format)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// Realtime handler

func (h *Handler) streamVideoEvents(c *gin.Context) {
	videoID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid video id"))
		return
	}

	if err := h.hub.Subscribe(c.Writer, c.Request, videoID); err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrDetectionUnavailable):
		c.JSON(http.StatusBadGateway, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
