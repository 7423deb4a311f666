// Package handler exposes the pipeline over HTTP: upload intake, job
// results, item listing and media retrieval.
package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medialens/medialens/logging/logger"
	"github.com/medialens/medialens/net/resp"
	"github.com/medialens/medialens/pipeline/ingest"
	"github.com/medialens/medialens/pipeline/ledger"
	"github.com/medialens/medialens/storage"
)

// contentTypes maps media file extensions to their MIME type. Unknown
// extensions stream as application/octet-stream.
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// Handler handles HTTP requests for the pipeline.
type Handler struct {
	gateway *ingest.Gateway
	ledger  *ledger.Service
	store   storage.Interface
	logger  *logger.Logger
}

// New creates the HTTP handler.
func New(gw *ingest.Gateway, led *ledger.Service, store storage.Interface, log *logger.Logger) *Handler {
	return &Handler{
		gateway: gw,
		ledger:  led,
		store:   store,
		logger:  log,
	}
}

// RegisterRoutes wires the handler into the gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/upload", h.Upload)
	r.GET("/results/:item_id", h.GetResult)
	r.GET("/items", h.ListItems)
	r.GET("/items/stuck", h.StuckItems)
	r.GET("/media/:item_id", h.GetMedia)
	r.GET("/health", h.Health)
}

// Upload handles multipart media uploads and starts a pipeline job.
func (h *Handler) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		resp.Fail(c.Writer, resp.BadRequest("file is required"))
		return
	}
	defer file.Close()

	input := &ingest.RegisterInput{
		FileName:     header.Filename,
		Reader:       file,
		Capabilities: formList(c, "services"),
		Languages:    formList(c, "languages"),
	}
	if raw := c.PostForm("frame_second"); raw != "" {
		interval, err := strconv.Atoi(raw)
		if err != nil {
			resp.Fail(c.Writer, resp.BadRequest("frame_second must be an integer"))
			return
		}
		input.FrameIntervalSeconds = interval
	}

	job, err := h.gateway.Register(ctx, input)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidRequest) {
			resp.Fail(c.Writer, resp.BadRequest(err.Error()))
			return
		}
		h.logger.Error(ctx, "failed to register upload", "file", header.Filename, "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to register upload"))
		return
	}

	resp.WithStatusCode(c.Writer, http.StatusCreated, map[string]any{
		"item_id":  job.JobID,
		"services": job.RequestedCapabilities,
	})
}

// GetResult returns the full job record including per-capability payloads.
func (h *Handler) GetResult(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("item_id")

	job, err := h.ledger.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			resp.Fail(c.Writer, resp.NotFound("item not found"))
			return
		}
		h.logger.Error(ctx, "failed to get item", "item_id", jobID, "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to get item"))
		return
	}

	resp.Success(c.Writer, map[string]any{
		"item": job,
		"done": job.Done(),
	})
}

// ListItems returns a page of jobs with result payloads stripped.
func (h *Handler) ListItems(c *gin.Context) {
	ctx := c.Request.Context()

	skip, err := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
	if err != nil || skip < 0 {
		resp.Fail(c.Writer, resp.BadRequest("skip must be a non-negative integer"))
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "10"), 10, 64)
	if err != nil || limit < 0 {
		resp.Fail(c.Writer, resp.BadRequest("limit must be a non-negative integer"))
		return
	}

	jobs, total, err := h.ledger.ListJobs(ctx, skip, limit)
	if err != nil {
		h.logger.Error(ctx, "failed to list items", "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to list items"))
		return
	}

	resp.Success(c.Writer, map[string]any{
		"items": jobs,
		"total": total,
		"skip":  skip,
		"limit": limit,
	})
}

// StuckItems returns unfinished jobs untouched for longer than the
// threshold, in minutes.
func (h *Handler) StuckItems(c *gin.Context) {
	ctx := c.Request.Context()

	threshold := ledger.DefaultStuckThreshold
	if raw := c.Query("threshold"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			resp.Fail(c.Writer, resp.BadRequest("threshold must be a positive number of minutes"))
			return
		}
		threshold = time.Duration(minutes) * time.Minute
	}

	jobs, err := h.ledger.StuckJobs(ctx, threshold)
	if err != nil {
		h.logger.Error(ctx, "failed to list stuck items", "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to list stuck items"))
		return
	}

	resp.Success(c.Writer, map[string]any{
		"items": jobs,
		"total": len(jobs),
	})
}

// GetMedia streams the originally uploaded media for an item.
func (h *Handler) GetMedia(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("item_id")

	job, err := h.ledger.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			resp.Fail(c.Writer, resp.NotFound("item not found"))
			return
		}
		h.logger.Error(ctx, "failed to get item", "item_id", jobID, "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to get item"))
		return
	}
	if job.MediaRef == "" {
		resp.Fail(c.Writer, resp.NotFound("item has no media"))
		return
	}

	stream, err := h.store.GetStream(job.MediaRef)
	if err != nil {
		h.logger.Error(ctx, "failed to open media", "item_id", jobID, "ref", job.MediaRef, "error", err)
		resp.Fail(c.Writer, resp.NotFound("media not found"))
		return
	}
	defer stream.Close()

	c.Header("Content-Type", mediaContentType(job.MediaRef))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, stream); err != nil {
		h.logger.Warn(ctx, "media stream interrupted", "item_id", jobID, "error", err)
	}
}

// Health reports service liveness.
func (h *Handler) Health(c *gin.Context) {
	resp.Success(c.Writer, map[string]string{"status": "healthy"})
}

// formList reads a repeated form field, splitting comma separated values.
func formList(c *gin.Context, field string) []string {
	var out []string
	for _, raw := range c.PostFormArray(field) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func mediaContentType(ref string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(ref))]; ok {
		return ct
	}
	return "application/octet-stream"
}
