package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/app"
	"github.com/yourusername/media-fetch-go/internal/domain"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	downloadMgr *app.DownloadManager
	stagingDir  string
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(downloadMgr *app.DownloadManager, stagingDir string, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloadMgr: downloadMgr,
		stagingDir:  stagingDir,
		logger:      logger,
	}
}

// AddDownloadRequest represents a request to start a download
type AddDownloadRequest struct {
	URL            string `json:"url" binding:"required"`
	FormatID       string `json:"format_id" binding:"required"`
	CombinedHint   bool   `json:"combined_hint,omitempty"`
	UseCredentials *bool  `json:"use_credentials,omitempty"`
}

// AddDownload handles POST /api/v1/downloads
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	var req AddDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.downloadMgr.Create(c.Request.Context(), req.URL, req.FormatID, req.CombinedHint, req.UseCredentials)
	if err != nil {
		h.logger.Error("Failed to create download", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"download": entry.Download,
		"plan":     entry.Plan,
	})
}

// Events handles GET /api/v1/downloads/:id/events, the server-push
// event stream. It starts the orchestrator for the download and relays
// each lifecycle event as a named SSE event with one JSON payload,
// flushed immediately. A client disconnect cancels the request context,
// which kills the subprocess and releases the staging file.
func (h *DownloadHandler) Events(c *gin.Context) {
	id := c.Param("id")

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	events := make(chan domain.Event, 16)
	go func() {
		defer close(events)
		sink := domain.EventSinkFunc(func(event domain.Event) {
			events <- event
		})
		if err := h.downloadMgr.Run(c.Request.Context(), id, sink); err != nil {
			events <- domain.Event{Name: domain.EventError, Message: err.Error()}
		}
	}()

	for event := range events {
		c.SSEvent(string(event.Name), eventPayload(event))
		c.Writer.Flush()
	}
}

// eventPayload maps an internal event to its wire shape.
func eventPayload(event domain.Event) gin.H {
	switch event.Name {
	case domain.EventStart:
		return gin.H{"downloadId": event.DownloadID}
	case domain.EventProgress:
		return gin.H{"progress": event.Progress}
	case domain.EventComplete:
		return gin.H{
			"downloadId": event.DownloadID,
			"filename":   event.Filename,
			"filePath":   event.FilePath,
			"message":    event.Message,
		}
	default:
		return gin.H{"message": event.Message}
	}
}

// File handles GET /api/v1/downloads/:id/file, one-shot delivery of a
// completed staging artifact. The staging guard fires after delivery
// completes or the connection drops, whichever comes first.
func (h *DownloadHandler) File(c *gin.Context) {
	id := c.Param("id")

	entry, err := h.downloadMgr.Artifact(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	path := entry.Download.FilePath
	if !pathWithin(h.stagingDir, path) {
		h.logger.Warn("Refusing to serve path outside staging directory",
			zap.String("id", id), zap.String("path", path))
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid artifact path"})
		return
	}

	defer func() {
		reason := "delivered"
		if c.Request.Context().Err() != nil {
			reason = "disconnected"
		}
		h.downloadMgr.ReleaseArtifact(id, reason)
	}()

	c.FileAttachment(path, entry.Download.Filename)
}

// pathWithin reports whether path resolves to a location inside dir.
// Defense against traversal via a tampered record.
func pathWithin(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return absPath != absDir && strings.HasPrefix(absPath, absDir+string(filepath.Separator))
}

// Stream handles GET /api/v1/stream, the buffered one-shot adapter for
// plans that need no post-processing. Subprocess output bytes are
// written to the response as they arrive.
func (h *DownloadHandler) Stream(c *gin.Context) {
	url := c.Query("url")
	formatID := c.Query("format_id")
	combinedHint := c.Query("combined") == "1" || c.Query("combined") == "true"

	if url == "" || formatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and format_id are required"})
		return
	}

	c.Writer.Header().Set("Content-Type", "application/octet-stream")

	if err := h.downloadMgr.Stream(c.Request.Context(), url, formatID, combinedHint, c.Writer); err != nil {
		if !c.Writer.Written() {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		// Bytes already went out; nothing to do but log.
		h.logger.Warn("Direct stream aborted", zap.String("url", url), zap.Error(err))
	}
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	download, err := h.downloadMgr.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}
	c.JSON(http.StatusOK, download)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	filters := make(map[string]interface{})
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}

	downloads, err := h.downloadMgr.List(filters)
	if err != nil {
		h.logger.Error("Failed to list downloads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, downloads)
}

// GetStats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) GetStats(c *gin.Context) {
	stats, err := h.downloadMgr.Stats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
