package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/infrastructure"
)

// MediaHandler handles media-metadata requests
type MediaHandler struct {
	inspector *infrastructure.MediaInspector
	logger    *zap.Logger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(inspector *infrastructure.MediaInspector, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{inspector: inspector, logger: logger}
}

// Info handles GET /api/v1/media/info. The requires_credentials field
// of the response must be echoed back as use_credentials on the
// download request so both calls run in the same authentication state.
func (h *MediaHandler) Info(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	info, err := h.inspector.Info(c.Request.Context(), url)
	if err != nil {
		h.logger.Error("Media inspection failed", zap.String("url", url), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, info)
}
