package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abduss/filehub/internal/album"
	"github.com/abduss/filehub/internal/logger"
	"github.com/abduss/filehub/internal/objectstore"
	"github.com/abduss/filehub/internal/quota"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRoutes mounts file operations under /files on group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	files := group.Group("/files")
	{
		files.POST("/upload", handler.uploadFile)
		files.POST("/presign-upload", handler.presignUpload)
		files.GET("", handler.listFiles)
		files.GET("/thumbnails", handler.listThumbnails)
		files.GET("/stats", handler.stats)
		files.GET("/download/*key", handler.downloadFile)
		files.GET("/preview-url/*key", handler.previewURL)
		files.DELETE("/delete/*key", handler.deleteFile)
	}
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) uploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	limit := h.service.MaxUploadBytes()
	if fileHeader.Size > limit {
		writeError(c, ErrFileTooLarge)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file payload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file payload"})
		return
	}
	if int64(len(data)) > limit {
		writeError(c, ErrFileTooLarge)
		return
	}

	key, err := h.service.Upload(c.Request.Context(), fileHeader.Filename, detectContentType(fileHeader.Header.Get("Content-Type")), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "size": len(data)})
}

func (h *httpHandler) presignUpload(c *gin.Context) {
	target, err := h.service.PresignedUploadTarget(c.Request.Context(), c.Query("filename"), c.Query("type"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, target)
}

func (h *httpHandler) listFiles(c *gin.Context) {
	keys, err := h.service.ListContent(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": keys})
}

func (h *httpHandler) listThumbnails(c *gin.Context) {
	keys, err := h.service.ListThumbnails(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thumbnails": keys})
}

func (h *httpHandler) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	key, ok := objectKey(c)
	if !ok {
		return
	}

	data, err := h.service.Download(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", displayName(key)))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (h *httpHandler) previewURL(c *gin.Context) {
	key, ok := objectKey(c)
	if !ok {
		return
	}

	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
		ttl = parsed
	}

	url, err := h.service.PreviewURL(c.Request.Context(), key, ttl)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	key, ok := objectKey(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), key); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// objectKey reads the wildcard key parameter, which gin reports with a leading slash.
func objectKey(c *gin.Context) (string, bool) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object key is required"})
		return "", false
	}
	return key, true
}

// displayName strips the upload token from the last path segment.
func displayName(key string) string {
	return strings.TrimPrefix(objectstore.ThumbnailKey(key), objectstore.ThumbnailPrefix)
}

func detectContentType(header string) string {
	if header != "" {
		return header
	}
	return "application/octet-stream"
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmptyFilename):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnsupportedContentType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, ErrFileTooLarge), errors.Is(err, quota.ErrQuotaExceeded):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, objectstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case errors.Is(err, objectstore.ErrUnavailable):
		logger.FromContext(c.Request.Context()).Error("object store failure", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "object store unavailable"})
	case errors.Is(err, album.ErrPersistenceUnavailable):
		// The object is already deleted; only album pruning failed.
		logger.FromContext(c.Request.Context()).Error("album prune failure", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "album storage unavailable"})
	default:
		logger.FromContext(c.Request.Context()).Error("file request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process file request"})
	}
}
