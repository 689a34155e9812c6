package album

import (
	"errors"
	"net/http"

	"github.com/abduss/filehub/internal/logger"
	"github.com/abduss/filehub/internal/objectstore"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the album management endpoints onto group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/albums", handler.createAlbum)
	group.GET("/albums", handler.listAlbums)
	group.GET("/albums/:id", handler.getAlbum)
	group.DELETE("/albums/:id", handler.deleteAlbum)
	group.POST("/albums/:id/remove-file", handler.removeFile)
}

// RegisterSharedRoutes mounts the public share code endpoint onto group.
func RegisterSharedRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.GET("/shared/:code", handler.sharedAlbum)
}

type httpHandler struct {
	service *Service
}

type createAlbumRequest struct {
	Name     string   `json:"name" binding:"required"`
	FileKeys []string `json:"file_keys"`
}

type removeFileRequest struct {
	FileKey string `json:"file_key" binding:"required"`
}

func (h *httpHandler) createAlbum(c *gin.Context) {
	var req createAlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.service.Create(c.Request.Context(), req.Name, req.FileKeys)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *httpHandler) listAlbums(c *gin.Context) {
	albums, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"albums": albums})
}

func (h *httpHandler) getAlbum(c *gin.Context) {
	id, ok := albumID(c)
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *httpHandler) deleteAlbum(c *gin.Context) {
	id, ok := albumID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) removeFile(c *gin.Context) {
	id, ok := albumID(c)
	if !ok {
		return
	}

	var req removeFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.service.RemoveMember(c.Request.Context(), id, req.FileKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *httpHandler) sharedAlbum(c *gin.Context) {
	view, err := h.service.SharedView(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func albumID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid album id"})
		return uuid.Nil, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAlbumNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "album not found"})
	case errors.Is(err, ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": "album name already exists"})
	case errors.Is(err, ErrPersistenceUnavailable):
		logger.FromContext(c.Request.Context()).Error("album persistence failure", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "album storage unavailable"})
	case errors.Is(err, objectstore.ErrUnavailable):
		logger.FromContext(c.Request.Context()).Error("object store failure", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "object store unavailable"})
	default:
		logger.FromContext(c.Request.Context()).Error("album request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
