package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facetrust/internal/service"
)

// maxUploadBytes limita el tamano de un CSV subido.
const maxUploadBytes = 20 << 20

// FilesHandler expone upload, listado y borrado de archivos de respuestas.
type FilesHandler struct {
	logger    *zap.Logger
	files     *service.FilesService
	dashboard *service.DashboardService
}

func NewFilesHandler(logger *zap.Logger, files *service.FilesService, dashboard *service.DashboardService) *FilesHandler {
	return &FilesHandler{logger: logger, files: files, dashboard: dashboard}
}

// Upload maneja POST /files (multipart, campo "file").
func (h *FilesHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		h.logger.Error("read upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read upload"})
		return
	}

	name := filepath.Base(fileHeader.Filename)
	format, err := h.files.Save(name, content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBadFileName), errors.Is(err, service.ErrNotCSV):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUnknownCSVFormat):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "csv format not recognized"})
		default:
			h.logger.Error("save upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save file"})
		}
		return
	}

	h.dashboard.InvalidateCache()
	c.JSON(http.StatusCreated, gin.H{"name": name, "format": format})
}

// List maneja GET /files: el load report archivo por archivo.
func (h *FilesHandler) List(c *gin.Context) {
	files, err := h.dashboard.LoadReport()
	if err != nil {
		h.logger.Error("list files failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load response data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// Delete maneja DELETE /files/:name.
func (h *FilesHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.files.Delete(name); err != nil {
		switch {
		case errors.Is(err, service.ErrBadFileName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		case errors.Is(err, service.ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		default:
			h.logger.Error("delete file failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete file"})
		}
		return
	}

	h.dashboard.InvalidateCache()
	c.Status(http.StatusNoContent)
}
