package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facetrust/internal/service"
)

// BackupHandler expone creacion, listado y restore de backups.
type BackupHandler struct {
	logger    *zap.Logger
	backups   *service.BackupService
	dashboard *service.DashboardService
}

func NewBackupHandler(logger *zap.Logger, backups *service.BackupService, dashboard *service.DashboardService) *BackupHandler {
	return &BackupHandler{logger: logger, backups: backups, dashboard: dashboard}
}

// Create maneja POST /backups.
func (h *BackupHandler) Create(c *gin.Context) {
	name, count, err := h.backups.Backup()
	if err != nil {
		h.logger.Error("backup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create backup"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": name, "files": count})
}

// List maneja GET /backups.
func (h *BackupHandler) List(c *gin.Context) {
	backups, err := h.backups.List()
	if err != nil {
		h.logger.Error("list backups failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list backups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups})
}

// Restore maneja POST /backups/:name/restore. El restore cambia el
// contenido del directorio de respuestas, asi que el cache se invalida.
func (h *BackupHandler) Restore(c *gin.Context) {
	name := c.Param("name")
	count, err := h.backups.Restore(name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBackupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "backup not found"})
		case errors.Is(err, service.ErrBadBackupName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid backup name"})
		default:
			h.logger.Error("restore failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not restore backup"})
		}
		return
	}

	h.dashboard.InvalidateCache()
	c.JSON(http.StatusOK, gin.H{"name": name, "restored": count})
}
