package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facetrust/internal/service"
)

// ExportHandler sirve descargas del dataset normalizado.
type ExportHandler struct {
	logger    *zap.Logger
	dashboard *service.DashboardService
	export    *service.ExportService
}

func NewExportHandler(logger *zap.Logger, dashboard *service.DashboardService, export *service.ExportService) *ExportHandler {
	return &ExportHandler{logger: logger, dashboard: dashboard, export: export}
}

// CSV maneja GET /export/csv.
func (h *ExportHandler) CSV(c *gin.Context) {
	ds, err := h.dashboard.Dataset()
	if err != nil {
		h.logger.Error("export dataset load failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load response data"})
		return
	}

	name := "responses-" + time.Now().UTC().Format("20060102") + ".csv"
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := h.export.WriteCSV(ds, c.Writer); err != nil {
		h.logger.Error("csv export failed", zap.Error(err))
	}
}

// SPSS maneja GET /export/spss.
func (h *ExportHandler) SPSS(c *gin.Context) {
	ds, err := h.dashboard.Dataset()
	if err != nil {
		h.logger.Error("export dataset load failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load response data"})
		return
	}

	name := "responses-spss-" + time.Now().UTC().Format("20060102") + ".zip"
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := h.export.WriteSPSS(ds, c.Writer); err != nil {
		h.logger.Error("spss export failed", zap.Error(err))
	}
}
