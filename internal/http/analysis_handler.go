package http

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facetrust/internal/service"
	"facetrust/internal/statsproc"
)

// AnalysisHandler corre tests inferenciales via el backend estadistico
// externo. El dashboard no interpreta la salida: la devuelve tal cual.
type AnalysisHandler struct {
	logger    *zap.Logger
	dashboard *service.DashboardService
	export    *service.ExportService
	backend   statsproc.StatsBackend
}

func NewAnalysisHandler(
	logger *zap.Logger,
	dashboard *service.DashboardService,
	export *service.ExportService,
	backend statsproc.StatsBackend,
) *AnalysisHandler {
	return &AnalysisHandler{
		logger:    logger,
		dashboard: dashboard,
		export:    export,
		backend:   backend,
	}
}

// Run maneja POST /analysis/run.
func (h *AnalysisHandler) Run(c *gin.Context) {
	var spec statsproc.TestSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		h.logger.Warn("invalid analysis request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := spec.Valid(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.backend == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "statistical analysis unavailable"})
		return
	}

	ds, err := h.dashboard.Dataset()
	if err != nil {
		h.logger.Error("analysis dataset load failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load response data"})
		return
	}

	var data bytes.Buffer
	if err := h.export.WriteCSV(ds, &data); err != nil {
		h.logger.Error("analysis dataset encode failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not prepare dataset"})
		return
	}

	out, err := h.backend.Run(c.Request.Context(), spec, data.Bytes())
	if err != nil {
		switch {
		case errors.Is(err, statsproc.ErrUnknownTest), errors.Is(err, statsproc.ErrBadColumn):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, statsproc.ErrBackendUnavailable):
			// El resto del dashboard sigue funcionando aunque el
			// interprete no este instalado o falle.
			h.logger.Warn("stats backend unavailable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "statistical analysis unavailable"})
		default:
			h.logger.Error("analysis failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not run analysis"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": out})
}
