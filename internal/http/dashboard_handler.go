package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facetrust/internal/service"
)

// DashboardHandler expone los resumenes estadisticos del estudio.
type DashboardHandler struct {
	logger    *zap.Logger
	dashboard *service.DashboardService
}

func NewDashboardHandler(logger *zap.Logger, dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{logger: logger, dashboard: dashboard}
}

// parseFilter arma el filtro comun desde query params:
// participants=P1,P2&views=left,right&from=2025-01-01&to=2025-02-01
func parseFilter(c *gin.Context) *service.Filter {
	filter := &service.Filter{}
	if raw := strings.TrimSpace(c.Query("participants")); raw != "" {
		filter.Participants = strings.Split(raw, ",")
	}
	if raw := strings.TrimSpace(c.Query("views")); raw != "" {
		filter.FaceViews = strings.Split(raw, ",")
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			filter.From = &ts
		}
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			end := ts.Add(24*time.Hour - time.Nanosecond)
			filter.To = &end
		}
	}
	return filter
}

// respondStatsError mapea errores del pipeline a status HTTP. Un campo o
// filtro desconocido es bug del caller (400); un directorio ilegible es
// error de configuracion (500). Archivos individuales malos nunca llegan
// aca: viajan en el load report.
func (h *DashboardHandler) respondStatsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownField),
		errors.Is(err, service.ErrUnknownFaceView),
		errors.Is(err, service.ErrUnknownBucket):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("dashboard request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load response data"})
	}
}

// Summary maneja GET /dashboard/summary.
func (h *DashboardHandler) Summary(c *gin.Context) {
	res, ds, err := h.dashboard.Summary(parseFilter(c))
	if err != nil {
		h.respondStatsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":     newSummaryView(res),
		"load_report": newLoadReportView(ds.Files),
	})
}

// ByView maneja GET /dashboard/by-view.
func (h *DashboardHandler) ByView(c *gin.Context) {
	field := c.DefaultQuery("field", "trust_rating")
	groups, err := h.dashboard.ByFaceView(field, parseFilter(c))
	if err != nil {
		h.respondStatsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"field": field, "by_version": newByViewView(groups)})
}

// Distribution maneja GET /dashboard/distribution.
func (h *DashboardHandler) Distribution(c *gin.Context) {
	field := c.DefaultQuery("field", "trust_rating")
	var edges []float64
	if raw := strings.TrimSpace(c.Query("edges")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bin edges"})
				return
			}
			edges = append(edges, v)
		}
	}
	res, err := h.dashboard.Distribution(field, edges, parseFilter(c))
	if err != nil {
		h.respondStatsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"distribution": newDistributionView(res)})
}

// Trend maneja GET /dashboard/trend.
func (h *DashboardHandler) Trend(c *gin.Context) {
	bucket := c.DefaultQuery("bucket", "day")
	res, err := h.dashboard.Trend(bucket, parseFilter(c))
	if err != nil {
		h.respondStatsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trend": newTrendView(res)})
}

// LoadReport maneja GET /dashboard/load-report.
func (h *DashboardHandler) LoadReport(c *gin.Context) {
	files, err := h.dashboard.LoadReport()
	if err != nil {
		h.respondStatsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"load_report": newLoadReportView(files)})
}
