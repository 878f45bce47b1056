package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facetrust/internal/service"
	"facetrust/internal/statsproc"
)

func newTestDashboard(t *testing.T, files map[string]string) *service.DashboardService {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	logger := zap.NewNop()
	return service.NewDashboardService(
		logger,
		service.NewDirectoryScanner(),
		service.NewAggregator(logger),
		service.NewStatsEngine(logger),
		service.NewMemoryDatasetCache(time.Minute),
		dir,
	)
}

const wideFixture = "participant_id,face_id,face_view,trust_rating,timestamp\n" +
	"P1,F1,left,4,2025-03-10T10:00:00\n" +
	"P1,F2,right,6,2025-03-10T10:01:00\n" +
	"P2,F1,left,5,2025-03-11T09:00:00\n" +
	"P2,F3,survey,N/A,2025-03-11T09:01:00\n"

func TestDashboardSummaryEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dash := newTestDashboard(t, map[string]string{"responses.csv": wideFixture})
	handler := NewDashboardHandler(zap.NewNop(), dash)

	r := gin.New()
	r.GET("/dashboard/summary", handler.Summary)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Summary summaryView `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Summary.TotalParticipants != 2 || body.Summary.TotalResponses != 4 {
		t.Fatalf("unexpected totals: %+v", body.Summary)
	}
	if body.Summary.ValidN != 3 || body.Summary.ExcludedInvalidCount != 1 {
		t.Fatalf("unexpected valid counts: %+v", body.Summary)
	}
	if body.Summary.MeanTrust == nil || *body.Summary.MeanTrust != 5 {
		t.Fatalf("unexpected mean: %+v", body.Summary.MeanTrust)
	}
}

// Un directorio de respuestas que existe pero esta vacio es un estado
// normal (estudio recien arrancado): el dashboard responde 200 con
// totales en cero y media nula, no un error.
func TestDashboardSummary_EmptyDirectory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dash := newTestDashboard(t, nil)
	handler := NewDashboardHandler(zap.NewNop(), dash)

	r := gin.New()
	r.GET("/dashboard/summary", handler.Summary)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty directory, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Summary summaryView `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Summary.TotalParticipants != 0 || body.Summary.TotalResponses != 0 {
		t.Fatalf("expected zeroed totals, got %+v", body.Summary)
	}
	if body.Summary.MeanTrust != nil {
		t.Fatalf("expected null mean without data, got %v", *body.Summary.MeanTrust)
	}
}

func TestDashboardSummary_FilterByView(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dash := newTestDashboard(t, map[string]string{"responses.csv": wideFixture})
	handler := NewDashboardHandler(zap.NewNop(), dash)

	r := gin.New()
	r.GET("/dashboard/summary", handler.Summary)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/summary?views=left", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Summary summaryView `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Summary.TotalResponses != 2 {
		t.Fatalf("expected 2 left responses, got %+v", body.Summary)
	}
}

func TestDashboardSummary_UnknownViewIs400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dash := newTestDashboard(t, map[string]string{"responses.csv": wideFixture})
	handler := NewDashboardHandler(zap.NewNop(), dash)

	r := gin.New()
	r.GET("/dashboard/summary", handler.Summary)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/summary?views=sideways", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDashboardByViewEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dash := newTestDashboard(t, map[string]string{"responses.csv": wideFixture})
	handler := NewDashboardHandler(zap.NewNop(), dash)

	r := gin.New()
	r.GET("/dashboard/by-view", handler.ByView)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/by-view", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ByVersion map[string]groupStatsView `json:"by_version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	left := body.ByVersion["left"]
	if left.Count != 2 || left.Mean == nil || *left.Mean != 4.5 {
		t.Fatalf("unexpected left group: %+v", left)
	}
	// Vistas sin datos igual aparecen, con mean null.
	if _, ok := body.ByVersion["toggle"]; !ok {
		t.Fatalf("expected toggle view present: %v", body.ByVersion)
	}

	req = httptest.NewRequest(http.MethodGet, "/dashboard/by-view?field=reaction_time", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestDashboardTrendEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dash := newTestDashboard(t, map[string]string{"responses.csv": wideFixture})
	handler := NewDashboardHandler(zap.NewNop(), dash)

	r := gin.New()
	r.GET("/dashboard/trend", handler.Trend)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/trend?bucket=day", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Trend trendView `json:"trend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Trend.Points) != 2 || body.Trend.Points[0].Date != "2025-03-10" {
		t.Fatalf("unexpected trend: %+v", body.Trend)
	}

	req = httptest.NewRequest(http.MethodGet, "/dashboard/trend?bucket=month", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown bucket, got %d", rec.Code)
	}
}

func TestDashboardLoadReportEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dash := newTestDashboard(t, map[string]string{
		"good.csv": wideFixture,
		"bad.csv":  "foo,bar\n1,2\n",
	})
	handler := NewDashboardHandler(zap.NewNop(), dash)

	r := gin.New()
	r.GET("/dashboard/load-report", handler.LoadReport)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/load-report", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		LoadReport loadReportView `json:"load_report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.LoadReport.Files) != 2 || body.LoadReport.FailedCount != 1 {
		t.Fatalf("unexpected load report: %+v", body.LoadReport)
	}
	if body.LoadReport.Notice == "" {
		t.Fatal("expected notice when a file failed to load")
	}
}

func TestAnalysisEndpoint_WithMockBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dash := newTestDashboard(t, map[string]string{"responses.csv": wideFixture})
	stat := 0.5
	p := 0.03
	mock := &statsproc.MockBackend{Output: statsproc.AnalysisOutput{Test: "correlation", Statistic: &stat, PValue: &p}}
	handler := NewAnalysisHandler(zap.NewNop(), dash, service.NewExportService(), mock)

	r := gin.New()
	r.POST("/analysis/run", handler.Run)

	body := `{"test":"correlation","outcome":"trust_rating","predictors":["trial_order"]}`
	req := httptest.NewRequest(http.MethodPost, "/analysis/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Result statsproc.AnalysisOutput `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Result.PValue == nil || *out.Result.PValue != 0.03 {
		t.Fatalf("unexpected result: %+v", out.Result)
	}
}

func TestAnalysisEndpoint_BackendDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dash := newTestDashboard(t, map[string]string{"responses.csv": wideFixture})
	mock := &statsproc.MockBackend{Err: statsproc.ErrBackendUnavailable}
	handler := NewAnalysisHandler(zap.NewNop(), dash, service.NewExportService(), mock)

	r := gin.New()
	r.POST("/analysis/run", handler.Run)

	body := `{"test":"anova","outcome":"trust_rating","group_by":"face_view"}`
	req := httptest.NewRequest(http.MethodPost, "/analysis/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
