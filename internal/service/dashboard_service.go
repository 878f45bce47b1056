package service

import (
	"time"

	"go.uber.org/zap"

	"facetrust/internal/domain"
)

// DashboardService corre la pasada completa Scan -> Normalize -> Aggregate
// por request. Cada request es dueno de su propio snapshot de punta a
// punta; el cache es un colaborador inyectado, no estado ambiente.
type DashboardService struct {
	logger       *zap.Logger
	scanner      *DirectoryScanner
	aggregator   *Aggregator
	stats        *StatsEngine
	cache        DatasetCache
	responsesDir string
}

func NewDashboardService(
	logger *zap.Logger,
	scanner *DirectoryScanner,
	aggregator *Aggregator,
	stats *StatsEngine,
	cache DatasetCache,
	responsesDir string,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		logger:       logger,
		scanner:      scanner,
		aggregator:   aggregator,
		stats:        stats,
		cache:        cache,
		responsesDir: responsesDir,
	}
}

// Dataset devuelve el snapshot del directorio actual, reutilizando el cache
// cuando el fingerprint no cambio. Un directorio ilegible es error de
// configuracion y se propaga al caller.
func (s *DashboardService) Dataset() (*domain.AggregatedDataset, error) {
	scan, err := s.scanner.Scan(s.responsesDir)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if ds, ok := s.cache.Get(scan.Fingerprint); ok {
			return ds, nil
		}
	}

	start := time.Now()
	ds := s.aggregator.Aggregate(scan)
	s.logger.Info("dataset aggregated",
		zap.Int("files", len(ds.Files)),
		zap.Int("records", len(ds.Records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if s.cache != nil {
		s.cache.Put(ds)
	}
	return ds, nil
}

// InvalidateCache se llama tras upload/delete/restore de archivos.
func (s *DashboardService) InvalidateCache() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

func (s *DashboardService) Summary(filter *Filter) (SummaryResult, *domain.AggregatedDataset, error) {
	ds, err := s.Dataset()
	if err != nil {
		return SummaryResult{}, nil, err
	}
	res, err := s.stats.OverallSummary(ds, filter)
	return res, ds, err
}

func (s *DashboardService) ByFaceView(field string, filter *Filter) (map[string]GroupStats, error) {
	ds, err := s.Dataset()
	if err != nil {
		return nil, err
	}
	return s.stats.ByFaceView(ds, field, filter)
}

func (s *DashboardService) Distribution(field string, edges []float64, filter *Filter) (DistributionResult, error) {
	ds, err := s.Dataset()
	if err != nil {
		return DistributionResult{}, err
	}
	return s.stats.Distribution(ds, field, edges, filter)
}

func (s *DashboardService) Trend(bucket string, filter *Filter) (TrendResult, error) {
	ds, err := s.Dataset()
	if err != nil {
		return TrendResult{}, err
	}
	return s.stats.TrendOverTime(ds, bucket, filter)
}

func (s *DashboardService) LoadReport() ([]domain.ParticipantFile, error) {
	ds, err := s.Dataset()
	if err != nil {
		return nil, err
	}
	return ds.Files, nil
}
