package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"facetrust/internal/domain"
)

// StatsEngine calcula resumenes sobre un AggregatedDataset. Nunca muta el
// dataset ni falla con datos vacios o malformados: los resultados llevan
// metadata (valid_n, excluidos) que explica lo que falta. Solo un request
// estructuralmente invalido (campo o filtro desconocido) es error.
type StatsEngine struct {
	logger *zap.Logger
}

func NewStatsEngine(logger *zap.Logger) *StatsEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsEngine{logger: logger}
}

var (
	ErrUnknownField    = errors.New("unknown numeric field")
	ErrUnknownFaceView = errors.New("unknown face_view filter value")
	ErrUnknownBucket   = errors.New("unknown trend bucket")
)

// Filter restringe los registros considerados por cada operacion.
type Filter struct {
	Participants []string
	FaceViews    []string
	From         *time.Time
	To           *time.Time
}

// Validate normaliza los valores de face_view del filtro y rechaza los que
// no corresponden a ninguna vista conocida: eso es un bug del caller.
func (f *Filter) Validate() error {
	for i, v := range f.FaceViews {
		norm := NormalizeFaceView(v)
		if !domain.IsKnownFaceView(norm) {
			return fmt.Errorf("%w: %q", ErrUnknownFaceView, v)
		}
		f.FaceViews[i] = norm
	}
	return nil
}

func (f *Filter) matches(rec domain.ResponseRecord) bool {
	if f == nil {
		return true
	}
	if len(f.Participants) > 0 {
		found := false
		for _, p := range f.Participants {
			if p == rec.ParticipantID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.FaceViews) > 0 {
		found := false
		for _, v := range f.FaceViews {
			if v == rec.FaceView {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && rec.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && rec.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// SummaryResult son los campos de overall_summary. Mean y SD son nil cuando
// no hay valores validos, nunca 0 ni NaN disfrazado de dato real.
type SummaryResult struct {
	TotalParticipants    int
	TotalResponses       int
	ValidN               int
	ExcludedInvalidCount int
	Mean                 *float64
	SD                   *float64
}

// GroupStats es el resumen de un campo numerico dentro de un grupo.
type GroupStats struct {
	Count int
	Mean  *float64
	SD    *float64
}

// DistributionResult es un histograma con bordes de bin explicitos.
// Counts tiene len(Edges)-1 entradas.
type DistributionResult struct {
	Field      string
	Edges      []float64
	Counts     []int
	ValidN     int
	OutOfRange int
}

// TrendBucket es el conteo de respuestas en un intervalo de tiempo.
type TrendBucket struct {
	Start time.Time
	Count int
}

// TrendResult agrupa respuestas por dia o semana.
type TrendResult struct {
	Bucket           string
	Buckets          []TrendBucket
	ExcludedNoOrigin int
}

// numericValue extrae el campo numerico pedido; ok=false si el registro no
// tiene valor valido para ese campo.
func numericValue(rec domain.ResponseRecord, field string) (float64, bool, error) {
	switch field {
	case "trust_rating":
		if rec.TrustRating == nil {
			return 0, false, nil
		}
		return *rec.TrustRating, true, nil
	case "trial_order":
		if rec.TrialOrder == nil {
			return 0, false, nil
		}
		return float64(*rec.TrialOrder), true, nil
	default:
		return 0, false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

// OverallSummary calcula participantes distintos, respuestas totales y
// media/desviacion muestral (n-1) del trust_rating sobre valores numericos.
// Sin redondeo: eso ocurre recien en la capa de presentacion.
func (e *StatsEngine) OverallSummary(ds *domain.AggregatedDataset, filter *Filter) (SummaryResult, error) {
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return SummaryResult{}, err
		}
	}

	res := SummaryResult{}
	participants := make(map[string]struct{})
	var values []float64
	for _, rec := range ds.Records {
		if !filter.matches(rec) {
			continue
		}
		res.TotalResponses++
		participants[rec.ParticipantID] = struct{}{}
		if rec.TrustRating != nil {
			values = append(values, *rec.TrustRating)
		} else {
			res.ExcludedInvalidCount++
		}
	}
	res.TotalParticipants = len(participants)
	res.ValidN = len(values)
	res.Mean, res.SD = meanSD(values)
	return res, nil
}

// ByFaceView agrupa por vista y resume el campo pedido. Las cinco vistas
// conocidas aparecen siempre, con count=0 y mean/sd nil cuando no hay
// datos; vistas crudas no reconocidas se reportan bajo su propio label
// para que nada desaparezca en silencio.
func (e *StatsEngine) ByFaceView(ds *domain.AggregatedDataset, field string, filter *Filter) (map[string]GroupStats, error) {
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, err
		}
	}
	if _, _, err := numericValue(domain.ResponseRecord{}, field); err != nil {
		return nil, err
	}

	groups := make(map[string][]float64)
	counts := make(map[string]int)
	for _, view := range domain.KnownFaceViews {
		groups[view] = nil
	}
	for _, rec := range ds.Records {
		if !filter.matches(rec) {
			continue
		}
		counts[rec.FaceView]++
		v, ok, _ := numericValue(rec, field)
		if ok {
			groups[rec.FaceView] = append(groups[rec.FaceView], v)
		}
	}

	out := make(map[string]GroupStats, len(groups))
	for view, values := range groups {
		mean, sd := meanSD(values)
		out[view] = GroupStats{Count: len(values), Mean: mean, SD: sd}
	}
	// Vistas presentes en los datos pero sin valores numericos del campo.
	for view := range counts {
		if _, ok := out[view]; !ok {
			out[view] = GroupStats{}
		}
	}
	return out, nil
}

// Distribution arma el histograma del campo sobre los bordes dados; sin
// bordes usa bins enteros del min al max observado, inclusive. Valores
// fuera de rango caen en el bin de borde mas cercano y se loguean.
func (e *StatsEngine) Distribution(ds *domain.AggregatedDataset, field string, edges []float64, filter *Filter) (DistributionResult, error) {
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return DistributionResult{}, err
		}
	}
	if _, _, err := numericValue(domain.ResponseRecord{}, field); err != nil {
		return DistributionResult{}, err
	}

	var values []float64
	for _, rec := range ds.Records {
		if !filter.matches(rec) {
			continue
		}
		if v, ok, _ := numericValue(rec, field); ok {
			values = append(values, v)
		}
	}

	res := DistributionResult{Field: field, ValidN: len(values)}
	if len(values) == 0 {
		res.Edges = edges
		if len(edges) > 1 {
			res.Counts = make([]int, len(edges)-1)
		}
		return res, nil
	}

	if len(edges) < 2 {
		lo := math.Floor(values[0])
		hi := math.Ceil(values[0])
		for _, v := range values {
			lo = math.Min(lo, math.Floor(v))
			hi = math.Max(hi, math.Ceil(v))
		}
		if hi == lo {
			hi = lo + 1
		}
		edges = nil
		for x := lo; x <= hi; x++ {
			edges = append(edges, x)
		}
	}
	res.Edges = edges
	res.Counts = make([]int, len(edges)-1)

	for _, v := range values {
		if v < edges[0] || v > edges[len(edges)-1] {
			res.OutOfRange++
			e.logger.Info("value outside histogram range clamped to edge bin",
				zap.String("field", field), zap.Float64("value", v))
		}
		// Bins [edge_i, edge_i+1); el ultimo bin incluye su borde superior.
		bin := len(res.Counts) - 1
		for i := 0; i < len(res.Counts); i++ {
			if v < edges[i+1] {
				bin = i
				break
			}
		}
		res.Counts[bin]++
	}
	return res, nil
}

// TrendOverTime cuenta respuestas por bucket de tiempo (day|week).
// Registros cuyo timestamp no se pudo parsear nunca llegan aca (se
// descartaron al normalizar); ExcludedNoOrigin reporta solo esos
// descartes por timestamp, no los demas motivos de descarte de fila.
func (e *StatsEngine) TrendOverTime(ds *domain.AggregatedDataset, bucket string, filter *Filter) (TrendResult, error) {
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return TrendResult{}, err
		}
	}
	if bucket != "day" && bucket != "week" {
		return TrendResult{}, fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
	}

	counts := make(map[time.Time]int)
	for _, rec := range ds.Records {
		if !filter.matches(rec) {
			continue
		}
		start := bucketStart(rec.Timestamp, bucket)
		counts[start]++
	}

	res := TrendResult{Bucket: bucket}
	for start, n := range counts {
		res.Buckets = append(res.Buckets, TrendBucket{Start: start, Count: n})
	}
	sort.Slice(res.Buckets, func(i, j int) bool {
		return res.Buckets[i].Start.Before(res.Buckets[j].Start)
	})
	for _, pf := range ds.Files {
		res.ExcludedNoOrigin += pf.DroppedBadTimestamp
	}
	return res, nil
}

func bucketStart(ts time.Time, bucket string) time.Time {
	ts = ts.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	if bucket == "day" {
		return day
	}
	// Semana ISO empezando lunes.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// meanSD devuelve media y desviacion muestral (n-1) o nil cuando no estan
// definidas: sin valores no hay media; con n=1 la SD es indefinida, se
// reporta nil y no 0.
func meanSD(values []float64) (*float64, *float64) {
	if len(values) == 0 {
		return nil, nil
	}
	mean := stat.Mean(values, nil)
	var sd *float64
	if len(values) > 1 {
		v := stat.StdDev(values, nil)
		if !math.IsNaN(v) {
			sd = &v
		}
	}
	return &mean, sd
}
