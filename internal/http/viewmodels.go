package http

import (
	"math"
	"strconv"

	"facetrust/internal/domain"
	"facetrust/internal/service"
)

// Adaptador de presentacion: da forma a la salida del Statistics Engine
// para la capa de charts y HTML. El redondeo a 2 decimales ocurre aca y
// solo aca; mean/sd indefinidos se serializan como null, nunca como 0.

type summaryView struct {
	TotalParticipants    int      `json:"total_participants"`
	TotalResponses       int      `json:"total_responses"`
	ValidN               int      `json:"valid_n"`
	ExcludedInvalidCount int      `json:"excluded_invalid_count"`
	MeanTrust            *float64 `json:"mean_trust"`
	SDTrust              *float64 `json:"sd_trust"`
}

type groupStatsView struct {
	Count int      `json:"count"`
	Mean  *float64 `json:"mean"`
	SD    *float64 `json:"sd"`
}

type distributionView struct {
	Field      string    `json:"field"`
	Edges      []float64 `json:"edges"`
	Labels     []string  `json:"labels"`
	Counts     []int     `json:"counts"`
	ValidN     int       `json:"valid_n"`
	OutOfRange int       `json:"out_of_range"`
}

type trendPointView struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type trendView struct {
	Bucket   string           `json:"bucket"`
	Points   []trendPointView `json:"points"`
	Excluded int              `json:"excluded"`
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}

func newSummaryView(res service.SummaryResult) summaryView {
	return summaryView{
		TotalParticipants:    res.TotalParticipants,
		TotalResponses:       res.TotalResponses,
		ValidN:               res.ValidN,
		ExcludedInvalidCount: res.ExcludedInvalidCount,
		MeanTrust:            round2(res.Mean),
		SDTrust:              round2(res.SD),
	}
}

func newByViewView(groups map[string]service.GroupStats) map[string]groupStatsView {
	out := make(map[string]groupStatsView, len(groups))
	for view, g := range groups {
		out[view] = groupStatsView{
			Count: g.Count,
			Mean:  round2(g.Mean),
			SD:    round2(g.SD),
		}
	}
	return out
}

func newDistributionView(res service.DistributionResult) distributionView {
	view := distributionView{
		Field:      res.Field,
		Edges:      res.Edges,
		Counts:     res.Counts,
		ValidN:     res.ValidN,
		OutOfRange: res.OutOfRange,
	}
	// Labels estilo chart: un label por bin, el borde inferior.
	for i := 0; i+1 < len(res.Edges); i++ {
		label := trimFloat(res.Edges[i])
		view.Labels = append(view.Labels, label)
	}
	return view
}

func newTrendView(res service.TrendResult) trendView {
	view := trendView{Bucket: res.Bucket, Excluded: res.ExcludedNoOrigin}
	for _, b := range res.Buckets {
		view.Points = append(view.Points, trendPointView{
			Date:  b.Start.Format("2006-01-02"),
			Count: b.Count,
		})
	}
	return view
}

type loadReportView struct {
	Files       []domain.ParticipantFile `json:"files"`
	FailedCount int                      `json:"failed_count"`
	Notice      string                   `json:"notice,omitempty"`
}

func newLoadReportView(files []domain.ParticipantFile) loadReportView {
	view := loadReportView{Files: files}
	for _, f := range files {
		if f.LoadStatus == domain.LoadStatusFailed {
			view.FailedCount++
		}
	}
	if view.FailedCount > 0 {
		view.Notice = "some response files could not be loaded; statistics cover the remaining files"
	}
	return view
}

func trimFloat(v float64) string {
	if v == math.Trunc(v) {
		return strconv.Itoa(int(v))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
