package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"facetrust/internal/domain"
)

// Aggregator pliega los registros normalizados de todos los archivos en un
// AggregatedDataset inmutable. Cada pasada produce un snapshot nuevo; el
// Statistics Engine recibe una vista de solo lectura.
type Aggregator struct {
	logger *zap.Logger
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger}
}

// Aggregate procesa los archivos en el orden del scanner. Fallas por archivo
// (no se pudo abrir, formato desconocido) se registran en el reporte de
// carga y no cortan la agregacion; fallas por fila solo incrementan el
// contador de descartes del archivo.
func (a *Aggregator) Aggregate(scan ScanResult) *domain.AggregatedDataset {
	ds := &domain.AggregatedDataset{
		Fingerprint: scan.Fingerprint,
		BuiltAt:     time.Now().UTC(),
	}

	seen := make(map[string]bool)
	for _, path := range scan.Paths {
		pf, records := a.loadFile(path)
		for _, rec := range records {
			key := rec.DedupKey()
			if seen[key] {
				// Duplicado exacto entre reintentos del mismo participante.
				continue
			}
			seen[key] = true
			ds.Records = append(ds.Records, rec)
		}
		pf.RecordCount = len(records)
		ds.Files = append(ds.Files, pf)
	}
	return ds
}

func (a *Aggregator) loadFile(path string) (domain.ParticipantFile, []domain.ResponseRecord) {
	pf := domain.ParticipantFile{
		Path:           path,
		DetectedFormat: domain.FormatUnknown,
		LoadStatus:     domain.LoadStatusFailed,
	}

	f, err := os.Open(path)
	if err != nil {
		pf.Error = fmt.Sprintf("open: %v", err)
		a.logger.Warn("response file unreadable", zap.String("path", path), zap.Error(err))
		return pf, nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		pf.Error = fmt.Sprintf("read header: %v", err)
		return pf, nil
	}

	canonical := CanonicalHeader(header)
	pf.DetectedFormat = DetectFormat(canonical)
	if pf.DetectedFormat == domain.FormatUnknown {
		pf.Error = "unknown_format"
		a.logger.Warn("response file format not recognized", zap.String("path", path))
		return pf, nil
	}

	var records []domain.ResponseRecord
	switch pf.DetectedFormat {
	case domain.FormatWide:
		records = a.readWide(reader, canonical, &pf)
	case domain.FormatLong:
		records = a.readLong(reader, canonical, &pf)
	}

	pf.ParticipantID = deriveParticipantID(path, records)
	if pf.DroppedRows > 0 {
		pf.LoadStatus = domain.LoadStatusPartial
	} else {
		pf.LoadStatus = domain.LoadStatusOK
	}
	return pf, records
}

func (a *Aggregator) readWide(reader *csv.Reader, canonical []string, pf *domain.ParticipantFile) []domain.ResponseRecord {
	var records []domain.ResponseRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			pf.DroppedRows++
			continue
		}
		rec, err := NormalizeWideRow(canonical, row)
		if err != nil {
			pf.DroppedRows++
			if errors.Is(err, ErrRowBadTimestamp) {
				pf.DroppedBadTimestamp++
			}
			continue
		}
		records = append(records, rec)
	}
	return records
}

// readLong colapsa filas de pregunta por (participante, cara, vista) en un
// trial logico. El merge es last-write-wins por question_type dentro del
// archivo: cada tupla deberia aparecer una sola vez, asi que el orden no
// importa en datos bien formados; si reaparece, se loguea para auditoria.
func (a *Aggregator) readLong(reader *csv.Reader, canonical []string, pf *domain.ParticipantFile) []domain.ResponseRecord {
	type trialKey struct {
		pid, face, view string
	}
	merged := make(map[trialKey]*domain.ResponseRecord)
	order := make([]trialKey, 0)
	answered := make(map[trialKey]map[string]bool)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			pf.DroppedRows++
			continue
		}
		obs, err := NormalizeLongRow(canonical, row)
		if err != nil {
			pf.DroppedRows++
			if errors.Is(err, ErrRowBadTimestamp) {
				pf.DroppedBadTimestamp++
			}
			continue
		}

		key := trialKey{obs.ParticipantID, obs.FaceID, obs.FaceView}
		rec, ok := merged[key]
		if !ok {
			rec = &domain.ResponseRecord{
				ParticipantID: obs.ParticipantID,
				FaceID:        obs.FaceID,
				FaceView:      obs.FaceView,
				Timestamp:     obs.Timestamp,
				TimestampRaw:  obs.TimestampRaw,
			}
			merged[key] = rec
			order = append(order, key)
			answered[key] = make(map[string]bool)
		}
		if answered[key][obs.QuestionType] {
			a.logger.Debug("duplicate question row overwritten",
				zap.String("path", pf.Path),
				zap.String("participant_id", obs.ParticipantID),
				zap.String("face_id", obs.FaceID),
				zap.String("question_type", obs.QuestionType),
			)
		}
		answered[key][obs.QuestionType] = true

		switch obs.QuestionType {
		case "trust_rating":
			rec.TrustRatingRaw = obs.Response
			rec.TrustRating = nil
			if v, err := strconv.ParseFloat(obs.Response, 64); err == nil {
				rec.TrustRating = &v
			}
		case "masc_choice", "masculinity_choice":
			rec.MasculinityChoice = obs.Response
		case "fem_choice", "femininity_choice":
			rec.FemininityChoice = obs.Response
		case "trial_order", "order_presented":
			if n, err := strconv.Atoi(obs.Response); err == nil {
				rec.TrialOrder = &n
			}
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[obs.QuestionType] = obs.Response
		}
	}

	records := make([]domain.ResponseRecord, 0, len(order))
	for _, key := range order {
		records = append(records, *merged[key])
	}
	return records
}

// deriveParticipantID saca el id del contenido si el archivo es de un solo
// participante, o del nombre de archivo como respaldo.
func deriveParticipantID(path string, records []domain.ResponseRecord) string {
	var pid string
	for _, rec := range records {
		if pid == "" {
			pid = rec.ParticipantID
			continue
		}
		if rec.ParticipantID != pid {
			return ""
		}
	}
	if pid != "" {
		return pid
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
