package service

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"facetrust/internal/domain"
)

// Tabla fija de alias de columna: nombre historico -> nombre canonico.
// Columnas sin alias pasan sin cambios.
var columnAliases = map[string]string{
	"pid":             "participant_id",
	"prolific_pid":    "prolific_pid",
	"image_id":        "face_id",
	"version":         "face_view",
	"order_presented": "trial_order",
	"masc_choice":     "masculinity_choice",
	"fem_choice":      "femininity_choice",
	"trust_q1":        "trust_question_1",
	"trust_q2":        "trust_question_2",
	"trust_q3":        "trust_question_3",
	"pers_q1":         "personality_question_1",
	"pers_q2":         "personality_question_2",
	"pers_q3":         "personality_question_3",
	"pers_q4":         "personality_question_4",
	"pers_q5":         "personality_question_5",
}

// Columnas que identifican cada formato tras aplicar alias.
var (
	longRequiredColumns = []string{"participant_id", "face_id", "face_view", "question_type", "response", "timestamp"}
	wideTrialColumns    = []string{"trust_rating", "masculinity_choice", "femininity_choice"}
)

// Campos fijos de un ResponseRecord en formato wide; lo demas pasa a Extra.
var wideFixedColumns = map[string]bool{
	"participant_id":     true,
	"face_id":            true,
	"face_view":          true,
	"trust_rating":       true,
	"masculinity_choice": true,
	"femininity_choice":  true,
	"trial_order":        true,
	"timestamp":          true,
}

// Layouts de timestamp aceptados en archivos historicos y actuales.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var (
	ErrRowMissingParticipant = errors.New("row missing participant_id")
	ErrRowBadTimestamp       = errors.New("row has unparseable timestamp")
)

// CanonicalHeader aplica la tabla de alias al header crudo, en minusculas.
func CanonicalHeader(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		name = strings.TrimPrefix(name, "\ufeff")
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		out[i] = name
	}
	return out
}

// DetectFormat clasifica un archivo por su header ya canonizado.
// Long exige el set completo de columnas de observacion; wide exige la
// clave (participante, cara, vista, timestamp) y al menos una columna de
// trial reconocible. Todo lo demas es Unknown y el archivo se salta.
func DetectFormat(canonical []string) domain.SourceFormat {
	present := make(map[string]bool, len(canonical))
	for _, c := range canonical {
		present[c] = true
	}

	isLong := true
	for _, col := range longRequiredColumns {
		if !present[col] {
			isLong = false
			break
		}
	}
	if isLong {
		return domain.FormatLong
	}

	if present["participant_id"] && present["face_id"] && present["face_view"] && present["timestamp"] {
		for _, col := range wideTrialColumns {
			if present[col] {
				return domain.FormatWide
			}
		}
	}
	return domain.FormatUnknown
}

// NormalizeFaceView mapea el valor crudo a una vista canonica. Match por
// substring sin distinguir mayusculas; valores no reconocidos se conservan
// como string crudo en minusculas, nunca son error.
func NormalizeFaceView(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(v, "left"):
		return domain.FaceViewLeft
	case strings.Contains(v, "right"):
		return domain.FaceViewRight
	case strings.Contains(v, "full"):
		return domain.FaceViewFull
	case v == domain.FaceViewToggle, v == domain.FaceViewSurvey:
		return v
	default:
		return v
	}
}

// Observation es una fila long: una respuesta a una pregunta puntual.
// El Aggregator colapsa observaciones por (participante, cara, vista).
type Observation struct {
	ParticipantID string
	FaceID        string
	FaceView      string
	QuestionType  string
	Response      string
	Timestamp     time.Time
	TimestampRaw  string
}

// rowMap junta header canonico y celdas de una fila CSV.
func rowMap(canonical []string, row []string) map[string]string {
	m := make(map[string]string, len(canonical))
	for i, col := range canonical {
		if i < len(row) {
			m[col] = strings.TrimSpace(row[i])
		}
	}
	return m
}

// NormalizeWideRow convierte una fila wide en un ResponseRecord.
// Filas sin participant_id o con timestamp no parseable se descartan con
// error; descartar una fila nunca aborta el archivo.
func NormalizeWideRow(canonical []string, row []string) (domain.ResponseRecord, error) {
	cols := rowMap(canonical, row)

	pid := cols["participant_id"]
	if pid == "" {
		return domain.ResponseRecord{}, ErrRowMissingParticipant
	}
	ts, err := parseTimestamp(cols["timestamp"])
	if err != nil {
		return domain.ResponseRecord{}, ErrRowBadTimestamp
	}

	rec := domain.ResponseRecord{
		ParticipantID:     pid,
		FaceID:            cols["face_id"],
		FaceView:          NormalizeFaceView(cols["face_view"]),
		TrustRatingRaw:    cols["trust_rating"],
		MasculinityChoice: cols["masculinity_choice"],
		FemininityChoice:  cols["femininity_choice"],
		Timestamp:         ts,
		TimestampRaw:      cols["timestamp"],
	}
	// Valores fuera de rango se conservan tal cual; solo lo no numerico
	// queda con TrustRating nil y se excluye despues en el calculo.
	if v, err := strconv.ParseFloat(rec.TrustRatingRaw, 64); err == nil {
		rec.TrustRating = &v
	}
	if n, err := strconv.Atoi(cols["trial_order"]); err == nil {
		rec.TrialOrder = &n
	}

	for _, col := range canonical {
		if wideFixedColumns[col] {
			continue
		}
		if val := cols[col]; val != "" {
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[col] = val
		}
	}
	return rec, nil
}

// NormalizeLongRow convierte una fila long en una Observation.
// Misma politica de descarte por fila que el formato wide.
func NormalizeLongRow(canonical []string, row []string) (Observation, error) {
	cols := rowMap(canonical, row)

	pid := cols["participant_id"]
	if pid == "" {
		return Observation{}, ErrRowMissingParticipant
	}
	ts, err := parseTimestamp(cols["timestamp"])
	if err != nil {
		return Observation{}, ErrRowBadTimestamp
	}

	return Observation{
		ParticipantID: pid,
		FaceID:        cols["face_id"],
		FaceView:      NormalizeFaceView(cols["face_view"]),
		QuestionType:  strings.ToLower(cols["question_type"]),
		Response:      cols["response"],
		Timestamp:     ts,
		TimestampRaw:  cols["timestamp"],
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrRowBadTimestamp
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, ErrRowBadTimestamp
}
