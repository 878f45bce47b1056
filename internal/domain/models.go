package domain

import (
	"sort"
	"strings"
	"time"
)

// SourceFormat identifica el layout de un archivo de respuestas.
type SourceFormat string

const (
	FormatWide    SourceFormat = "wide"
	FormatLong    SourceFormat = "long"
	FormatUnknown SourceFormat = "unknown"
)

// Vistas de estimulo conocidas. Valores no reconocidos se conservan como
// string crudo en minusculas y quedan fuera de agregaciones por vista.
const (
	FaceViewLeft   = "left"
	FaceViewRight  = "right"
	FaceViewFull   = "full"
	FaceViewToggle = "toggle"
	FaceViewSurvey = "survey"
)

// KnownFaceViews lista las vistas con semantica propia, en orden estable.
var KnownFaceViews = []string{FaceViewLeft, FaceViewRight, FaceViewFull, FaceViewToggle, FaceViewSurvey}

// IsKnownFaceView indica si el valor corresponde a una vista reconocida.
func IsKnownFaceView(view string) bool {
	for _, v := range KnownFaceViews {
		if v == view {
			return true
		}
	}
	return false
}

// ResponseRecord es un trial calificado por un participante, ya normalizado.
// TrustRating queda nil cuando falta (filas survey) o cuando el valor crudo
// no es numerico; el texto original se conserva en TrustRatingRaw.
type ResponseRecord struct {
	ParticipantID     string            `json:"participant_id"`
	FaceID            string            `json:"face_id"`
	FaceView          string            `json:"face_view"`
	TrustRating       *float64          `json:"trust_rating,omitempty"`
	TrustRatingRaw    string            `json:"trust_rating_raw,omitempty"`
	MasculinityChoice string            `json:"masculinity_choice,omitempty"`
	FemininityChoice  string            `json:"femininity_choice,omitempty"`
	TrialOrder        *int              `json:"trial_order,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
	TimestampRaw      string            `json:"timestamp_raw,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// DedupKey identifica un registro completo: clave logica, timestamp y todos
// los campos de pregunta. Dos registros con la misma clave son duplicados
// exactos y colapsan a uno.
func (r ResponseRecord) DedupKey() string {
	parts := []string{
		r.ParticipantID,
		r.FaceID,
		r.FaceView,
		r.TimestampRaw,
		r.TrustRatingRaw,
		r.MasculinityChoice,
		r.FemininityChoice,
	}
	extraKeys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		parts = append(parts, k+"="+r.Extra[k])
	}
	return strings.Join(parts, "\x1f")
}

// Estados de carga por archivo.
const (
	LoadStatusOK      = "ok"
	LoadStatusPartial = "partial"
	LoadStatusFailed  = "failed"
)

// ParticipantFile describe el resultado de cargar un archivo fuente.
// DroppedRows cuenta todo descarte de fila; DroppedBadTimestamp es el
// subconjunto descartado solo por timestamp imparseable.
type ParticipantFile struct {
	Path                string       `json:"path"`
	DetectedFormat      SourceFormat `json:"detected_format"`
	ParticipantID       string       `json:"participant_id,omitempty"`
	LoadStatus          string       `json:"load_status"`
	Error               string       `json:"error,omitempty"`
	DroppedRows         int          `json:"dropped_rows"`
	DroppedBadTimestamp int          `json:"dropped_bad_timestamp"`
	RecordCount         int          `json:"record_count"`
}

// AggregatedDataset es la union inmutable de todos los registros cargados
// en una pasada, mas el reporte de carga por archivo. Fingerprint identifica
// el snapshot del directorio del que se construyo.
type AggregatedDataset struct {
	Records     []ResponseRecord  `json:"records"`
	Files       []ParticipantFile `json:"files"`
	Fingerprint string            `json:"fingerprint"`
	BuiltAt     time.Time         `json:"built_at"`
}

// TotalParticipants cuenta participant_id distintos, no archivos: un
// participante puede tener mas de un archivo por reintentos.
func (d *AggregatedDataset) TotalParticipants() int {
	seen := make(map[string]struct{}, len(d.Records))
	for _, r := range d.Records {
		seen[r.ParticipantID] = struct{}{}
	}
	return len(seen)
}
