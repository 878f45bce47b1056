package service

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"facetrust/internal/domain"
)

// ExportService serializa el dataset agregado para descarga: CSV plano en
// layout long normalizado, o paquete SPSS (csv de datos + sintaxis .sps
// que define variables y labels; SPSS abre la sintaxis nativamente).
type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

var exportBaseColumns = []string{
	"participant_id",
	"face_id",
	"face_view",
	"trust_rating",
	"masculinity_choice",
	"femininity_choice",
	"trial_order",
	"timestamp",
}

// extraColumns junta la union ordenada de columnas auxiliares presentes.
func extraColumns(ds *domain.AggregatedDataset) []string {
	seen := make(map[string]bool)
	for _, rec := range ds.Records {
		for k := range rec.Extra {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// WriteCSV escribe el dataset normalizado como CSV.
func (s *ExportService) WriteCSV(ds *domain.AggregatedDataset, w io.Writer) error {
	extras := extraColumns(ds)
	writer := csv.NewWriter(w)

	header := append(append([]string{}, exportBaseColumns...), extras...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, rec := range ds.Records {
		row := make([]string, 0, len(header))
		trialOrder := ""
		if rec.TrialOrder != nil {
			trialOrder = strconv.Itoa(*rec.TrialOrder)
		}
		row = append(row,
			rec.ParticipantID,
			rec.FaceID,
			rec.FaceView,
			rec.TrustRatingRaw,
			rec.MasculinityChoice,
			rec.FemininityChoice,
			trialOrder,
			rec.TimestampRaw,
		)
		for _, col := range extras {
			row = append(row, rec.Extra[col])
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSPSS escribe un zip con data.csv y import.sps. La sintaxis declara
// tipos y labels de variable para que el import en SPSS quede tipado.
func (s *ExportService) WriteSPSS(ds *domain.AggregatedDataset, w io.Writer) error {
	archive := zip.NewWriter(w)

	dataFile, err := archive.Create("data.csv")
	if err != nil {
		return fmt.Errorf("create data.csv: %w", err)
	}
	if err := s.WriteCSV(ds, dataFile); err != nil {
		return err
	}

	synFile, err := archive.Create("import.sps")
	if err != nil {
		return fmt.Errorf("create import.sps: %w", err)
	}
	if _, err := io.WriteString(synFile, s.spssSyntax(ds)); err != nil {
		return fmt.Errorf("write import.sps: %w", err)
	}

	return archive.Close()
}

func (s *ExportService) spssSyntax(ds *domain.AggregatedDataset) string {
	extras := extraColumns(ds)
	syntax := "GET DATA\n" +
		"  /TYPE=TXT\n" +
		"  /FILE=\"data.csv\"\n" +
		"  /DELIMITERS=\",\"\n" +
		"  /QUALIFIER='\"'\n" +
		"  /FIRSTCASE=2\n" +
		"  /VARIABLES=\n" +
		"    participant_id A64\n" +
		"    face_id A32\n" +
		"    face_view A16\n" +
		"    trust_rating F4.1\n" +
		"    masculinity_choice A32\n" +
		"    femininity_choice A32\n" +
		"    trial_order F4.0\n" +
		"    timestamp A32\n"
	for _, col := range extras {
		syntax += "    " + col + " A64\n"
	}
	syntax += "  .\n" +
		"VARIABLE LABELS\n" +
		"  participant_id \"Participant identifier\"\n" +
		"  face_id \"Stimulus face\"\n" +
		"  face_view \"Face view shown\"\n" +
		"  trust_rating \"Trust rating\"\n" +
		"  masculinity_choice \"Masculinity choice\"\n" +
		"  femininity_choice \"Femininity choice\"\n" +
		"  trial_order \"Presentation order\"\n" +
		"  timestamp \"Response time\".\n" +
		"EXECUTE.\n"
	return syntax
}
