package statsproc

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Tests soportados por el backend estadistico externo.
const (
	TestCorrelation = "correlation"
	TestANOVA       = "anova"
	TestRegression  = "regression"
)

var (
	ErrUnknownTest        = errors.New("unknown statistical test")
	ErrBadColumn          = errors.New("invalid column name")
	ErrBackendUnavailable = errors.New("stats backend unavailable")
)

// Los nombres de columna terminan interpolados en formulas R (lm, aov),
// asi que solo se aceptan identificadores simples: un nombre hostil no
// puede inyectar codigo en el script generado.
var columnNameRe = regexp.MustCompile(`^[A-Za-z.][A-Za-z0-9._]*$`)

// TestSpec describe un analisis inferencial a correr sobre el dataset.
type TestSpec struct {
	Test       string   `json:"test"`
	Outcome    string   `json:"outcome"`
	Predictors []string `json:"predictors,omitempty"`
	GroupBy    string   `json:"group_by,omitempty"`
}

// Valid chequea que el spec tenga la forma minima para cada test y que
// cada columna referida sea un identificador valido.
func (s TestSpec) Valid() error {
	switch s.Test {
	case TestCorrelation, TestRegression:
		if s.Outcome == "" || len(s.Predictors) == 0 {
			return ErrUnknownTest
		}
	case TestANOVA:
		if s.Outcome == "" || s.GroupBy == "" {
			return ErrUnknownTest
		}
	default:
		return ErrUnknownTest
	}

	cols := append([]string{s.Outcome}, s.Predictors...)
	if s.GroupBy != "" {
		cols = append(cols, s.GroupBy)
	}
	for _, col := range cols {
		if !columnNameRe.MatchString(col) {
			return fmt.Errorf("%w: %q", ErrBadColumn, col)
		}
	}
	return nil
}

// AnalysisOutput es la salida estructurada de un test. Statistic y PValue
// pueden ser nil cuando el test no los produce.
type AnalysisOutput struct {
	Test      string             `json:"test"`
	Statistic *float64           `json:"statistic,omitempty"`
	PValue    *float64           `json:"p_value,omitempty"`
	DF        *float64           `json:"df,omitempty"`
	Estimates map[string]float64 `json:"estimates,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// StatsBackend define la capacidad de correr tests inferenciales. El core
// depende solo de esta interfaz: el backend puede ser un subproceso Rscript
// o una implementacion pura para tests.
type StatsBackend interface {
	Run(ctx context.Context, spec TestSpec, dataCSV []byte) (AnalysisOutput, error)
}
