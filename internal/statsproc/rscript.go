package statsproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// RscriptBackend implementa StatsBackend invocando el interprete Rscript.
// El subproceso bloquea el request que lo pidio; no hay retry automatico
// ni timeout interno, el caller puede imponer uno via ctx.
type RscriptBackend struct {
	bin    string
	logger *zap.Logger
}

func NewRscriptBackend(bin string, logger *zap.Logger) *RscriptBackend {
	if strings.TrimSpace(bin) == "" {
		bin = "Rscript"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RscriptBackend{bin: bin, logger: logger}
}

// Run escribe el dataset a un CSV temporal, genera el script R para el
// test pedido y parsea el JSON que el script imprime. R suele intercalar
// warnings y mensajes de librerias alrededor del JSON, asi que la salida
// se limpia antes de decodificar.
func (b *RscriptBackend) Run(ctx context.Context, spec TestSpec, dataCSV []byte) (AnalysisOutput, error) {
	if err := spec.Valid(); err != nil {
		return AnalysisOutput{}, err
	}

	tmpDir, err := os.MkdirTemp("", "facetrust-stats-")
	if err != nil {
		return AnalysisOutput{}, fmt.Errorf("%w: tmp dir: %v", ErrBackendUnavailable, err)
	}
	defer os.RemoveAll(tmpDir)

	dataPath := filepath.Join(tmpDir, "data.csv")
	if err := os.WriteFile(dataPath, dataCSV, 0o600); err != nil {
		return AnalysisOutput{}, fmt.Errorf("%w: write data: %v", ErrBackendUnavailable, err)
	}
	scriptPath := filepath.Join(tmpDir, "test.R")
	if err := os.WriteFile(scriptPath, []byte(buildScript(spec, dataPath)), 0o600); err != nil {
		return AnalysisOutput{}, fmt.Errorf("%w: write script: %v", ErrBackendUnavailable, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.bin, scriptPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		b.logger.Warn("rscript failed",
			zap.String("test", spec.Test),
			zap.Error(err),
			zap.String("stderr", truncate(stderr.String(), 500)),
		)
		return AnalysisOutput{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	raw := extractFirstJSONObject(cleanScriptOutput(stdout.String()))
	if raw == "" {
		return AnalysisOutput{}, fmt.Errorf("%w: no JSON in output", ErrBackendUnavailable)
	}
	var out AnalysisOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return AnalysisOutput{}, fmt.Errorf("%w: parse output: %v", ErrBackendUnavailable, err)
	}
	if out.Test == "" {
		out.Test = spec.Test
	}
	return out, nil
}

// buildScript genera un script R que corre el test y emite un unico JSON.
func buildScript(spec TestSpec, dataPath string) string {
	var sb strings.Builder
	sb.WriteString("suppressMessages(library(jsonlite))\n")
	sb.WriteString(fmt.Sprintf("d <- read.csv(%q, stringsAsFactors = FALSE)\n", dataPath))

	switch spec.Test {
	case TestCorrelation:
		sb.WriteString(fmt.Sprintf(
			"r <- cor.test(d[[%q]], d[[%q]])\n"+
				"out <- list(test=\"correlation\", statistic=unname(r$estimate), p_value=r$p.value, df=unname(r$parameter))\n",
			spec.Outcome, spec.Predictors[0]))
	case TestANOVA:
		sb.WriteString(fmt.Sprintf(
			"m <- aov(d[[%q]] ~ factor(d[[%q]]))\n"+
				"s <- summary(m)[[1]]\n"+
				"out <- list(test=\"anova\", statistic=s[1,\"F value\"], p_value=s[1,\"Pr(>F)\"], df=s[1,\"Df\"])\n",
			spec.Outcome, spec.GroupBy))
	case TestRegression:
		sb.WriteString(fmt.Sprintf("m <- lm(%s ~ %s, data=d)\n",
			spec.Outcome, strings.Join(spec.Predictors, " + ")))
		sb.WriteString(
			"s <- summary(m)\n" +
				"out <- list(test=\"regression\", statistic=unname(s$fstatistic[1]), p_value=NULL, estimates=as.list(coef(m)))\n")
	}

	sb.WriteString("cat(toJSON(out, auto_unbox=TRUE, null=\"null\"))\n")
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
