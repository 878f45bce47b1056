package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"facetrust/internal/config"
	"facetrust/internal/domain"
	"facetrust/internal/service"
)

const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorReset  = "\033[0m"
)

// datacheck escanea un directorio de respuestas y reporta archivo por
// archivo que se pudo cargar, sin levantar el servidor. Util para revisar
// un lote de CSVs antes de subirlo.
func main() {
	dir := flag.String("dir", "", "responses directory (default: RESPONSES_DIR)")
	flag.Parse()

	_ = godotenv.Load()

	if *dir == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatal(err)
		}
		*dir = cfg.ResponsesDir
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	scanner := service.NewDirectoryScanner()
	scan, err := scanner.Scan(*dir)
	if err != nil {
		log.Fatalf("scan %s: %v", *dir, err)
	}

	ds := service.NewAggregator(logger).Aggregate(scan)

	failed := 0
	for _, f := range ds.Files {
		color := colorGreen
		switch f.LoadStatus {
		case domain.LoadStatusFailed:
			color = colorRed
			failed++
		case domain.LoadStatusPartial:
			color = colorYellow
		}
		fmt.Printf("%s[%s]%s %s format=%s records=%d dropped=%d",
			color, f.LoadStatus, colorReset, f.Path, f.DetectedFormat, f.RecordCount, f.DroppedRows)
		if f.Error != "" {
			fmt.Printf(" error=%q", f.Error)
		}
		fmt.Println()
	}

	summary, err := service.NewStatsEngine(logger).OverallSummary(ds, nil)
	if err != nil {
		log.Fatalf("summary: %v", err)
	}
	fmt.Printf("\nfiles=%d participants=%d records=%d valid_n=%d excluded=%d fingerprint=%s\n",
		len(ds.Files), summary.TotalParticipants, len(ds.Records), summary.ValidN,
		summary.ExcludedInvalidCount, scan.Fingerprint)
	if summary.Mean != nil {
		fmt.Printf("mean_trust=%.2f", *summary.Mean)
		if summary.SD != nil {
			fmt.Printf(" sd_trust=%.2f", *summary.SD)
		}
		fmt.Println()
	}

	if failed > 0 {
		os.Exit(1)
	}
}
