// One-shot tool: harvest daily price archives for a date range, enrich them
// with catalog dimensions and write the partitioned dataset.
//
// Usage:
//
//	go run ./cmd/tcg-prices -start-date 2025-09-01 -end-date 2025-09-20 [-interval 7] [-full-file]
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tcgpricing/internal/config"
	"tcgpricing/internal/domain"
	"tcgpricing/internal/gather"
	"tcgpricing/internal/pipeline"
	"tcgpricing/internal/util"
)

func main() {
	startDate := flag.String("start-date", "", "start date (YYYY-MM-DD) for downloading daily price archives")
	endDate := flag.String("end-date", "", "end date (YYYY-MM-DD) for downloading daily price archives")
	interval := flag.Int("interval", 0, "interval between downloads in days, e.g. 7 for weekly (default from config, 1)")
	baseDir := flag.String("base-dir", "", "base directory for all outputs (default from config)")
	keepExtracted := flag.Bool("keep-extracted", false, "keep extracted raw archives after processing")
	fullFile := flag.Bool("full-file", false, "also maintain one consolidated dataset file")
	cfgFlag := flag.String("config", "", "config file (default config/tcgprices.yaml or $TCGPRICES_CONFIG)")
	flag.Parse()

	if *startDate == "" || *endDate == "" {
		flag.Usage()
		log.Fatal("-start-date and -end-date are required")
	}
	start, err := domain.ParseDay(*startDate)
	if err != nil {
		log.Fatalf("invalid -start-date: %v", err)
	}
	end, err := domain.ParseDay(*endDate)
	if err != nil {
		log.Fatalf("invalid -end-date: %v", err)
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("loading .env: %v", err)
	}
	cfgPath := "config/tcgprices.yaml"
	if p := os.Getenv("TCGPRICES_CONFIG"); p != "" {
		cfgPath = p
	}
	if *cfgFlag != "" {
		cfgPath = *cfgFlag
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags override config.
	if *interval > 0 {
		cfg.Pipeline.IntervalDays = *interval
	}
	if *baseDir != "" {
		cfg.Storage.BaseDir = *baseDir
	}
	if *keepExtracted {
		cfg.Pipeline.KeepExtracted = true
	}
	if *fullFile {
		cfg.Pipeline.FullFile = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	w, closeLog, err := util.LogOutput(cfg.Logging.File)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer closeLog()
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := pipeline.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("setting up pipeline: %v", err)
	}
	defer res.Close()

	p := pipeline.New(cfg, res.Deps, logger)
	if _, err := p.Run(ctx, gather.DateRange{Start: start, End: end}); err != nil {
		log.Fatalf("pipeline failed: %v", err)
	}
}
