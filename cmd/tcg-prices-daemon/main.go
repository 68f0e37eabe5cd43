// Daemon: runs the price pipeline on a cron schedule over a trailing window
// of days. Runs never overlap.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tcgpricing/internal/config"
	"tcgpricing/internal/gather"
	"tcgpricing/internal/pipeline"
	"tcgpricing/internal/util"
)

func main() {
	cfgFlag := flag.String("config", "", "config file (default config/tcgprices.yaml or $TCGPRICES_CONFIG)")
	runNow := flag.Bool("now", false, "run once immediately before waiting for the schedule")
	flag.Parse()

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

	run := func(ctx context.Context, r gather.DateRange) error {
		_, err := p.Run(ctx, r)
		return err
	}

	sched, err := pipeline.NewScheduler(ctx, cfg.Schedule.Cron, cfg.Schedule.LookbackDays, run, logger)
	if err != nil {
		log.Fatalf("invalid schedule %q: %v", cfg.Schedule.Cron, err)
	}

	if *runNow {
		if err := run(ctx, pipeline.Window(time.Now(), cfg.Schedule.LookbackDays)); err != nil && !pipeline.Canceled(err) {
			logger.Error("initial run failed", "error", err)
		}
	}

	sched.Start()
	slog.Info("tcg-prices daemon started", "schedule", cfg.Schedule.Cron,
		"lookback_days", cfg.Schedule.LookbackDays, "base_dir", cfg.Storage.BaseDir)

	<-ctx.Done()
	slog.Info("shutting down, waiting for running job")
	<-sched.Stop().Done()
}
