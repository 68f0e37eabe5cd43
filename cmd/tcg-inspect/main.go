// Inspect the consolidated price dataset: overview, sample rows, per-date
// row counts and average market prices, plus recent pipeline runs.
//
// Usage:
//
//	go run ./cmd/tcg-inspect [-base-dir DIR] [-limit 5] [-no-summary] [-runs 10]
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"tcgpricing/internal/config"
	"tcgpricing/internal/inspect"
	"tcgpricing/internal/store"
)

func main() {
	baseDir := flag.String("base-dir", "", "base directory with the dataset file (default from config)")
	limit := flag.Int("limit", 5, "how many rows to preview")
	noSummary := flag.Bool("no-summary", false, "disable the per-date summary")
	runs := flag.Int("runs", 10, "recent pipeline runs to list (0 = none)")
	flag.Parse()

	cfgPath := "config/tcgprices.yaml"
	if p := os.Getenv("TCGPRICES_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *baseDir != "" {
		cfg.Storage.BaseDir = *baseDir
	}

	report, err := inspect.Inspect(cfg.RollupPath(), *limit, !*noSummary)
	if err != nil {
		log.Fatalf("inspect: %v", err)
	}
	if err := report.Write(os.Stdout); err != nil {
		log.Fatalf("writing report: %v", err)
	}

	if *runs <= 0 || !store.FileExists(cfg.SQLitePath()) {
		return
	}
	db, err := store.NewSQLiteStore(cfg.SQLitePath())
	if err != nil {
		log.Fatalf("opening ledger: %v", err)
	}
	defer db.Close()

	recent, err := db.ListRuns(context.Background(), *runs)
	if err != nil {
		log.Fatalf("listing runs: %v", err)
	}
	if err := inspect.WriteRuns(os.Stdout, recent); err != nil {
		log.Fatalf("writing runs: %v", err)
	}
}
