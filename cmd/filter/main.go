// Command filter deduplicates and re-filters the raw snapshot into the
// filtered snapshot.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/github-users/internal/config"
	sqliteRepo "github.com/sakif/github-users/internal/repository/sqlite"
	"github.com/sakif/github-users/internal/service"
	"github.com/sakif/github-users/internal/snapshot"
)

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0755); err != nil {
		logger.Error("failed to create ledger directory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	ledger, err := sqliteRepo.New(cfg.LedgerPath)
	if err != nil {
		logger.Error("failed to open run ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc := service.NewFilterService(snapshot.NewStore(cfg.DataDir), ledger, cfg.RawFile, cfg.FilteredFile, logger)
	stats, err := svc.Run(context.Background())
	ledger.Close()
	if err != nil {
		logger.Error("filter failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("loaded %d, removed %d duplicates, rejected %d, kept %d\n",
		stats.Loaded, stats.DuplicatesRemoved, stats.Rejected, stats.Kept)
}
