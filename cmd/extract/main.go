// Command extract walks the GitHub users listing and writes the raw snapshot.
//
// Usage:
//
//	GITHUB_TOKEN=... extract -max-users 60 [-resume]
//
// SIGINT or SIGTERM stops the walk; the users collected so far are still
// written.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/github-users/internal/config"
	"github.com/sakif/github-users/internal/extractor"
	"github.com/sakif/github-users/internal/github"
	"github.com/sakif/github-users/internal/metrics"
	sqliteRepo "github.com/sakif/github-users/internal/repository/sqlite"
	"github.com/sakif/github-users/internal/service"
	"github.com/sakif/github-users/internal/snapshot"
)

func main() {
	maxUsers := flag.Int("max-users", 60, "stop after this many accepted users")
	resume := flag.Bool("resume", false, "continue from the furthest cursor in the run ledger")
	flag.Parse()

	if *maxUsers < 1 {
		slog.Error("invalid flag", slog.String("error", "-max-users must be at least 1"))
		os.Exit(2)
	}

	cfg, err := config.Load(context.Background())
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	if err := cfg.RequireGitHubToken(); err != nil {
		logger.Error("cannot start extraction", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(cfg, logger, *maxUsers, *resume); err != nil {
		logger.Error("extraction failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, maxUsers int, resume bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0755); err != nil {
		return err
	}
	ledger, err := sqliteRepo.New(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewExtractor(registry)

	client := github.New(ctx, cfg.GitHubAPIURL, cfg.GitHubToken,
		github.WithLogger(logger),
		github.WithRateLimitHook(recorder.RateLimitWait),
	)

	svc := service.NewExtractService(
		client,
		snapshot.NewStore(cfg.DataDir),
		ledger,
		cfg.RawFile,
		logger,
		extractor.WithRecorder(recorder),
	)

	res, runErr := svc.Run(ctx, maxUsers, resume)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile, registry); err != nil {
			logger.Warn("failed to write metrics textfile",
				slog.String("path", cfg.MetricsTextfile),
				slog.String("error", err.Error()),
			)
		}
	}

	if runErr != nil {
		return runErr
	}

	logger.Info("done",
		slog.String("stop_reason", string(res.StopReason)),
		slog.Int("accepted", res.Accepted),
		slog.Int64("cursor", res.Cursor),
	)
	return nil
}
