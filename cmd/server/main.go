// Command server runs the query service over the raw and filtered snapshots.
//
// Configuration comes from internal/config (defaults, GHUSERS_CONFIG YAML,
// GHUSERS_* env, API_ACCESS_TOKEN). With -hash-secret it instead reads a
// secret on stdin, prints its bcrypt hash for use as API_ACCESS_TOKEN and
// exits.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/github-users/internal/auth"
	"github.com/sakif/github-users/internal/config"
	"github.com/sakif/github-users/internal/server"
)

func main() {
	hashSecret := flag.Bool("hash-secret", false, "read a secret from stdin and print its bcrypt hash")
	flag.Parse()

	if *hashSecret {
		if err := printHash(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(context.Background())
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until SIGINT or SIGTERM
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printHash() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading secret: %w", err)
	}
	hash, err := auth.HashSecret(strings.TrimRight(line, "\r\n"), auth.DefaultHashCost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
