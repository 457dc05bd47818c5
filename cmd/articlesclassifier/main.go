package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"ArticlesClassifier/internal/app"
	"ArticlesClassifier/internal/config"
	"ArticlesClassifier/internal/logging"
	"ArticlesClassifier/internal/usecase"
)

func main() {
	var (
		mode   = flag.String("mode", "classify", "run mode: fetch | classify | serve")
		orgs   = flag.String("org", "", "comma-separated organization names to process (default: all active)")
		limit  = flag.Int("limit", 0, "per-organization article cap for this run (0 = no cap)")
		dryRun = flag.Bool("dry-run", false, "report pending counts without classifying")
	)
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	switch *mode {
	case "fetch":
		err = application.Fetch(ctx)
	case "classify":
		err = application.Classify(ctx, usecase.RunOptions{
			OrgNames: splitNames(*orgs),
			Limit:    *limit,
			DryRun:   *dryRun,
		})
	case "serve":
		err = application.Serve(ctx)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}

	if err != nil {
		logger.Error("run failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

func splitNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
