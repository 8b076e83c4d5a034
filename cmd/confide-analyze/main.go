package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/confide/internal/analysis"
)

func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data-dir", envOr("DATA_DIR", "data/responses"), "directory holding chat_history and persona_feedback files")
	out := flag.String("out", "", "output CSV path (default <data-dir>/info.csv)")
	pid := flag.String("pid", "", "process a single participant")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	lvl := slog.LevelInfo
	if *verbose {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := analysis.NewRunner(analysis.Config{
		DataDir: *dataDir,
		Output:  *out,
		PID:     *pid,
	}, logger).Run(ctx)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d rows for %d participants (%d with feedback) to %s\n",
		sum.Rows, sum.Participants, sum.WithFeedback, sum.Output)
	if sum.Skipped > 0 {
		fmt.Printf("Skipped %d unreadable files\n", sum.Skipped)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
