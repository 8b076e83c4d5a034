package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/MikeSquared-Agency/confide/internal/recorder"
	"github.com/MikeSquared-Agency/confide/internal/transcript"
)

// Config holds the analysis command configuration.
type Config struct {
	DataDir string
	Output  string // defaults to <DataDir>/info.csv
	PID     string // process a single participant only
}

// Summary reports what a run produced.
type Summary struct {
	Participants int
	Rows         int
	WithFeedback int
	Skipped      int
	Output       string
}

// Runner turns stored chat logs and feedback into the per-turn analysis table.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	if cfg.Output == "" {
		cfg.Output = filepath.Join(cfg.DataDir, "info.csv")
	}
	return &Runner{cfg: cfg, logger: logger}
}

func (r *Runner) Run(ctx context.Context) (Summary, error) {
	sum := Summary{Output: r.cfg.Output}

	chats, err := DiscoverChatHistories(r.cfg.DataDir)
	if err != nil {
		return sum, fmt.Errorf("discover chat histories: %w", err)
	}
	feedback, err := LoadFeedback(r.cfg.DataDir, func(path string, err error) {
		r.logger.Warn("skipping unreadable feedback file", "path", path, "error", err)
		sum.Skipped++
	})
	if err != nil {
		return sum, fmt.Errorf("load feedback: %w", err)
	}

	r.logger.Info("files discovered",
		"chat_histories", len(chats),
		"feedback_records", len(feedback),
	)

	pids := make([]string, 0, len(chats))
	for pid := range chats {
		if r.cfg.PID != "" && pid != r.cfg.PID {
			continue
		}
		pids = append(pids, pid)
	}
	sort.Strings(pids)

	var rows []Row
	for _, pid := range pids {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		path := chats[pid]
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("failed to read chat history", "path", path, "error", err)
			sum.Skipped++
			continue
		}
		raw, err := transcript.DecodeChatHistory(data)
		if err != nil {
			r.logger.Warn("failed to decode chat history", "path", path, "error", err)
			sum.Skipped++
			continue
		}

		turns := transcript.Parse(raw)
		var fbp *recorder.FeedbackRecord
		if fb, ok := feedback[pid]; ok {
			fbp = &fb
			sum.WithFeedback++
		}
		rows = append(rows, Rows(pid, turns, fbp)...)
		sum.Participants++

		r.logger.Debug("participant processed", "pid", pid, "turns", len(turns))
	}
	sum.Rows = len(rows)

	if err := r.write(rows); err != nil {
		return sum, err
	}
	r.logger.Info("analysis written",
		"output", sum.Output,
		"participants", sum.Participants,
		"rows", sum.Rows,
		"with_feedback", sum.WithFeedback,
	)
	return sum, nil
}

func (r *Runner) write(rows []Row) error {
	if dir := filepath.Dir(r.cfg.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(r.cfg.Output)
	if err != nil {
		return fmt.Errorf("create %s: %w", r.cfg.Output, err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
