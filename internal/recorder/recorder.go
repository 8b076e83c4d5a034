package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Document is one write handed to a sink. Body must marshal to a JSON object.
type Document struct {
	Collection    string
	ParticipantID string
	Timestamp     time.Time
	Body          any
}

// Sink persists documents. Implementations must be safe for concurrent use.
type Sink interface {
	Put(ctx context.Context, doc Document) error
}

// Recorder writes every document to the local sink first and then, best effort,
// to each remote sink. Only a local failure is reported to the caller.
type Recorder struct {
	local  Sink
	remote []Sink
	logger *slog.Logger
}

func New(local Sink, logger *slog.Logger, remote ...Sink) *Recorder {
	return &Recorder{local: local, remote: remote, logger: logger}
}

// AddRemote registers another best-effort sink.
func (r *Recorder) AddRemote(s Sink) {
	r.remote = append(r.remote, s)
}

// Record returns an error only when the local write fails; remote sinks are
// still attempted in that case so the document is not lost entirely.
func (r *Recorder) Record(ctx context.Context, doc Document) error {
	localErr := r.local.Put(ctx, doc)
	for _, s := range r.remote {
		if err := s.Put(ctx, doc); err != nil {
			r.logger.Error("remote record write failed",
				"collection", doc.Collection,
				"participant", doc.ParticipantID,
				"sink", fmt.Sprintf("%T", s),
				"error", err,
			)
		}
	}
	if localErr != nil {
		return fmt.Errorf("write local record: %w", localErr)
	}
	r.logger.Info("record written",
		"collection", doc.Collection,
		"participant", doc.ParticipantID,
		"remote_sinks", len(r.remote),
	)
	return nil
}

// FileSink writes one JSON file per document under dir. Existing files are never overwritten.
type FileSink struct {
	dir string
}

const maxCollisions = 100

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

func (s *FileSink) Dir() string { return s.dir }

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the base name for a document, without collision suffix.
func FileName(doc Document) string {
	pid := unsafeChars.ReplaceAllString(doc.ParticipantID, "_")
	return fmt.Sprintf("%s_%s_%s", doc.Collection, doc.Timestamp.UTC().Format("20060102_150405"), pid)
}

func (s *FileSink) Put(_ context.Context, doc Document) error {
	data, err := json.MarshalIndent(doc.Body, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", doc.Collection, err)
	}

	base := FileName(doc)
	for i := 0; i < maxCollisions; i++ {
		name := base + ".json"
		if i > 0 {
			name = base + "_" + strconv.Itoa(i) + ".json"
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("write %s: too many files with the same timestamp", base)
}
