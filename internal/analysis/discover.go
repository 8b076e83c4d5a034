package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/confide/internal/recorder"
)

const (
	chatHistoryPrefix = recorder.CollectionChatHistory
	feedbackPrefix    = recorder.CollectionFeedback + "_"
)

// participantFromName returns the last "_" segment of a file stem.
func participantFromName(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if i := strings.LastIndex(stem, "_"); i >= 0 {
		return stem[i+1:]
	}
	return stem
}

// DiscoverChatHistories maps participant ids to their chat history file. When a
// participant has several, the lexically last name (the latest timestamp) wins.
func DiscoverChatHistories(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, chatHistoryPrefix) && strings.HasSuffix(n, ".json") {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, n := range names {
		out[participantFromName(n)] = filepath.Join(dir, n)
	}
	return out, nil
}

// LoadFeedback reads every feedback record in dir, keeping the latest submission
// per participant. Unreadable files are reported through skip and otherwise ignored.
func LoadFeedback(dir string, skip func(path string, err error)) (map[string]recorder.FeedbackRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, feedbackPrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob feedback: %w", err)
	}

	out := make(map[string]recorder.FeedbackRecord)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			skip(p, err)
			continue
		}
		var rec recorder.FeedbackRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			skip(p, err)
			continue
		}
		if rec.ParticipantID == "" {
			rec.ParticipantID = participantFromName(p)
		}
		if prev, ok := out[rec.ParticipantID]; ok && prev.SubmittedAt.After(rec.SubmittedAt) {
			continue
		}
		out[rec.ParticipantID] = rec
	}
	return out, nil
}
