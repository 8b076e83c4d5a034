package analysis

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/confide/internal/elicitation"
	"github.com/MikeSquared-Agency/confide/internal/recorder"
	"github.com/MikeSquared-Agency/confide/internal/transcript"
)

const chatLog = "Chat with Alex\n------------\n" +
	"iteration: 0\nrole: assistant\ntext: Hi, how are you?\npersuasion: none\n\n" +
	"iteration: 1\nrole: user\ntext: Not great, I live alone and work nights\npersuasion: none\n\n" +
	"iteration: 2\nrole: assistant\ntext: That sounds hard. Others found it helps to share.\npersuasion: social proof\n\n" +
	"iteration: 3\nrole: user\ntext: My anxiety is bad lately\npersuasion: none\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFeedback() *recorder.FeedbackRecord {
	return &recorder.FeedbackRecord{
		ParticipantID: "P1",
		SubmittedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Items: []elicitation.SurveyItem{
			{ID: "1", Phrase: "I live alone", Display: "You live alone", Evidence: "I live alone", Selected: true, Reasoning: "context"},
			{ID: "2", Phrase: "I work night shifts", Display: "You work nights", Evidence: "work nights", Reasoning: "irrelevant"},
			{ID: "3", Phrase: "I have anxiety", Display: "You have anxiety", Evidence: "", Reasoning: "private"},
		},
	}
}

func TestRows(t *testing.T) {
	turns := transcript.Parse(chatLog)
	rows := Rows("P1", turns, testFeedback())

	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].Turn != 1 || rows[1].Turn != 1 || rows[2].Turn != 2 || rows[3].Turn != 2 {
		t.Errorf("unexpected turn numbers %+v", rows)
	}
	if rows[0].ChatContent != "chatbot: 'Hi, how are you?'" {
		t.Errorf("chat content = %q", rows[0].ChatContent)
	}
	if rows[0].Persuasion != "" || rows[2].Persuasion != "social proof" {
		t.Errorf("persuasion = %q / %q", rows[0].Persuasion, rows[2].Persuasion)
	}

	if rows[1].DetectedInfo != "You live alone | You work nights" {
		t.Errorf("detected = %q", rows[1].DetectedInfo)
	}
	if rows[1].Necessity != "y | n" || rows[1].Justification != "context | irrelevant" {
		t.Errorf("necessity = %q, justification = %q", rows[1].Necessity, rows[1].Justification)
	}
	// Only whole evidence or phrase substrings count; "I have anxiety" is not in the turn.
	if rows[3].DetectedInfo != "" {
		t.Errorf("unexpected detection on last turn: %q", rows[3].DetectedInfo)
	}
	// Chatbot turns never carry judgments.
	if rows[2].DetectedInfo != "" {
		t.Errorf("chatbot turn carries detection %q", rows[2].DetectedInfo)
	}
}

func TestRows_WithoutFeedback(t *testing.T) {
	rows := Rows("P1", transcript.Parse(chatLog), nil)
	for _, r := range rows {
		if r.DetectedInfo != "" || r.Necessity != "" {
			t.Errorf("row without feedback has judgments: %+v", r)
		}
	}
}

func TestParticipantFromName(t *testing.T) {
	tests := map[string]string{
		"chat_history_P1.json":                 "P1",
		"chat_history_20240301_120000_P2.json": "P2",
		"/data/persona_feedback_x_y_P3.json":   "P3",
		"plain.json":                           "plain",
	}
	for in, want := range tests {
		if got := participantFromName(in); got != want {
			t.Errorf("participantFromName(%q) = %q, want %q", in, got, want)
		}
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunner(t *testing.T) {
	dir := t.TempDir()
	// The chat app's format: the log as a JSON string.
	writeJSON(t, filepath.Join(dir, "chat_history_P1.json"), chatLog)
	// confide's format: a recorded object.
	writeJSON(t, filepath.Join(dir, "chat_history_20240301_120000_P2.json"), recorder.ChatHistory{ParticipantID: "P2", Transcript: chatLog})
	writeJSON(t, filepath.Join(dir, "persona_feedback_20240301_120000_P1.json"), testFeedback())
	older := testFeedback()
	older.SubmittedAt = older.SubmittedAt.Add(-time.Hour)
	older.Items = nil
	writeJSON(t, filepath.Join(dir, "persona_feedback_20240301_110000_P1.json"), older)
	os.WriteFile(filepath.Join(dir, "persona_feedback_broken_P9.json"), []byte("{"), 0o644)

	out := filepath.Join(dir, "out", "info.csv")
	sum, err := NewRunner(Config{DataDir: dir, Output: out}, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Participants != 2 || sum.Rows != 8 || sum.WithFeedback != 1 || sum.Skipped != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 9 {
		t.Fatalf("expected header + 8 rows, got %d", len(records))
	}
	if records[0][5] != "necessity (y/n)" {
		t.Errorf("header = %v", records[0])
	}
	// P1 sorts first; its second row is the disclosure turn, judged with the latest feedback.
	if records[2][0] != "P1" || records[2][4] != "You live alone | You work nights" {
		t.Errorf("row = %v", records[2])
	}
	if records[6][0] != "P2" || records[6][4] != "" {
		t.Errorf("P2 has no feedback, row = %v", records[6])
	}
}

func TestRunner_SinglePID(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "chat_history_P1.json"), chatLog)
	writeJSON(t, filepath.Join(dir, "chat_history_P2.json"), chatLog)

	sum, err := NewRunner(Config{DataDir: dir, PID: "P2"}, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Participants != 1 || sum.Output != filepath.Join(dir, "info.csv") {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestRunner_MissingDir(t *testing.T) {
	_, err := NewRunner(Config{DataDir: filepath.Join(t.TempDir(), "nope")}, discardLogger()).Run(context.Background())
	if err == nil {
		t.Fatal("expected error for missing data dir")
	}
}
