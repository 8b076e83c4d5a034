package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/confide/internal/detector"
	"github.com/MikeSquared-Agency/confide/internal/transcript"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFuture_GatesResultOnCompletion(t *testing.T) {
	release := make(chan struct{})
	f := Go(func() ([]detector.Detection, error) {
		<-release
		return []detector.Detection{{PhraseID: "1", Present: true}}, nil
	})

	if f.Ready() {
		t.Fatal("future ready before the pass finished")
	}
	if _, err := f.Result(); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}

	close(release)
	dets, err := f.Wait(context.Background())
	if err != nil || len(dets) != 1 {
		t.Fatalf("Wait = %+v, %v", dets, err)
	}
	if !f.Ready() {
		t.Error("future should be ready after Wait returned")
	}
	if dets, err := f.Result(); err != nil || len(dets) != 1 {
		t.Errorf("Result = %+v, %v", dets, err)
	}
}

func TestFuture_PropagatesError(t *testing.T) {
	f := Go(func() ([]detector.Detection, error) {
		return nil, detector.ErrMalformedResponse
	})
	<-f.Done()
	if _, err := f.Result(); !errors.Is(err, detector.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(time.Hour, discardLogger())
	turns := transcript.Parse("------------\niteration: 0\nrole: user\ntext: I live alone\npersuasion: none\n")

	s, err := m.Start("P1", turns)
	if err != nil {
		t.Fatal(err)
	}
	if s.UserText != "I live alone" {
		t.Errorf("user text = %q", s.UserText)
	}
	if _, err := m.Start("P1", turns); !errors.Is(err, ErrExists) {
		t.Errorf("second start: expected ErrExists, got %v", err)
	}

	got, err := m.Get("P1")
	if err != nil || got != s {
		t.Fatalf("Get = %p, %v", got, err)
	}
	if _, err := m.Get("P2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown participant: expected ErrNotFound, got %v", err)
	}

	m.Finish("P1")
	if m.Len() != 0 {
		t.Error("finished session should be dropped")
	}
	if _, err := m.Get("P1"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("after finish: expected ErrAlreadySubmitted, got %v", err)
	}
	if _, err := m.Start("P1", turns); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("restart after finish: expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestManager_SweepExpiresIdleSessions(t *testing.T) {
	m := NewManager(time.Hour, discardLogger())
	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m.Start("old", nil)
	m.Start("busy", nil)
	m.Finish("done")

	clock = clock.Add(50 * time.Minute)
	m.Get("busy")

	clock = clock.Add(20 * time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if _, err := m.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("idle session should be gone, got %v", err)
	}
	if _, err := m.Get("busy"); err != nil {
		t.Errorf("recently used session should survive: %v", err)
	}
	if _, err := m.Get("done"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("tombstone should survive sweeps, got %v", err)
	}
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := NewManager(time.Hour, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
