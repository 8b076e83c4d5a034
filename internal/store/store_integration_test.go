//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/confide/internal/recorder"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	s, err := New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func setupTestMongo(t *testing.T) *MongoSink {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}

	m, err := NewMongo(context.Background(), uri, "feedback_test")
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { m.Close(context.Background()) })
	return m
}

func testDocument() recorder.Document {
	return recorder.Document{
		Collection:    recorder.CollectionFeedback,
		ParticipantID: "integration-" + uuid.New().String()[:8],
		Timestamp:     time.Now(),
		Body: map[string]any{
			"revealed_info": []string{"You live alone"},
			"selected":      []string{},
		},
	}
}

func TestIntegration_PostgresPut(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	doc := testDocument()

	for i := 0; i < 2; i++ {
		if err := s.Put(ctx, doc); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	n, err := s.CountDocuments(ctx, doc.Collection, doc.ParticipantID)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 documents, got %d", n)
	}
}

func TestIntegration_MongoPut(t *testing.T) {
	m := setupTestMongo(t)
	ctx := context.Background()
	doc := testDocument()

	if err := m.Put(ctx, doc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	n, err := m.CountDocuments(ctx, doc.Collection, doc.ParticipantID)
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 document, got %d", n)
	}
}
