//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/confide/internal/detector"
)

func TestIntegration_DetectionCacheRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	c := NewDetectionCache(client, time.Minute)
	key := "test-" + uuid.New().String()

	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	want := []detector.Detection{{PhraseID: "1", Present: true, Evidence: "I live alone"}}
	if err := c.Set(ctx, key, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, hit, err := c.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// An empty result is cached too, so a conversation with no disclosures is not re-detected.
	emptyKey := key + "-empty"
	if err := c.Set(ctx, emptyKey, nil); err != nil {
		t.Fatal(err)
	}
	if got, hit, _ := c.Get(ctx, emptyKey); !hit || len(got) != 0 {
		t.Errorf("empty result: hit=%v got=%+v", hit, got)
	}
}
