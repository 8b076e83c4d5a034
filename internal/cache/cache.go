package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/confide/internal/detector"
)

const keyPrefix = "confide:detections:"

// DetectionCache keeps detection results in Redis for a bounded time.
type DetectionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewDetectionCache(client *redis.Client, ttl time.Duration) *DetectionCache {
	return &DetectionCache{client: client, ttl: ttl}
}

// Get implements detector.Cache. A missing key is a miss, not an error.
func (c *DetectionCache) Get(ctx context.Context, key string) ([]detector.Detection, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get detections: %w", err)
	}
	var dets []detector.Detection
	if err := json.Unmarshal(data, &dets); err != nil {
		return nil, false, fmt.Errorf("decode cached detections: %w", err)
	}
	return dets, true, nil
}

// Set implements detector.Cache.
func (c *DetectionCache) Set(ctx context.Context, key string, dets []detector.Detection) error {
	if dets == nil {
		dets = []detector.Detection{}
	}
	data, err := json.Marshal(dets)
	if err != nil {
		return fmt.Errorf("encode detections: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set detections: %w", err)
	}
	return nil
}
