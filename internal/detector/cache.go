package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/MikeSquared-Agency/confide/internal/catalog"
)

// Cache stores detection results so a repeated pass over the same conversation
// does not reach the language model again.
type Cache interface {
	Get(ctx context.Context, key string) ([]Detection, bool, error)
	Set(ctx context.Context, key string, dets []Detection) error
}

// CachingDetector consults the cache before delegating. Cache failures never fail detection.
type CachingDetector struct {
	inner   Detector
	cache   Cache
	version string
	logger  *slog.Logger
}

func NewCaching(inner Detector, cache Cache, catalogVersion string, logger *slog.Logger) *CachingDetector {
	return &CachingDetector{inner: inner, cache: cache, version: catalogVersion, logger: logger}
}

func (c *CachingDetector) Detect(ctx context.Context, userText string, phrases []catalog.KnownPhrase) ([]Detection, error) {
	key := CacheKey(c.version, userText, phrases)

	dets, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("detection cache read failed", "error", err)
	} else if hit {
		c.logger.Info("detection cache hit", "present", len(dets))
		return dets, nil
	}

	dets, err = c.inner.Detect(ctx, userText, phrases)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, dets); err != nil {
		c.logger.Warn("detection cache write failed", "error", err)
	}
	return dets, nil
}

// CacheKey derives a stable key from the catalog version, the phrase set and the text.
func CacheKey(catalogVersion, userText string, phrases []catalog.KnownPhrase) string {
	h := sha256.New()
	h.Write([]byte(catalogVersion))
	h.Write([]byte{0})
	for _, p := range phrases {
		h.Write([]byte(p.ID))
		h.Write([]byte{0x1f})
	}
	h.Write([]byte{0})
	h.Write([]byte(userText))
	return hex.EncodeToString(h.Sum(nil))
}
