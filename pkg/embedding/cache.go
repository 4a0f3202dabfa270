package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/azera-ai/azera/pkg/cache"
)

// DefaultTTL is how long cached embeddings live before recomputation.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "emb:"

// Cache stores embedding vectors in a cache.Store, keyed by a hash of the
// embedded text so identical texts share one entry regardless of source.
type Cache struct {
	store cache.Store
	ttl   time.Duration
}

// NewCache wraps a store. A zero ttl falls back to DefaultTTL.
func NewCache(store cache.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl}
}

// Key derives the cache key for a text: the prefix plus the first 16 hex
// characters of the text's SHA-256 digest.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached vector for text, or found=false on a miss.
// Undecodable entries are treated as misses, never as errors.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, bool) {
	raw, found, err := c.store.Get(ctx, Key(text))
	if err != nil || !found {
		return nil, false
	}
	vec, ok := decodeVector(raw)
	if !ok {
		return nil, false
	}
	return vec, true
}

// Put stores a vector for text with the cache TTL.
func (c *Cache) Put(ctx context.Context, text string, vec []float32) error {
	return c.store.Set(ctx, Key(text), encodeVector(vec), c.ttl)
}

// encodeVector packs a vector as base64 over little-endian float32 bytes.
func encodeVector(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// decodeVector reverses encodeVector. Returns ok=false for malformed input.
func decodeVector(s string) ([]float32, bool) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	if len(buf)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, true
}
