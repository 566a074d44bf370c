package simulation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/arnadler/category-draft-coach/metrics"
	"github.com/arnadler/category-draft-coach/models"
)

// Cache stores completed distribution snapshots keyed by input fingerprint
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*Snapshot, bool)
	Set(ctx context.Context, snap *Snapshot)
}

// Fingerprint hashes everything that determines a simulation's output.
// Catalog order does not matter; players are keyed by id.
func Fingerprint(players []*models.Player, settings models.LeagueSettings, opts Options) string {
	pool := canonicalPool(players)
	opts = opts.withDefaults()
	data, _ := json.Marshal(struct {
		Players    []*models.Player
		Settings   models.LeagueSettings
		Iterations int
		Seed       uint64
		NoiseScale float64
	}{
		Players:    pool,
		Settings:   settings.Normalize(),
		Iterations: opts.Iterations,
		Seed:       opts.Seed,
		NoiseScale: opts.NoiseScale,
	})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

type cacheEntry struct {
	snap      *Snapshot
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewMemoryCache creates a cache whose entries live for ttl
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*Snapshot, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		metrics.CacheMiss("memory")
		return nil, false
	}
	metrics.CacheHit("memory")
	return entry.snap, true
}

func (c *MemoryCache) Set(_ context.Context, snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[snap.Fingerprint] = cacheEntry{snap: snap, expiresAt: time.Now().Add(c.ttl)}
}

// Cleanup drops expired entries
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// RedisCache shares snapshots across service instances as JSON blobs
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache creates a Redis-backed snapshot cache
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*Snapshot, bool) {
	data, err := c.rdb.Get(ctx, snapshotKey(fingerprint)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).Warn("Redis distribution lookup failed")
		}
		metrics.CacheMiss("redis")
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.WithError(err).Warn("Discarding undecodable cached distributions")
		metrics.CacheMiss("redis")
		return nil, false
	}
	metrics.CacheHit("redis")
	return &snap, true
}

func (c *RedisCache) Set(ctx context.Context, snap *Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.WithError(err).Warn("Failed to encode distributions for cache")
		return
	}
	if err := c.rdb.Set(ctx, snapshotKey(snap.Fingerprint), data, c.ttl).Err(); err != nil {
		log.WithError(err).Warn("Failed to cache distributions in Redis")
	}
}

func snapshotKey(fingerprint string) string {
	return fmt.Sprintf("draftcoach:distributions:%s", fingerprint)
}

// TieredCache checks each cache in order and backfills the faster tiers on a hit
type TieredCache []Cache

func (t TieredCache) Get(ctx context.Context, fingerprint string) (*Snapshot, bool) {
	for i, c := range t {
		if snap, ok := c.Get(ctx, fingerprint); ok {
			for _, faster := range t[:i] {
				faster.Set(ctx, snap)
			}
			return snap, true
		}
	}
	return nil, false
}

func (t TieredCache) Set(ctx context.Context, snap *Snapshot) {
	for _, c := range t {
		c.Set(ctx, snap)
	}
}

// Cleanup evicts expired entries from the tiers that hold them in process
func (t TieredCache) Cleanup() {
	for _, c := range t {
		if cleaner, ok := c.(interface{ Cleanup() }); ok {
			cleaner.Cleanup()
		}
	}
}

// sortedKeys returns map keys in order, for stable output
func sortedKeys(m map[string]models.Distribution) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
