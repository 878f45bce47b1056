package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"facetrust/internal/domain"
)

// DatasetCache memoiza el AggregatedDataset de un snapshot de directorio.
// La clave es el fingerprint del scan: si el directorio cambio, el
// fingerprint cambia y el cache se ignora. Invalidate borra todo tras
// acciones de admin que tocan archivos (upload, delete, restore).
type DatasetCache interface {
	Get(fingerprint string) (*domain.AggregatedDataset, bool)
	Put(ds *domain.AggregatedDataset)
	Invalidate()
}

type memoryDatasetCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	dataset *domain.AggregatedDataset
	savedAt time.Time
}

func NewMemoryDatasetCache(ttl time.Duration) DatasetCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &memoryDatasetCache{ttl: ttl}
}

func (c *memoryDatasetCache) Get(fingerprint string) (*domain.AggregatedDataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dataset == nil || c.dataset.Fingerprint != fingerprint {
		return nil, false
	}
	if time.Now().UTC().After(c.savedAt.Add(c.ttl)) {
		c.dataset = nil
		return nil, false
	}
	return c.dataset, true
}

func (c *memoryDatasetCache) Put(ds *domain.AggregatedDataset) {
	if ds == nil || strings.TrimSpace(ds.Fingerprint) == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataset = ds
	c.savedAt = time.Now().UTC()
}

func (c *memoryDatasetCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataset = nil
}

// redisKV es el subconjunto de go-redis que usa el cache; permite mockear
// en tests sin un servidor real.
type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisDatasetCache struct {
	client redisKV
	ttl    time.Duration
	prefix string

	mu      sync.Mutex
	lastKey string
}

// NewRedisDatasetCache guarda el snapshot serializado en Redis, util cuando
// varios workers comparten el mismo directorio de respuestas.
func NewRedisDatasetCache(client *redis.Client, ttl time.Duration) DatasetCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisDatasetCache{
		client: client,
		ttl:    ttl,
		prefix: "dataset:",
	}
}

func (c *redisDatasetCache) Get(fingerprint string) (*domain.AggregatedDataset, bool) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := c.client.Get(ctx, c.prefix+fingerprint).Bytes()
	if err != nil {
		return nil, false
	}
	var ds domain.AggregatedDataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, false
	}
	return &ds, true
}

func (c *redisDatasetCache) Put(ds *domain.AggregatedDataset) {
	if ds == nil || strings.TrimSpace(ds.Fingerprint) == "" {
		return
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := c.prefix + ds.Fingerprint
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err == nil {
		c.mu.Lock()
		c.lastKey = key
		c.mu.Unlock()
	}
}

func (c *redisDatasetCache) Invalidate() {
	c.mu.Lock()
	key := c.lastKey
	c.lastKey = ""
	c.mu.Unlock()
	if key == "" {
		return
	}
	// Snapshots de otros fingerprints expiran solos por TTL.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.client.Del(ctx, key).Err()
}
