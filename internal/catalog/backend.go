package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/Agroly/store/internal/entity"
)

// Backend holds the cached product set. ReplaceAll swaps the whole set on a
// full refresh; Put upserts a single record resolved on demand.
type Backend interface {
	ReplaceAll(ctx context.Context, products []entity.Product) error
	Put(ctx context.Context, p entity.Product) error
	Get(ctx context.Context, id int) (entity.Product, bool, error)
	All(ctx context.Context) ([]entity.Product, error)
}

// MemoryBackend is the default single-process backend. Keeps the catalog in
// server order for listing.
type MemoryBackend struct {
	mu    sync.RWMutex
	byID  map[int]entity.Product
	order []int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{byID: make(map[int]entity.Product)}
}

func (m *MemoryBackend) ReplaceAll(_ context.Context, products []entity.Product) error {
	byID := make(map[int]entity.Product, len(products))
	order := make([]int, 0, len(products))
	for _, p := range products {
		if _, seen := byID[p.ID]; !seen {
			order = append(order, p.ID)
		}
		byID[p.ID] = p
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID = byID
	m.order = order
	return nil
}

func (m *MemoryBackend) Put(_ context.Context, p entity.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.byID[p.ID]; !seen {
		m.order = append(m.order, p.ID)
	}
	m.byID[p.ID] = p
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, id int) (entity.Product, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	return p, ok, nil
}

func (m *MemoryBackend) All(_ context.Context) ([]entity.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entity.Product, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

// RedisBackend shares the catalog between gateway instances. Records live
// under product:<id> as JSON values.
type RedisBackend struct {
	rdb *redis.Client
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func productKey(id int) string { return fmt.Sprintf("product:%d", id) }

func (r *RedisBackend) ReplaceAll(ctx context.Context, products []entity.Product) error {
	keys, err := r.rdb.Keys(ctx, "product:*").Result()
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	for _, p := range products {
		if err := r.Put(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisBackend) Put(ctx context.Context, p entity.Product) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, productKey(p.ID), raw, 0).Err()
}

func (r *RedisBackend) Get(ctx context.Context, id int) (entity.Product, bool, error) {
	raw, err := r.rdb.Get(ctx, productKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.Product{}, false, nil
		}
		return entity.Product{}, false, err
	}

	var p entity.Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return entity.Product{}, false, err
	}
	return p, true, nil
}

func (r *RedisBackend) All(ctx context.Context) ([]entity.Product, error) {
	keys, err := r.rdb.Keys(ctx, "product:*").Result()
	if err != nil {
		return nil, err
	}

	out := make([]entity.Product, 0, len(keys))
	for _, key := range keys {
		raw, err := r.rdb.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var p entity.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
