package source

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"epifeed/internal/logger"
	"epifeed/internal/providers"
)

const (
	defaultCacheSize = 8
	defaultCacheTTL  = 15 * time.Minute
	defaultLoadLimit = 4
)

// Builder constructs a ready source for one variant.
type Builder func(ctx context.Context, variant providers.Variant) (*DataSource, error)

// BuilderWith returns a Builder that calls New with opts plus whatever
// per-variant options extra returns.
func BuilderWith(extra func(providers.Variant) []Option, opts ...Option) Builder {
	return func(ctx context.Context, variant providers.Variant) (*DataSource, error) {
		all := append([]Option(nil), opts...)
		if extra != nil {
			all = append(all, extra(variant)...)
		}
		return New(ctx, variant, all...)
	}
}

// Cache keeps ready sources for a while. Concurrent Gets for a variant that
// is not cached share one build. Failed builds are never cached, and a build
// never replaces one that started after it.
type Cache struct {
	entries *expirable.LRU[providers.Variant, *DataSource]
	group   singleflight.Group
	build   Builder

	mu      sync.Mutex
	nextGen uint64
	stored  map[providers.Variant]uint64
}

func NewCache(size int, ttl time.Duration, build Builder) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if build == nil {
		build = BuilderWith(nil)
	}
	return &Cache{
		entries: expirable.NewLRU[providers.Variant, *DataSource](size, nil, ttl),
		build:   build,
		stored:  make(map[providers.Variant]uint64),
	}
}

func (c *Cache) Get(ctx context.Context, variant providers.Variant) (*DataSource, error) {
	if src, ok := c.entries.Get(variant); ok {
		return src, nil
	}
	return c.load(ctx, variant, "get:")
}

// Refresh always builds a new source. On success it replaces the cached
// one; on failure the cached one is left alone.
func (c *Cache) Refresh(ctx context.Context, variant providers.Variant) (*DataSource, error) {
	return c.load(ctx, variant, "refresh:")
}

func (c *Cache) Remove(variant providers.Variant) {
	c.entries.Remove(variant)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) load(ctx context.Context, variant providers.Variant, prefix string) (*DataSource, error) {
	value, err, shared := c.group.Do(prefix+variant.String(), func() (any, error) {
		gen := c.startBuild()
		src, err := c.build(ctx, variant)
		if err != nil {
			return nil, err
		}
		return c.store(variant, gen, src), nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("shared source build", "provider", variant)
	}
	return value.(*DataSource), nil
}

func (c *Cache) startBuild() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextGen++
	return c.nextGen
}

// store caches src unless a build that started later has already been
// cached, in which case that newer source is returned instead.
func (c *Cache) store(variant providers.Variant, gen uint64, src *DataSource) *DataSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen < c.stored[variant] {
		if newer, ok := c.entries.Peek(variant); ok {
			logger.Debug("discarding superseded source build", "provider", variant)
			return newer
		}
	}
	c.stored[variant] = gen
	c.entries.Add(variant, src)
	return src
}

// LoadAll builds every variant concurrently. One provider failing does not
// stop the others: ready sources and failures are returned side by side.
func LoadAll(ctx context.Context, variants []providers.Variant, build Builder) (map[providers.Variant]*DataSource, map[providers.Variant]error) {
	if build == nil {
		build = BuilderWith(nil)
	}
	ready := make(map[providers.Variant]*DataSource, len(variants))
	failed := make(map[providers.Variant]error)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultLoadLimit)
	for _, variant := range variants {
		g.Go(func() error {
			src, err := build(gctx, variant)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[variant] = err
				return nil
			}
			ready[variant] = src
			return nil
		})
	}
	_ = g.Wait()
	return ready, failed
}
