package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"caredesk/internal/branch/metrics"
	"caredesk/internal/branch/models"
	id "caredesk/pkg/domain"
	"caredesk/pkg/platform/circuit"
)

const (
	cacheKeyPrefix  = "caredesk:branches:"
	activeListKey   = cacheKeyPrefix + "active"
	defaultCacheTTL = 30 * time.Second
)

// Backend is the authoritative store behind the cache.
type Backend interface {
	CreateIfAvailable(ctx context.Context, b *models.Branch) error
	FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error)
	FindByName(ctx context.Context, name string) (*models.Branch, error)
	List(ctx context.Context) ([]*models.Branch, error)
	ListActive(ctx context.Context) ([]*models.Branch, error)
	Execute(ctx context.Context, branchID id.BranchID, validate func(*models.Branch) error, mutate func(*models.Branch)) (*models.Branch, error)
}

// Cached is a redis read-through cache over a Backend. Only the active branch
// list and lookups by id are cached; writes invalidate both. Concurrent misses
// for the same key share one backend call. Redis failures fall through to the
// backend.
type Cached struct {
	backend Backend
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type CachedOption func(*Cached)

func WithTTL(ttl time.Duration) CachedOption {
	return func(c *Cached) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CachedOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

func WithCacheMetrics(m *metrics.Metrics) CachedOption {
	return func(c *Cached) {
		c.metrics = m
	}
}

// WithCacheBreaker replaces the breaker that stops cache reads while redis is failing.
func WithCacheBreaker(b *circuit.Breaker) CachedOption {
	return func(c *Cached) {
		c.breaker = b
	}
}

func NewCached(backend Backend, client *redis.Client, opts ...CachedOption) *Cached {
	c := &Cached{
		backend: backend,
		client:  client,
		ttl:     defaultCacheTTL,
		breaker: circuit.New("branch-cache", circuit.WithFailureThreshold(3)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Cached) CreateIfAvailable(ctx context.Context, b *models.Branch) error {
	if err := c.backend.CreateIfAvailable(ctx, b); err != nil {
		return err
	}
	c.invalidate(ctx, b.ID)
	return nil
}

func (c *Cached) FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error) {
	key := cacheKeyPrefix + "id:" + branchID.String()
	var out *models.Branch
	err := c.readThrough(ctx, key, &out, func(ctx context.Context) (any, error) {
		return c.backend.FindByID(ctx, branchID)
	})
	return out, err
}

func (c *Cached) FindByName(ctx context.Context, name string) (*models.Branch, error) {
	return c.backend.FindByName(ctx, name)
}

func (c *Cached) List(ctx context.Context) ([]*models.Branch, error) {
	return c.backend.List(ctx)
}

func (c *Cached) ListActive(ctx context.Context) ([]*models.Branch, error) {
	var out []*models.Branch
	err := c.readThrough(ctx, activeListKey, &out, func(ctx context.Context) (any, error) {
		return c.backend.ListActive(ctx)
	})
	return out, err
}

func (c *Cached) Execute(ctx context.Context, branchID id.BranchID, validate func(*models.Branch) error, mutate func(*models.Branch)) (*models.Branch, error) {
	b, err := c.backend.Execute(ctx, branchID, validate, mutate)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, branchID)
	return b, nil
}

// readThrough decodes the cached value at key into dst, or loads it, stores it
// and decodes the loaded value into dst. While the breaker is open redis is
// skipped and every read goes to the backend.
func (c *Cached) readThrough(ctx context.Context, key string, dst any, load func(context.Context) (any, error)) error {
	useCache := c.breaker.Allow()
	if useCache {
		raw, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			c.record(ctx, nil)
			if jsonErr := json.Unmarshal(raw, dst); jsonErr == nil {
				c.hit()
				return nil
			}
		case errors.Is(err, redis.Nil):
			c.record(ctx, nil)
		default:
			c.logger.WarnContext(ctx, "branch cache read failed", "key", key, "error", err)
			c.record(ctx, err)
			useCache = false
		}
	}
	c.miss()

	v, err, _ := c.group.Do(key, func() (any, error) {
		loaded, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(loaded)
		if err != nil {
			return nil, err
		}
		if useCache {
			if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
				c.logger.WarnContext(ctx, "branch cache write failed", "key", key, "error", setErr)
			}
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), dst)
}

// record feeds a redis outcome to the breaker and logs transitions.
func (c *Cached) record(ctx context.Context, err error) {
	if err == nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "branch cache recovered", "breaker", c.breaker.Name())
		}
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "branch cache disabled after repeated redis failures",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
}

func (c *Cached) invalidate(ctx context.Context, branchID id.BranchID) {
	if err := c.client.Del(ctx, activeListKey, cacheKeyPrefix+"id:"+branchID.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "branch cache invalidation failed", "branch_id", branchID.String(), "error", err)
	}
}

func (c *Cached) hit() {
	if c.metrics != nil {
		c.metrics.IncrementCacheHit()
	}
}

func (c *Cached) miss() {
	if c.metrics != nil {
		c.metrics.IncrementCacheMiss()
	}
}
