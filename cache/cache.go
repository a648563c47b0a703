package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-order/utils"
)

// Named keys for the shared read views.
const (
	KeyAllTables    = "all_tables"
	KeyAllOrders    = "all_orders"
	KeyTotalIncome  = "total_income"
	KeyStatsDaily   = "stats_daily"
	KeyStatsMonthly = "stats_monthly"
)

// Group names a set of keys that are invalidated together.
type Group string

const (
	GroupTables Group = "tables"
	GroupOrders Group = "orders"
	GroupIncome Group = "income"
	GroupStats  Group = "stats"
)

var groupKeys = map[Group][]string{
	GroupTables: {KeyAllTables},
	GroupOrders: {KeyAllOrders},
	GroupIncome: {KeyTotalIncome},
	GroupStats:  {KeyStatsDaily, KeyStatsMonthly},
}

// AllGroups is every group, in invalidation order.
var AllGroups = []Group{GroupTables, GroupOrders, GroupIncome, GroupStats}

// Keys returns the keys that belong to g.
func Keys(g Group) []string {
	return append([]string(nil), groupKeys[g]...)
}

// Store is a byte-oriented key/value backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// TTLs per group.
type TTLs struct {
	Tables time.Duration
	Orders time.Duration
	Income time.Duration
	Stats  time.Duration
}

// DefaultTTLs replaces any non-positive TTL passed to New. Every entry must expire.
var DefaultTTLs = TTLs{
	Tables: 5 * time.Second,
	Orders: 5 * time.Second,
	Income: 30 * time.Second,
	Stats:  60 * time.Second,
}

// ErrInvalidTTL is returned by stores asked to keep an entry without expiry.
var ErrInvalidTTL = errors.New("cache ttl must be positive")

func orDefault(ttl, def time.Duration) time.Duration {
	if ttl <= 0 {
		return def
	}
	return ttl
}

// Result reports what an invalidation did. Err is for logging only.
type Result struct {
	Keys []string
	Err  error
}

type Cache struct {
	store Store
	ttl   map[string]time.Duration

	mu   sync.Mutex
	gens map[string]uint64
}

func New(store Store, ttls TTLs) *Cache {
	ttls = TTLs{
		Tables: orDefault(ttls.Tables, DefaultTTLs.Tables),
		Orders: orDefault(ttls.Orders, DefaultTTLs.Orders),
		Income: orDefault(ttls.Income, DefaultTTLs.Income),
		Stats:  orDefault(ttls.Stats, DefaultTTLs.Stats),
	}
	return &Cache{
		store: store,
		ttl: map[string]time.Duration{
			KeyAllTables:    ttls.Tables,
			KeyAllOrders:    ttls.Orders,
			KeyTotalIncome:  ttls.Income,
			KeyStatsDaily:   ttls.Stats,
			KeyStatsMonthly: ttls.Stats,
		},
		gens: make(map[string]uint64),
	}
}

func (c *Cache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

// Fetch returns the cached value for key or computes it with fill and stores it.
// Store and decode failures count as misses. fill's error is returned as is.
func Fetch[T any](ctx context.Context, c *Cache, key string, fill func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return fill(ctx)
	}

	gen := c.generation(key)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("key", key).Warn("cache read failed, treating as miss")
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		utils.ErrorLogger.WithField("key", key).Warn("cache entry undecodable, treating as miss")
	}

	v, err := fill(ctx)
	if err != nil {
		return v, err
	}

	// invalidated while filling: the value may predate the write
	if c.generation(key) != gen {
		return v, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("key", key).Warn("cache encode failed")
		return v, nil
	}
	if err := c.store.Set(ctx, key, data, c.ttl[key]); err != nil {
		utils.ErrorLogger.WithError(err).WithField("key", key).Warn("cache write failed")
		return v, nil
	}
	if c.generation(key) != gen {
		if err := c.store.Delete(ctx, key); err != nil {
			utils.ErrorLogger.WithError(err).WithField("key", key).Warn("cache delete of raced entry failed")
		}
	}
	return v, nil
}

// Invalidate drops every key in groups. Unknown groups are reported in Result.Err.
func (c *Cache) Invalidate(ctx context.Context, groups ...Group) Result {
	if c == nil {
		return Result{}
	}

	var res Result
	seen := make(map[string]bool)
	for _, g := range groups {
		keys, ok := groupKeys[g]
		if !ok {
			res.Err = fmt.Errorf("unknown cache group %q", g)
			continue
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				res.Keys = append(res.Keys, k)
			}
		}
	}
	if len(res.Keys) == 0 {
		return res
	}

	c.mu.Lock()
	for _, k := range res.Keys {
		c.gens[k]++
	}
	c.mu.Unlock()

	if err := c.store.Delete(ctx, res.Keys...); err != nil {
		res.Err = err
		utils.ErrorLogger.WithError(err).WithFields(logrus.Fields{"keys": res.Keys}).Warn("cache invalidation failed")
	}
	return res
}
