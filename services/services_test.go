package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-order/cache"
	"github.com/yeremiapane/table-order/database"
	"github.com/yeremiapane/table-order/kds"
	"github.com/yeremiapane/table-order/models"
	"github.com/yeremiapane/table-order/testutil"
	"github.com/yeremiapane/table-order/utils"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	utils.SilenceLoggers()
	os.Exit(m.Run())
}

type spyCache struct {
	mu     sync.Mutex
	groups [][]cache.Group
}

func (s *spyCache) Invalidate(_ context.Context, groups ...cache.Group) cache.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, groups)
	return cache.Result{}
}

func (s *spyCache) calls() [][]cache.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]cache.Group(nil), s.groups...)
}

type published struct {
	Name string
	Data map[string]any
}

type spyPublisher struct {
	mu     sync.Mutex
	events []published
}

func (s *spyPublisher) Publish(name string, data map[string]any) kds.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, published{Name: name, Data: data})
	return kds.Result{EventID: name}
}

func (s *spyPublisher) all() []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]published(nil), s.events...)
}

type fixture struct {
	db     *gorm.DB
	pool   *database.Pool
	cache  *spyCache
	pub    *spyPublisher
	engine *OrderEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLite(t)
	pool, err := database.NewPool(context.Background(), db, database.PoolConfig{
		MinSize:        1,
		MaxSize:        4,
		AcquireTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Drain(context.Background()) })

	require.NoError(t, database.Bootstrap(context.Background(), pool, database.SeedConfig{
		Tables:        6,
		AdminUsername: "admin",
		AdminPassword: "1234",
	}))

	f := &fixture{db: db, pool: pool, cache: &spyCache{}, pub: &spyPublisher{}}
	f.engine = NewOrderEngine(pool, f.cache, f.pub)
	return f
}

func (f *fixture) table(t *testing.T, id uint) models.Table {
	t.Helper()
	var tbl models.Table
	require.NoError(t, f.db.First(&tbl, id).Error)
	return tbl
}

func (f *fixture) order(t *testing.T, id uint) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, f.db.First(&o, id).Error)
	return o
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func uintPtr(v uint) *uint { return &v }

func strPtr(s string) *string { return &s }
