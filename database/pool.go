package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-order/utils"
	"gorm.io/gorm"
)

// Default pool configuration
const (
	DefaultMinSize        = 2
	DefaultMaxSize        = 15
	DefaultAcquireTimeout = 3 * time.Second
	DefaultProbeInterval  = 30 * time.Second
	DefaultMaxIdleTime    = 5 * time.Minute
)

type PoolConfig struct {
	MinSize        int
	MaxSize        int
	AcquireTimeout time.Duration
	ProbeInterval  time.Duration
	MaxIdleTime    time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.MinSize < 0 {
		c.MinSize = 0
	}
	if c.MinSize > c.MaxSize {
		c.MinSize = c.MaxSize
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	if c.MaxIdleTime <= 0 {
		c.MaxIdleTime = DefaultMaxIdleTime
	}
	return c
}

// Pool hands out exclusive database connections, at most MaxSize at a time.
//
// database/sql keeps the physical connections; Pool adds the bounded wait,
// liveness checks on acquire, forced discard of broken sessions and a
// keepalive loop that keeps MinSize connections warm.
type Pool struct {
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   PoolConfig

	slots    chan struct{}
	inflight sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	stop chan struct{}
	done chan struct{}
}

// Conn is one acquired connection. DB is a gorm session bound to it.
type Conn struct {
	DB *gorm.DB

	raw      *sql.Conn
	released atomic.Bool
}

func NewPool(ctx context.Context, db *gorm.DB, cfg PoolConfig) (*Pool, error) {
	cfg = cfg.withDefaults()

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxSize)
	sqlDB.SetMaxIdleConns(cfg.MaxSize)
	sqlDB.SetConnMaxIdleTime(cfg.MaxIdleTime)

	p := &Pool{
		db:    db,
		sqlDB: sqlDB,
		cfg:   cfg,
		slots: make(chan struct{}, cfg.MaxSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	warmCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := p.probe(warmCtx); err != nil {
		_ = sqlDB.Close()
		return nil, connectivityError(err)
	}

	go p.keepalive()

	utils.InfoLogger.WithFields(logrus.Fields{
		"dialect": p.Dialect(),
		"min":     cfg.MinSize,
		"max":     cfg.MaxSize,
	}).Info("database connection pool created")
	return p, nil
}

// Acquire waits at most AcquireTimeout for a free slot.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	p.inflight.Add(1)
	p.mu.RUnlock()

	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	select {
	case p.slots <- struct{}{}:
	default:
		select {
		case p.slots <- struct{}{}:
		case <-acquireCtx.Done():
			p.inflight.Done()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			utils.ErrorLogger.WithField("max", p.cfg.MaxSize).Warn("connection pool exhausted")
			return nil, ErrPoolExhausted
		}
	}

	raw, err := p.open(acquireCtx)
	if err != nil {
		<-p.slots
		p.inflight.Done()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	session := p.db.Session(&gorm.Session{Context: ctx, NewDB: true})
	session.Statement.ConnPool = raw
	return &Conn{DB: session, raw: raw}, nil
}

// open gets a live connection, replacing one that fails its ping once.
func (p *Pool) open(ctx context.Context) (*sql.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := p.sqlDB.Conn(ctx)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if err := raw.PingContext(ctx); err != nil {
			utils.ErrorLogger.WithError(err).Warn("discarding connection that failed liveness ping")
			discard(raw)
			lastErr = err
			continue
		}
		return raw, nil
	}
	return nil, connectivityError(lastErr)
}

// Release returns c to the pool. With discard the physical connection is
// closed instead of recycled. Releasing twice is a no-op.
func (p *Pool) Release(c *Conn, discardConn bool) {
	if c == nil || !c.released.CompareAndSwap(false, true) {
		return
	}

	if discardConn {
		discard(c.raw)
		utils.ErrorLogger.Warn("database connection discarded")
	} else if err := c.raw.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		utils.ErrorLogger.WithError(err).Warn("failed to release connection")
	}

	<-p.slots
	p.inflight.Done()
}

// discard makes database/sql close the driver connection rather than keep it idle.
func discard(raw *sql.Conn) {
	_ = raw.Raw(func(any) error { return driver.ErrBadConn })
	_ = raw.Close()
}

func (p *Pool) keepalive() {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
			if err := p.probe(ctx); err != nil {
				utils.ErrorLogger.WithError(err).Warn("pool liveness probe failed")
			}
			cancel()
		case <-p.stop:
			return
		}
	}
}

// probe pings up to MinSize connections (at least one) using only free slots,
// which also opens connections until MinSize are warm. Broken ones are discarded.
func (p *Pool) probe(ctx context.Context) error {
	want := p.cfg.MinSize
	if want < 1 {
		want = 1
	}

	held := make([]*sql.Conn, 0, want)
	defer func() {
		for _, raw := range held {
			_ = raw.Close()
			<-p.slots
		}
	}()

	var firstErr error
	for attempts := 0; len(held) < want && attempts < 2*want; attempts++ {
		select {
		case p.slots <- struct{}{}:
		default:
			// every slot is busy, so the pool is evidently alive
			return firstErr
		}

		raw, err := p.sqlDB.Conn(ctx)
		if err != nil {
			<-p.slots
			return err
		}
		if err := raw.PingContext(ctx); err != nil {
			discard(raw)
			<-p.slots
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				return firstErr
			}
			continue
		}
		held = append(held, raw)
	}
	return firstErr
}

// Ping checks that a connection can be acquired and is alive.
func (p *Pool) Ping(ctx context.Context) error {
	return p.WithConn(ctx, func(*gorm.DB) error { return nil })
}

func (p *Pool) Stats() sql.DBStats {
	return p.sqlDB.Stats()
}

func (p *Pool) Config() PoolConfig {
	return p.cfg
}

// Dialect is the gorm dialector name: postgres, mysql or sqlite.
func (p *Pool) Dialect() string {
	return p.db.Dialector.Name()
}

// SupportsReturning reports whether UPDATE ... RETURNING is available.
func (p *Pool) SupportsReturning() bool {
	return p.Dialect() != "mysql"
}

// Drain stops handing out connections, waits for in-flight ones until ctx
// expires, then closes the database.
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	<-p.done

	waited := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		utils.ErrorLogger.WithField("in_use", p.sqlDB.Stats().InUse).
			Warn("pool drain timed out, closing with connections in use")
	}

	utils.InfoLogger.Info("database connection pool closed")
	return p.sqlDB.Close()
}
