package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/table-order/cache"
	"github.com/yeremiapane/table-order/config"
	"github.com/yeremiapane/table-order/database"
	"github.com/yeremiapane/table-order/kds"
	"github.com/yeremiapane/table-order/utils"
	"gorm.io/gorm"
)

// App holds the process-wide collaborators shared by every request.
type App struct {
	Pool     *database.Pool
	Cache    *cache.Cache
	Hub      *kds.Hub
	Notifier *kds.Notifier
	Engine   *OrderEngine
	Views    *ReadViews
	Auth     *Authenticator
	Tokens   *utils.TokenManager

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, db *gorm.DB) (*App, error) {
	pool, err := database.NewPool(ctx, db, database.PoolConfig{
		MinSize:        cfg.Pool.MinSize,
		MaxSize:        cfg.Pool.MaxSize,
		AcquireTimeout: cfg.Pool.AcquireTimeout,
		ProbeInterval:  cfg.Pool.ProbeInterval,
		MaxIdleTime:    cfg.Pool.MaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	app := &App{Pool: pool, Hub: kds.NewHub()}

	store, err := newCacheStore(ctx, cfg)
	if err != nil {
		_ = pool.Drain(ctx)
		return nil, err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		app.closers = append(app.closers, closer.Close)
	}
	app.Cache = cache.New(store, cache.TTLs{
		Tables: cfg.CacheTTL.Tables,
		Orders: cfg.CacheTTL.Orders,
		Income: cfg.CacheTTL.Income,
		Stats:  cfg.CacheTTL.Stats,
	})

	sinks := []kds.Sink{app.Hub}
	if cfg.NotifyAMQPURL != "" {
		amqpSink, err := kds.NewAMQPSink(cfg.NotifyAMQPURL, cfg.NotifyExchange)
		if err != nil {
			// the websocket hub still works without the broker
			utils.ErrorLogger.WithError(err).Warn("AMQP notifications disabled")
		} else {
			sinks = append(sinks, amqpSink)
			app.closers = append(app.closers, amqpSink.Close)
			utils.InfoLogger.WithField("exchange", cfg.NotifyExchange).Info("publishing events to AMQP")
		}
	}
	app.Notifier = kds.NewNotifier(cfg.NotifyQueueSize, sinks...)
	app.Notifier.Start()

	app.Tokens = utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	app.Engine = NewOrderEngine(pool, app.Cache, app.Notifier)
	app.Views = NewReadViews(pool, app.Cache)
	app.Auth = NewAuthenticator(pool, app.Tokens)
	return app, nil
}

func newCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.CacheBackend != "redis" {
		return cache.NewMemoryStore(), nil
	}
	store, err := cache.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		// reads fall back to the database until redis is back
		utils.ErrorLogger.WithError(err).Warn("redis not reachable at startup")
	}
	return store, nil
}

// Drain stops the notifier first so queued events still go out, then the pool.
func (a *App) Drain(ctx context.Context) error {
	var errs []error
	if err := a.Notifier.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain notifier: %w", err))
	}
	a.Hub.Close()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Pool.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain pool: %w", err))
	}
	return errors.Join(errs...)
}
