// Package application wires configuration into the shared infrastructure of
// the CRUD layer: the store backend, the cache, the mutation bus and the
// cache invalidator.
package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/tenantcrud/pkg/cache"
	"github.com/iota-uz/tenantcrud/pkg/cache/memcache"
	"github.com/iota-uz/tenantcrud/pkg/cache/rediscache"
	"github.com/iota-uz/tenantcrud/pkg/composables"
	"github.com/iota-uz/tenantcrud/pkg/configuration"
	"github.com/iota-uz/tenantcrud/pkg/crud"
	"github.com/iota-uz/tenantcrud/pkg/docstore"
	"github.com/iota-uz/tenantcrud/pkg/docstore/memstore"
	"github.com/iota-uz/tenantcrud/pkg/docstore/pgstore"
	"github.com/iota-uz/tenantcrud/pkg/eventbus"
	"github.com/iota-uz/tenantcrud/pkg/invalidation"
	"github.com/iota-uz/tenantcrud/pkg/logging"
)

type Application struct {
	conf        *configuration.Configuration
	log         *logrus.Logger
	pool        *pgxpool.Pool
	cache       cache.Cache
	bus         *eventbus.Bus[docstore.Mutation]
	invalidator *invalidation.Invalidator

	mu          sync.Mutex
	collections map[string]docstore.Collection
	closers     []func(context.Context) error
}

// New connects the configured backends. Close releases them again.
func New(ctx context.Context, conf *configuration.Configuration) (*Application, error) {
	app := &Application{
		conf:        conf,
		log:         conf.Logger(),
		collections: make(map[string]docstore.Collection),
	}
	if app.log == nil {
		app.log = logging.ConsoleLogger(conf.LogrusLogLevel())
	}

	if conf.StorageProvider == configuration.StoragePostgres {
		pool, err := pgxpool.New(ctx, conf.Database.Opts)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		app.pool = pool
		app.closers = append(app.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
	}

	if err := app.connectCache(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	app.bus = eventbus.New[docstore.Mutation](logging.Component(app.log, "eventbus"))
	app.invalidator = invalidation.New(app.cache, invalidation.Options{
		Mode:        invalidation.Mode(conf.Invalidation.Mode),
		QueueSize:   conf.Invalidation.QueueSize,
		MaxAttempts: conf.Invalidation.MaxAttempts,
		BaseBackoff: conf.Invalidation.RetryBase,
		MaxBackoff:  conf.Invalidation.RetryMax,
		Logger:      logging.Component(app.log, "invalidation"),
	})
	app.invalidator.Attach(app.bus)
	// The invalidator drains before the cache it evicts from is closed.
	app.closers = append(app.closers, app.invalidator.Close)
	return app, nil
}

func (app *Application) connectCache(ctx context.Context) error {
	switch app.conf.Cache.Backend {
	case configuration.CacheRedis:
		c, err := rediscache.Dial(ctx, app.conf.Cache.RedisURL)
		if err != nil {
			return err
		}
		app.cache = c
		app.closers = append(app.closers, func(context.Context) error { return c.Close() })
	default:
		mc := memcache.New(app.conf.Cache.TTL)
		mc.Start()
		app.cache = cache.NewIndexed(mc, nil)
		app.closers = append(app.closers, func(context.Context) error {
			mc.Close()
			return nil
		})
	}
	return nil
}

func (app *Application) Configuration() *configuration.Configuration { return app.conf }

func (app *Application) Logger() *logrus.Logger { return app.log }

// Pool is nil unless the postgres storage provider is configured.
func (app *Application) Pool() *pgxpool.Pool { return app.pool }

func (app *Application) Cache() cache.Cache { return app.cache }

func (app *Application) Bus() *eventbus.Bus[docstore.Mutation] { return app.bus }

func (app *Application) Invalidator() *invalidation.Invalidator { return app.invalidator }

// Collection returns the backend collection for name with the configured
// scope applied. Repeated calls return the same collection.
func (app *Application) Collection(name string) docstore.Collection {
	scoped := app.conf.CollectionName(name)
	app.mu.Lock()
	defer app.mu.Unlock()
	if coll, ok := app.collections[scoped]; ok {
		return coll
	}
	var coll docstore.Collection
	if app.conf.StorageProvider == configuration.StoragePostgres {
		coll = pgstore.New(scoped, app.pool)
	} else {
		coll = memstore.New(scoped)
	}
	app.collections[scoped] = coll
	return coll
}

// Migrate creates the tables of the named collections. It is a no-op for the
// memory storage provider.
func (app *Application) Migrate(ctx context.Context, names ...string) error {
	if app.pool == nil {
		return nil
	}
	scoped := make([]string, len(names))
	for i, name := range names {
		scoped[i] = app.conf.CollectionName(name)
	}
	return pgstore.EnsureSchema(composables.WithPool(ctx, app.pool), scoped...)
}

// StoreOptions are the docstore options sharing this application's cache and
// bus.
func (app *Application) StoreOptions() docstore.Options {
	return docstore.Options{
		Cache:    app.cache,
		CacheTTL: app.conf.Cache.TTL,
		MaxLimit: app.conf.MaxPageSize,
		Bus:      app.bus,
		Logger:   logging.Component(app.log, "docstore"),
	}
}

// Close releases every backend in reverse order of acquisition.
func (app *Application) Close(ctx context.Context) error {
	var result *multierror.Error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	app.closers = nil
	return result.ErrorOrNil()
}

func NewStore[T docstore.Entity](app *Application, name string) *docstore.Store[T] {
	return docstore.NewStore[T](app.Collection(name), app.StoreOptions())
}

// ControllerOptions fills the paging limits and logger from configuration.
func ControllerOptions[S docstore.Entity](app *Application, opts crud.Options[S]) crud.Options[S] {
	if opts.PageSize == 0 {
		opts.PageSize = app.conf.PageSize
	}
	if opts.MaxPageSize == 0 {
		opts.MaxPageSize = app.conf.MaxPageSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component(app.log, "crud")
	}
	return opts
}
