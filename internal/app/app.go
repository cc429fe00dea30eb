// Package app wires the caches, the event stream and the HTTP API into one
// process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/micro-ha/entitycache/internal/config"
	httpapi "github.com/micro-ha/entitycache/internal/http"
	"github.com/micro-ha/entitycache/internal/http/handlers"
	"github.com/micro-ha/entitycache/internal/metric"
	"github.com/micro-ha/entitycache/internal/model"
	"github.com/micro-ha/entitycache/internal/poller"
	"github.com/micro-ha/entitycache/internal/repository"
	"github.com/micro-ha/entitycache/internal/rest"
	"github.com/micro-ha/entitycache/internal/state"
	"github.com/micro-ha/entitycache/internal/storage"
	"github.com/micro-ha/entitycache/internal/stream"
	"github.com/micro-ha/entitycache/internal/syncer"
)

// App owns every long-lived component. It is built once per process.
type App struct {
	cfg       config.Config
	logger    *slog.Logger
	metrics   *metric.Registry
	store     *state.Store
	rest      *rest.Client
	persister repository.Persister
	db        *storage.DB
	stream    *stream.Client
	poller    *poller.Poller

	Things       *repository.Repository[model.Thing]
	Items        *repository.Repository[model.Item]
	Bindings     *repository.Repository[model.Binding]
	Rules        *repository.Repository[model.Rule]
	ThingTypes   *repository.Repository[model.ThingType]
	ChannelTypes *repository.Repository[model.ChannelType]
	Inbox        *repository.Repository[model.DiscoveryResult]
	Templates    *repository.Repository[model.Template]

	caches []repository.Cache
	byName map[string]repository.Cache
}

// Option overrides a collaborator, mostly for tests.
type Option func(*App)

// WithTransport replaces the transport chosen from configuration.
func WithTransport(t stream.Transport) Option {
	return func(a *App) { a.stream = newStream(a, t) }
}

// WithPersister stores snapshots in db. Without it nothing is persisted.
func WithPersister(db *storage.DB) Option {
	return func(a *App) {
		if db != nil {
			a.persister = db
			a.db = db
		}
	}
}

// New builds the application from cfg.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metric.NewRegistry(),
		store:   state.NewStore(),
		rest:    rest.NewClient(cfg.Server.BaseURL(), cfg.Server.Token),
		byName:  map[string]repository.Cache{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.stream == nil {
		transport, err := NewTransport(cfg)
		if err != nil {
			return nil, err
		}
		a.stream = newStream(a, transport)
	}

	if err := a.registerRepositories(); err != nil {
		return nil, err
	}
	a.poller = poller.New(a.caches, cfg.RefreshInterval, logger.With("component", "poller"))
	a.registerSynchronizers()
	return a, nil
}

// NewTransport picks the event stream transport named by cfg.
func NewTransport(cfg config.Config) (stream.Transport, error) {
	switch cfg.EventsTransport {
	case config.TransportSSE, "":
		return stream.NewSSETransport(cfg.EventsURL, cfg.Server.Token, nil), nil
	case config.TransportWebSocket:
		return stream.NewWebSocketTransport(cfg.EventsURL, cfg.Server.Token), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidTransport, cfg.EventsTransport)
	}
}

func newStream(a *App, transport stream.Transport) *stream.Client {
	return stream.New(transport,
		stream.WithLogger(a.logger.With("component", "stream")),
		stream.WithMetrics(a.metrics.Stream),
		stream.WithReconnectDelay(a.cfg.ReconnectDelay),
		stream.WithReconnectHook(a.onReconnect),
	)
}

// onReconnect runs after every reconnect. Events sent while disconnected
// are lost, so every cache is refetched.
func (a *App) onReconnect() {
	a.MarkAllDirty()
	if a.poller != nil {
		a.poller.TriggerRefresh()
	}
}

func register[T any](a *App, name string, key func(*T) string, fetch repository.FetchFunc[T]) (*repository.Repository[T], error) {
	coll, err := state.Register(a.store, name, key)
	if err != nil {
		return nil, err
	}
	repo := repository.New(a.store, coll, fetch, repository.Config{
		CacheDisabled: !a.cfg.CacheEnabled(name),
		Persister:     a.persister,
		Logger:        a.logger,
		Metrics:       a.metrics.Cache,
	})
	a.caches = append(a.caches, repo)
	a.byName[name] = repo
	return repo, nil
}

func (a *App) registerRepositories() error {
	var err error
	if a.Things, err = register(a, model.CollectionThings, model.ThingKey, a.rest.Things); err != nil {
		return err
	}
	if a.Items, err = register(a, model.CollectionItems, model.ItemKey, a.rest.Items); err != nil {
		return err
	}
	if a.Bindings, err = register(a, model.CollectionBindings, model.BindingKey, a.rest.Bindings); err != nil {
		return err
	}
	if a.Rules, err = register(a, model.CollectionRules, model.RuleKey, a.rest.Rules); err != nil {
		return err
	}
	if a.ThingTypes, err = register(a, model.CollectionThingTypes, model.ThingTypeKey, a.rest.ThingTypes); err != nil {
		return err
	}
	a.ThingTypes.WithDetail(a.rest.ThingType)
	if a.ChannelTypes, err = register(a, model.CollectionChannelTypes, model.ChannelTypeKey, a.rest.ChannelTypes); err != nil {
		return err
	}
	if a.Inbox, err = register(a, model.CollectionInbox, model.DiscoveryResultKey, a.rest.Inbox); err != nil {
		return err
	}
	if a.Templates, err = register(a, model.CollectionTemplates, model.TemplateKey, a.rest.Templates); err != nil {
		return err
	}
	return nil
}

func (a *App) registerSynchronizers() {
	opts := []syncer.Option{
		syncer.WithLogger(a.logger.With("component", "syncer")),
		syncer.WithMetrics(a.metrics.Sync),
	}
	syncer.NewThings(a.Things, opts...).Register(a.stream)
	syncer.NewItems(a.Items, opts...).Register(a.stream)
	syncer.NewRules(a.Rules, opts...).Register(a.stream)
	syncer.NewInbox(a.Inbox, opts...).Register(a.stream)
}

// Collection returns the cache registered under name.
func (a *App) Collection(name string) (repository.Cache, bool) {
	cache, ok := a.byName[name]
	return cache, ok
}

// Collections returns every cache in registration order.
func (a *App) Collections() []repository.Cache {
	return append([]repository.Cache(nil), a.caches...)
}

func (a *App) Store() *state.Store { return a.store }

func (a *App) Stream() *stream.Client { return a.stream }

func (a *App) Poller() *poller.Poller { return a.poller }

func (a *App) Metrics() *metric.Registry { return a.metrics }

// snapshots returns the snapshot store, or nil when persistence is off.
func (a *App) snapshots() handlers.Snapshots {
	if a.db == nil {
		return nil
	}
	return a.db
}

// MarkAllDirty forces the next read of every collection to go to the server.
func (a *App) MarkAllDirty() {
	for _, cache := range a.caches {
		cache.SetDirty()
	}
}

// Prime warms every cache from its persisted snapshot and then fetches it.
// Failures are logged; the reconcile loop retries dirty or cold caches.
func (a *App) Prime(ctx context.Context) {
	for _, cache := range a.caches {
		if err := cache.Warm(ctx); err != nil {
			a.logger.Warn("warm start failed", "collection", cache.Name(), "err", err)
		}
	}
	for _, cache := range a.caches {
		if ctx.Err() != nil {
			return
		}
		if _, err := cache.Sync(ctx, false); err != nil {
			a.logger.Warn("initial fetch failed", "collection", cache.Name(), "err", err)
		}
	}
}

// Run starts the event stream, the reconcile loop and the HTTP server and
// blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.stream.Start(ctx); err != nil {
		return err
	}
	a.Prime(ctx)
	go a.poller.Run(ctx)

	api := handlers.New(a, a.poller, a.store, a.stream, a.snapshots(), a.logger.With("component", "http"))
	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api, a.metrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("server starting", "addr", server.Addr, "events", a.cfg.EventsURL, "transport", a.cfg.EventsTransport)
	err := httpapi.RunServer(ctx, server)
	if ctx.Err() != nil {
		a.stream.Wait()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
