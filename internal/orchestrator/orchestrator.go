// Package orchestrator is the profile and service orchestration layer.
//
// It owns the canonical dashboard state (profiles, engine status, host router,
// host mappings, activity) and the controllers that change it. Controller
// methods block until the backend answers and are meant to be run off the UI
// loop. Readers take a Snapshot whenever Changes fires.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/util"
)

// Config wires an Orchestrator. Zero durations use the package defaults.
type Config struct {
	// Backend is nil in headless mode.
	Backend           bridge.Backend
	ServiceInterval   time.Duration
	RouterInterval    time.Duration
	ListTimeout       time.Duration
	DefaultRouterAddr string
	Logger            *slog.Logger
	Now               func() time.Time
}

type Orchestrator struct {
	store *Store
	log   *slog.Logger

	Profiles *ProfileController
	Service  *ServicePoller
	Router   *RouterController
	Mappings *MappingController
	Activity *ActivityController
	Gate     *Gate

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// New builds the orchestrator. Nothing runs until Start.
func New(cfg Config) *Orchestrator {
	if cfg.ServiceInterval <= 0 {
		cfg.ServiceInterval = util.ServicePollInterval
	}
	if cfg.RouterInterval <= 0 {
		cfg.RouterInterval = util.RouterPollInterval
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = util.ListTimeout
	}
	if cfg.DefaultRouterAddr == "" {
		cfg.DefaultRouterAddr = util.DefaultRouterAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	store := NewStore(cfg.DefaultRouterAddr)
	o := &Orchestrator{
		store: store,
		log:   cfg.Logger,
		Profiles: &ProfileController{
			backend: cfg.Backend,
			store:   store,
			timeout: cfg.ListTimeout,
			log:     cfg.Logger.With("component", "profiles"),
			now:     cfg.Now,
		},
		Service: &ServicePoller{
			backend:  cfg.Backend,
			store:    store,
			interval: cfg.ServiceInterval,
			log:      cfg.Logger.With("component", "poller"),
			now:      cfg.Now,
		},
		Router: &RouterController{
			backend:  cfg.Backend,
			store:    store,
			interval: cfg.RouterInterval,
			log:      cfg.Logger.With("component", "router"),
			now:      cfg.Now,
		},
		Mappings: &MappingController{
			backend: cfg.Backend,
			store:   store,
			log:     cfg.Logger.With("component", "mappings"),
		},
		Activity: &ActivityController{
			backend: cfg.Backend,
			store:   store,
			log:     cfg.Logger.With("component", "activity"),
		},
		Gate: newGate(store),
	}
	o.Gate.register(model.TargetProfile, o.Profiles.remove)
	o.Gate.register(model.TargetHostMapping, o.Mappings.remove)
	return o
}

// Start launches the service poller and the initial loads.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.cancel != nil {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()

	o.Service.Start(ctx)
	loads := []func(context.Context) error{
		o.Profiles.List,
		o.Mappings.List,
		o.Activity.RefreshTimeline,
		func(ctx context.Context) error { return o.Activity.RefreshLogs(ctx, 0) },
		o.Router.Refresh,
	}
	for _, load := range loads {
		o.wg.Add(1)
		go func(load func(context.Context) error) {
			defer o.wg.Done()
			if err := load(ctx); err != nil {
				o.log.Debug("initial load failed", "error", err)
			}
		}(load)
	}
}

// Close stops polling and waits for background work to end.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()
	o.stopWatch()
	o.Service.Stop()
	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
}

// WatchRouter polls router status until the returned stop func is called.
// Only one watch runs at a time; a new call replaces the previous watch.
func (o *Orchestrator) WatchRouter() (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.mu.Lock()
	prevCancel, prevDone := o.watchCancel, o.watchDone
	o.watchCancel, o.watchDone = cancel, done
	o.mu.Unlock()
	halt(prevCancel, prevDone)

	go func() {
		defer close(done)
		o.Router.Watch(ctx)
	}()
	return func() {
		o.mu.Lock()
		if o.watchDone == done {
			o.watchCancel, o.watchDone = nil, nil
		}
		o.mu.Unlock()
		halt(cancel, done)
	}
}

func (o *Orchestrator) stopWatch() {
	o.mu.Lock()
	cancel, done := o.watchCancel, o.watchDone
	o.watchCancel, o.watchDone = nil, nil
	o.mu.Unlock()
	halt(cancel, done)
}

func halt(cancel context.CancelFunc, done <-chan struct{}) {
	if cancel != nil {
		cancel()
		<-done
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() State { return o.store.Snapshot() }

// Changes fires after state writes.
func (o *Orchestrator) Changes() <-chan struct{} { return o.store.Changes() }

// Store exposes the underlying store.
func (o *Orchestrator) Store() *Store { return o.store }
