package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
)

// ServicePoller keeps ServiceStatus current. Each tick launches both probes in
// their own goroutines, so a slow probe never delays the next tick.
type ServicePoller struct {
	backend  bridge.Backend
	store    *Store
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start polls immediately and then on every interval until Stop or ctx ends.
// Calling Start while running is a no-op.
func (p *ServicePoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		p.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

func (p *ServicePoller) tick(ctx context.Context) {
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.CheckAvailability(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.CheckStatus(ctx)
	}()
}

// Stop cancels the loop and waits for in-flight probes.
func (p *ServicePoller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

// CheckAvailability probes for the engine binary and its version. Any error
// marks the engine unavailable; nothing is returned to the caller.
func (p *ServicePoller) CheckAvailability(ctx context.Context) {
	if p.backend == nil {
		p.store.setService(func(s *model.ServiceStatus) {
			s.Available = true
			s.Version = bridge.FallbackEngineVersion
		})
		return
	}
	available, err := p.backend.IsEngineAvailable(ctx)
	if err != nil {
		p.log.Debug("engine availability probe failed", "error", err)
		p.markUnavailable()
		return
	}
	if !available {
		p.markUnavailable()
		return
	}
	version, err := p.backend.GetEngineVersion(ctx)
	if err != nil {
		p.log.Debug("engine version probe failed", "error", err)
		p.markUnavailable()
		return
	}
	p.store.setService(func(s *model.ServiceStatus) {
		s.Available = true
		s.Version = version
	})
}

func (p *ServicePoller) markUnavailable() {
	p.store.setService(func(s *model.ServiceStatus) {
		s.Available = false
		s.Version = ""
	})
}

// CheckStatus asks whether the managed service is running. LastCheck is
// stamped on every outcome so staleness is visible.
func (p *ServicePoller) CheckStatus(ctx context.Context) {
	if p.backend == nil {
		fb := bridge.FallbackEngineStatus()
		now := p.now()
		p.store.setService(func(s *model.ServiceStatus) {
			s.Running = fb.Running
			s.ServiceVersion = fb.Version
			s.Uptime = fb.Uptime
			s.LastCheck = now
		})
		return
	}
	st, err := p.backend.GetServiceStatus(ctx)
	now := p.now()
	if err != nil {
		p.log.Debug("service status probe failed", "error", err)
		p.store.setService(func(s *model.ServiceStatus) {
			s.Running = false
			s.LastCheck = now
		})
		return
	}
	version := st.Version
	if version == "" {
		version = "Unknown"
	}
	p.store.setService(func(s *model.ServiceStatus) {
		s.Running = st.Running
		s.ServiceVersion = version
		s.Uptime = st.Uptime
		s.LastCheck = now
	})
}
