package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/util"
)

// RouterController starts, stops and watches the host-mapping router.
type RouterController struct {
	backend  bridge.Backend
	store    *Store
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// FieldListenAddr names the router address in a ValidationError.
const FieldListenAddr = "listen_addr"

// ValidateListenAddr accepts only the ":<port>" form with a port in 1..65535.
func ValidateListenAddr(addr string) error {
	if _, err := util.ParsePortOnlyAddr(addr); err != nil {
		return &ValidationError{Field: FieldListenAddr, Message: err.Error()}
	}
	return nil
}

// Refresh asks the backend whether the router is running.
func (c *RouterController) Refresh(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	st, err := c.backend.IsHostRouterRunning(ctx)
	if err != nil {
		c.log.Debug("host router status probe failed", "error", err)
		return fmt.Errorf("host router status: %w", err)
	}
	c.store.applyRouterStatus(st)
	return nil
}

// Watch refreshes immediately and then every interval until ctx ends. Ticks
// run in their own goroutines; Watch returns once they have all finished.
func (c *RouterController) Watch(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()
	refresh := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Refresh(ctx)
		}()
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// Start validates addr and starts the router on it. An invalid address is
// recorded as a field error without contacting the backend.
func (c *RouterController) Start(ctx context.Context, addr string) error {
	if _, err := util.ParsePortOnlyAddr(addr); err != nil {
		c.store.setRouterAddrError(err.Error())
		return &ValidationError{Field: FieldListenAddr, Message: err.Error()}
	}
	if !c.store.beginRouterOp(addr) {
		return ErrRouterBusy
	}
	var err error
	if c.backend != nil {
		err = c.backend.StartHostRouter(ctx, addr)
	}
	now := c.now()
	c.store.finishRouterOp(func(r *model.RouterState) {
		if err != nil {
			r.Notice = &model.Notice{Level: model.NoticeError, Text: "Failed to start host router: " + bridge.Message(err), At: now}
			return
		}
		r.Running = true
		r.Notice = &model.Notice{Level: model.NoticeSuccess, Text: "Host router started on " + addr, At: now}
	})
	if err != nil {
		c.log.Warn("start host router failed", "addr", addr, "error", bridge.DebugMessage(err))
		return fmt.Errorf("start host router: %w", err)
	}
	c.log.Info("host router started", "addr", addr)
	return nil
}

// Stop stops the router.
func (c *RouterController) Stop(ctx context.Context) error {
	if !c.store.beginRouterOp("") {
		return ErrRouterBusy
	}
	var err error
	if c.backend != nil {
		err = c.backend.StopHostRouter(ctx)
	}
	now := c.now()
	c.store.finishRouterOp(func(r *model.RouterState) {
		if err != nil {
			r.Notice = &model.Notice{Level: model.NoticeError, Text: "Failed to stop host router: " + bridge.Message(err), At: now}
			return
		}
		r.Running = false
		r.Notice = &model.Notice{Level: model.NoticeSuccess, Text: "Host router stopped", At: now}
	})
	if err != nil {
		c.log.Warn("stop host router failed", "error", bridge.DebugMessage(err))
		return fmt.Errorf("stop host router: %w", err)
	}
	c.log.Info("host router stopped")
	return nil
}

// Busy reports whether a start/stop is in flight.
func (c *RouterController) Busy() bool { return c.store.routerBusy() }
