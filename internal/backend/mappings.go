package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/treykane/gostly/internal/hostrouter"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/util"
)

func (l *Local) ListHostMappings(ctx context.Context) ([]model.HostMapping, error) {
	return l.db.HostMappings(ctx)
}

// UpsertHostMapping stores m and applies the new table to the router.
func (l *Local) UpsertHostMapping(ctx context.Context, m model.HostMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	proto, _ := model.ParseProtocol(string(m.Protocol))
	m.Protocol = proto

	action := "Host Mapping Added"
	if m.ID > 0 {
		action = "Host Mapping Updated"
	}
	if _, err := l.db.UpsertHostMapping(ctx, m); err != nil {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Failed to save host mapping %s: %v", m.Hostname, err), nil, "")
		return err
	}
	l.timeline(model.EventHostMapping, action,
		fmt.Sprintf("Host mapping: %s -> %s:%d (%s)", m.Hostname, m.IP, m.Port, m.Protocol),
		"success", "admin", "1s", "")
	l.reloadRoutes(ctx)
	return nil
}

func (l *Local) DeleteHostMapping(ctx context.Context, id int64) error {
	if err := l.db.DeleteHostMapping(ctx, id); err != nil {
		return err
	}
	l.timeline(model.EventHostMapping, "Host Mapping Deleted",
		fmt.Sprintf("Host mapping removed (ID: %d)", id), "success", "admin", "1s", "")
	l.reloadRoutes(ctx)
	return nil
}

func (l *Local) reloadRoutes(ctx context.Context) {
	mappings, err := l.db.HostMappings(ctx)
	if err != nil {
		l.log.Warn("failed to reload host routes", "error", err)
		return
	}
	l.router.SetMappings(mappings)
}

func (l *Local) IsHostRouterRunning(ctx context.Context) (model.RouterStatus, error) {
	return l.router.Status(), nil
}

// StartHostRouter (re)starts the router on addr with the current mappings.
func (l *Local) StartHostRouter(ctx context.Context, addr string) error {
	addr = util.NormalizeAddr(addr, util.DefaultRouterAddr)
	if l.router.Running() {
		l.addLog(model.LevelInfo, model.SourceAPI, "Stopping existing host router before starting new one", nil, "")
	}
	l.reloadRoutes(ctx)
	if err := l.router.Start(addr); err != nil {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Host router error: %v", err), nil, "")
		return err
	}
	l.timeline(model.EventHostMapping, "Host Router Started",
		fmt.Sprintf("Custom host mapping router started on %s", addr), "success", "admin", "3s", "")
	l.addLog(model.LevelInfo, model.SourceAPI, fmt.Sprintf("Custom host router started on %s", addr), nil, "")
	return nil
}

func (l *Local) StopHostRouter(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, util.RouterShutdownTimeout)
	defer cancel()
	if err := l.router.Stop(ctx); err != nil {
		if !errors.Is(err, hostrouter.ErrNotRunning) {
			l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Failed stopping host router: %v", err), nil, "")
		}
		return err
	}
	l.timeline(model.EventHostMapping, "Host Router Stopped",
		"Custom host mapping router stopped", "success", "admin", "1s", "")
	l.addLog(model.LevelInfo, model.SourceAPI, "Host router stopped", nil, "")
	return nil
}
