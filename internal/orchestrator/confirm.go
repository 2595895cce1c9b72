package orchestrator

import (
	"context"
	"fmt"

	"github.com/treykane/gostly/internal/model"
)

type deleteFunc func(ctx context.Context, id int64) error

// Gate holds at most one destructive action until the operator confirms it.
// Deletes are not reachable any other way.
type Gate struct {
	store    *Store
	deleters map[model.TargetKind]deleteFunc
}

func newGate(store *Store) *Gate {
	return &Gate{store: store, deleters: make(map[model.TargetKind]deleteFunc)}
}

func (g *Gate) register(kind model.TargetKind, fn deleteFunc) {
	g.deleters[kind] = fn
}

// Request replaces any pending confirmation with this one.
func (g *Gate) Request(id int64, label string, kind model.TargetKind) error {
	if _, ok := g.deleters[kind]; !ok {
		return fmt.Errorf("unknown confirmation target kind %q", kind)
	}
	g.store.setPending(&model.PendingConfirmation{TargetID: id, TargetLabel: label, TargetKind: kind})
	return nil
}

// Confirm runs the pending delete. The pending target is cleared before the
// delete runs, so it is gone whatever the outcome. With nothing pending,
// Confirm does nothing.
func (g *Gate) Confirm(ctx context.Context) error {
	p := g.store.takePending()
	if p == nil {
		return nil
	}
	return g.deleters[p.TargetKind](ctx, p.TargetID)
}

// Cancel drops the pending confirmation.
func (g *Gate) Cancel() {
	g.store.setPending(nil)
}

// Pending returns the pending confirmation, if any.
func (g *Gate) Pending() *model.PendingConfirmation {
	return g.store.Snapshot().Pending
}
