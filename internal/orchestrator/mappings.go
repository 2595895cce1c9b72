package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
)

// MappingController manages host mappings.
type MappingController struct {
	backend bridge.Backend
	store   *Store
	log     *slog.Logger
}

// List reloads mappings from the backend. Headless it is a no-op.
func (c *MappingController) List(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	seq := c.store.begin()
	list, err := c.backend.ListHostMappings(ctx)
	if err != nil {
		c.fail("list host mappings", err)
		return fmt.Errorf("list host mappings: %w", err)
	}
	c.store.replaceMappings(seq, list)
	c.store.setMappingError("")
	return nil
}

// Save creates (ID 0) or updates a mapping.
func (c *MappingController) Save(ctx context.Context, m model.HostMapping) (model.HostMapping, error) {
	if err := m.Validate(); err != nil {
		return model.HostMapping{}, &ValidationError{Message: err.Error()}
	}
	proto, _ := model.ParseProtocol(string(m.Protocol))
	m.Protocol = proto
	if m.ID != 0 {
		if _, ok := c.store.mapping(m.ID); !ok {
			return model.HostMapping{}, fmt.Errorf("host mapping %d: %w", m.ID, ErrNotFound)
		}
	}

	seq := c.store.begin()
	if c.backend == nil {
		if m.ID == 0 {
			m = c.store.addLocalMapping(seq, m)
		} else {
			c.store.putMapping(seq, m)
		}
		c.store.setMappingError("")
		return m, nil
	}

	if err := c.backend.UpsertHostMapping(ctx, m); err != nil {
		c.fail("save host mapping", err)
		return model.HostMapping{}, fmt.Errorf("save host mapping: %w", err)
	}
	if m.ID != 0 {
		c.store.putMapping(seq, m)
	}
	c.store.setMappingError("")
	// New rows get their id from the backend; pick it up from a fresh listing.
	if err := c.List(ctx); err != nil {
		c.log.Warn("re-list after save failed", "hostname", m.Hostname, "error", err)
		return m, nil
	}
	if m.ID == 0 {
		for _, cur := range c.store.Snapshot().Mappings {
			if cur.Hostname == m.Hostname {
				m = cur
			}
		}
	}
	return m, nil
}

func (c *MappingController) remove(ctx context.Context, id int64) error {
	seq := c.store.begin()
	if c.backend != nil {
		if err := c.backend.DeleteHostMapping(ctx, id); err != nil {
			c.fail("delete host mapping", err)
			return fmt.Errorf("delete host mapping: %w", err)
		}
	}
	c.store.removeMapping(seq, id)
	c.store.setMappingError("")
	return nil
}

func (c *MappingController) fail(op string, err error) {
	c.log.Warn(op+" failed", "error", bridge.DebugMessage(err))
	c.store.setMappingError(bridge.Message(err))
}
