package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/util"
)

// ActivityController loads engine logs, the event timeline and the persisted
// profile operation records. On failure the previously loaded data stays in
// place.
type ActivityController struct {
	backend bridge.Backend
	store   *Store
	log     *slog.Logger
}

// RefreshLogs loads the most recent log entries. limit <= 0 means the default.
func (c *ActivityController) RefreshLogs(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = util.DefaultLogLimit
	}
	if c.backend == nil {
		logs := bridge.FallbackLogs()
		if len(logs) > limit {
			logs = logs[len(logs)-limit:]
		}
		c.store.setLogs(logs)
		return nil
	}
	logs, err := c.backend.ListRecentLogs(ctx, limit)
	if err != nil {
		c.fail("list logs", err)
		return fmt.Errorf("list logs: %w", err)
	}
	c.store.setLogs(logs)
	c.store.setActivityError("")
	return nil
}

// RefreshTimeline loads the event timeline.
func (c *ActivityController) RefreshTimeline(ctx context.Context) error {
	if c.backend == nil {
		c.store.setTimeline(bridge.FallbackTimeline())
		return nil
	}
	events, err := c.backend.ListTimelineEvents(ctx)
	if err != nil {
		c.fail("list timeline", err)
		return fmt.Errorf("list timeline: %w", err)
	}
	c.store.setTimeline(events)
	c.store.setActivityError("")
	return nil
}

// RefreshActivity loads profile operation records, newest first. profileID 0
// means every profile; limit <= 0 means the default.
func (c *ActivityController) RefreshActivity(ctx context.Context, profileID int64, limit int) error {
	if limit <= 0 {
		limit = util.DefaultActivityLimit
	}
	if c.backend == nil {
		var records []model.ActivityLog
		for _, a := range bridge.FallbackActivity() {
			if profileID == 0 || a.ProfileID == profileID {
				records = append(records, a)
			}
		}
		if len(records) > limit {
			records = records[:limit]
		}
		c.store.setActivity(records)
		return nil
	}
	records, err := c.backend.ListActivity(ctx, profileID, limit)
	if err != nil {
		c.fail("list activity", err)
		return fmt.Errorf("list activity: %w", err)
	}
	c.store.setActivity(records)
	c.store.setActivityError("")
	return nil
}

// FilteredLogs returns the loaded log entries that pass f.
func (c *ActivityController) FilteredLogs(f model.LogFilter) []model.LogEntry {
	return f.Apply(c.store.Snapshot().Logs)
}

// ClearLogs empties the backend log buffer and the local copy.
func (c *ActivityController) ClearLogs(ctx context.Context) error {
	if c.backend != nil {
		if err := c.backend.ClearLogs(ctx); err != nil {
			c.fail("clear logs", err)
			return fmt.Errorf("clear logs: %w", err)
		}
	}
	c.store.setLogs(nil)
	c.store.setActivityError("")
	return nil
}

func (c *ActivityController) fail(op string, err error) {
	c.log.Warn(op+" failed", "error", bridge.DebugMessage(err))
	c.store.setActivityError(bridge.Message(err))
}
