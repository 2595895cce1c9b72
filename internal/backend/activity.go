package backend

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/treykane/gostly/internal/events"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/util"
)

// timelineWindow bounds how many journal entries are served per call.
const timelineWindow = 500

func (l *Local) ListTimelineEvents(ctx context.Context) ([]model.TimelineEvent, error) {
	return l.journal.Read(events.Query{Limit: timelineWindow})
}

// ListRecentLogs returns up to limit entries, oldest first.
func (l *Local) ListRecentLogs(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = util.DefaultLogLimit
	}
	return l.logs.Recent(limit), nil
}

func (l *Local) ClearLogs(ctx context.Context) error {
	l.logs.Clear()
	return nil
}

// ListActivity returns the persisted profile operation records.
func (l *Local) ListActivity(ctx context.Context, profileID int64, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 {
		limit = util.DefaultActivityLimit
	}
	return l.db.RecentActivity(ctx, profileID, limit)
}

// uptime renders the time since start, e.g. "3 minutes".
func uptime(start, now time.Time) string {
	if now.Sub(start) < time.Second {
		return "just started"
	}
	return strings.TrimSpace(humanize.RelTime(start, now, "", ""))
}
