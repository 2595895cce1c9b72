package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/treykane/gostly/internal/model"
)

// Activity actions recorded for profiles.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionStarted = "started"
	ActionStopped = "stopped"
)

// AddActivity records one profile operation.
func (s *DB) AddActivity(ctx context.Context, a model.ActivityLog) error {
	if a.Status == "" {
		a.Status = "success"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_logs (profile_id, profile_name, action, details, timestamp, status) VALUES (?, ?, ?, ?, ?, ?)`,
		nullableID(a.ProfileID), a.ProfileName, a.Action, a.Details, a.Timestamp, a.Status,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit records, newest first. A profileID of
// zero returns records for every profile.
func (s *DB) RecentActivity(ctx context.Context, profileID int64, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, profile_id, profile_name, action, details, timestamp, status FROM activity_logs`
	args := []any{}
	if profileID != 0 {
		query += ` WHERE profile_id = ?`
		args = append(args, profileID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := []model.ActivityLog{}
	for rows.Next() {
		var a model.ActivityLog
		var pid sql.NullInt64
		if err := rows.Scan(&a.ID, &pid, &a.ProfileName, &a.Action, &a.Details, &a.Timestamp, &a.Status); err != nil {
			return nil, err
		}
		a.ProfileID = pid.Int64
		out = append(out, a)
	}
	return out, rows.Err()
}

// nullableID keeps deleted or unknown profiles from violating the foreign key.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
