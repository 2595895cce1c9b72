package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/treykane/gostly/internal/engine"
	"github.com/treykane/gostly/internal/history"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/store"
)

// ListProfiles returns stored profiles with their live status.
func (l *Local) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	profiles, err := l.db.Profiles(ctx)
	if err != nil {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("ListProfiles failed: %v", err), nil, "")
		return nil, err
	}
	for i := range profiles {
		if l.sup.IsRunning(profiles[i].ID) {
			profiles[i].Status = model.StatusRunning
		}
	}
	return profiles, nil
}

func (l *Local) AddProfile(ctx context.Context, d model.ProfileDraft) (int64, error) {
	if !d.Type.Valid() {
		return 0, fmt.Errorf("unknown profile type %q", d.Type)
	}
	id, err := l.db.AddProfile(ctx, d)
	if err != nil {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Failed to add profile %s: %v", d.Name, err), nil, d.Name)
		return 0, err
	}
	l.addLog(model.LevelInfo, model.SourceAPI, fmt.Sprintf("Profile created successfully: %s (ID: %d)", d.Name, id), &id, d.Name)
	l.timeline(model.EventConfiguration, "Profile Created",
		fmt.Sprintf("New proxy profile '%s' created (%s on %s)", d.Name, d.Type, d.Listen),
		"success", "admin", "1s", d.Name)
	l.activity(ctx, id, d.Name, store.ActionCreated,
		fmt.Sprintf("Profile created with type: %s, listen: %s, remote: %s", d.Type, d.Listen, d.Remote))
	return id, nil
}

// UpdateProfile rewrites a stopped profile. Status in p is ignored.
func (l *Local) UpdateProfile(ctx context.Context, p model.Profile) error {
	if l.sup.IsRunning(p.ID) {
		l.addLog(model.LevelWarn, model.SourceAPI, fmt.Sprintf("Cannot update running profile %s (ID: %d)", p.Name, p.ID), &p.ID, p.Name)
		return ErrUpdateRunning
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown profile type %q", p.Type)
	}
	if err := l.db.UpdateProfile(ctx, p); err != nil {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Failed to update profile %s: %v", p.Name, err), &p.ID, p.Name)
		return err
	}
	l.addLog(model.LevelInfo, model.SourceAPI, fmt.Sprintf("Profile updated successfully: %s (ID: %d)", p.Name, p.ID), &p.ID, p.Name)
	l.timeline(model.EventConfiguration, "Profile Updated",
		fmt.Sprintf("Proxy profile '%s' updated (%s on %s)", p.Name, p.Type, p.Listen),
		"success", "admin", "1s", p.Name)
	l.activity(ctx, p.ID, p.Name, store.ActionUpdated,
		fmt.Sprintf("Profile updated with type: %s, listen: %s, remote: %s", p.Type, p.Listen, p.Remote))
	return nil
}

func (l *Local) DeleteProfile(ctx context.Context, id int64) error {
	p, err := l.db.Profile(ctx, id)
	if err != nil {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Failed to get profile for deletion (ID: %d): %v", id, err), &id, "")
		return err
	}
	if l.sup.IsRunning(id) {
		l.addLog(model.LevelWarn, model.SourceAPI, fmt.Sprintf("Cannot delete running profile %s (ID: %d)", p.Name, id), &id, p.Name)
		return ErrDeleteRunning
	}
	if err := l.db.DeleteProfile(ctx, id); err != nil {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Failed to delete profile %s: %v", p.Name, err), &id, p.Name)
		return err
	}
	if err := history.Forget(id); err != nil {
		l.log.Warn("failed to update start history", "profile", p.Name, "error", err)
	}
	l.addLog(model.LevelInfo, model.SourceAPI, fmt.Sprintf("Profile deleted successfully: %s (ID: %d)", p.Name, id), &id, p.Name)
	l.timeline(model.EventConfiguration, "Profile Deleted",
		fmt.Sprintf("Proxy profile '%s' deleted", p.Name), "success", "admin", "1s", p.Name)
	// The row is gone, so the record cannot reference it.
	l.activity(ctx, 0, p.Name, store.ActionDeleted, fmt.Sprintf("Profile deleted: %s", p.Name))
	return nil
}

// StartProfile launches gost for id.
func (l *Local) StartProfile(ctx context.Context, id int64) error {
	l.mu.Lock()
	available := l.available
	l.mu.Unlock()
	if !available && !l.detectEngine(ctx) {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Cannot start profile %d: GOST is not available", id), &id, "")
		return ErrEngineUnavailable
	}
	if l.sup.IsRunning(id) {
		l.addLog(model.LevelWarn, model.SourceAPI, fmt.Sprintf("Profile %d is already running", id), &id, "")
		return engine.ErrAlreadyRunning
	}

	p, err := l.db.Profile(ctx, id)
	if err != nil {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Failed to get profile %d: %v", id, err), &id, "")
		return err
	}
	l.addLog(model.LevelInfo, model.SourceAPI, fmt.Sprintf("Starting profile: %s (ID: %d)", p.Name, id), &id, p.Name)

	rt, err := l.sup.Start(p)
	if err != nil {
		l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Failed to start GOST process: %v", err), &id, p.Name)
		return err
	}
	l.addLog(model.LevelInfo, model.SourceEngine, fmt.Sprintf("GOST process started for profile %s (PID: %d)", p.Name, rt.PID), &id, p.Name)
	l.timeline(model.EventProxyAction, "Profile Started",
		fmt.Sprintf("Proxy profile '%s' started on %s", p.Name, p.Listen), "success", "admin", "2s", p.Name)
	l.activity(ctx, id, p.Name, store.ActionStarted, fmt.Sprintf("Profile started: %s", p.Name))
	if err := history.Touch(id); err != nil {
		l.log.Warn("failed to update start history", "profile", p.Name, "error", err)
	}
	return nil
}

// StopProfile interrupts gost for id and waits for it to exit.
func (l *Local) StopProfile(ctx context.Context, id int64) error {
	if err := l.sup.Stop(id); err != nil {
		if errors.Is(err, engine.ErrNotRunning) {
			l.addLog(model.LevelWarn, model.SourceAPI, fmt.Sprintf("Profile %d is not running", id), &id, "")
		} else {
			l.addLog(model.LevelError, model.SourceAPI, fmt.Sprintf("Failed to stop process for profile %d: %v", id, err), &id, "")
		}
		return err
	}
	l.addLog(model.LevelInfo, model.SourceAPI, fmt.Sprintf("Profile %d stopped successfully", id), &id, "")

	p, err := l.db.Profile(ctx, id)
	if err != nil {
		// Stopped, but the row vanished meanwhile; nothing to attribute.
		return nil
	}
	l.timeline(model.EventProxyAction, "Profile Stopped",
		fmt.Sprintf("Proxy profile '%s' stopped", p.Name), "success", "admin", "1s", p.Name)
	l.activity(ctx, id, p.Name, store.ActionStopped, fmt.Sprintf("Profile stopped: %s", p.Name))
	return nil
}
