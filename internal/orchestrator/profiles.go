package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
)

// ProfileController runs profile CRUD and start/stop against the backend and
// records the outcome in the store. A nil backend means headless mode.
type ProfileController struct {
	backend bridge.Backend
	store   *Store
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

type listResult struct {
	profiles []model.Profile
	err      error
}

// List refreshes the collection from the backend, waiting at most the list
// timeout. On timeout the last-known (or built-in) snapshot is kept and a
// *TimeoutError is returned.
func (c *ProfileController) List(ctx context.Context) error {
	seq := c.store.begin()
	if c.backend == nil {
		c.store.loadFallbackProfiles(seq)
		return nil
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan listResult, 1)
	go func() {
		profiles, err := c.backend.ListProfiles(callCtx)
		done <- listResult{profiles: profiles, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			c.fail("list profiles", r.err)
			return fmt.Errorf("list profiles: %w", r.err)
		}
		c.store.replaceProfiles(seq, r.profiles)
		c.store.setProfileError("")
		return nil
	case <-timer.C:
		err := &TimeoutError{Op: "list profiles", After: c.timeout}
		c.log.Warn("profile listing timed out, using last known snapshot", "after", c.timeout)
		c.store.loadFallbackProfiles(seq)
		c.store.setProfileError(err.Error())
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ValidateDraft checks the fields a profile needs before it is sent anywhere.
func ValidateDraft(d model.ProfileDraft) error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Message: "Name is required"}
	}
	if !d.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown profile type %q", d.Type)}
	}
	if strings.TrimSpace(d.Listen) == "" {
		return &ValidationError{Field: "listen", Message: "Listen address is required"}
	}
	if strings.TrimSpace(d.Remote) == "" {
		return &ValidationError{Field: "remote", Message: "Remote address is required"}
	}
	return nil
}

// Add creates a profile. Headless, the profile gets a synthetic id and is
// prepended locally. With a backend the returned id is merged in and the
// collection is re-listed.
func (c *ProfileController) Add(ctx context.Context, d model.ProfileDraft) (model.Profile, error) {
	if err := ValidateDraft(d); err != nil {
		return model.Profile{}, err
	}
	seq := c.store.begin()
	if c.backend == nil {
		p := c.store.addLocalProfile(seq, d, c.now())
		c.store.setProfileError("")
		return p, nil
	}

	id, err := c.backend.AddProfile(ctx, d)
	if err != nil {
		c.fail("add profile", err)
		return model.Profile{}, fmt.Errorf("add profile: %w", err)
	}
	p := d.Profile(id, model.StatusStopped)
	c.store.putProfile(seq, p, true)
	c.store.setProfileError("")

	if err := c.List(ctx); err != nil {
		c.log.Warn("re-list after add failed", "profile_id", id, "error", err)
	}
	if cur, ok := c.store.profile(id); ok {
		return cur, nil
	}
	return p, nil
}

// Update sends the full profile and replaces the local entry by id.
func (c *ProfileController) Update(ctx context.Context, p model.Profile) error {
	if err := ValidateDraft(p.Draft()); err != nil {
		return err
	}
	cur, ok := c.store.profile(p.ID)
	if !ok {
		return fmt.Errorf("profile %d: %w", p.ID, ErrNotFound)
	}
	if p.Status == "" {
		p.Status = cur.Status
	}
	seq := c.store.begin()
	if c.backend != nil {
		if err := c.backend.UpdateProfile(ctx, p); err != nil {
			c.fail("update profile", err)
			return fmt.Errorf("update profile: %w", err)
		}
	}
	c.store.putProfile(seq, p, false)
	c.store.setProfileError("")
	return nil
}

// remove is reachable only through the confirmation gate.
func (c *ProfileController) remove(ctx context.Context, id int64) error {
	seq := c.store.begin()
	if c.backend != nil {
		if err := c.backend.DeleteProfile(ctx, id); err != nil {
			c.fail("delete profile", err)
			return fmt.Errorf("delete profile: %w", err)
		}
	}
	c.store.removeProfile(seq, id)
	c.store.setProfileError("")
	return nil
}

// Toggle starts or stops a profile. The local status changes only after the
// backend acknowledges.
func (c *ProfileController) Toggle(ctx context.Context, id int64, start bool) error {
	if _, ok := c.store.profile(id); !ok {
		return fmt.Errorf("profile %d: %w", id, ErrNotFound)
	}
	seq := c.store.begin()
	op := "stop profile"
	status := model.StatusStopped
	if start {
		op = "start profile"
		status = model.StatusRunning
	}
	if c.backend != nil {
		var err error
		if start {
			err = c.backend.StartProfile(ctx, id)
		} else {
			err = c.backend.StopProfile(ctx, id)
		}
		if err != nil {
			c.fail(op, err)
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if !c.store.setProfileStatus(seq, id, status) {
		c.log.Debug("toggle result superseded by a newer operation", "profile_id", id, "op", op)
	}
	c.store.setProfileError("")
	return nil
}

func (c *ProfileController) fail(op string, err error) {
	c.log.Warn(op+" failed", "error", bridge.DebugMessage(err))
	c.store.setProfileError(bridge.Message(err))
}
