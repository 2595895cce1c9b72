package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/treykane/gostly/internal/model"
)

// fakeBackend is an in-memory bridge.Backend. Hooks override individual calls;
// counters record what the controllers actually asked for.
type fakeBackend struct {
	mu       sync.Mutex
	profiles []model.Profile
	mappings []model.HostMapping
	nextID   int64
	calls    map[string]int

	listHook        func(ctx context.Context) ([]model.Profile, error)
	addHook         func(ctx context.Context, d model.ProfileDraft) (int64, error)
	startHook       func(ctx context.Context, id int64) error
	statusHook      func(ctx context.Context) (model.EngineStatus, error)
	availableHook   func(ctx context.Context) (bool, error)
	routerStartHook func(ctx context.Context, addr string) error
	routerStatus    model.RouterStatus
	logs            []model.LogEntry
	timeline        []model.TimelineEvent
	logsErr         error
	activity        []model.ActivityLog
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextID: 100, calls: map[string]int{}}
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	f.record("ListProfiles")
	if f.listHook != nil {
		return f.listHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Profile(nil), f.profiles...), nil
}

func (f *fakeBackend) AddProfile(ctx context.Context, d model.ProfileDraft) (int64, error) {
	f.record("AddProfile")
	if f.addHook != nil {
		return f.addHook(ctx, d)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.profiles = append(f.profiles, d.Profile(f.nextID, model.StatusStopped))
	return f.nextID, nil
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, p model.Profile) error {
	f.record("UpdateProfile")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.profiles {
		if f.profiles[i].ID == p.ID {
			f.profiles[i] = p
			return nil
		}
	}
	return errors.New("profile not found")
}

func (f *fakeBackend) DeleteProfile(ctx context.Context, id int64) error {
	f.record("DeleteProfile")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.profiles {
		if f.profiles[i].ID == id {
			f.profiles = append(f.profiles[:i], f.profiles[i+1:]...)
			return nil
		}
	}
	return errors.New("profile not found")
}

func (f *fakeBackend) setStatus(id int64, st model.ProfileStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.profiles {
		if f.profiles[i].ID == id {
			f.profiles[i].Status = st
			return nil
		}
	}
	return errors.New("profile not found")
}

func (f *fakeBackend) StartProfile(ctx context.Context, id int64) error {
	f.record("StartProfile")
	if f.startHook != nil {
		return f.startHook(ctx, id)
	}
	return f.setStatus(id, model.StatusRunning)
}

func (f *fakeBackend) StopProfile(ctx context.Context, id int64) error {
	f.record("StopProfile")
	return f.setStatus(id, model.StatusStopped)
}

func (f *fakeBackend) IsEngineAvailable(ctx context.Context) (bool, error) {
	f.record("IsEngineAvailable")
	if f.availableHook != nil {
		return f.availableHook(ctx)
	}
	return true, nil
}

func (f *fakeBackend) GetEngineVersion(ctx context.Context) (string, error) {
	f.record("GetEngineVersion")
	return "3.0.0", nil
}

func (f *fakeBackend) GetServiceStatus(ctx context.Context) (model.EngineStatus, error) {
	f.record("GetServiceStatus")
	if f.statusHook != nil {
		return f.statusHook(ctx)
	}
	return model.EngineStatus{Running: true, Version: "3.0.0", Uptime: "1 hour"}, nil
}

func (f *fakeBackend) ListTimelineEvents(ctx context.Context) ([]model.TimelineEvent, error) {
	f.record("ListTimelineEvents")
	return f.timeline, nil
}

func (f *fakeBackend) ListRecentLogs(ctx context.Context, limit int) ([]model.LogEntry, error) {
	f.record("ListRecentLogs")
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return f.logs, nil
}

func (f *fakeBackend) ClearLogs(ctx context.Context) error {
	f.record("ClearLogs")
	f.logs = nil
	return nil
}

func (f *fakeBackend) ListActivity(ctx context.Context, profileID int64, limit int) ([]model.ActivityLog, error) {
	f.record("ListActivity")
	var out []model.ActivityLog
	for _, a := range f.activity {
		if profileID == 0 || a.ProfileID == profileID {
			out = append(out, a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBackend) ListHostMappings(ctx context.Context) ([]model.HostMapping, error) {
	f.record("ListHostMappings")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.HostMapping(nil), f.mappings...), nil
}

func (f *fakeBackend) UpsertHostMapping(ctx context.Context, m model.HostMapping) error {
	f.record("UpsertHostMapping")
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == 0 {
		f.nextID++
		m.ID = f.nextID
		f.mappings = append(f.mappings, m)
		return nil
	}
	for i := range f.mappings {
		if f.mappings[i].ID == m.ID {
			f.mappings[i] = m
			return nil
		}
	}
	return errors.New("mapping not found")
}

func (f *fakeBackend) DeleteHostMapping(ctx context.Context, id int64) error {
	f.record("DeleteHostMapping")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.mappings {
		if f.mappings[i].ID == id {
			f.mappings = append(f.mappings[:i], f.mappings[i+1:]...)
			return nil
		}
	}
	return errors.New("mapping not found")
}

func (f *fakeBackend) IsHostRouterRunning(ctx context.Context) (model.RouterStatus, error) {
	f.record("IsHostRouterRunning")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routerStatus, nil
}

func (f *fakeBackend) StartHostRouter(ctx context.Context, addr string) error {
	f.record("StartHostRouter")
	if f.routerStartHook != nil {
		return f.routerStartHook(ctx, addr)
	}
	f.mu.Lock()
	f.routerStatus = model.RouterStatus{Running: true, Addr: addr}
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) StopHostRouter(ctx context.Context) error {
	f.record("StopHostRouter")
	f.mu.Lock()
	f.routerStatus.Running = false
	f.mu.Unlock()
	return nil
}
