package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(t *testing.T, b bridge.Backend, mutate ...func(*Config)) *Orchestrator {
	t.Helper()
	cfg := Config{
		Backend:         b,
		ServiceInterval: 20 * time.Millisecond,
		RouterInterval:  20 * time.Millisecond,
		ListTimeout:     200 * time.Millisecond,
		Logger:          quietLogger(),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	o := New(cfg)
	t.Cleanup(o.Close)
	return o
}

func headless(t *testing.T, mutate ...func(*Config)) *Orchestrator {
	return newTestOrchestrator(t, nil, mutate...)
}

func TestAggregate(t *testing.T) {
	cases := []struct {
		name     string
		statuses []model.ProfileStatus
		want     model.ConnectionStatus
	}{
		{name: "empty", want: model.ConnectionStatus{}},
		{name: "all stopped", statuses: []model.ProfileStatus{model.StatusStopped, model.StatusStopped}, want: model.ConnectionStatus{TotalProfiles: 2}},
		{name: "mixed", statuses: []model.ProfileStatus{model.StatusRunning, model.StatusStopped, model.StatusRunning}, want: model.ConnectionStatus{IsConnected: true, ActiveProfiles: 2, TotalProfiles: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var profiles []model.Profile
			for i, st := range tc.statuses {
				profiles = append(profiles, model.Profile{ID: int64(i + 1), Status: st})
			}
			assert.Equal(t, tc.want, Aggregate(profiles))
		})
	}
}

func TestToggleAppliesStatusAndAggregateTogether(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{
		{ID: 1, Name: "a", Type: model.ProfileForward, Listen: ":1080", Remote: "x:1", Status: model.StatusStopped},
		{ID: 2, Name: "b", Type: model.ProfileHTTP, Listen: ":8081", Remote: "y:2", Status: model.StatusStopped},
	}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))
	before := o.Snapshot()

	require.NoError(t, o.Profiles.Toggle(ctx, 1, true))
	after := o.Snapshot()

	changed := 0
	for i := range after.Profiles {
		if after.Profiles[i].Status != before.Profiles[i].Status {
			changed++
			assert.Equal(t, int64(1), after.Profiles[i].ID)
			assert.Equal(t, model.StatusRunning, after.Profiles[i].Status)
		}
	}
	assert.Equal(t, 1, changed)
	assert.Equal(t, Aggregate(after.Profiles), after.Connection)
	assert.True(t, after.Connection.IsConnected)
	assert.Equal(t, 1, after.Connection.ActiveProfiles)
}

func TestToggleFailureLeavesStatusAlone(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{{ID: 7, Name: "a", Type: model.ProfileTCP, Listen: ":9000", Remote: "x:1", Status: model.StatusStopped}}
	fb.startHook = func(context.Context, int64) error {
		return bridge.NewRemoteError("gost is not installed", "exec: gost: not found")
	}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))

	err := o.Profiles.Toggle(ctx, 7, true)
	require.Error(t, err)

	st := o.Snapshot()
	assert.Equal(t, model.StatusStopped, st.Profiles[0].Status)
	assert.False(t, st.Connection.IsConnected)
	assert.Equal(t, "gost is not installed", st.ProfileError)
}

func TestHeadlessAddAssignsUniqueStoppedID(t *testing.T) {
	fixed := time.UnixMilli(5)
	o := headless(t, func(c *Config) { c.Now = func() time.Time { return fixed } })
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))

	draft := model.ProfileDraft{Name: "P", Type: model.ProfileForward, Listen: ":1081", Remote: "1.2.3.4:1"}
	first, err := o.Profiles.Add(ctx, draft)
	require.NoError(t, err)
	second, err := o.Profiles.Add(ctx, draft)
	require.NoError(t, err)

	assert.Equal(t, model.StatusStopped, first.Status)
	assert.Equal(t, model.StatusStopped, second.Status)
	assert.NotEqual(t, first.ID, second.ID)

	st := o.Snapshot()
	ids := map[int64]bool{}
	for _, p := range st.Profiles {
		assert.False(t, ids[p.ID], "duplicate id %d", p.ID)
		ids[p.ID] = true
	}
	assert.Equal(t, second.ID, st.Profiles[0].ID, "newest profile is prepended")
	assert.Equal(t, len(bridge.FallbackProfiles())+2, st.Connection.TotalProfiles)
}

func TestAddRejectsInvalidDraftWithoutBridgeCall(t *testing.T) {
	fb := newFakeBackend()
	o := newTestOrchestrator(t, fb)
	_, err := o.Profiles.Add(context.Background(), model.ProfileDraft{Name: "", Type: model.ProfileForward, Listen: ":1", Remote: "x:1"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)
	assert.Zero(t, fb.count("AddProfile"))
}

func TestGateCancelLeavesCollectionUnmodified(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{{ID: 3, Name: "keep", Type: model.ProfileForward, Listen: ":1", Remote: "x:1", Status: model.StatusStopped}}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))

	require.NoError(t, o.Gate.Request(3, "keep", model.TargetProfile))
	require.NotNil(t, o.Snapshot().Pending)
	o.Gate.Cancel()

	st := o.Snapshot()
	assert.Nil(t, st.Pending)
	assert.Len(t, st.Profiles, 1)
	assert.Zero(t, fb.count("DeleteProfile"))

	// Confirm with nothing pending is inert.
	require.NoError(t, o.Gate.Confirm(ctx))
	assert.Zero(t, fb.count("DeleteProfile"))
}

func TestGateConfirmDeletesAndClearsPending(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{
		{ID: 3, Name: "a", Type: model.ProfileForward, Listen: ":1", Remote: "x:1", Status: model.StatusStopped},
		{ID: 4, Name: "b", Type: model.ProfileForward, Listen: ":2", Remote: "x:2", Status: model.StatusRunning},
	}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))

	require.NoError(t, o.Gate.Request(3, "a", model.TargetProfile))
	require.NoError(t, o.Gate.Request(4, "b", model.TargetProfile))
	assert.Equal(t, int64(4), o.Snapshot().Pending.TargetID, "a new request replaces the previous one")

	require.NoError(t, o.Gate.Confirm(ctx))
	st := o.Snapshot()
	assert.Nil(t, st.Pending)
	require.Len(t, st.Profiles, 1)
	assert.Equal(t, int64(3), st.Profiles[0].ID)
	assert.Equal(t, model.ConnectionStatus{TotalProfiles: 1}, st.Connection)
	assert.Equal(t, 1, fb.count("DeleteProfile"))
}

func TestGateConfirmFailureStillClearsPending(t *testing.T) {
	fb := newFakeBackend()
	o := newTestOrchestrator(t, fb)
	require.NoError(t, o.Gate.Request(99, "ghost", model.TargetHostMapping))
	err := o.Gate.Confirm(context.Background())
	require.Error(t, err)
	st := o.Snapshot()
	assert.Nil(t, st.Pending)
	assert.NotEmpty(t, st.MappingError)
}

func TestGateRejectsUnknownKind(t *testing.T) {
	o := headless(t)
	require.Error(t, o.Gate.Request(1, "x", model.TargetKind("volume")))
	assert.Nil(t, o.Snapshot().Pending)
}

func TestRouterStartRejectsInvalidAddresses(t *testing.T) {
	fb := newFakeBackend()
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()

	for _, addr := range []string{":0", "8080", ":70000", ":", ":abc", ""} {
		err := o.Router.Start(ctx, addr)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "addr %q", addr)
		assert.NotEmpty(t, o.Snapshot().Router.AddrError, "addr %q", addr)
	}
	assert.Zero(t, fb.count("StartHostRouter"))

	require.NoError(t, o.Router.Start(ctx, ":8080"))
	st := o.Snapshot().Router
	assert.True(t, st.Running)
	assert.False(t, st.Busy)
	assert.Empty(t, st.AddrError)
	assert.Equal(t, ":8080", st.ListenAddr)
	require.NotNil(t, st.Notice)
	assert.Equal(t, model.NoticeSuccess, st.Notice.Level)
	assert.Equal(t, 1, fb.count("StartHostRouter"))
}

func TestValidateListenAddr(t *testing.T) {
	assert.NoError(t, ValidateListenAddr(":8080"))
	assert.NoError(t, ValidateListenAddr(":1"))
	assert.NoError(t, ValidateListenAddr(":65535"))
	assert.Error(t, ValidateListenAddr(":0"))
	assert.Error(t, ValidateListenAddr("8080"))
	assert.Error(t, ValidateListenAddr(":70000"))
}

func TestRouterBusyRejectsOverlappingCalls(t *testing.T) {
	fb := newFakeBackend()
	release := make(chan struct{})
	fb.routerStartHook = func(ctx context.Context, addr string) error {
		<-release
		return errors.New("address already in use")
	}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- o.Router.Start(ctx, ":8080") }()
	require.Eventually(t, o.Router.Busy, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, o.Router.Start(ctx, ":8081"), ErrRouterBusy)
	assert.ErrorIs(t, o.Router.Stop(ctx), ErrRouterBusy)

	close(release)
	require.Error(t, <-done)

	st := o.Snapshot().Router
	assert.False(t, st.Busy, "busy is cleared on the failure path")
	assert.False(t, st.Running)
	require.NotNil(t, st.Notice)
	assert.Equal(t, model.NoticeError, st.Notice.Level)
	assert.Contains(t, st.Notice.Text, "address already in use")
	assert.Zero(t, fb.count("StopHostRouter"))
}

func TestRouterStopClearsRunning(t *testing.T) {
	fb := newFakeBackend()
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Router.Start(ctx, ":8080"))
	require.NoError(t, o.Router.Stop(ctx))
	st := o.Snapshot().Router
	assert.False(t, st.Running)
	assert.False(t, st.Busy)
}

func TestWatchRouterPicksUpStatusAndAddr(t *testing.T) {
	fb := newFakeBackend()
	fb.routerStatus = model.RouterStatus{Running: true, Addr: ":9090"}
	o := newTestOrchestrator(t, fb)

	stop := o.WatchRouter()
	require.Eventually(t, func() bool {
		r := o.Snapshot().Router
		return r.Running && r.ListenAddr == ":9090"
	}, time.Second, 5*time.Millisecond)
	stop()

	calls := fb.count("IsHostRouterRunning")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, fb.count("IsHostRouterRunning"), "no polling after stop")
}

func TestConcurrentWatchRouterLeavesOneWatch(t *testing.T) {
	fb := newFakeBackend()
	o := newTestOrchestrator(t, fb)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.WatchRouter()
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return fb.count("IsHostRouterRunning") > 0 }, time.Second, 5*time.Millisecond)

	o.stopWatch()
	calls := fb.count("IsHostRouterRunning")
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, calls, fb.count("IsHostRouterRunning"), "a replaced watch kept polling")
}

func TestStaleWatchStopKeepsNewerWatch(t *testing.T) {
	fb := newFakeBackend()
	o := newTestOrchestrator(t, fb)

	first := o.WatchRouter()
	o.WatchRouter()
	first()

	calls := fb.count("IsHostRouterRunning")
	require.Eventually(t, func() bool { return fb.count("IsHostRouterRunning") > calls }, time.Second, 5*time.Millisecond)
}

func TestPollerSurvivesStatusFailures(t *testing.T) {
	fb := newFakeBackend()
	var n atomic.Int32
	fb.statusHook = func(context.Context) (model.EngineStatus, error) {
		if n.Add(1) == 1 {
			return model.EngineStatus{Running: true, Version: "3.0.0", Uptime: "2 minutes"}, nil
		}
		return model.EngineStatus{}, errors.New("connection refused")
	}
	var clock atomic.Int64
	o := newTestOrchestrator(t, fb, func(c *Config) {
		c.Now = func() time.Time { return time.Unix(clock.Add(1), 0) }
	})

	o.Service.Start(context.Background())
	require.Eventually(t, func() bool { return n.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	o.Service.Stop()

	st := o.Snapshot().Service
	assert.False(t, st.Running)
	assert.False(t, st.LastCheck.IsZero())
	assert.Equal(t, "3.0.0", st.ServiceVersion)
	assert.True(t, st.Available)
	assert.Equal(t, "3.0.0", st.Version)
}

func TestCheckStatusStampsLastCheckOnFailure(t *testing.T) {
	fb := newFakeBackend()
	fb.statusHook = func(context.Context) (model.EngineStatus, error) {
		return model.EngineStatus{}, errors.New("boom")
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := newTestOrchestrator(t, fb, func(c *Config) { c.Now = func() time.Time { return now } })
	o.Service.CheckStatus(context.Background())
	st := o.Snapshot().Service
	assert.Equal(t, now, st.LastCheck)
	assert.False(t, st.Running)
}

func TestCheckStatusDefaultsMissingFields(t *testing.T) {
	fb := newFakeBackend()
	fb.statusHook = func(context.Context) (model.EngineStatus, error) {
		return model.EngineStatus{}, nil
	}
	o := newTestOrchestrator(t, fb)
	o.Service.CheckStatus(context.Background())
	st := o.Snapshot().Service
	assert.False(t, st.Running)
	assert.Equal(t, "Unknown", st.ServiceVersion)
	assert.Equal(t, "", st.Uptime)
}

func TestCheckAvailabilityErrorClearsVersion(t *testing.T) {
	fb := newFakeBackend()
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	o.Service.CheckAvailability(ctx)
	require.True(t, o.Snapshot().Service.Available)

	fb.availableHook = func(context.Context) (bool, error) { return false, errors.New("exec failed") }
	o.Service.CheckAvailability(ctx)
	st := o.Snapshot().Service
	assert.False(t, st.Available)
	assert.Empty(t, st.Version)
}

func TestHeadlessPollerIsDeterministic(t *testing.T) {
	o := headless(t)
	ctx := context.Background()
	o.Service.CheckAvailability(ctx)
	o.Service.CheckStatus(ctx)
	st := o.Snapshot().Service
	assert.True(t, st.Available)
	assert.Equal(t, bridge.FallbackEngineVersion, st.Version)
	assert.False(t, st.Running)
	assert.Equal(t, "Unknown", st.ServiceVersion)
}

func TestReconcileAfterAdd(t *testing.T) {
	fb := newFakeBackend()
	fb.addHook = func(ctx context.Context, d model.ProfileDraft) (int64, error) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		fb.profiles = append(fb.profiles, d.Profile(42, model.StatusStopped))
		return 42, nil
	}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))
	require.Empty(t, o.Snapshot().Profiles)

	p, err := o.Profiles.Add(ctx, model.ProfileDraft{Name: "P1", Listen: ":1080", Remote: "1.2.3.4:1080", Type: model.ProfileForward})
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.ID)

	st := o.Snapshot()
	require.Len(t, st.Profiles, 1)
	assert.Equal(t, int64(42), st.Profiles[0].ID)
	assert.Equal(t, model.StatusStopped, st.Profiles[0].Status)
	assert.Equal(t, 2, fb.count("ListProfiles"), "add re-lists after merging the id")
}

func TestListTimeoutFallsBackToSnapshot(t *testing.T) {
	fb := newFakeBackend()
	fb.listHook = func(ctx context.Context) ([]model.Profile, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o := newTestOrchestrator(t, fb, func(c *Config) { c.ListTimeout = 30 * time.Millisecond })

	err := o.Profiles.List(context.Background())
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, err.Error(), "timeout")

	st := o.Snapshot()
	assert.Equal(t, bridge.FallbackProfiles(), st.Profiles)
	assert.Contains(t, st.ProfileError, "timeout")
	assert.Equal(t, Aggregate(st.Profiles), st.Connection)
}

func TestListTimeoutKeepsLastKnownProfiles(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{{ID: 9, Name: "real", Type: model.ProfileTCP, Listen: ":9", Remote: "x:9", Status: model.StatusRunning}}
	o := newTestOrchestrator(t, fb, func(c *Config) { c.ListTimeout = 30 * time.Millisecond })
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))

	fb.listHook = func(ctx context.Context) ([]model.Profile, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	require.Error(t, o.Profiles.List(ctx))
	st := o.Snapshot()
	require.Len(t, st.Profiles, 1)
	assert.Equal(t, int64(9), st.Profiles[0].ID)
}

func TestAddKeepsConfirmedProfileWhenRelistTimesOut(t *testing.T) {
	fb := newFakeBackend()
	fb.addHook = func(context.Context, model.ProfileDraft) (int64, error) { return 42, nil }
	fb.listHook = func(ctx context.Context) ([]model.Profile, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o := newTestOrchestrator(t, fb, func(c *Config) { c.ListTimeout = 30 * time.Millisecond })

	p, err := o.Profiles.Add(context.Background(), model.ProfileDraft{Name: "P1", Listen: ":1080", Remote: "1.2.3.4:1080", Type: model.ProfileForward})
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.ID)

	st := o.Snapshot()
	require.Len(t, st.Profiles, 1, "fallback sample data must not replace a confirmed profile")
	assert.Equal(t, int64(42), st.Profiles[0].ID)
	assert.Equal(t, model.StatusStopped, st.Profiles[0].Status)
	assert.False(t, st.Connection.IsConnected)
	assert.Contains(t, st.ProfileError, "timeout")
}

func TestListFailureKeepsStateAndRecordsMessage(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{{ID: 1, Name: "a", Type: model.ProfileTCP, Listen: ":1", Remote: "x:1", Status: model.StatusStopped}}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))

	fb.listHook = func(context.Context) ([]model.Profile, error) {
		return nil, bridge.NewRemoteError("database is locked", "")
	}
	require.Error(t, o.Profiles.List(ctx))
	st := o.Snapshot()
	assert.Len(t, st.Profiles, 1)
	assert.Equal(t, "database is locked", st.ProfileError)
}

func TestLatestIssuedToggleWins(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{{ID: 1, Name: "a", Type: model.ProfileTCP, Listen: ":1", Remote: "x:1", Status: model.StatusStopped}}
	entered := make(chan struct{})
	release := make(chan struct{})
	fb.startHook = func(ctx context.Context, id int64) error {
		close(entered)
		<-release
		return nil
	}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))

	done := make(chan error, 1)
	go func() { done <- o.Profiles.Toggle(ctx, 1, true) }()
	<-entered

	require.NoError(t, o.Profiles.Toggle(ctx, 1, false))
	close(release)
	require.NoError(t, <-done)

	st := o.Snapshot()
	assert.Equal(t, model.StatusStopped, st.Profiles[0].Status, "the older start answer is dropped")
	assert.False(t, st.Connection.IsConnected)
}

func TestSlowListDoesNotOverwriteNewerToggle(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{{ID: 1, Name: "a", Type: model.ProfileTCP, Listen: ":1", Remote: "x:1", Status: model.StatusStopped}}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))

	stale := []model.Profile{{ID: 1, Name: "a", Type: model.ProfileTCP, Listen: ":1", Remote: "x:1", Status: model.StatusStopped}}
	entered := make(chan struct{})
	release := make(chan struct{})
	fb.listHook = func(ctx context.Context) ([]model.Profile, error) {
		close(entered)
		<-release
		return stale, nil
	}
	done := make(chan error, 1)
	go func() { done <- o.Profiles.List(ctx) }()
	<-entered

	require.NoError(t, o.Profiles.Toggle(ctx, 1, true))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, model.StatusRunning, o.Snapshot().Profiles[0].Status)
}

func TestUpdateReplacesWholeProfile(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{{ID: 5, Name: "old", Type: model.ProfileTCP, Listen: ":1", Remote: "x:1", Status: model.StatusStopped}}
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	require.NoError(t, o.Profiles.List(ctx))

	upd := model.Profile{ID: 5, Name: "new", Type: model.ProfileHTTP, Listen: ":2", Remote: "y:2", Username: "u"}
	require.NoError(t, o.Profiles.Update(ctx, upd))
	got := o.Snapshot().Profiles[0]
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, model.ProfileHTTP, got.Type)
	assert.Equal(t, "u", got.Username)
	assert.Equal(t, model.StatusStopped, got.Status)
	assert.Equal(t, 1, fb.count("UpdateProfile"))
}

func TestHeadlessMappingsSaveAndRemove(t *testing.T) {
	o := headless(t)
	ctx := context.Background()

	_, err := o.Mappings.Save(ctx, model.HostMapping{Hostname: "app.local", IP: "127.0.0.1", Port: 0, Protocol: model.ProtocolHTTP})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	m, err := o.Mappings.Save(ctx, model.HostMapping{Hostname: "app.local", IP: "127.0.0.1", Port: 3000, Protocol: "https", Active: true})
	require.NoError(t, err)
	assert.NotZero(t, m.ID)
	assert.Equal(t, model.ProtocolHTTPS, m.Protocol)

	require.NoError(t, o.Gate.Request(m.ID, m.Hostname, model.TargetHostMapping))
	require.NoError(t, o.Gate.Confirm(ctx))
	assert.Empty(t, o.Snapshot().Mappings)
}

func TestMappingSavePicksUpBackendID(t *testing.T) {
	fb := newFakeBackend()
	o := newTestOrchestrator(t, fb)
	ctx := context.Background()
	m, err := o.Mappings.Save(ctx, model.HostMapping{Hostname: "api.local", IP: "10.0.0.2", Port: 8080, Protocol: model.ProtocolHTTP, Active: true})
	require.NoError(t, err)
	assert.Equal(t, int64(101), m.ID)
	require.Len(t, o.Snapshot().Mappings, 1)
}

func TestActivityHeadlessAndFailure(t *testing.T) {
	o := headless(t)
	ctx := context.Background()
	require.NoError(t, o.Activity.RefreshLogs(ctx, 0))
	require.NoError(t, o.Activity.RefreshTimeline(ctx))
	st := o.Snapshot()
	assert.Equal(t, bridge.FallbackLogs(), st.Logs)
	assert.Equal(t, bridge.FallbackTimeline(), st.Timeline)

	fb := newFakeBackend()
	fb.logs = []model.LogEntry{{ID: 1, Level: model.LevelInfo, Message: "hello"}}
	o2 := newTestOrchestrator(t, fb)
	require.NoError(t, o2.Activity.RefreshLogs(ctx, 10))
	fb.logsErr = errors.New("socket closed")
	require.Error(t, o2.Activity.RefreshLogs(ctx, 10))
	st = o2.Snapshot()
	assert.Len(t, st.Logs, 1, "previous logs survive a failed refresh")
	assert.Equal(t, "socket closed", st.ActivityError)

	require.NoError(t, o2.Activity.ClearLogs(ctx))
	assert.Empty(t, o2.Snapshot().Logs)
}

func TestRefreshActivityFiltersByProfile(t *testing.T) {
	ctx := context.Background()
	o := headless(t)
	require.NoError(t, o.Activity.RefreshActivity(ctx, 0, 0))
	assert.Equal(t, bridge.FallbackActivity(), o.Snapshot().Activity)
	require.NoError(t, o.Activity.RefreshActivity(ctx, 1, 1))
	st := o.Snapshot()
	require.Len(t, st.Activity, 1)
	assert.Equal(t, "Local SOCKS5", st.Activity[0].ProfileName)
	assert.Equal(t, "started", st.Activity[0].Action)

	fb := newFakeBackend()
	fb.activity = []model.ActivityLog{
		{ID: 2, ProfileID: 7, ProfileName: "b", Action: "deleted"},
		{ID: 1, ProfileID: 8, ProfileName: "a", Action: "created"},
	}
	o2 := newTestOrchestrator(t, fb)
	require.NoError(t, o2.Activity.RefreshActivity(ctx, 8, 0))
	st = o2.Snapshot()
	require.Len(t, st.Activity, 1)
	assert.Equal(t, int64(1), st.Activity[0].ID)
	assert.Equal(t, 1, fb.count("ListActivity"))
}

func TestFilteredLogsSharesLoadedEntries(t *testing.T) {
	ctx := context.Background()
	pid := int64(3)
	fb := newFakeBackend()
	fb.logs = []model.LogEntry{
		{ID: 1, Level: model.LevelInfo, Source: model.SourceEngine, Message: "listening on :1080", ProfileID: &pid, ProfileName: "socks"},
		{ID: 2, Level: model.LevelError, Source: model.SourceEngine, Message: "dial tcp: connection refused", ProfileID: &pid, ProfileName: "socks"},
		{ID: 3, Level: model.LevelWarn, Source: model.SourceSystem, Message: "router restarted"},
	}
	o := newTestOrchestrator(t, fb)
	require.NoError(t, o.Activity.RefreshLogs(ctx, 10))

	assert.Len(t, o.Activity.FilteredLogs(model.LogFilter{}), 3)
	assert.Len(t, o.Activity.FilteredLogs(model.LogFilter{Level: "all", Source: "all"}), 3)

	got := o.Activity.FilteredLogs(model.LogFilter{Level: "error"})
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	got = o.Activity.FilteredLogs(model.LogFilter{Source: "SYSTEM"})
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)

	assert.Len(t, o.Activity.FilteredLogs(model.LogFilter{Profile: "Socks"}), 2)
	assert.Len(t, o.Activity.FilteredLogs(model.LogFilter{Profile: "3"}), 2)
	assert.Empty(t, o.Activity.FilteredLogs(model.LogFilter{Profile: "other"}))

	got = o.Activity.FilteredLogs(model.LogFilter{Profile: "socks", Text: "REFUSED"})
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	// Filtering never changes what was loaded.
	assert.Len(t, o.Snapshot().Logs, 3)
}

func TestStartRunsInitialLoadsAndSignalsChanges(t *testing.T) {
	fb := newFakeBackend()
	fb.profiles = []model.Profile{{ID: 1, Name: "a", Type: model.ProfileTCP, Listen: ":1", Remote: "x:1", Status: model.StatusRunning}}
	o := newTestOrchestrator(t, fb)
	o.Start(context.Background())

	select {
	case <-o.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}
	require.Eventually(t, func() bool {
		st := o.Snapshot()
		return len(st.Profiles) == 1 && st.Connection.IsConnected && !st.Service.LastCheck.IsZero()
	}, time.Second, 5*time.Millisecond)
	o.Close()
	o.Close()
}
