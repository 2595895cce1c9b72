package orchestrator

import (
	"sync"
	"time"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
)

// State is a consistent, read-only copy of everything the dashboard shows.
type State struct {
	Profiles     []model.Profile
	Connection   model.ConnectionStatus
	ProfileError string

	Service model.ServiceStatus

	Router model.RouterState

	Pending *model.PendingConfirmation

	Mappings     []model.HostMapping
	MappingError string

	Logs          []model.LogEntry
	Timeline      []model.TimelineEvent
	Activity      []model.ActivityLog
	ActivityError string

	// Version increases on every applied write.
	Version uint64
}

// Store owns the canonical state. All writes go through update, which holds
// one mutex for the mutation and any derived recompute, then signals Changes.
type Store struct {
	mu       sync.Mutex
	seq      uint64
	version  uint64
	profiles collection[model.Profile]
	mappings collection[model.HostMapping]

	connection  model.ConnectionStatus
	profileErr  string
	service     model.ServiceStatus
	router      model.RouterState
	pending     *model.PendingConfirmation
	mappingErr  string
	logs        []model.LogEntry
	timeline    []model.TimelineEvent
	activity    []model.ActivityLog
	activityErr string

	changes chan struct{}
}

// NewStore returns an empty store whose router listen address starts at
// defaultAddr.
func NewStore(defaultAddr string) *Store {
	return &Store{
		profiles: newCollection(func(p model.Profile) int64 { return p.ID }),
		mappings: newCollection(func(m model.HostMapping) int64 { return m.ID }),
		router:   model.RouterState{ListenAddr: defaultAddr},
		changes:  make(chan struct{}, 1),
	}
}

// Changes delivers a coalesced signal after writes. Read Snapshot on receipt.
func (s *Store) Changes() <-chan struct{} { return s.changes }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Profiles:      s.profiles.snapshot(),
		Connection:    s.connection,
		ProfileError:  s.profileErr,
		Service:       s.service,
		Router:        s.router,
		Mappings:      s.mappings.snapshot(),
		MappingError:  s.mappingErr,
		Logs:          append([]model.LogEntry(nil), s.logs...),
		Timeline:      append([]model.TimelineEvent(nil), s.timeline...),
		Activity:      append([]model.ActivityLog(nil), s.activity...),
		ActivityError: s.activityErr,
		Version:       s.version,
	}
	if s.router.Notice != nil {
		n := *s.router.Notice
		st.Router.Notice = &n
	}
	if s.pending != nil {
		p := *s.pending
		st.Pending = &p
	}
	return st
}

// begin hands out the sequence number for an operation being issued.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// update is the single write entry point. fn reports whether it changed
// anything; only then is the version bumped and a change signalled.
func (s *Store) update(fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	if changed {
		s.version++
	}
	s.mu.Unlock()
	if changed {
		select {
		case s.changes <- struct{}{}:
		default:
		}
	}
	return changed
}

// Profiles. Every membership or status change recomputes the aggregate in the
// same critical section.

func (s *Store) recomputeConnection() {
	s.connection = Aggregate(s.profiles.items)
}

func (s *Store) replaceProfiles(seq uint64, list []model.Profile) bool {
	return s.update(func() bool {
		if !s.profiles.replace(seq, list) {
			return false
		}
		s.recomputeConnection()
		return true
	})
}

// loadFallbackProfiles keeps whatever is already loaded, or installs the
// built-in snapshot when nothing ever was.
func (s *Store) loadFallbackProfiles(seq uint64) bool {
	return s.update(func() bool {
		if s.profiles.loaded {
			return false
		}
		if !s.profiles.replace(seq, bridge.FallbackProfiles()) {
			return false
		}
		s.recomputeConnection()
		return true
	})
}

func (s *Store) putProfile(seq uint64, p model.Profile, prepend bool) bool {
	return s.update(func() bool {
		if !s.profiles.put(seq, p, prepend) {
			return false
		}
		s.recomputeConnection()
		return true
	})
}

// addLocalProfile assigns a synthetic id and prepends the profile in one step,
// so concurrent headless adds never collide.
func (s *Store) addLocalProfile(seq uint64, d model.ProfileDraft, now time.Time) model.Profile {
	var p model.Profile
	s.update(func() bool {
		id := now.UnixMilli()
		if hi := s.profiles.maxID(); id <= hi {
			id = hi + 1
		}
		p = d.Profile(id, model.StatusStopped)
		s.profiles.put(seq, p, true)
		s.recomputeConnection()
		return true
	})
	return p
}

func (s *Store) setProfileStatus(seq uint64, id int64, status model.ProfileStatus) bool {
	return s.update(func() bool {
		if !s.profiles.modify(seq, id, func(p *model.Profile) { p.Status = status }) {
			return false
		}
		s.recomputeConnection()
		return true
	})
}

func (s *Store) removeProfile(seq uint64, id int64) bool {
	return s.update(func() bool {
		if !s.profiles.remove(seq, id) {
			return false
		}
		s.recomputeConnection()
		return true
	})
}

func (s *Store) profile(id int64) (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles.get(id)
}

func (s *Store) setProfileError(msg string) {
	s.update(func() bool {
		if s.profileErr == msg {
			return false
		}
		s.profileErr = msg
		return true
	})
}

// Service status.

func (s *Store) setService(fn func(*model.ServiceStatus)) {
	s.update(func() bool {
		fn(&s.service)
		return true
	})
}

// Router.

// beginRouterOp flips Busy on if it was off. It is the only guard against
// overlapping start/stop calls.
func (s *Store) beginRouterOp(addr string) bool {
	ok := false
	s.update(func() bool {
		if s.router.Busy {
			return false
		}
		s.router.Busy = true
		s.router.AddrError = ""
		if addr != "" {
			s.router.ListenAddr = addr
		}
		ok = true
		return true
	})
	return ok
}

func (s *Store) finishRouterOp(fn func(*model.RouterState)) {
	s.update(func() bool {
		fn(&s.router)
		s.router.Busy = false
		return true
	})
}

func (s *Store) setRouterAddrError(msg string) {
	s.update(func() bool {
		if s.router.AddrError == msg {
			return false
		}
		s.router.AddrError = msg
		return true
	})
}

// applyRouterStatus records a polled status. Polls that land while a
// start/stop is in flight are ignored; the operation result is authoritative.
func (s *Store) applyRouterStatus(st model.RouterStatus) bool {
	return s.update(func() bool {
		if s.router.Busy {
			return false
		}
		changed := s.router.Running != st.Running
		s.router.Running = st.Running
		if st.Addr != "" && st.Addr != s.router.ListenAddr {
			s.router.ListenAddr = st.Addr
			changed = true
		}
		return changed
	})
}

func (s *Store) routerBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Busy
}

// Confirmation.

func (s *Store) setPending(p *model.PendingConfirmation) {
	s.update(func() bool {
		if s.pending == nil && p == nil {
			return false
		}
		s.pending = p
		return true
	})
}

// takePending clears and returns the pending confirmation.
func (s *Store) takePending() *model.PendingConfirmation {
	var p *model.PendingConfirmation
	s.update(func() bool {
		p = s.pending
		s.pending = nil
		return p != nil
	})
	return p
}

// Host mappings.

func (s *Store) replaceMappings(seq uint64, list []model.HostMapping) bool {
	return s.update(func() bool { return s.mappings.replace(seq, list) })
}

func (s *Store) putMapping(seq uint64, m model.HostMapping) bool {
	return s.update(func() bool { return s.mappings.put(seq, m, false) })
}

func (s *Store) addLocalMapping(seq uint64, m model.HostMapping) model.HostMapping {
	s.update(func() bool {
		m.ID = s.mappings.maxID() + 1
		s.mappings.put(seq, m, false)
		return true
	})
	return m
}

func (s *Store) removeMapping(seq uint64, id int64) bool {
	return s.update(func() bool { return s.mappings.remove(seq, id) })
}

func (s *Store) mapping(id int64) (model.HostMapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mappings.get(id)
}

func (s *Store) setMappingError(msg string) {
	s.update(func() bool {
		if s.mappingErr == msg {
			return false
		}
		s.mappingErr = msg
		return true
	})
}

// Activity.

func (s *Store) setLogs(logs []model.LogEntry) {
	s.update(func() bool {
		s.logs = logs
		return true
	})
}

func (s *Store) setTimeline(events []model.TimelineEvent) {
	s.update(func() bool {
		s.timeline = events
		return true
	})
}

func (s *Store) setActivity(records []model.ActivityLog) {
	s.update(func() bool {
		s.activity = records
		return true
	})
}

func (s *Store) setActivityError(msg string) {
	s.update(func() bool {
		if s.activityErr == msg {
			return false
		}
		s.activityErr = msg
		return true
	})
}
