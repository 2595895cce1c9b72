package engine

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/treykane/gostly/internal/model"
)

// Runtime is the observable state of one supervised process.
type Runtime struct {
	ProfileID   int64     `json:"profile_id"`
	ProfileName string    `json:"profile_name"`
	Listen      string    `json:"listen"`
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
}

// LineFunc receives each output line with its detected level.
type LineFunc func(p model.Profile, level, line string)

// ExitFunc is called once a process is gone. err is nil when the exit was
// requested through Stop.
type ExitFunc func(p model.Profile, err error)

// Options configures a Supervisor.
type Options struct {
	Launcher  Launcher
	Binary    string
	ConfigDir string
	LogLevel  string
	OnLine    LineFunc
	OnExit    ExitFunc
}

type running struct {
	profile    model.Profile
	proc       *Process
	configPath string
	startedAt  time.Time
	cancel     context.CancelFunc
	stopping   bool
	done       chan struct{}
}

// Supervisor runs at most one gost process per profile.
type Supervisor struct {
	mu        sync.Mutex
	launcher  Launcher
	binary    string
	configDir string
	logLevel  string
	onLine    LineFunc
	onExit    ExitFunc
	procs     map[int64]*running
}

func NewSupervisor(opts Options) *Supervisor {
	if opts.Launcher == nil {
		opts.Launcher = PTYLauncher{}
	}
	return &Supervisor{
		launcher:  opts.Launcher,
		binary:    opts.Binary,
		configDir: opts.ConfigDir,
		logLevel:  opts.LogLevel,
		onLine:    opts.OnLine,
		onExit:    opts.OnExit,
		procs:     make(map[int64]*running),
	}
}

// SetBinary changes the binary used by later starts.
func (s *Supervisor) SetBinary(path string) {
	s.mu.Lock()
	s.binary = path
	s.mu.Unlock()
}

// Binary returns the configured binary, or "" if none.
func (s *Supervisor) Binary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binary
}

// Start renders the config for p and launches gost with it.
func (s *Supervisor) Start(p model.Profile) (Runtime, error) {
	s.mu.Lock()
	if _, ok := s.procs[p.ID]; ok {
		s.mu.Unlock()
		return Runtime{}, ErrAlreadyRunning
	}
	binary := s.binary
	// Reserve the slot so a concurrent Start for the same id fails fast.
	slot := &running{profile: p, done: make(chan struct{})}
	s.procs[p.ID] = slot
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.procs, p.ID)
		s.mu.Unlock()
		close(slot.done)
	}
	if binary == "" {
		release()
		return Runtime{}, ErrNotFound
	}

	configPath, err := WriteConfig(s.configDir, p, s.logLevel)
	if err != nil {
		release()
		return Runtime{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc, err := s.launcher.Launch(ctx, binary, configPath)
	if err != nil {
		cancel()
		_ = os.Remove(configPath)
		release()
		return Runtime{}, fmt.Errorf("start gost: %w", err)
	}

	s.mu.Lock()
	slot.proc = proc
	slot.configPath = configPath
	slot.startedAt = time.Now()
	slot.cancel = cancel
	rt := slot.runtime()
	s.mu.Unlock()

	go s.watch(slot)
	slog.Debug("gost process started", "profile", p.Name, "pid", rt.PID)
	return rt, nil
}

func (r *running) runtime() Runtime {
	rt := Runtime{
		ProfileID:   r.profile.ID,
		ProfileName: r.profile.Name,
		Listen:      r.profile.Listen,
		StartedAt:   r.startedAt,
	}
	if r.proc != nil && r.proc.Cmd.Process != nil {
		rt.PID = r.proc.Cmd.Process.Pid
	}
	return rt
}

// watch drains output until the child closes it, then reaps the process and
// releases the slot.
func (s *Supervisor) watch(r *running) {
	sc := bufio.NewScanner(r.proc.Output)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if s.onLine != nil {
			s.onLine(r.profile, DetectLevel(line), line)
		}
	}
	// A pty master reports EIO once the child is gone; that is the normal end.
	err := r.proc.Cmd.Wait()
	_ = r.proc.Output.Close()
	r.cancel()
	if rmErr := os.Remove(r.configPath); rmErr != nil && !os.IsNotExist(rmErr) {
		slog.Warn("failed to remove engine config", "path", r.configPath, "error", rmErr)
	}

	s.mu.Lock()
	requested := r.stopping
	if cur, ok := s.procs[r.profile.ID]; ok && cur == r {
		delete(s.procs, r.profile.ID)
	}
	s.mu.Unlock()
	close(r.done)

	if requested {
		err = nil
	}
	if s.onExit != nil {
		s.onExit(r.profile, err)
	}
}

// Stop interrupts the process for id and waits until it is gone.
func (s *Supervisor) Stop(id int64) error {
	s.mu.Lock()
	r, ok := s.procs[id]
	if !ok || r.cancel == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	r.stopping = true
	s.mu.Unlock()

	r.cancel()
	<-r.done
	return nil
}

// StopAll stops every supervised process.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = s.Stop(id)
		}(id)
	}
	wg.Wait()
}

// IsRunning reports whether a process exists for id.
func (s *Supervisor) IsRunning(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.procs[id]
	return ok && r.proc != nil
}

// Snapshot lists live processes ordered by start time.
func (s *Supervisor) Snapshot() []Runtime {
	s.mu.Lock()
	out := make([]Runtime, 0, len(s.procs))
	for _, r := range s.procs {
		if r.proc == nil {
			continue
		}
		out = append(out, r.runtime())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Oldest returns the start time of the longest-running process.
func (s *Supervisor) Oldest() (time.Time, bool) {
	snap := s.Snapshot()
	if len(snap) == 0 {
		return time.Time{}, false
	}
	return snap[0].StartedAt, true
}
