// Package backend is the in-process engine owner. Local implements
// bridge.Backend on top of the SQLite store, the gost supervisor, the timeline
// journal and the host router.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/treykane/gostly/internal/appconfig"
	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/engine"
	"github.com/treykane/gostly/internal/events"
	"github.com/treykane/gostly/internal/hostrouter"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/store"
	"github.com/treykane/gostly/internal/util"
)

// Errors surfaced to the operator verbatim.
var (
	ErrEngineUnavailable = errors.New("GOST is not available. Please install GOST and restart gostly")
	ErrUpdateRunning     = errors.New("cannot update a running profile, stop it first")
	ErrDeleteRunning     = errors.New("cannot delete a running profile, stop it first")
)

const versionProbeTimeout = 3 * time.Second

// Options wires a Local backend. DB is required; everything else has a
// default.
type Options struct {
	DB         *store.DB
	Journal    *events.Journal
	Logs       *events.LogBuffer
	Router     *hostrouter.Router
	Launcher   engine.Launcher
	Binary     string
	EngineDir  string
	LogLevel   string
	Logger     *slog.Logger
	Now        func() time.Time
	SkipDetect bool
}

// Local owns every engine process of this machine.
type Local struct {
	db      *store.DB
	sup     *engine.Supervisor
	router  *hostrouter.Router
	journal *events.Journal
	logs    *events.LogBuffer
	log     *slog.Logger
	now     func() time.Time

	override string

	mu           sync.Mutex
	available    bool
	missingNoted bool
	version      string
	closed       bool
}

var _ bridge.Backend = (*Local)(nil)

// Open builds a Local from the application config, creating the database and
// engine config directory under the config dir.
func Open(cfg appconfig.Config, logger *slog.Logger) (*Local, error) {
	dbPath, err := appconfig.DatabasePath()
	if err != nil {
		return nil, err
	}
	engineDir, err := appconfig.EngineDir()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	router, err := hostrouter.New(cfg.Router.FallbackUpstream, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l, err := New(Options{
		DB:        db,
		Router:    router,
		Binary:    cfg.Engine.Binary,
		EngineDir: engineDir,
		LogLevel:  cfg.Engine.LogLevel,
		Logger:    logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func New(opts Options) (*Local, error) {
	if opts.DB == nil {
		return nil, errors.New("backend: database is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Journal == nil {
		opts.Journal = events.NewJournal()
	}
	if opts.Logs == nil {
		opts.Logs = events.NewLogBuffer(util.MaxLogEntries)
	}
	if opts.Router == nil {
		r, err := hostrouter.New("", opts.Logger)
		if err != nil {
			return nil, err
		}
		opts.Router = r
	}
	if opts.EngineDir == "" {
		dir, err := appconfig.EngineDir()
		if err != nil {
			return nil, err
		}
		opts.EngineDir = dir
	}

	l := &Local{
		db:       opts.DB,
		router:   opts.Router,
		journal:  opts.Journal,
		logs:     opts.Logs,
		log:      opts.Logger,
		now:      opts.Now,
		override: opts.Binary,
	}
	l.sup = engine.NewSupervisor(engine.Options{
		Launcher:  opts.Launcher,
		ConfigDir: opts.EngineDir,
		LogLevel:  opts.LogLevel,
		OnLine:    l.onEngineLine,
		OnExit:    l.onEngineExit,
	})
	if opts.SkipDetect {
		// Callers that inject a launcher decide availability themselves.
		l.sup.SetBinary(util.DefaultString(opts.Binary, engine.BinaryName))
		l.available = true
	}

	if mappings, err := l.db.HostMappings(context.Background()); err == nil {
		l.router.SetMappings(mappings)
	}

	l.addLog(model.LevelInfo, model.SourceSystem, "Gostly backend initialized successfully", nil, "")
	l.timeline(model.EventSystem, "API Initialized", "Gostly backend initialized successfully", "success", "system", "1s", "")
	if !opts.SkipDetect {
		l.detectEngine(context.Background())
	}
	return l, nil
}

// detectEngine locates gost and caches its version.
func (l *Local) detectEngine(ctx context.Context) bool {
	binary, err := engine.Locate(l.override)
	if err != nil {
		l.mu.Lock()
		l.available = false
		l.version = ""
		note := !l.missingNoted
		l.missingNoted = true
		l.mu.Unlock()
		// Polls retry detection; the hint is logged once per outage.
		if note {
			l.addLog(model.LevelInfo, model.SourceSystem, "GOST not found - manual installation required", nil, "")
			l.addLog(model.LevelInfo, model.SourceSystem, "To install GOST: brew install gost (macOS) or download from GitHub releases", nil, "")
		}
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	version, verr := engine.Version(ctx, binary)
	if verr != nil {
		l.log.Warn("gost version probe failed", "binary", binary, "error", verr)
		version = "unknown"
	}

	l.mu.Lock()
	was := l.available
	l.available = true
	l.version = version
	l.missingNoted = false
	l.mu.Unlock()
	l.sup.SetBinary(binary)

	if !was {
		l.addLog(model.LevelInfo, model.SourceSystem, fmt.Sprintf("GOST detected: %s", version), nil, "")
		l.timeline(model.EventSystem, "GOST Detected", fmt.Sprintf("GOST binary detected: %s", version), "success", "system", "1s", "")
	}
	return true
}

func (l *Local) IsEngineAvailable(ctx context.Context) (bool, error) {
	l.mu.Lock()
	ok := l.available
	l.mu.Unlock()
	if ok {
		return true, nil
	}
	return l.detectEngine(ctx), nil
}

func (l *Local) GetEngineVersion(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.available {
		return "", engine.ErrNotFound
	}
	return l.version, nil
}

// GetServiceStatus reports the engine as running while any profile process is
// alive, with uptime measured from the oldest one.
func (l *Local) GetServiceStatus(ctx context.Context) (model.EngineStatus, error) {
	l.mu.Lock()
	version := util.DefaultString(l.version, "Unknown")
	l.mu.Unlock()

	oldest, ok := l.sup.Oldest()
	if !ok {
		return model.EngineStatus{Running: false, Version: version}, nil
	}
	return model.EngineStatus{Running: true, Version: version, Uptime: uptime(oldest, l.now())}, nil
}

// Running lists the live engine processes.
func (l *Local) Running() []engine.Runtime {
	return l.sup.Snapshot()
}

// Close stops every engine process and the host router, then closes the
// database. It is safe to call twice.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.sup.StopAll()
	ctx, cancel := context.WithTimeout(context.Background(), util.RouterShutdownTimeout)
	defer cancel()
	if err := l.router.Stop(ctx); err != nil && !errors.Is(err, hostrouter.ErrNotRunning) {
		l.log.Warn("failed to stop host router", "error", err)
	}
	return l.db.Close()
}

func (l *Local) onEngineLine(p model.Profile, level, line string) {
	id := p.ID
	l.logs.Add(level, model.SourceEngine, line, &id, p.Name)
}

func (l *Local) onEngineExit(p model.Profile, err error) {
	id := p.ID
	if err == nil {
		l.addLog(model.LevelInfo, model.SourceEngine, fmt.Sprintf("GOST process exited for profile %s", p.Name), &id, p.Name)
		return
	}
	l.addLog(model.LevelError, model.SourceEngine, fmt.Sprintf("GOST process for profile %s exited: %v", p.Name, err), &id, p.Name)
	l.timeline(model.EventError, "Profile Exited", fmt.Sprintf("Proxy profile '%s' exited unexpectedly: %v", p.Name, err), "error", "system", "", p.Name)
}

func (l *Local) addLog(level, source, message string, profileID *int64, profileName string) {
	l.logs.Add(level, source, message, profileID, profileName)
	attrs := []any{"source", source}
	if profileName != "" {
		attrs = append(attrs, "profile", profileName)
	}
	switch level {
	case model.LevelError:
		l.log.Error(message, attrs...)
	case model.LevelWarn:
		l.log.Warn(message, attrs...)
	case model.LevelDebug:
		l.log.Debug(message, attrs...)
	default:
		l.log.Info(message, attrs...)
	}
}

func (l *Local) timeline(typ, action, details, status, user, duration, profileName string) {
	_, err := l.journal.Append(model.TimelineEvent{
		Type:        typ,
		Action:      action,
		Details:     details,
		Timestamp:   l.now().Format(time.RFC3339),
		ProfileName: profileName,
		Status:      status,
		User:        user,
		Duration:    duration,
	})
	if err != nil {
		l.log.Warn("failed to journal timeline event", "action", action, "error", err)
	}
}

func (l *Local) activity(ctx context.Context, profileID int64, name, action, details string) {
	err := l.db.AddActivity(ctx, model.ActivityLog{
		ProfileID:   profileID,
		ProfileName: name,
		Action:      action,
		Details:     details,
		Timestamp:   l.now().UTC().Format(time.RFC3339),
		Status:      "success",
	})
	if err != nil {
		l.log.Warn("failed to log activity", "profile", name, "action", action, "error", err)
	}
}
