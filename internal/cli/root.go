// Package cli provides the command-line interface for gostly.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/treykane/gostly/internal/appconfig"
	"github.com/treykane/gostly/internal/backend"
	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/orchestrator"
	"github.com/treykane/gostly/internal/rpc"
	"github.com/treykane/gostly/internal/ui"
)

// Backend modes shown to the operator.
const (
	modeLocal    = "local"
	modeRemote   = "remote"
	modeHeadless = "headless"
)

// probeTimeout bounds the dial to a default daemon before falling back to the
// in-process backend.
const probeTimeout = 500 * time.Millisecond

type rootOptions struct {
	headless bool
	remote   string
	token    string
}

// session is a connected backend plus how to release it.
type session struct {
	backend bridge.Backend
	mode    string
	close   func()
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "gostly",
		Short:         "Manage gost proxy profiles and host mappings",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().BoolVar(&opts.headless, "headless", false, "run without a backend, showing built-in sample data")
	root.PersistentFlags().StringVar(&opts.remote, "remote", "", "websocket URL of a `gostly serve` daemon (default: bridge.url if one is listening)")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "bridge token (default: bridge.token)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newHashTokenCmd())
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newProfileCmd(opts))
	root.AddCommand(newMappingCmd(opts))
	root.AddCommand(newRouterCmd(opts))
	root.AddCommand(newLogsCmd(opts))
	root.AddCommand(newActivityCmd(opts))
	root.AddCommand(newEventsCmd())
	root.AddCommand(newDoctorCmd(opts))
	return root
}

// connect picks the backend: nothing when headless, the daemon named by
// --remote, the configured daemon when it answers, and otherwise an
// in-process backend over the local database.
func (o *rootOptions) connect(ctx context.Context, cfg appconfig.Config, logger *slog.Logger) (*session, error) {
	if o.headless {
		return &session{mode: modeHeadless, close: func() {}}, nil
	}
	token := o.token
	if token == "" {
		token = cfg.Bridge.Token
	}
	if o.remote != "" {
		c, err := rpc.Dial(ctx, o.remote, token)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", o.remote, err)
		}
		return &session{backend: c, mode: modeRemote, close: func() { _ = c.Close() }}, nil
	}
	if cfg.Bridge.URL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		c, err := rpc.Dial(dialCtx, cfg.Bridge.URL, token)
		cancel()
		if err == nil {
			logger.Debug("using gostly daemon", "url", cfg.Bridge.URL)
			return &session{backend: c, mode: modeRemote, close: func() { _ = c.Close() }}, nil
		}
		if errors.Is(err, rpc.ErrUnauthorized) {
			return nil, fmt.Errorf("connect %s: %w", cfg.Bridge.URL, err)
		}
		logger.Debug("no daemon answering, using in-process backend", "url", cfg.Bridge.URL, "error", err)
	}
	l, err := backend.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{backend: l, mode: modeLocal, close: func() { _ = l.Close() }}, nil
}

// withSession loads config, connects, and runs fn with an orchestrator wired
// to the session. CLI logs go to stderr.
func (o *rootOptions) withSession(ctx context.Context, fn func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.SlogLevel())
	s, err := o.connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()
	orch := newOrchestrator(cfg, s.backend, logger)
	defer orch.Close()
	return fn(ctx, s, orch)
}

func newOrchestrator(cfg appconfig.Config, b bridge.Backend, logger *slog.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Config{
		Backend:           b,
		ServiceInterval:   cfg.ServiceInterval(),
		RouterInterval:    cfg.RouterInterval(),
		ListTimeout:       cfg.ListTimeout(),
		DefaultRouterAddr: cfg.Router.DefaultAddr,
		Logger:            logger,
	})
}

func runDashboard(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	// The terminal belongs to the dashboard; logs go to gostly.log.
	logger, closeLog, err := newFileLogger(cfg.SlogLevel())
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	s, err := opts.connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	orch := newOrchestrator(cfg, s.backend, logger)
	orch.Start(ctx)
	logger.Info("dashboard started", "mode", s.mode)

	closed := false
	shutdown := func() {
		if closed {
			return
		}
		closed = true
		orch.Close()
		s.close()
	}
	defer shutdown()
	return ui.Run(orch, ui.Options{
		Mode:            s.mode,
		RefreshInterval: 3 * time.Second,
		OnQuit:          shutdown,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
