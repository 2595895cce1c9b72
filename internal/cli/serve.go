package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/treykane/gostly/internal/appconfig"
	"github.com/treykane/gostly/internal/backend"
	"github.com/treykane/gostly/internal/rpc"
	"github.com/treykane/gostly/internal/security"
)

// bridgePath is where the daemon serves the websocket bridge.
const bridgePath = "/bridge"

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gostly daemon that owns the gost processes and host router",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load()
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.Bridge.Listen
			}
			token := opts.token
			if token == "" {
				token = cfg.Bridge.Token
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, listen, token)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "bridge listen address (default: bridge.listen)")
	return cmd
}

// serve runs the bridge until ctx ends, then stops every engine process.
func serve(ctx context.Context, cfg appconfig.Config, listen, token string) error {
	logger := newLogger(os.Stderr, cfg.SlogLevel())
	if !security.IsLoopback(listen) && token == "" {
		logger.Warn("bridge is reachable from the network without a token", "listen", listen)
	}

	local, err := backend.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := local.Close(); err != nil {
			logger.Warn("backend close failed", "error", err)
		}
	}()

	handler, err := rpc.NewHandler(local, token)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(bridgePath, handler)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listen, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("gostly daemon listening", "addr", ln.Addr().String(), "path", bridgePath, "auth", token != "")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print a bcrypt hash of a bridge token for the daemon's bridge.token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := rpc.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}
