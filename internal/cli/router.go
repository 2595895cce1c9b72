package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/orchestrator"
	"github.com/treykane/gostly/internal/util"
)

func newRouterCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{Use: "router", Short: "Control the host router"}

	var addr string
	start := &cobra.Command{
		Use:   "start",
		Short: "Start the host router",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				if s.mode == modeLocal {
					return errNeedsDaemon
				}
				listen := util.NormalizeAddr(addr, orch.Snapshot().Router.ListenAddr)
				if err := orch.Router.Start(ctx, listen); err != nil {
					return err
				}
				printNotice(orch.Snapshot().Router.Notice)
				return nil
			})
		},
	}
	start.Flags().StringVar(&addr, "addr", "", "listen address, e.g. :8080 (default: router.default_addr)")

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the host router",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				if err := orch.Router.Stop(ctx); err != nil {
					return err
				}
				printNotice(orch.Snapshot().Router.Notice)
				return nil
			})
		},
	}

	var jsonOut bool
	status := &cobra.Command{
		Use:   "status",
		Short: "Show whether the host router is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				if err := orch.Router.Refresh(ctx); err != nil {
					return err
				}
				r := orch.Snapshot().Router
				if jsonOut {
					return printJSON(r)
				}
				if r.Running {
					fmt.Printf("host router: running on %s\n", r.ListenAddr)
				} else {
					fmt.Println("host router: stopped")
				}
				return nil
			})
		},
	}
	status.Flags().BoolVar(&jsonOut, "json", false, "output JSON")

	root.AddCommand(start, stop, status)
	return root
}

func printNotice(n *model.Notice) {
	if n != nil {
		fmt.Println(n.Text)
	}
}
