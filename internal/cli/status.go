package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/orchestrator"
	"github.com/treykane/gostly/internal/util"
)

type statusReport struct {
	Mode       string                 `json:"mode"`
	Service    model.ServiceStatus    `json:"service"`
	Connection model.ConnectionStatus `json:"connection"`
	Router     model.RouterState      `json:"router"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine, proxy and host router status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				orch.Service.CheckAvailability(ctx)
				orch.Service.CheckStatus(ctx)
				if err := orch.Profiles.List(ctx); err != nil {
					return err
				}
				_ = orch.Router.Refresh(ctx)

				st := orch.Snapshot()
				report := statusReport{Mode: s.mode, Service: st.Service, Connection: st.Connection, Router: st.Router}
				if jsonOut {
					return printJSON(report)
				}
				avail := "not found"
				if st.Service.Available {
					avail = "available " + st.Service.Version
				}
				service := "stopped"
				if st.Service.Running {
					service = "running, up " + util.EmptyDash(st.Service.Uptime)
				}
				router := "stopped"
				if st.Router.Running {
					router = "running on " + st.Router.ListenAddr
				}
				fmt.Printf("backend:     %s\n", s.mode)
				fmt.Printf("gost:        %s\n", avail)
				fmt.Printf("service:     %s\n", service)
				fmt.Printf("proxies:     %d of %d running\n", st.Connection.ActiveProfiles, st.Connection.TotalProfiles)
				fmt.Printf("host router: %s\n", router)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
