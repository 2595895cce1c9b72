package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/orchestrator"
	"github.com/treykane/gostly/internal/util"
)

func newMappingCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{Use: "mapping", Short: "Manage host mappings served by the host router"}

	var jsonOut bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List host mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				if err := orch.Mappings.List(ctx); err != nil {
					return err
				}
				mappings := orch.Snapshot().Mappings
				if jsonOut {
					return printJSON(mappings)
				}
				fmt.Printf("%-5s %-32s %-28s %-6s %s\n", "ID", "HOSTNAME", "UPSTREAM", "PROTO", "ACTIVE")
				for _, m := range mappings {
					fmt.Printf("%-5d %-32s %-28s %-6s %t\n", m.ID, m.Hostname, m.Upstream(), m.Protocol, m.Active)
				}
				return nil
			})
		},
	}
	list.Flags().BoolVar(&jsonOut, "json", false, "output JSON")

	var m model.HostMapping
	var proto string
	var inactive bool
	add := &cobra.Command{
		Use:   "add <hostname>",
		Short: "Add or update a host mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m.Hostname = strings.ToLower(strings.TrimSpace(args[0]))
			m.Protocol = model.Protocol(proto)
			m.Active = !inactive
			if err := util.ValidatePort(m.Port); err != nil {
				return err
			}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				if err := orch.Mappings.List(ctx); err != nil {
					return err
				}
				// Re-adding a hostname edits the existing mapping.
				if cur, ok := findMapping(orch.Snapshot().Mappings, m.Hostname); ok {
					m.ID = cur.ID
				}
				saved, err := orch.Mappings.Save(ctx, m)
				if err != nil {
					return err
				}
				fmt.Printf("saved host mapping %s -> %s\n", saved.Hostname, saved.Upstream())
				return nil
			})
		},
	}
	add.Flags().StringVar(&m.IP, "ip", "127.0.0.1", "upstream IP or host")
	add.Flags().IntVar(&m.Port, "port", 0, "upstream port")
	add.Flags().StringVar(&proto, "protocol", string(model.ProtocolHTTP), "HTTP, HTTPS or TCP")
	add.Flags().BoolVar(&inactive, "inactive", false, "store the mapping without routing it")

	var yes bool
	rm := &cobra.Command{
		Use:     "rm <id|hostname>",
		Aliases: []string{"delete"},
		Short:   "Delete a host mapping",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				if err := orch.Mappings.List(ctx); err != nil {
					return err
				}
				hm, ok := findMapping(orch.Snapshot().Mappings, args[0])
				if !ok {
					return fmt.Errorf("host mapping not found: %s", args[0])
				}
				return confirmDelete(ctx, cmd, orch, yes, hm.ID, hm.Hostname, model.TargetHostMapping)
			})
		},
	}
	rm.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	root.AddCommand(list, add, rm)
	return root
}

// findMapping resolves a numeric id or a case-insensitive hostname.
func findMapping(mappings []model.HostMapping, ref string) (model.HostMapping, bool) {
	id, idErr := strconv.ParseInt(ref, 10, 64)
	for _, m := range mappings {
		if idErr == nil && m.ID == id {
			return m, true
		}
		if strings.EqualFold(m.Hostname, strings.TrimSpace(ref)) {
			return m, true
		}
	}
	return model.HostMapping{}, false
}
