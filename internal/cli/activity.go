package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/treykane/gostly/internal/events"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/orchestrator"
	"github.com/treykane/gostly/internal/util"
)

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var clear, jsonOut bool
	var filter model.LogFilter
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent engine and system log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				if clear {
					if err := orch.Activity.ClearLogs(ctx); err != nil {
						return err
					}
					fmt.Println("logs cleared")
					return nil
				}
				if err := orch.Activity.RefreshLogs(ctx, limit); err != nil {
					return err
				}
				logs := orch.Activity.FilteredLogs(filter)
				if jsonOut {
					return printJSON(logs)
				}
				for _, e := range logs {
					fmt.Printf("%s %-5s %-6s %-16s %s\n", e.Timestamp, e.Level, e.Source, util.EmptyDash(e.ProfileName), e.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", util.DefaultLogLimit, "number of entries")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the log buffer instead of printing it")
	cmd.Flags().StringVar(&filter.Level, "level", "", "only this level (DEBUG, INFO, WARN, ERROR)")
	cmd.Flags().StringVar(&filter.Source, "source", "", "only this source (gost, system, api)")
	cmd.Flags().StringVar(&filter.Profile, "profile", "", "only lines for this profile id or name")
	cmd.Flags().StringVar(&filter.Text, "grep", "", "only lines whose message contains this text")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newActivityCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var profile string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show persisted profile operations (create, update, start, stop, delete)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				var profileID int64
				if profile != "" {
					if err := orch.Profiles.List(ctx); err != nil {
						return err
					}
					p, err := findProfile(orch.Snapshot().Profiles, profile)
					if err != nil {
						return err
					}
					profileID = p.ID
				}
				if err := orch.Activity.RefreshActivity(ctx, profileID, limit); err != nil {
					return err
				}
				records := orch.Snapshot().Activity
				if jsonOut {
					return printJSON(records)
				}
				fmt.Printf("%-20s %-20s %-8s %-8s %s\n", "WHEN", "PROFILE", "ACTION", "STATUS", "DETAILS")
				for _, a := range records {
					when := a.Timestamp
					if t, err := time.Parse(time.RFC3339, a.Timestamp); err == nil {
						when = humanize.Time(t)
					}
					fmt.Printf("%-20s %-20s %-8s %-8s %s\n", when, util.EmptyDash(a.ProfileName), a.Action, a.Status, a.Details)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "only operations on this profile id or name")
	cmd.Flags().IntVarP(&limit, "limit", "n", util.DefaultActivityLimit, "number of records")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

// newEventsCmd reads the timeline journal directly, so it works without a
// backend.
func newEventsCmd() *cobra.Command {
	var q events.Query
	var since time.Duration
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the activity timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			list, err := events.NewJournal().Read(q)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(list)
			}
			fmt.Printf("%-20s %-14s %-24s %-8s %s\n", "WHEN", "TYPE", "ACTION", "STATUS", "DETAILS")
			for _, e := range list {
				when := e.Timestamp
				if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
					when = humanize.Time(t)
				}
				fmt.Printf("%-20s %-14s %-24s %-8s %s\n", when, e.Type, e.Action, e.Status, e.Details)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Type, "type", "", "filter by event type (proxy_action, configuration, system, error, host_mapping)")
	cmd.Flags().StringVar(&q.ProfileName, "profile", "", "filter by profile name")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this, e.g. 1h")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 50, "number of events (0 = all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
