package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/treykane/gostly/internal/history"
	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/orchestrator"
	"github.com/treykane/gostly/internal/util"
)

var errNeedsDaemon = errors.New("this command needs a running daemon; start one with `gostly serve`")

func newProfileCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{Use: "profile", Short: "Manage proxy profiles"}
	root.AddCommand(newProfileListCmd(opts), newProfileAddCmd(opts), newProfileToggleCmd(opts, true), newProfileToggleCmd(opts, false), newProfileRmCmd(opts))
	return root
}

func newProfileListCmd(opts *rootOptions) *cobra.Command {
	var recent, jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proxy profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				if err := orch.Profiles.List(ctx); err != nil {
					return err
				}
				profiles := orch.Snapshot().Profiles
				var last map[int64]int64
				if recent {
					var err error
					if last, err = history.LastStarted(); err != nil {
						return err
					}
					profiles = history.SortProfilesRecent(profiles, last)
				}
				if jsonOut {
					return printJSON(profiles)
				}
				fmt.Printf("%-5s %-20s %-8s %-16s %-24s %-8s %s\n", "ID", "NAME", "TYPE", "LISTEN", "REMOTE", "STATUS", "LAST STARTED")
				for _, p := range profiles {
					started := "-"
					if ts, ok := last[p.ID]; ok {
						started = humanize.Time(time.Unix(ts, 0))
					}
					fmt.Printf("%-5d %-20s %-8s %-16s %-24s %-8s %s\n", p.ID, p.Name, p.Type, p.Listen, p.Remote, p.Status, started)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&recent, "recent", false, "sort by most recently started")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newProfileAddCmd(opts *rootOptions) *cobra.Command {
	var d model.ProfileDraft
	var typ string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a proxy profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			d.Type = model.ProfileType(strings.ToLower(typ))
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				p, err := orch.Profiles.Add(ctx, d)
				if err != nil {
					return err
				}
				fmt.Printf("created profile %d (%s) %s -> %s\n", p.ID, p.Name, p.Listen, p.Remote)
				return nil
			})
		},
	}
	types := make([]string, len(model.ProfileTypes))
	for i, t := range model.ProfileTypes {
		types[i] = string(t)
	}
	cmd.Flags().StringVar(&d.Name, "name", "", "profile name")
	cmd.Flags().StringVar(&typ, "type", string(model.ProfileForward), "profile type ("+strings.Join(types, ", ")+")")
	cmd.Flags().StringVar(&d.Listen, "listen", "", "listen address, e.g. :1080")
	cmd.Flags().StringVar(&d.Remote, "remote", "", "remote address, e.g. 10.0.0.1:1080")
	cmd.Flags().StringVar(&d.Username, "user", "", "proxy auth username (forward/http only)")
	cmd.Flags().StringVar(&d.Password, "password", "", "proxy auth password (forward/http only)")
	return cmd
}

func newProfileToggleCmd(opts *rootOptions, start bool) *cobra.Command {
	use, short, verb := "stop <id|name>", "Stop a running profile", "stopped"
	if start {
		use, short, verb = "start <id|name>", "Start a profile", "started"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				// An in-process backend would stop the engine again on exit.
				if start && s.mode == modeLocal {
					return errNeedsDaemon
				}
				if err := orch.Profiles.List(ctx); err != nil {
					return err
				}
				p, err := findProfile(orch.Snapshot().Profiles, args[0])
				if err != nil {
					return err
				}
				if err := orch.Profiles.Toggle(ctx, p.ID, start); err != nil {
					return err
				}
				fmt.Printf("%s profile %d (%s)\n", verb, p.ID, p.Name)
				return nil
			})
		},
	}
}

func newProfileRmCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <id|name>",
		Aliases: []string{"delete"},
		Short:   "Delete a stopped profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				if err := orch.Profiles.List(ctx); err != nil {
					return err
				}
				p, err := findProfile(orch.Snapshot().Profiles, args[0])
				if err != nil {
					return err
				}
				return confirmDelete(ctx, cmd, orch, yes, p.ID, p.Name, model.TargetProfile)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirmDelete routes a delete through the orchestrator's confirmation gate,
// prompting on stdin unless yes is set.
func confirmDelete(ctx context.Context, cmd *cobra.Command, orch *orchestrator.Orchestrator, yes bool, id int64, label string, kind model.TargetKind) error {
	if err := orch.Gate.Request(id, label, kind); err != nil {
		return err
	}
	if !yes && !promptYes(cmd.InOrStdin(), fmt.Sprintf("Delete %s %q? [y/N] ", strings.ReplaceAll(string(kind), "_", " "), label)) {
		orch.Gate.Cancel()
		fmt.Println("cancelled")
		return nil
	}
	if err := orch.Gate.Confirm(ctx); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", label)
	return nil
}

func promptYes(in io.Reader, question string) bool {
	fmt.Print(question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// findProfile resolves a numeric id first, then an exact name.
func findProfile(profiles []model.Profile, ref string) (model.Profile, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, p := range profiles {
			if p.ID == id {
				return p, nil
			}
		}
	}
	var found []model.Profile
	for _, p := range profiles {
		if p.Name == ref {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return model.Profile{}, fmt.Errorf("profile not found: %s", ref)
	case 1:
		return found[0], nil
	}
	return model.Profile{}, fmt.Errorf("profile name %q is ambiguous, use the id (%s)", ref, profileIDs(found))
}

func profileIDs(profiles []model.Profile) string {
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = strconv.FormatInt(p.ID, 10)
	}
	return util.DefaultString(strings.Join(ids, ", "), "-")
}
