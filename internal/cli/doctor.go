package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treykane/gostly/internal/appconfig"
	"github.com/treykane/gostly/internal/doctor"
	"github.com/treykane/gostly/internal/orchestrator"
)

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var jsonOut, verbose bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the gost install, profiles and file permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session, orch *orchestrator.Orchestrator) error {
				cfg, err := appconfig.Load()
				if err != nil {
					return err
				}
				report, err := doctor.Run(ctx, cfg, s.backend)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(report)
				}
				fmt.Printf("gost on PATH: %s\n", report.Engine.InPath)
				if verbose {
					fmt.Printf("PATH=%s\n", report.Engine.PATH)
					for _, loc := range report.Engine.Locations {
						state := "missing"
						if loc.Exists {
							state = fmt.Sprintf("exists executable=%t size=%d", loc.Executable, loc.Size)
						}
						fmt.Printf("  %-32s %s\n", loc.Path, state)
					}
				}
				if len(report.Issues) == 0 {
					fmt.Println("no issues found")
					return nil
				}
				fmt.Printf("%-8s %-16s %-28s %s\n", "SEVERITY", "CHECK", "TARGET", "MESSAGE")
				for _, i := range report.Issues {
					fmt.Printf("%-8s %-16s %-28s %s\n", i.Severity, i.Check, i.Target, i.Message)
					fmt.Printf("%-8s %-16s %-28s -> %s\n", "", "", "", i.Recommendation)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every common install location")
	return cmd
}
