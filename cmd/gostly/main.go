// Package main is the entry point for the gostly binary.
//
// Without arguments gostly opens the dashboard. Subcommands (profile, mapping,
// router, logs, events, doctor, serve) run one operation and exit.
//
// Usage:
//
//	gostly                     # launch the dashboard
//	gostly serve               # run the backend daemon on bridge.listen
//	gostly profile list        # list proxy profiles
//	gostly --headless          # explore the dashboard with sample data
package main

import (
	"fmt"
	"os"

	"github.com/treykane/gostly/internal/cli"
	"github.com/treykane/gostly/internal/security"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gostly:", security.RedactMessage(err.Error()))
		os.Exit(1)
	}
}
