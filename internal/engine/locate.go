// Package engine finds, configures and supervises gost processes.
//
// gostly does not speak any gost protocol itself. Each running profile is one
// `gost -C <config>` child process whose merged output is turned into log
// lines by the Supervisor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// BinaryName is the executable looked up on PATH.
const BinaryName = "gost"

var (
	ErrNotFound       = errors.New("gost binary not found")
	ErrAlreadyRunning = errors.New("profile is already running")
	ErrNotRunning     = errors.New("profile is not running")
)

// CommonPaths are checked, in order, when gost is not on PATH.
var CommonPaths = []string{
	"/usr/local/bin/gost",
	"/usr/bin/gost",
	"/opt/homebrew/bin/gost",
	"/usr/local/opt/gost/bin/gost",
	"./gost",
}

// Locate returns the gost binary to run. A non-empty override must point at
// an executable file; otherwise PATH is consulted, then CommonPaths.
func Locate(override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		if isExecutable(override) {
			return override, nil
		}
		return "", fmt.Errorf("%w: %s is not an executable file", ErrNotFound, override)
	}
	if p, err := exec.LookPath(BinaryName); err == nil {
		return p, nil
	}
	for _, p := range CommonPaths {
		if isExecutable(p) {
			return p, nil
		}
	}
	return "", ErrNotFound
}

// Version runs `gost -V` and returns its trimmed output.
func Version(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "-V").Output()
	if err != nil {
		return "", fmt.Errorf("gost -V: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// Location describes one candidate install path.
type Location struct {
	Path       string `json:"path"`
	Exists     bool   `json:"exists"`
	Executable bool   `json:"executable"`
	Size       int64  `json:"size,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DebugInfo is what `gostly doctor` prints about binary discovery.
type DebugInfo struct {
	PATH      string     `json:"path_env"`
	InPath    string     `json:"gost_in_path"`
	Locations []Location `json:"common_locations"`
}

// Debug inspects PATH and every common install location.
func Debug() DebugInfo {
	info := DebugInfo{PATH: os.Getenv("PATH"), InPath: "not found"}
	if p, err := exec.LookPath(BinaryName); err == nil {
		info.InPath = p
	}
	for _, p := range CommonPaths {
		loc := Location{Path: p}
		st, err := os.Stat(p)
		if err != nil {
			loc.Error = err.Error()
		} else {
			loc.Exists = true
			loc.Executable = !st.IsDir() && st.Mode()&0o111 != 0
			loc.Size = st.Size()
		}
		info.Locations = append(info.Locations, loc)
	}
	return info
}
