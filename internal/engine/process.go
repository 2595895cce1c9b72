package engine

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"

	"github.com/treykane/gostly/internal/util"
)

// Process is a started gost child.
//
// Output carries the merged stdout/stderr of the child. The Supervisor owns
// the lifecycle: it drains Output, then calls Cmd.Wait.
type Process struct {
	Cmd    *exec.Cmd
	Output io.ReadCloser
}

// Launcher abstracts process creation so tests can substitute a harmless
// stand-in for gost.
type Launcher interface {
	Launch(ctx context.Context, binary, configPath string) (*Process, error)
}

// PTYLauncher starts gost attached to a pseudo-terminal. gost then sees a
// terminal and line-buffers its output, so log lines arrive as they happen
// instead of in block-sized bursts.
type PTYLauncher struct{}

// Command builds the exec.Cmd for a config. Cancelling ctx sends an
// interrupt; the process is killed if it has not exited after the grace
// period.
func (PTYLauncher) Command(ctx context.Context, binary, configPath string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binary, "-C", configPath)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = util.EngineStopGrace
	return cmd
}

func (l PTYLauncher) Launch(ctx context.Context, binary, configPath string) (*Process, error) {
	cmd := l.Command(ctx, binary, configPath)
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}
	return &Process{Cmd: cmd, Output: f}, nil
}
