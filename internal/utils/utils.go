package utils

import (
	"context"
	"os/exec"
)

// CommandRunner runs external utilities and returns their standard output.
// A non-zero exit status is reported as an error.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner is the CommandRunner backed by os/exec
type ExecRunner struct{}

// NewExecRunner creates a CommandRunner that executes real system commands
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Output runs the command and returns its stdout
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
