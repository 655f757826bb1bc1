// Package shell runs external commands (docker, git, sbatch) behind an
// interface so command sequences can be asserted in tests.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Runner executes external commands
type Runner interface {
	// Run executes a command, streaming output to the user
	Run(ctx context.Context, name string, args ...string) error

	// Output executes a command and captures its combined output
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Exec is the real Runner
type Exec struct {
	// Dir is the working directory for commands, empty for the process cwd
	Dir string

	// Verbose streams child output to the terminal instead of buffering it
	Verbose bool

	log *zap.Logger
}

// NewExec builds a Runner executing real commands
func NewExec(log *zap.Logger, dir string) *Exec {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exec{Dir: dir, log: log}
}

func (e *Exec) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	cmd.Env = os.Environ()
	e.log.Debug("executing command", zap.String("cmd", name+" "+strings.Join(args, " ")))
	return cmd
}

// Run executes a command. On failure the buffered output is surfaced in
// the returned error so the user sees what the child printed.
func (e *Exec) Run(ctx context.Context, name string, args ...string) error {
	cmd := e.command(ctx, name, args...)
	if e.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
		}
		return nil
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, buf.String())
	}
	return nil
}

// Output executes a command and returns its combined output
func (e *Exec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := e.command(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, string(out))
	}
	return out, nil
}

// Recorder is a Runner for tests: it records every call and replies
// with canned outputs.
type Recorder struct {
	Calls   [][]string
	Outputs map[string][]byte
	Errs    map[string]error
}

// NewRecorder builds an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{
		Outputs: make(map[string][]byte),
		Errs:    make(map[string]error),
	}
}

func key(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// Run records the call
func (r *Recorder) Run(ctx context.Context, name string, args ...string) error {
	r.Calls = append(r.Calls, append([]string{name}, args...))
	return r.Errs[key(name, args)]
}

// Output records the call and replies with the canned output, keyed by
// the full command line.
func (r *Recorder) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.Calls = append(r.Calls, append([]string{name}, args...))
	k := key(name, args)
	return r.Outputs[k], r.Errs[k]
}

// CommandLines renders recorded calls as strings for assertions
func (r *Recorder) CommandLines() []string {
	lines := make([]string, 0, len(r.Calls))
	for _, call := range r.Calls {
		lines = append(lines, strings.Join(call, " "))
	}
	return lines
}
