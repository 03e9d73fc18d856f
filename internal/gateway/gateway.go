// Package gateway executes tmux subcommands and captures their output.
//
// The gateway is pure transport: it composes the server connection
// flags, runs the binary, and reports exit status, stdout lines, and
// stderr text. Interpretation of the output belongs to the caller.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner abstracts process execution so engine tests can substitute a
// fake without spawning tmux.
type Runner interface {
	// Run executes name with args and returns captured stdout, stderr,
	// and the process exit code. A non-zero exit is not an error at
	// this layer; err is reserved for failures to run at all (binary
	// missing, context canceled).
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// OSRunner runs commands via os/exec.
type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitCode(), nil
		}
		return nil, nil, -1, err
	}
	return outBuf.Bytes(), errBuf.Bytes(), 0, nil
}

// Result is the outcome of one tmux invocation.
type Result struct {
	ExitCode int
	Stdout   []string
	Stderr   string
}

// ExecError carries the stderr text of a failed subcommand.
type ExecError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	sub := "tmux"
	if len(e.Args) > 0 {
		sub = "tmux " + e.Args[0]
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s", sub, e.Stderr)
	}
	return fmt.Sprintf("%s: exit status %d", sub, e.ExitCode)
}

// Gateway runs tmux subcommands against one server, identified by the
// optional connection settings. Flags are composed in fixed order ahead
// of the subcommand: config file (-f), socket path (-S), socket name
// (-L), each independently optional.
type Gateway struct {
	// Binary is the tmux executable. Defaults to "tmux".
	Binary string
	// ConfigFile is passed as -f when non-empty.
	ConfigFile string
	// SocketPath is passed as -S when non-empty.
	SocketPath string
	// SocketName is passed as -L when non-empty.
	SocketName string

	runner Runner
}

// New returns a Gateway executing via the OS.
func New(configFile, socketPath, socketName string) *Gateway {
	return &Gateway{
		Binary:     "tmux",
		ConfigFile: configFile,
		SocketPath: socketPath,
		SocketName: socketName,
		runner:     OSRunner{},
	}
}

// NewWithRunner returns a Gateway executing via the given Runner.
func NewWithRunner(configFile, socketPath, socketName string, runner Runner) *Gateway {
	g := New(configFile, socketPath, socketName)
	g.runner = runner
	return g
}

// GlobalArgs returns the connection flags prepended to every
// subcommand.
func (g *Gateway) GlobalArgs() []string {
	var args []string
	if g.ConfigFile != "" {
		args = append(args, "-f", g.ConfigFile)
	}
	if g.SocketPath != "" {
		args = append(args, "-S", g.SocketPath)
	}
	if g.SocketName != "" {
		args = append(args, "-L", g.SocketName)
	}
	return args
}

// Execute runs a subcommand with the gateway's connection flags and
// returns the captured result. Stdout is split into lines with the
// trailing newline stripped; stderr is returned whole, trimmed.
func (g *Gateway) Execute(ctx context.Context, args ...string) (Result, error) {
	binary := g.Binary
	if binary == "" {
		binary = "tmux"
	}
	full := append(g.GlobalArgs(), args...)
	stdout, stderr, code, err := g.runner.Run(ctx, binary, full...)
	if err != nil {
		return Result{}, fmt.Errorf("exec %s: %w", binary, err)
	}
	return Result{
		ExitCode: code,
		Stdout:   splitLines(stdout),
		Stderr:   strings.TrimSpace(string(stderr)),
	}, nil
}

// splitLines splits stdout into lines, dropping the final empty line
// produced by a trailing newline but preserving interior empty lines.
func splitLines(out []byte) []string {
	s := string(out)
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
