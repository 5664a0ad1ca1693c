package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandError is returned when a command exits with a non-zero status or
// cannot be started at all.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited %d: %s", Join(e.Args), e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Executor runs commands either on the local machine or on a remote host.
// The core never branches on the concrete implementation except to format
// advisory strings from Label.
type Executor interface {
	// Label is a short identity string for display (e.g. "local",
	// "ssh://user@host:22"). Never used for control flow.
	Label() string

	// Run executes a command and returns its stdout. A non-zero exit
	// yields a *CommandError carrying the exit code and stderr.
	Run(ctx context.Context, args ...string) (string, error)

	// Command builds an unstarted *exec.Cmd for the given command, for
	// callers that need to wire pipes themselves.
	Command(ctx context.Context, args ...string) *exec.Cmd
}

// Local runs commands on the local machine.
type Local struct{}

func (Local) Label() string { return "local" }

func (Local) Command(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, args[0], args[1:]...)
}

func (l Local) Run(ctx context.Context, args ...string) (string, error) {
	return runCommand(l.Command(ctx, args...), args)
}

// SSH runs commands on a remote host through an ssh process. Commands are
// shell-joined before dispatch so the remote shell sees them verbatim.
type SSH struct {
	Host string
	User string
	Port int
}

func (s SSH) Label() string {
	return "ssh://" + s.dest() + fmt.Sprintf(":%d", s.port())
}

func (s SSH) dest() string {
	if s.User != "" {
		return s.User + "@" + s.Host
	}
	return s.Host
}

func (s SSH) port() int {
	if s.Port > 0 {
		return s.Port
	}
	return 22
}

func (s SSH) wrap(args []string) []string {
	return []string{
		"ssh",
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		"-p", fmt.Sprint(s.port()),
		s.dest(),
		Join(args),
	}
}

func (s SSH) Command(ctx context.Context, args ...string) *exec.Cmd {
	full := s.wrap(args)
	return exec.CommandContext(ctx, full[0], full[1:]...)
}

func (s SSH) Run(ctx context.Context, args ...string) (string, error) {
	return runCommand(s.Command(ctx, args...), s.wrap(args))
}

func runCommand(cmd *exec.Cmd, args []string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &CommandError{Args: args, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", &CommandError{Args: args, ExitCode: 1, Stderr: err.Error()}
	}
	return stdout.String(), nil
}

// Join renders a command as a single shell-safe string.
func Join(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quote(a)
	}
	return strings.Join(quoted, " ")
}

const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789@%_-+=:,./"

func quote(s string) string {
	if s == "" {
		return "''"
	}
	for _, r := range s {
		if !strings.ContainsRune(safeChars, r) {
			return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
		}
	}
	return s
}
