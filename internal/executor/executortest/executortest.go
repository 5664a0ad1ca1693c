// Package executortest provides a scripted Executor for tests.
package executortest

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/Combustible/minimal-zfs-backups/internal/executor"
)

// Response is a canned result for one command.
type Response struct {
	Stdout string
	Err    error
}

// Fake returns pre-scripted responses for commands, keyed by the
// space-joined argv. Commands without a scripted response fail, so an
// unexpected call shows up as a test failure instead of silent success.
type Fake struct {
	Name      string
	Responses map[string]Response
	// Scripts maps a command key to a shell script run via /bin/sh -c
	// when the command is built for piping.
	Scripts map[string]string

	mu    sync.Mutex
	calls [][]string
}

func key(args []string) string { return strings.Join(args, " ") }

func (f *Fake) Label() string {
	if f.Name == "" {
		return "fake"
	}
	return f.Name
}

func (f *Fake) record(args []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)
}

// Calls returns every command dispatched through the fake so far.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// CallsMatching returns the recorded commands whose key contains substr.
func (f *Fake) CallsMatching(substr string) [][]string {
	var out [][]string
	for _, c := range f.Calls() {
		if strings.Contains(key(c), substr) {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Run(ctx context.Context, args ...string) (string, error) {
	f.record(args)
	resp, ok := f.Responses[key(args)]
	if !ok {
		return "", &executor.CommandError{Args: args, ExitCode: 1, Stderr: "fake: unexpected command"}
	}
	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.Stdout, nil
}

func (f *Fake) Command(ctx context.Context, args ...string) *exec.Cmd {
	f.record(args)
	script, ok := f.Scripts[key(args)]
	if !ok {
		script = "echo 'fake: unexpected command' >&2; exit 127"
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", script)
}
