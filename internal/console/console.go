// Package console handles user-facing output and confirmation prompts.
// Jobs receive a Console so tests can capture output and script answers.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrAborted is returned by jobs when the user declines a confirmation
// prompt. It aborts the whole job, distinct from a per-dataset error.
var ErrAborted = errors.New("aborted by user")

// ANSI color codes, disabled when NO_COLOR is set (https://no-color.org).
const (
	green  = "\033[32m"
	red    = "\033[31m"
	yellow = "\033[33m"
	reset  = "\033[0m"
)

type Console struct {
	Out io.Writer
	Err io.Writer
	In  io.Reader

	color bool
}

// New returns a Console on stdout/stderr/stdin with colors enabled unless
// the NO_COLOR environment variable is set.
func New() *Console {
	_, noColor := os.LookupEnv("NO_COLOR")
	return &Console{Out: os.Stdout, Err: os.Stderr, In: os.Stdin, color: !noColor}
}

// NewPlain returns a colorless Console on the given streams, for tests.
func NewPlain(out, errw io.Writer, in io.Reader) *Console {
	return &Console{Out: out, Err: errw, In: in}
}

func (c *Console) paint(color, s string) string {
	if !c.color {
		return s
	}
	return color + s + reset
}

func (c *Console) Green(s string) string  { return c.paint(green, s) }
func (c *Console) Red(s string) string    { return c.paint(red, s) }
func (c *Console) Yellow(s string) string { return c.paint(yellow, s) }

func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Console) Errorf(format string, args ...any) {
	fmt.Fprintf(c.Err, format, args...)
}

// Rule prints a horizontal separator line.
func (c *Console) Rule() {
	fmt.Fprintln(c.Out, strings.Repeat("=", 60))
}

// Confirm asks the user a yes/no question and blocks for the answer.
// Anything but "y"/"yes" declines, as does EOF.
func (c *Console) Confirm(prompt string) bool {
	fmt.Fprintf(c.Out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(c.Out)
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
