package zfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/Combustible/minimal-zfs-backups/internal/executor"
)

// Options control command echoing for destructive or streaming operations.
type Options struct {
	DryRun  bool
	Verbose bool
	// Out receives echoed commands when DryRun or Verbose is set.
	Out io.Writer
}

func (o Options) echo(tag, cmd string) {
	if o.Out != nil {
		fmt.Fprintf(o.Out, "  [%s] %s\n", tag, cmd)
	}
}

// SendIncremental streams every snapshot from common (exclusive) through
// latest (inclusive) into dstDataset:
//
//	zfs send -c -I common latest | [ssh] zfs recv dstDataset
//
// The two processes are joined by a real OS pipe; once both are started the
// parent closes its own ends so that backpressure and broken-pipe
// propagation are handled entirely by the kernel. Both exit codes are
// inspected and a failure on either side fails the transfer.
//
// The -c flag sends blocks in their on-disk compressed form, avoiding a
// decompress/recompress cycle when the source dataset has compression
// enabled. It is a no-op on uncompressed datasets.
func SendIncremental(ctx context.Context, common, latest Snapshot, srcExec, dstExec executor.Executor, dstDataset string, opts Options) error {
	sendArgs := []string{"zfs", "send", "-c", "-I", common.FullName(), latest.FullName()}
	recvArgs := []string{"zfs", "recv", dstDataset}

	if opts.DryRun || opts.Verbose {
		opts.echo("send", executor.Join(sendArgs))
		opts.echo(fmt.Sprintf("recv (%s)", dstExec.Label()), executor.Join(recvArgs))
	}
	if opts.DryRun {
		return nil
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create pipe: %w", err)
	}

	var sendStderr, recvStderr bytes.Buffer
	sendCmd := srcExec.Command(ctx, sendArgs...)
	sendCmd.Stdout = pw
	sendCmd.Stderr = &sendStderr

	recvCmd := dstExec.Command(ctx, recvArgs...)
	recvCmd.Stdin = pr
	recvCmd.Stderr = &recvStderr

	if err := sendCmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return &executor.CommandError{Args: sendArgs, ExitCode: 1, Stderr: err.Error()}
	}
	// The send child holds its own copy of the write end now.
	pw.Close()

	if err := recvCmd.Start(); err != nil {
		// No reader will ever drain the pipe; kill and reap the sender
		// so it is not leaked.
		pr.Close()
		_ = sendCmd.Process.Kill()
		_ = sendCmd.Wait()
		return &executor.CommandError{Args: recvArgs, ExitCode: 1, Stderr: err.Error()}
	}
	// Drop our read end so a dead receiver breaks the sender's pipe
	// instead of leaving it blocked on a write forever.
	pr.Close()

	recvRC := waitCode(recvCmd)
	sendRC := waitCode(sendCmd)

	if sendRC != 0 || recvRC != 0 {
		slog.Error("Incremental send failed", "sendExit", sendRC, "recvExit", recvRC, "dstDataset", dstDataset)
		return &executor.CommandError{
			Args:     append(append([]string{}, sendArgs...), append([]string{"|"}, recvArgs...)...),
			ExitCode: max(sendRC, recvRC),
			Stderr: fmt.Sprintf("send exited %d, recv exited %d: %s %s",
				sendRC, recvRC, sendStderr.String(), recvStderr.String()),
		}
	}
	return nil
}

func waitCode(cmd *exec.Cmd) int {
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
		// Killed by a signal; ExitCode reports -1 in that case.
		return 1
	}
	return 1
}
