package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/Combustible/minimal-zfs-backups/internal/executor"
	"github.com/Combustible/minimal-zfs-backups/internal/zfs"
)

// Action classifies what a dataset needs during a backup run.
type Action int

const (
	ActionSkip Action = iota
	ActionSend
	ActionUpToDate
	ActionRollbackAndSend
	ActionRollbackOnly
	ActionError
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionSend:
		return "send"
	case ActionUpToDate:
		return "up_to_date"
	case ActionRollbackAndSend:
		return "rollback_and_send"
	case ActionRollbackOnly:
		return "rollback_only"
	case ActionError:
		return "error"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Plan is the planner's output for one dataset. It is created fresh each
// run and consumed by the orchestrator in the same run, never persisted.
type Plan struct {
	SrcDataset string
	DstDataset string
	Action     Action

	// Common and Latest bound the incremental send range for the send
	// actions; Latest is nil when there is nothing new to send.
	Common       *zfs.Snapshot
	Latest       *zfs.Snapshot
	NewSnapCount int

	// RollbackVictims are the destination snapshots after the common one
	// that a rollback will destroy.
	RollbackVictims []zfs.Snapshot

	// Error / skip reason.
	Message string
	// Advisory bootstrap command for a missing destination or a
	// destination with no common snapshot. Never executed.
	BootstrapCmd string
}

// PlanDataset analyzes one dataset pair and decides what to do. It is a
// pure decision over two existence checks and two already-fetched
// histories; re-running it never mutates anything.
func PlanDataset(ctx context.Context, srcDataset, dstDataset string, srcExec, dstExec executor.Executor) Plan {
	plan := Plan{SrcDataset: srcDataset, DstDataset: dstDataset}

	if !zfs.DatasetExists(ctx, srcDataset, srcExec) {
		plan.Action = ActionError
		plan.Message = fmt.Sprintf("Source dataset does not exist: %s", srcDataset)
		return plan
	}

	if !zfs.DatasetExists(ctx, dstDataset, dstExec) {
		plan.Action = ActionError
		plan.Message = fmt.Sprintf("Destination dataset does not exist: %s", dstDataset)
		if srcSnaps, err := zfs.ListSnapshots(ctx, srcDataset, srcExec); err == nil && len(srcSnaps) > 0 {
			plan.BootstrapCmd = bootstrapCommand(srcDataset, srcSnaps[0].Name, dstExec, dstDataset)
		}
		return plan
	}

	srcSnaps, err := zfs.ListSnapshots(ctx, srcDataset, srcExec)
	if err != nil {
		plan.Action = ActionError
		plan.Message = fmt.Sprintf("Failed to list source snapshots: %v", err)
		return plan
	}
	dstSnaps, err := zfs.ListSnapshots(ctx, dstDataset, dstExec)
	if err != nil {
		plan.Action = ActionError
		plan.Message = fmt.Sprintf("Failed to list destination snapshots: %v", err)
		return plan
	}

	if len(srcSnaps) == 0 {
		plan.Action = ActionSkip
		plan.Message = "Source has no snapshots"
		return plan
	}

	common := zfs.FindCommonSnapshot(srcSnaps, dstSnaps)
	if common == nil {
		plan.Action = ActionError
		plan.Message = "No common snapshot found between source and destination"
		plan.BootstrapCmd = bootstrapCommand(srcDataset, srcSnaps[0].Name, dstExec, dstDataset)
		return plan
	}
	plan.Common = common

	// A rollback is needed when the destination head moved past the
	// common point: zfs recv refuses a diverged target. Victims are every
	// destination snapshot positioned after the common one.
	needsRollback := len(dstSnaps) > 0 && dstSnaps[len(dstSnaps)-1].Name != common.Name
	if needsRollback {
		for i, s := range dstSnaps {
			if s.Name == common.Name {
				plan.RollbackVictims = append([]zfs.Snapshot(nil), dstSnaps[i+1:]...)
				break
			}
		}
	}

	var newSnaps []zfs.Snapshot
	for i, s := range srcSnaps {
		if s.Name == common.Name {
			newSnaps = srcSnaps[i+1:]
			break
		}
	}

	switch {
	case len(newSnaps) == 0 && !needsRollback:
		plan.Action = ActionUpToDate
		plan.Message = "Already up to date"
		return plan
	case needsRollback && len(newSnaps) > 0:
		plan.Action = ActionRollbackAndSend
	case needsRollback:
		plan.Action = ActionRollbackOnly
	default:
		plan.Action = ActionSend
	}

	if len(newSnaps) > 0 {
		latest := newSnaps[len(newSnaps)-1]
		plan.Latest = &latest
		plan.NewSnapCount = len(newSnaps)
	}

	return plan
}

// bootstrapCommand formats the manual command an operator would run to
// seed a destination that has no usable history. Advisory only.
func bootstrapCommand(srcDataset, firstSnap string, dstExec executor.Executor, dstDataset string) string {
	recv := executor.Join([]string{"zfs", "recv", "-F", dstDataset})
	label := dstExec.Label()
	if rest, ok := strings.CutPrefix(label, "ssh://"); ok {
		dest := rest
		if i := strings.LastIndex(rest, ":"); i >= 0 {
			dest = rest[:i]
		}
		return fmt.Sprintf("zfs send %s@%s | ssh %s %s", srcDataset, firstSnap, dest, recv)
	}
	return fmt.Sprintf("zfs send %s@%s | %s", srcDataset, firstSnap, recv)
}
