// Package backup plans and executes one-way snapshot replication from a
// source pool to a destination pool.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Combustible/minimal-zfs-backups/internal/config"
	"github.com/Combustible/minimal-zfs-backups/internal/console"
	"github.com/Combustible/minimal-zfs-backups/internal/executor"
	"github.com/Combustible/minimal-zfs-backups/internal/zfs"
)

type Options struct {
	DryRun    bool
	Verbose   bool
	NoConfirm bool
}

func (o Options) zfsOptions(con *console.Console) zfs.Options {
	return zfs.Options{DryRun: o.DryRun, Verbose: o.Verbose, Out: con.Out}
}

// Run executes a backup job. Planning failures and execution failures are
// recorded per dataset and never stop the remaining datasets; the job as a
// whole fails iff at least one dataset errored.
func Run(ctx context.Context, cfg *config.Config, srcExec, dstExec executor.Executor, con *console.Console, opts Options) error {
	if len(cfg.Datasets) == 0 {
		return fmt.Errorf("no datasets to back up")
	}

	// Phase 1: plan every dataset independently.
	plans := make([]Plan, 0, len(cfg.Datasets))
	for _, srcDataset := range cfg.Datasets {
		dstDataset := cfg.Destination.DatasetFor(srcDataset)
		plan := PlanDataset(ctx, srcDataset, dstDataset, srcExec, dstExec)
		if opts.Verbose {
			slog.Debug("Dataset planned", "src", srcDataset, "dst", dstDataset, "action", plan.Action.String())
		}
		plans = append(plans, plan)
	}

	var rollbackPlans, sendPlans, upToDatePlans, errorPlans, skipPlans []Plan
	for _, p := range plans {
		switch p.Action {
		case ActionRollbackAndSend, ActionRollbackOnly:
			rollbackPlans = append(rollbackPlans, p)
		case ActionSend:
			sendPlans = append(sendPlans, p)
		case ActionUpToDate:
			upToDatePlans = append(upToDatePlans, p)
		case ActionError:
			errorPlans = append(errorPlans, p)
		case ActionSkip:
			skipPlans = append(skipPlans, p)
		}
	}

	printSummary(con, errorPlans, skipPlans, upToDatePlans, sendPlans)

	// Phase 2: one aggregate confirmation covering every rollback.
	if len(rollbackPlans) > 0 {
		con.Printf("\n")
		con.Rule()
		con.Printf("%s\n\n", con.Yellow("The following datasets require rollback before receiving:"))
		for _, p := range rollbackPlans {
			con.Printf("  %s:\n", p.DstDataset)
			con.Printf("    %s\n", con.Green("Rollback to: @"+p.Common.Name))
			for _, victim := range p.RollbackVictims {
				con.Printf("    %s\n", con.Red("Delete:      @"+victim.Name))
			}
			if p.NewSnapCount > 0 {
				con.Printf("    Then send %d new snapshot(s)\n", p.NewSnapCount)
			}
			con.Printf("\n")
		}

		if !opts.NoConfirm && !con.Confirm("Proceed with rollbacks?") {
			con.Printf("Aborted by user.\n")
			return console.ErrAborted
		}
	}

	// Phase 3: execute. A failed dataset is abandoned; the rest proceed.
	anyError := len(errorPlans) > 0
	sentCount := 0
	rollbackCount := 0

	for _, p := range rollbackPlans {
		con.Printf("\n")
		con.Rule()
		con.Printf("Rolling back: %s -> @%s\n", p.DstDataset, p.Common.Name)
		if opts.DryRun {
			con.Printf("  [dry-run] zfs rollback -r %s@%s\n", p.DstDataset, p.Common.Name)
			rollbackCount++
		} else {
			if err := zfs.Rollback(ctx, p.DstDataset, p.Common.Name, dstExec); err != nil {
				con.Errorf("  %s\n", con.Red(fmt.Sprintf("ERROR: Rollback failed: %v", err)))
				slog.Error("Rollback failed", "dstDataset", p.DstDataset, "error", err)
				anyError = true
				continue
			}
			rollbackCount++
		}

		if p.Latest == nil {
			continue
		}
		con.Printf("  Sending %d snapshot(s) up to @%s\n", p.NewSnapCount, p.Latest.Name)
		if err := zfs.SendIncremental(ctx, *p.Common, *p.Latest, srcExec, dstExec, p.DstDataset, opts.zfsOptions(con)); err != nil {
			con.Errorf("  %s\n", con.Red(fmt.Sprintf("ERROR: Transfer failed: %v", err)))
			slog.Error("Transfer failed", "dstDataset", p.DstDataset, "error", err)
			anyError = true
			continue
		}
		sentCount++
		con.Printf("  %s\n", con.Green("Transfer complete."))
	}

	for _, p := range sendPlans {
		con.Printf("\n")
		con.Rule()
		con.Printf("Sending: %s -> %s\n", p.SrcDataset, p.DstDataset)
		con.Printf("  %d snapshot(s) up to @%s\n", p.NewSnapCount, p.Latest.Name)
		if err := zfs.SendIncremental(ctx, *p.Common, *p.Latest, srcExec, dstExec, p.DstDataset, opts.zfsOptions(con)); err != nil {
			con.Errorf("  %s\n", con.Red(fmt.Sprintf("ERROR: Transfer failed: %v", err)))
			slog.Error("Transfer failed", "dstDataset", p.DstDataset, "error", err)
			anyError = true
			continue
		}
		sentCount++
		con.Printf("  %s\n", con.Green("Transfer complete."))
	}

	// Phase 4: aggregate summary.
	con.Printf("\n")
	con.Rule()
	prefix := ""
	if opts.DryRun {
		prefix = "[dry-run] "
	}
	con.Printf("%sBackup complete.\n", prefix)
	var parts []string
	if sentCount > 0 {
		parts = append(parts, fmt.Sprintf("%d dataset(s) sent", sentCount))
	}
	if rollbackCount > 0 {
		parts = append(parts, fmt.Sprintf("%d rollback(s)", rollbackCount))
	}
	if len(upToDatePlans) > 0 {
		parts = append(parts, fmt.Sprintf("%d already up to date", len(upToDatePlans)))
	}
	if len(errorPlans) > 0 {
		parts = append(parts, con.Red(fmt.Sprintf("%d error(s)", len(errorPlans))))
	}
	if len(skipPlans) > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", len(skipPlans)))
	}
	if len(parts) > 0 {
		con.Printf("  %s\n", strings.Join(parts, ", "))
	}

	if anyError {
		return fmt.Errorf("backup finished with errors")
	}
	return nil
}

func printSummary(con *console.Console, errorPlans, skipPlans, upToDatePlans, sendPlans []Plan) {
	for _, p := range errorPlans {
		con.Errorf("\n%s\n", con.Red("ERROR: "+p.Message))
		if p.BootstrapCmd != "" {
			con.Errorf("  To initialize, run:\n    %s\n", p.BootstrapCmd)
			con.Errorf("  %s\n", con.Yellow("Consider creating the destination dataset first and setting desired properties\n"+
				"  before receiving (e.g. compression, atime, readonly, com.sun:auto-snapshot=false)."))
		}
	}
	for _, p := range skipPlans {
		if p.Message != "" {
			con.Printf("\n%s: %s\n", p.SrcDataset, p.Message)
		}
	}
	for _, p := range upToDatePlans {
		con.Printf("\n%s: %s\n", p.SrcDataset, con.Green("Up to date"))
	}
	for _, p := range sendPlans {
		con.Printf("\n%s: Send %d snapshot(s) up to @%s\n", p.SrcDataset, p.NewSnapCount, p.Latest.Name)
	}
}
