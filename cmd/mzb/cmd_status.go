package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Combustible/minimal-zfs-backups/internal/config"
	"github.com/Combustible/minimal-zfs-backups/internal/executor"
	"github.com/Combustible/minimal-zfs-backups/internal/zfs"
)

// runStatus reports how far behind each destination dataset is.
func runStatus(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	srcExec, dstExec := makeExecutors(cfg)

	for _, srcDataset := range cfg.Datasets {
		dstDataset := cfg.Destination.DatasetFor(srcDataset)
		srcSnaps, err := zfs.ListSnapshots(ctx, srcDataset, srcExec)
		if err != nil {
			return err
		}
		dstSnaps, dstErr := zfs.ListSnapshots(ctx, dstDataset, dstExec)
		fmt.Printf("%s: %s\n", srcDataset, statusLine(srcSnaps, dstSnaps, dstErr))
	}
	return nil
}

// statusLine classifies one dataset pair for the status report.
func statusLine(srcSnaps, dstSnaps []zfs.Snapshot, dstErr error) string {
	if dstErr != nil {
		// Listing can fail because the dataset is missing or because the
		// destination is unreachable; the error says which, and suggesting
		// a bootstrap for the latter would be wrong.
		return fmt.Sprintf("CANNOT LIST DESTINATION (%v)", dstErr)
	}
	common := zfs.FindCommonSnapshot(srcSnaps, dstSnaps)
	if common == nil {
		return "NO COMMON SNAPSHOT (needs bootstrap)"
	}
	behind := 0
	for i, s := range srcSnaps {
		if s.Name == common.Name {
			behind = len(srcSnaps) - i - 1
			break
		}
	}
	if behind == 0 {
		return "UP TO DATE"
	}
	return fmt.Sprintf("%d snapshot(s) behind", behind)
}

// runList prints snapshot counts on both sides of each configured dataset.
func runList(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	srcExec, dstExec := makeExecutors(cfg)

	fmt.Printf("%-45s %10s %10s\n", "Dataset", "Src snaps", "Dst snaps")
	fmt.Println(strings.Repeat("-", 67))
	for _, srcDataset := range cfg.Datasets {
		dstDataset := cfg.Destination.DatasetFor(srcDataset)
		srcSnaps, err := zfs.ListSnapshots(ctx, srcDataset, srcExec)
		if err != nil {
			return err
		}
		dstCount := "missing"
		if dstSnaps, err := zfs.ListSnapshots(ctx, dstDataset, dstExec); err == nil {
			dstCount = fmt.Sprint(len(dstSnaps))
		}
		fmt.Printf("%-45s %10d %10s\n", srcDataset, len(srcSnaps), dstCount)
	}
	return nil
}

// runDiscover prints a yaml datasets block for every dataset in the source
// pool with com.sun:auto-snapshot enabled, ready to paste into the config.
func runDiscover(ctx context.Context, configPath string) error {
	pool, err := config.LoadSourcePool(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	datasets, err := zfs.DiscoverDatasets(ctx, pool, executor.Local{})
	if err != nil {
		return err
	}
	if len(datasets) == 0 {
		fmt.Fprintf(os.Stderr, "No datasets with com.sun:auto-snapshot=true found in pool %q.\n", pool)
		return fmt.Errorf("nothing discovered")
	}

	fmt.Println("datasets:")
	for _, ds := range datasets {
		fmt.Printf("  - %s\n", ds)
	}
	return nil
}
