package zfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/Combustible/minimal-zfs-backups/internal/executor"
)

// Snapshot identifies one immutable point-in-time version of a dataset.
// Canonical textual form is "dataset@name".
type Snapshot struct {
	Dataset string
	Name    string
}

func (s Snapshot) FullName() string {
	return s.Dataset + "@" + s.Name
}

// ParseSnapshot builds a Snapshot from its canonical "dataset@name" form.
func ParseSnapshot(fullName string) (Snapshot, error) {
	dataset, name, found := strings.Cut(fullName, "@")
	if !found || name == "" {
		return Snapshot{}, fmt.Errorf("not a snapshot: %q", fullName)
	}
	return Snapshot{Dataset: dataset, Name: name}, nil
}

// Pool returns the top-level pool of a dataset path.
func Pool(dataset string) string {
	pool, _, _ := strings.Cut(dataset, "/")
	return pool
}

// ListDatasets returns all datasets in a pool, excluding the pool root.
func ListDatasets(ctx context.Context, pool string, exec executor.Executor) ([]string, error) {
	out, err := exec.Run(ctx, "zfs", "list", "-H", "-o", "name", "-r", pool)
	if err != nil {
		return nil, err
	}
	var datasets []string
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name != "" && name != pool {
			datasets = append(datasets, name)
		}
	}
	return datasets, nil
}

// ListSnapshots returns the snapshots of a dataset, oldest first, in the
// order zfs reports them. Snapshots belonging to child datasets are
// filtered out so only exact dataset ownership counts.
func ListSnapshots(ctx context.Context, dataset string, exec executor.Executor) ([]Snapshot, error) {
	out, err := exec.Run(ctx, "zfs", "list", "-H", "-o", "name", "-t", "snapshot", "-r", dataset)
	if err != nil {
		return nil, err
	}
	var snapshots []Snapshot
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		snap, err := ParseSnapshot(name)
		if err != nil {
			continue
		}
		if snap.Dataset == dataset {
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots, nil
}

// DatasetExists reports whether a dataset exists.
func DatasetExists(ctx context.Context, dataset string, exec executor.Executor) bool {
	_, err := exec.Run(ctx, "zfs", "list", "-H", "-o", "name", dataset)
	return err == nil
}

// AutoSnapshotEnabled returns the effective value of com.sun:auto-snapshot
// for a dataset.
func AutoSnapshotEnabled(ctx context.Context, dataset string, exec executor.Executor) bool {
	out, err := exec.Run(ctx, "zfs", "get", "-H", "-o", "value", "com.sun:auto-snapshot", dataset)
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// DiscoverDatasets returns the datasets in pool where com.sun:auto-snapshot
// is effectively true.
func DiscoverDatasets(ctx context.Context, pool string, exec executor.Executor) ([]string, error) {
	all, err := ListDatasets(ctx, pool, exec)
	if err != nil {
		return nil, err
	}
	var enabled []string
	for _, ds := range all {
		if AutoSnapshotEnabled(ctx, ds, exec) {
			enabled = append(enabled, ds)
		}
	}
	return enabled, nil
}

// FindCommonSnapshot returns the most recent snapshot present in both
// histories, or nil. Both lists are oldest first. Matching is by snapshot
// name only, since source and destination dataset paths differ; when a
// name occurs more than once the newer source occurrence wins.
func FindCommonSnapshot(srcSnaps, dstSnaps []Snapshot) *Snapshot {
	dstNames := make(map[string]struct{}, len(dstSnaps))
	for _, s := range dstSnaps {
		dstNames[s.Name] = struct{}{}
	}
	for i := len(srcSnaps) - 1; i >= 0; i-- {
		if _, ok := dstNames[srcSnaps[i].Name]; ok {
			snap := srcSnaps[i]
			return &snap
		}
	}
	return nil
}

// Rollback discards all destination state after the given snapshot.
func Rollback(ctx context.Context, dataset, snapName string, exec executor.Executor) error {
	_, err := exec.Run(ctx, "zfs", "rollback", "-r", dataset+"@"+snapName)
	return err
}

// DestroySnapshot destroys a single snapshot.
func DestroySnapshot(ctx context.Context, snap Snapshot, exec executor.Executor, opts Options) error {
	cmd := []string{"zfs", "destroy", snap.FullName()}
	if opts.DryRun || opts.Verbose {
		opts.echo("destroy", executor.Join(cmd))
	}
	if opts.DryRun {
		return nil
	}
	_, err := exec.Run(ctx, cmd...)
	return err
}
