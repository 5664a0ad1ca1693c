package zfs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Combustible/minimal-zfs-backups/internal/executor"
	"github.com/Combustible/minimal-zfs-backups/internal/executor/executortest"
)

func TestParseSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		fullName string
		want     Snapshot
		wantErr  bool
	}{
		{
			name:     "simple",
			fullName: "ipool/home/user@zfs-auto-snap_daily-2026-02-10-1538",
			want:     Snapshot{Dataset: "ipool/home/user", Name: "zfs-auto-snap_daily-2026-02-10-1538"},
		},
		{
			name:     "nested destination path",
			fullName: "xeonpool/BACKUP/ipool/home/user@snap-a",
			want:     Snapshot{Dataset: "xeonpool/BACKUP/ipool/home/user", Name: "snap-a"},
		},
		{
			name:     "no separator",
			fullName: "ipool/home/user",
			wantErr:  true,
		},
		{
			name:     "empty name",
			fullName: "ipool/home/user@",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSnapshot(tt.fullName)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.fullName, got.FullName())
		})
	}
}

func TestPool(t *testing.T) {
	assert.Equal(t, "ipool", Pool("ipool/home/user"))
	assert.Equal(t, "tank", Pool("tank"))
}

func TestListSnapshotsFiltersChildren(t *testing.T) {
	fake := &executortest.Fake{Responses: map[string]executortest.Response{
		"zfs list -H -o name -t snapshot -r ipool/home/user": {Stdout: strings.Join([]string{
			"ipool/home/user@snap-a",
			"ipool/home/user/subdir@snap-b", // child, must be excluded
			"ipool/home/user@snap-c",
			"",
		}, "\n")},
	}}

	snaps, err := ListSnapshots(context.Background(), "ipool/home/user", fake)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "snap-a", snaps[0].Name)
	assert.Equal(t, "snap-c", snaps[1].Name)
	for _, s := range snaps {
		assert.Equal(t, "ipool/home/user", s.Dataset)
	}
}

func TestListSnapshotsOrderPreserved(t *testing.T) {
	// Ordering is whatever zfs reports, assumed oldest first. No sorting.
	fake := &executortest.Fake{Responses: map[string]executortest.Response{
		"zfs list -H -o name -t snapshot -r tank/data": {Stdout: strings.Join([]string{
			"tank/data@zz-oldest",
			"tank/data@aa-newest",
			"",
		}, "\n")},
	}}

	snaps, err := ListSnapshots(context.Background(), "tank/data", fake)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "zz-oldest", snaps[0].Name)
	assert.Equal(t, "aa-newest", snaps[1].Name)
}

func TestDatasetExists(t *testing.T) {
	fake := &executortest.Fake{Responses: map[string]executortest.Response{
		"zfs list -H -o name ipool/home/user": {Stdout: "ipool/home/user\n"},
		"zfs list -H -o name ipool/missing": {Err: &executor.CommandError{
			Args: []string{"zfs", "list"}, ExitCode: 1, Stderr: "dataset does not exist",
		}},
	}}

	assert.True(t, DatasetExists(context.Background(), "ipool/home/user", fake))
	assert.False(t, DatasetExists(context.Background(), "ipool/missing", fake))
}

func snapList(fullNames ...string) []Snapshot {
	snaps := make([]Snapshot, len(fullNames))
	for i, n := range fullNames {
		s, err := ParseSnapshot(n)
		if err != nil {
			panic(err)
		}
		snaps[i] = s
	}
	return snaps
}

func TestFindCommonSnapshot(t *testing.T) {
	tests := []struct {
		name string
		src  []Snapshot
		dst  []Snapshot
		want string // "" means nil
	}{
		{
			name: "destination behind source",
			src:  snapList("ipool/ds@snap-1", "ipool/ds@snap-2", "ipool/ds@snap-3"),
			dst:  snapList("pool2/ds@snap-1", "pool2/ds@snap-2"),
			want: "snap-2",
		},
		{
			name: "disjoint histories",
			src:  snapList("ipool/ds@snap-A"),
			dst:  snapList("pool2/ds@snap-B"),
			want: "",
		},
		{
			name: "empty destination",
			src:  snapList("ipool/ds@snap-1"),
			dst:  nil,
			want: "",
		},
		{
			name: "identical heads",
			src:  snapList("ipool/ds@snap-1", "ipool/ds@snap-2"),
			dst:  snapList("pool2/ds@snap-1", "pool2/ds@snap-2"),
			want: "snap-2",
		},
		{
			name: "matches by name despite differing dataset paths",
			src:  snapList("ipool/home/user@backup-2025-11-11"),
			dst:  snapList("xeonpool/BACKUP/ipool/home/user@backup-2025-11-11"),
			want: "backup-2025-11-11",
		},
		{
			name: "newest shared name wins over older duplicate",
			src:  snapList("ipool/ds@keep", "ipool/ds@other", "ipool/ds@keep2"),
			dst:  snapList("pool2/ds@keep", "pool2/ds@keep2"),
			want: "keep2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindCommonSnapshot(tt.src, tt.dst)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestFindCommonSnapshotPrefersNewerSourceOccurrence(t *testing.T) {
	// A manually recreated name appears twice in the source history; the
	// newer occurrence must be chosen.
	src := snapList("ipool/ds@manual", "ipool/ds@other", "ipool/ds@manual")
	dst := snapList("pool2/ds@manual")

	got := FindCommonSnapshot(src, dst)
	require.NotNil(t, got)
	assert.Equal(t, "manual", got.Name)
	assert.Equal(t, src[2], *got)
}

func TestRollback(t *testing.T) {
	fake := &executortest.Fake{Responses: map[string]executortest.Response{
		"zfs rollback -r tank/backup/data@snap-b": {},
	}}
	err := Rollback(context.Background(), "tank/backup/data", "snap-b", fake)
	require.NoError(t, err)
	assert.Len(t, fake.CallsMatching("rollback"), 1)
}

func TestDestroySnapshotDryRun(t *testing.T) {
	fake := &executortest.Fake{}
	var out strings.Builder
	snap := Snapshot{Dataset: "tank/backup/data", Name: "old-snap"}

	err := DestroySnapshot(context.Background(), snap, fake, Options{DryRun: true, Out: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "zfs destroy tank/backup/data@old-snap")
	assert.Empty(t, fake.Calls())
}
