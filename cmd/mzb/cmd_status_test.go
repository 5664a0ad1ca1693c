package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Combustible/minimal-zfs-backups/internal/executor"
	"github.com/Combustible/minimal-zfs-backups/internal/zfs"
)

func snaps(dataset string, names ...string) []zfs.Snapshot {
	out := make([]zfs.Snapshot, len(names))
	for i, n := range names {
		out[i] = zfs.Snapshot{Dataset: dataset, Name: n}
	}
	return out
}

func TestStatusLine(t *testing.T) {
	src := snaps("ipool/home/user", "snap-a", "snap-b", "snap-c")

	tests := []struct {
		name    string
		dst     []zfs.Snapshot
		dstErr  error
		want    string
		contain bool
	}{
		{
			name: "up to date",
			dst:  snaps("xeonpool/BACKUP/ipool/home/user", "snap-a", "snap-b", "snap-c"),
			want: "UP TO DATE",
		},
		{
			name: "behind",
			dst:  snaps("xeonpool/BACKUP/ipool/home/user", "snap-a"),
			want: "2 snapshot(s) behind",
		},
		{
			name: "no common snapshot",
			dst:  snaps("xeonpool/BACKUP/ipool/home/user", "snap-old"),
			want: "NO COMMON SNAPSHOT (needs bootstrap)",
		},
		{
			name:    "listing failure is not a bootstrap case",
			dstErr:  &executor.CommandError{Args: []string{"zfs", "list"}, ExitCode: 255, Stderr: "connection refused"},
			want:    "CANNOT LIST DESTINATION",
			contain: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := statusLine(src, tt.dst, tt.dstErr)
			if tt.contain {
				assert.Contains(t, got, tt.want)
				assert.NotContains(t, got, "bootstrap")
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
