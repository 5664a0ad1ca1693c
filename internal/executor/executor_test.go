package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "plain zfs command",
			args: []string{"zfs", "list", "-H", "-o", "name", "ipool/home/user"},
			want: "zfs list -H -o name ipool/home/user",
		},
		{
			name: "snapshot names pass unquoted",
			args: []string{"zfs", "destroy", "tank/data@zfs-auto-snap_daily-2026-02-10-1538"},
			want: "zfs destroy tank/data@zfs-auto-snap_daily-2026-02-10-1538",
		},
		{
			name: "spaces are quoted",
			args: []string{"echo", "hello world"},
			want: "echo 'hello world'",
		},
		{
			name: "empty argument",
			args: []string{"echo", ""},
			want: "echo ''",
		},
		{
			name: "embedded single quote",
			args: []string{"echo", "it's"},
			want: `echo 'it'"'"'s'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Join(tt.args))
		})
	}
}

func TestLocalRun(t *testing.T) {
	out, err := Local{}.Run(context.Background(), "/bin/sh", "-c", "printf hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestLocalRunFailure(t *testing.T) {
	_, err := Local{}.Run(context.Background(), "/bin/sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Stderr, "oops")
	assert.Contains(t, cmdErr.Error(), "exited 3")
}

func TestLocalLabel(t *testing.T) {
	assert.Equal(t, "local", Local{}.Label())
}

func TestSSHLabel(t *testing.T) {
	tests := []struct {
		name string
		ssh  SSH
		want string
	}{
		{
			name: "host only",
			ssh:  SSH{Host: "nas.example.com"},
			want: "ssh://nas.example.com:22",
		},
		{
			name: "user and custom port",
			ssh:  SSH{Host: "nas", User: "backup", Port: 2222},
			want: "ssh://backup@nas:2222",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ssh.Label())
		})
	}
}

func TestSSHWrap(t *testing.T) {
	s := SSH{Host: "nas", User: "backup", Port: 2222}
	got := s.wrap([]string{"zfs", "list", "-H", "-o", "name", "tank"})
	assert.Equal(t, []string{
		"ssh",
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		"-p", "2222",
		"backup@nas",
		"zfs list -H -o name tank",
	}, got)
}

func TestSSHCommandArgs(t *testing.T) {
	s := SSH{Host: "nas"}
	cmd := s.Command(context.Background(), "zfs", "recv", "tank/backup")
	require.NotEmpty(t, cmd.Args)
	assert.Equal(t, "ssh", cmd.Args[0])
	assert.Equal(t, "zfs recv tank/backup", cmd.Args[len(cmd.Args)-1])
}
