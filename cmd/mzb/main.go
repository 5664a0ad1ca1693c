package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/Combustible/minimal-zfs-backups/internal/console"
)

func main() {
	commonFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to job yaml config file",
			Value: "mzb_config.yaml",
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Usage:   "Show what would happen without making changes",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Show detailed command output",
		},
		&cli.BoolFlag{
			Name:  "no-confirm",
			Usage: "Skip confirmation prompts",
		},
	}
	configOnly := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to job yaml config file",
			Value: "mzb_config.yaml",
		},
	}

	cmd := &cli.Command{
		Name:    "mzb",
		Usage:   "Sync ZFS snapshots between pools",
		Version: "0.1.0",
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "Sync snapshots from source to destination",
				Flags: commonFlags,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runBackup(ctx, cmd.String("config"), jobOptions(cmd))
				},
			},
			{
				Name:  "compact",
				Usage: "Prune old snapshots on destination per retention rules",
				Flags: commonFlags,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCompact(ctx, cmd.String("config"), jobOptions(cmd))
				},
			},
			{
				Name:  "status",
				Usage: "Show sync state for each dataset",
				Flags: configOnly,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runStatus(ctx, cmd.String("config"))
				},
			},
			{
				Name:  "list",
				Usage: "List datasets and snapshot counts",
				Flags: configOnly,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runList(ctx, cmd.String("config"))
				},
			},
			{
				Name:  "discover",
				Usage: "Discover datasets with auto-snapshot enabled and print a yaml datasets block",
				Flags: configOnly,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runDiscover(ctx, cmd.String("config"))
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nInterrupted by user")
			os.Exit(130)
		}
		if !errors.Is(err, console.ErrAborted) {
			slog.Error("Job failed", "error", err)
		}
		os.Exit(1)
	}
}

type options struct {
	dryRun    bool
	verbose   bool
	noConfirm bool
}

func jobOptions(cmd *cli.Command) options {
	return options{
		dryRun:    cmd.Bool("dry-run"),
		verbose:   cmd.Bool("verbose"),
		noConfirm: cmd.Bool("no-confirm"),
	}
}
