package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Combustible/minimal-zfs-backups/internal/backup"
	"github.com/Combustible/minimal-zfs-backups/internal/compact"
	"github.com/Combustible/minimal-zfs-backups/internal/config"
	"github.com/Combustible/minimal-zfs-backups/internal/console"
	"github.com/Combustible/minimal-zfs-backups/internal/executor"
	"github.com/Combustible/minimal-zfs-backups/internal/lock"
	"github.com/Combustible/minimal-zfs-backups/internal/logging"
)

// makeExecutors builds the source executor (always local) and the
// destination executor (local, or ssh when a host is configured).
func makeExecutors(cfg *config.Config) (executor.Executor, executor.Executor) {
	srcExec := executor.Local{}
	if cfg.Destination.IsRemote() {
		return srcExec, executor.SSH{
			Host: cfg.Destination.Host,
			User: cfg.Destination.User,
			Port: cfg.Destination.Port,
		}
	}
	return srcExec, executor.Local{}
}

// setup loads config and wires logging for a job run. The returned cleanup
// releases the lock (when one is configured) and closes the log file.
func setup(configPath, job string, verbose bool) (*config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, logFile, err := logging.NewLogger(cfg.LogFile, verbose)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	releaseLock := func() error { return nil }
	if cfg.LockPath != "" {
		releaseLock, err = lock.Acquire(cfg.LockPath, job)
		if err != nil {
			if logFile != nil {
				logFile.Close()
			}
			return nil, nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
	}

	cleanup := func() {
		if err := releaseLock(); err != nil {
			slog.Warn("Failed to release lock", "error", err)
		}
		if logFile != nil {
			logFile.Close()
		}
	}
	return cfg, cleanup, nil
}

func runBackup(ctx context.Context, configPath string, opts options) error {
	cfg, cleanup, err := setup(configPath, "backup", opts.verbose)
	if err != nil {
		return err
	}
	defer cleanup()

	srcExec, dstExec := makeExecutors(cfg)
	slog.Info("Backup started", "sourcePool", cfg.Source.Pool, "destination", dstExec.Label(), "datasets", len(cfg.Datasets))

	return backup.Run(ctx, cfg, srcExec, dstExec, console.New(), backup.Options{
		DryRun:    opts.dryRun,
		Verbose:   opts.verbose,
		NoConfirm: opts.noConfirm,
	})
}

func runCompact(ctx context.Context, configPath string, opts options) error {
	cfg, cleanup, err := setup(configPath, "compact", opts.verbose)
	if err != nil {
		return err
	}
	defer cleanup()

	_, dstExec := makeExecutors(cfg)
	slog.Info("Compaction started", "destination", dstExec.Label(), "rules", len(cfg.Rules))

	return compact.Run(ctx, cfg, dstExec, console.New(), compact.Options{
		DryRun:    opts.dryRun,
		Verbose:   opts.verbose,
		NoConfirm: opts.noConfirm,
	})
}
