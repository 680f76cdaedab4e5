package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"logtap/internal/config"
	"logtap/internal/diag"
	"logtap/internal/pipeline"
	"logtap/internal/relay"
)

func newServeCommand(configFlag *string) *cobra.Command {
	var flushTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest relay daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFlag)
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Relay.LogLevel)

			lock, err := acquireLock(cfg.Relay.LockPath)
			if err != nil {
				return err
			}
			defer lock.Unlock() //nolint:errcheck

			pipe, err := pipeline.Build(cfg, os.Stderr)
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			srv := relay.New(&cfg, pipe, logger)
			if err := srv.Start(ctx); err != nil {
				closeCtx, closeCancel := context.WithTimeout(context.Background(), flushTimeout)
				defer closeCancel()
				_ = pipe.Close(closeCtx)
				return err
			}

			<-ctx.Done()
			logger.Info("shutting down", slog.Duration("flush_timeout", flushTimeout))
			srv.Stop()

			flushCtx, flushCancel := context.WithTimeout(context.Background(), flushTimeout)
			defer flushCancel()
			closeErr := pipe.Close(flushCtx)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStats(pipe.Diagnostics().Snapshot()))
			return closeErr
		},
	}

	cmd.Flags().DurationVar(&flushTimeout, "flush-timeout", 10*time.Second, "Maximum time to drain buffered events on shutdown")
	return cmd
}

// acquireLock takes the single-instance lock, creating its directory first.
func acquireLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another instance holds %s", path)
	}
	return lock, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func renderStats(stats diag.Stats) string {
	names := make([]string, 0, len(stats.Sinks))
	for name := range stats.Sinks {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		s := stats.Sinks[name]
		rows = append(rows, []string{
			name,
			strconv.FormatUint(s.Delivered, 10),
			strconv.FormatUint(s.Dropped, 10),
			strconv.FormatUint(s.Failures, 10),
			strconv.FormatUint(s.Lost, 10),
		})
	}

	return renderTable(
		[]string{"Sink", "Delivered", "Dropped", "Failures", "Lost"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}
