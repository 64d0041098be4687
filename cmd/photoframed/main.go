// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Command photoframed is the kiosk-mode digital photo-frame runtime:
// it loads a YAML configuration, wires Components A through G, and
// blocks until interrupted (spec.md §6 CLI).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumaframe/frame/internal/clock"
	"github.com/lumaframe/frame/internal/config"
	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/inventory"
	"github.com/lumaframe/frame/internal/logging"
	"github.com/lumaframe/frame/internal/playlist"
	"github.com/lumaframe/frame/internal/runtime"
	"github.com/lumaframe/frame/internal/sleep"
)

func main() {
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Kind.ExitCode()
	}
	return 1
}

func newRootCmd() *cobra.Command {
	var (
		playlistNow      string
		playlistDryRun   int
		playlistSeed     uint64
		playlistSeedSet  bool
		verboseSleep     bool
		sleepTestSeconds int
	)

	cmd := &cobra.Command{
		Use:   "photoframed <config-path>",
		Short: "kiosk-mode digital photo-frame runtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			if playlistDryRun > 0 {
				return runPlaylistDryRun(cfg, playlistNow, playlistDryRun, playlistSeed, playlistSeedSet)
			}
			if verboseSleep {
				if err := runVerboseSleep(cfg); err != nil {
					return err
				}
			}
			if sleepTestSeconds > 0 {
				return runSleepTest(cfg, sleepTestSeconds)
			}

			var seedPtr *uint64
			if playlistSeedSet {
				seedPtr = &playlistSeed
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := runtime.Options{PlaylistSeed: seedPtr, ShowGreeting: true}
			return runtime.Run(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&playlistNow, "playlist-now", "", "freeze clock for playlist weighting in --playlist-dry-run (RFC3339); ignored otherwise")
	cmd.Flags().IntVar(&playlistDryRun, "playlist-dry-run", 0, "print the first N scheduled ids with multiplicities and exit")
	cmd.Flags().Uint64Var(&playlistSeed, "playlist-seed", 0, "deterministic playlist shuffle seed")
	cmd.Flags().BoolVar(&verboseSleep, "verbose-sleep", false, "log next 24h of schedule transitions at startup")
	cmd.Flags().IntVar(&sleepTestSeconds, "sleep-test", 0, "force sleep, wait N seconds, wake (retried once after 2s if it did not take effect), exit")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		playlistSeedSet = cmd.Flags().Changed("playlist-seed")
		return nil
	}

	return cmd
}

// runPlaylistDryRun prints the first n scheduled ids with their current
// multiplicities, without starting the pipeline (spec.md §6
// --playlist-dry-run).
func runPlaylistDryRun(cfg config.Settings, nowRFC3339 string, n int, seed uint64, seedSet bool) error {
	var c clock.Clock = clock.System{}
	if nowRFC3339 != "" {
		t, err := time.Parse(time.RFC3339, nowRFC3339)
		if err != nil {
			return errs.New(errs.ConfigInvalid, "", fmt.Errorf("--playlist-now: %w", err))
		}
		c = clock.Frozen{At: t}
	}

	var opts []playlist.Option
	opts = append(opts, playlist.WithClock(c))
	if seedSet {
		opts = append(opts, playlist.WithSeed(seed))
	}
	pl := playlist.New(cfg.NewMultiplicity, cfg.HalfLife, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scanOnce(ctx, cfg.PhotoLibraryPath, pl); err != nil {
		return err
	}

	counts := make(map[string]int)
	var order []string
	for i := 0; i < n; i++ {
		ref, err := pl.RequestNext(ctx)
		if err != nil {
			return err
		}
		mult := pl.Multiplicity(c.Now().Sub(ref.CreatedAt))
		fmt.Printf("%d\t%s\t%s\tmultiplicity=%d\n", i, ref.ID, ref.Path, mult)
		if counts[ref.ID] == 0 {
			order = append(order, ref.ID)
		}
		counts[ref.ID]++
		pl.MarkDisplayed(ref.ID)
	}

	parts := make([]string, 0, len(order))
	for _, id := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", id, counts[id]))
	}
	fmt.Println(strings.Join(parts, ", "))
	return nil
}

// runVerboseSleep logs the next 24h of schedule transitions at startup
// (spec.md §6 --verbose-sleep).
func runVerboseSleep(cfg config.Settings) error {
	sched, err := sleep.New(cfg.SleepMode, clock.System{}, noopSetter{})
	if err != nil {
		return err
	}
	now := time.Now()
	transitions := sched.NextTransitions(now, 48)
	for _, tr := range transitions {
		if tr.At.Sub(now) > 24*time.Hour {
			break
		}
		logging.Logger().Info("sleep: scheduled transition", "at", tr.At.Format(time.RFC3339), "state", tr.State)
	}
	return nil
}

// runSleepTest forces sleep, waits, wakes, and exits (spec.md §6
// --sleep-test <seconds>). The wake is retried once after 2s only when
// the first wake did not reach the setter as an awake state.
func runSleepTest(cfg config.Settings, seconds int) error {
	s := &loggingSetter{}
	sched, err := sleep.New(cfg.SleepMode, clock.System{}, s)
	if err != nil {
		return err
	}

	sched.SetState(true)
	sched.Tick()
	logging.Logger().Info("sleep-test: forced asleep")

	time.Sleep(time.Duration(seconds) * time.Second)

	sched.SetState(false)
	sched.Tick()
	logging.Logger().Info("sleep-test: woke")

	if !s.lastAwake {
		time.Sleep(2 * time.Second)
		sched.SetState(false)
		sched.Tick()
		logging.Logger().Info("sleep-test: retried wake")
	}
	return nil
}

// scanOnce runs a single inventory scan and applies the resulting
// Rescanned delta to pl, then stops — used by --playlist-dry-run which
// doesn't need continuous file watching.
func scanOnce(ctx context.Context, root string, pl *playlist.Manager) error {
	inv := inventory.New(root)
	deltas := make(chan inventory.Delta, 1)
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- inv.Run(scanCtx, deltas) }()

	select {
	case d := <-deltas:
		pl.ApplyDelta(d)
		cancel()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

type noopSetter struct{}

func (noopSetter) SetSleep(asleep bool, reason string) {}

type loggingSetter struct{ lastAwake bool }

func (s *loggingSetter) SetSleep(asleep bool, reason string) {
	s.lastAwake = !asleep
	logging.Logger().Info("sleep-test: state changed", "asleep", asleep, "reason", reason)
}
