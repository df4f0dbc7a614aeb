package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/teamlens-dev/teamlens/pkg/presenter"
	"github.com/teamlens-dev/teamlens/pkg/watcher"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	DebounceTime int
	Pattern      string
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceTime: 500,
		Pattern:      watcher.DefaultPattern,
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	if c.Pattern == "" {
		return errors.New("pattern cannot be empty")
	}
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the team directory and report changes live",
	Long: `Continuously monitor the team directory for markdown changes. Rapid
bursts of writes are coalesced into a single update, and the aggregated
view is recomputed after each batch.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := getWatchConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "invalid watch configuration")
			os.Exit(1)
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		aggregator := newAggregator()

		w := watcher.New(teamDir(),
			watcher.WithDebounce(time.Duration(config.DebounceTime)*time.Millisecond),
			watcher.WithPattern(config.Pattern),
		)

		batches := w.Subscribe()
		aggregator.WatchInvalidate(ctx, w.Subscribe())

		if err := w.Start(ctx); err != nil {
			presenter.Error(err, "failed to start watcher")
			os.Exit(1)
		}
		defer w.Stop()

		presenter.Success(fmt.Sprintf("Watching %s for changes", teamDir()))
		presenter.Info("Press Ctrl+C to stop")

		for {
			select {
			case <-ctx.Done():
				presenter.Info("Watcher stopped")
				return
			case batch := <-batches:
				presenter.Separator()
				presenter.Info(fmt.Sprintf("%d file(s) changed:", len(batch.Events)))
				for _, event := range batch.Events {
					presenter.Info(fmt.Sprintf("  %s (%s)", event.Path, event.Op))
				}

				snap := aggregator.Snapshot(ctx)
				presenter.Info(fmt.Sprintf("Roster: %d members, %d sessions, %d decisions",
					len(snap.Roster.Members), len(snap.LogEntries), len(snap.Decisions)))
				if snap.Degraded {
					presenter.Warning("roster document missing, members derived from logs")
				}
			}
		}
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().Int("debounce", defaults.DebounceTime, "Debounce window in milliseconds")
	watchCmd.Flags().String("pattern", defaults.Pattern, "Glob pattern of files to watch")
}

func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()
	if debounce, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounce
	}
	if pattern, err := cmd.Flags().GetString("pattern"); err == nil {
		config.Pattern = pattern
	}
	return config
}
