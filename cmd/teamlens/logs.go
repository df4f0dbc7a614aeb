package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teamlens-dev/teamlens/pkg/presenter"
)

// LogsConfig holds configuration for the logs command
type LogsConfig struct {
	Limit int
}

// NewLogsConfig creates a new LogsConfig with default values
func NewLogsConfig() *LogsConfig {
	return &LogsConfig{
		Limit: 10,
	}
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent session logs",
	Long: `Show session log entries in chronological order: who worked, what was
done, decisions made, and related issues. Both structured and flat log
formats are recognized.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := getLogsConfigFromFlags(cmd)
		aggregator := newAggregator()
		entries := aggregator.GetLogEntries(cmd.Context())

		if len(entries) == 0 {
			presenter.Info("No session logs found")
			return
		}

		if config.Limit > 0 && config.Limit < len(entries) {
			entries = entries[len(entries)-config.Limit:]
		}

		for _, entry := range entries {
			presenter.Section(fmt.Sprintf("%s %s", entry.Date, entry.Topic))
			presenter.Info(fmt.Sprintf("Participants: %s", strings.Join(entry.Participants, ", ")))
			if entry.Summary != "" {
				presenter.Info(entry.Summary)
			}
			for _, decision := range entry.Decisions {
				presenter.Info(fmt.Sprintf("  decision: %s", decision))
			}
			for _, outcome := range entry.Outcomes {
				presenter.Info(fmt.Sprintf("  outcome: %s", outcome))
			}
			if len(entry.RelatedIssues) > 0 {
				presenter.Info(fmt.Sprintf("Issues: %s", strings.Join(entry.RelatedIssues, ", ")))
			}
			presenter.Info("")
		}
	},
}

func init() {
	defaults := NewLogsConfig()
	logsCmd.Flags().IntP("limit", "n", defaults.Limit, "Maximum number of entries to show (0 for all)")
}

func getLogsConfigFromFlags(cmd *cobra.Command) *LogsConfig {
	config := NewLogsConfig()
	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	return config
}
