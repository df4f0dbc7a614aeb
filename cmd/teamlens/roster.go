package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teamlens-dev/teamlens/pkg/presenter"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Show the team roster with live status",
	Long: `Show the team members, their roles, status, and current work. Status
and current tasks are overlaid from the most recent session log. When the
roster document is missing, membership is derived from session log
participants instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		aggregator := newAggregator()
		snap := aggregator.Snapshot(ctx)

		if snap.Degraded {
			presenter.Warning("roster document not found, deriving members from session logs")
		}
		for _, warning := range snap.Warnings {
			presenter.Warning(warning)
		}

		if len(snap.Roster.Members) == 0 {
			presenter.Info("No team members found")
			return
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tROLE\tSTATUS\tCURRENT TASK")
		fmt.Fprintln(tw, "----\t----\t------\t------------")

		for _, member := range snap.Roster.Members {
			task := ""
			if member.CurrentTask != nil {
				task = member.CurrentTask.Title
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", member.Name, member.Role, member.Status, task)
		}
		tw.Flush()

		if snap.Roster.Repository != "" {
			presenter.Info("")
			presenter.Info(fmt.Sprintf("Repository: %s", snap.Roster.Repository))
		}
	},
}
