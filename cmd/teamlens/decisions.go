package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamlens-dev/teamlens/pkg/presenter"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show recorded team decisions",
	Long: `Show decisions extracted from the decisions document and the decisions
directory, newest first. Undated decisions sort last.`,
	Run: func(cmd *cobra.Command, args []string) {
		full, _ := cmd.Flags().GetBool("full")
		aggregator := newAggregator()
		decs := aggregator.GetDecisions(cmd.Context())

		if len(decs) == 0 {
			presenter.Info("No decisions found")
			return
		}

		for _, decision := range decs {
			header := decision.Title
			if decision.Date != "" {
				header = fmt.Sprintf("%s  (%s)", decision.Title, decision.Date)
			}
			presenter.Section(header)
			if decision.Author != "" {
				presenter.Info(fmt.Sprintf("By: %s", decision.Author))
			}
			if full && decision.Content != "" {
				presenter.Info(decision.Content)
			}
			presenter.Info("")
		}
	},
}

func init() {
	decisionsCmd.Flags().Bool("full", false, "Show full decision content, not just titles")
}
