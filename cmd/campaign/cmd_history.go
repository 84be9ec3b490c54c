package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jgueth/campaign-automation/internal/ledger"
	"github.com/jgueth/campaign-automation/internal/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledger.Open(a.cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func printHistory(out io.Writer, runs []ledger.Run) {
	if len(runs) == 0 {
		printf(out, "No runs recorded yet.\n")
		return
	}
	for _, r := range runs {
		status := tag(mutedStyle, "RUNNING")
		if r.Status != ledger.StatusRunning {
			status = runStatusTag(report.Status(r.Status))
		}
		name := r.CampaignID
		if name == "" {
			name = filepath.Base(r.CampaignFile)
		}
		line := fmt.Sprintf("%s  %-8s %s %s", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Trigger, status, name)
		if r.FailedStage != "" {
			line += mutedStyle.Render(" (halted at " + r.FailedStage + ")")
		}
		printf(out, "%s  %s\n", shortID(r.ID), line)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
