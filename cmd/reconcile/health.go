package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report overall data health",
	Long: `Run a full scan and report a 0-100 health score.

The score deducts points for each duplicate candidate, structurally
orphaned record, and record missing core identity fields. The report is
computed fresh; nothing is cached or written.`,
	Run: func(cmd *cobra.Command, args []string) {
		eng, repo, err := openEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer repo.Close()

		report, err := eng.HealthReport(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Records:  %d people, %d schedules, %d rooms\n",
			report.Counts.People, report.Counts.Schedules, report.Counts.Rooms)
		fmt.Printf("Issues:   %d duplicate pair(s), %d orphaned, %d missing data\n\n",
			report.Issues.Duplicates, report.Issues.Orphaned, report.Issues.MissingData)
		fmt.Printf("Health score: %s\n", scoreBadge(report.HealthScore))
	},
}

func scoreBadge(score int) string {
	text := fmt.Sprintf("%d/100", score)
	switch {
	case score >= 90:
		return color.GreenString(text)
	case score >= 70:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
