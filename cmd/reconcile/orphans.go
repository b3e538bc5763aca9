package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/acadix/reconcile/internal/refgraph"
	"github.com/acadix/reconcile/internal/types"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find records nothing references",
	Long: `Scan for orphaned records.

Without --term the scan is global: a flagged space or person is
referenced by nothing at all and is safe to consider for cleanup. With
--term, records used only in other terms are also shown, marked as
in-use elsewhere; those are informational and never cleaned up.

Examples:
  reconcile orphans
  reconcile orphans --term 202530
  reconcile orphans cleanup --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		term, _ := cmd.Flags().GetString("term")

		eng, repo, err := openEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer repo.Close()

		issues, err := eng.FindOrphaned(context.Background(), refgraph.Scope{TermCode: term})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printOrphans(issues)
	},
}

var orphansCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove structurally orphaned records",
	Long: `Remove records referenced by nothing at all.

Orphaned spaces are soft-deleted (marked inactive, retained for audit);
orphaned people are deleted. Records in use in any term are never
touched, and dangling schedules are only reported.

Examples:
  reconcile orphans cleanup --dry-run
  reconcile orphans cleanup`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		term, _ := cmd.Flags().GetString("term")

		eng, repo, err := openEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer repo.Close()

		ctx := context.Background()
		scope := refgraph.Scope{TermCode: term}

		if dryRun {
			fmt.Printf("%s\n\n", color.YellowString("DRY RUN MODE - Nothing will be removed"))
			issues, err := eng.FindOrphaned(ctx, scope)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			candidates := refgraph.DeletionCandidates(issues)
			printOrphans(candidates)
			fmt.Printf("\nWould remove %d record(s). Run without --dry-run to clean up\n", len(candidates))
			return
		}

		result, err := eng.CleanupOrphans(ctx, scope)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cleanup failed: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Removed %d orphaned record(s)\n", green("✓"), result.Succeeded)
		if result.Failed > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s %d record(s) skipped:\n", yellow("⚠"), result.Failed)
			for _, msg := range result.Errors {
				fmt.Printf("    %s\n", msg)
			}
		}
	},
}

func printOrphans(issues []types.OrphanIssue) {
	if len(issues) == 0 {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s No orphaned records found\n", green("✓"))
		return
	}
	for _, issue := range issues {
		badge := color.YellowString("⚠")
		if issue.Class == types.OrphanScoped {
			badge = color.CyanString("ℹ")
		}
		fmt.Printf("%s %-18s %-12s %s\n", badge, issue.Type, issue.Record.RecordID(), issue.Reason)
	}
	fmt.Printf("\n%d issue(s)\n", len(issues))
}

func init() {
	orphansCmd.Flags().String("term", "", "Limit the scan to one term code")
	orphansCleanupCmd.Flags().Bool("dry-run", false, "Preview what would be removed")
	orphansCleanupCmd.Flags().String("term", "", "Limit the scan to one term code")
	orphansCmd.AddCommand(orphansCleanupCmd)
	rootCmd.AddCommand(orphansCmd)
}
