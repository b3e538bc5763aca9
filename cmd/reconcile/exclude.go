package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var excludeCmd = &cobra.Command{
	Use:   "exclude <person|section|space> <id-a> <id-b>",
	Short: "Mark a pair as not duplicates",
	Long: `Record that two flagged records are genuinely distinct.

The decision is persisted and symmetric: future scans suppress the pair
in either order. Marking an already-excluded pair updates the reason and
keeps the original decision date.

Examples:
  reconcile exclude person p-ab12 p-cd34 --reason "father and son"
  reconcile exclude list person`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")

		entityType, err := parseEntityType(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		eng, repo, err := openEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer repo.Close()

		if err := eng.MarkNotDuplicate(context.Background(), entityType, args[1], args[2], reason); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Marked %s + %s as not duplicates\n", green("✓"), args[1], args[2])
	},
}

var excludeListCmd = &cobra.Command{
	Use:   "list <person|section|space>",
	Short: "List recorded not-duplicate decisions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entityType, err := parseEntityType(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		eng, repo, err := openEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer repo.Close()

		exclusions, err := eng.Exclusions(context.Background(), entityType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(exclusions) == 0 {
			fmt.Printf("No exclusions recorded for %s\n", entityType)
			return
		}
		for _, excl := range exclusions {
			reason := excl.Reason
			if reason == "" {
				reason = "(no reason given)"
			}
			fmt.Printf("  %s + %s  %s\n", excl.IDLow, excl.IDHigh, reason)
		}
		fmt.Printf("\n%d exclusion(s)\n", len(exclusions))
	},
}

func init() {
	excludeCmd.Flags().String("reason", "", "Why these records are distinct")
	excludeCmd.AddCommand(excludeListCmd)
	rootCmd.AddCommand(excludeCmd)
}
