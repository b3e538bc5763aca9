package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <person|section|space>",
	Short: "Scan for duplicate records",
	Long: `Scan one collection for likely duplicate pairs, ranked by confidence.

Pairs previously marked as not-duplicates are suppressed. Nothing is
modified; use 'reconcile merge' to act on a finding.

Examples:
  reconcile scan people
  reconcile scan rooms --min-confidence 0.9`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")

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

		found, err := eng.ScanDuplicates(context.Background(), entityType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
			os.Exit(1)
		}

		shown := 0
		for _, cand := range found {
			if cand.Confidence < minConfidence {
				continue
			}
			shown++
			fmt.Printf("%s  %s + %s  %s\n",
				confidenceBadge(cand.Confidence),
				cand.Primary.RecordID(),
				cand.Secondary.RecordID(),
				cand.Reason)
		}

		fmt.Println()
		if shown == 0 {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s No duplicate candidates found\n", green("✓"))
			return
		}
		fmt.Printf("%d candidate pair(s). Review with:\n", shown)
		fmt.Printf("  reconcile merge %s <primary> <secondary>\n", entityType)
		fmt.Printf("  reconcile exclude %s <idA> <idB> --reason \"...\"\n", entityType)
	},
}

// confidenceBadge renders a colored percentage. Red means near-certain.
func confidenceBadge(confidence float64) string {
	pct := fmt.Sprintf("%3.0f%%", confidence*100)
	switch {
	case confidence >= 0.95:
		return color.RedString(pct)
	case confidence >= 0.85:
		return color.YellowString(pct)
	default:
		return pct
	}
}

func init() {
	scanCmd.Flags().Float64("min-confidence", 0, "Only show pairs at or above this confidence")
	rootCmd.AddCommand(scanCmd)
}
