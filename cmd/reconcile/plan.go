package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/acadix/reconcile/internal/plan"
	"github.com/acadix/reconcile/internal/refgraph"
)

var planCmd = &cobra.Command{
	Use:   "plan <task>",
	Short: "Preview a backfill plan",
	Long: `Build and preview the change plan for one backfill task.

Available tasks:
  space-backfill    Create Space documents for free-text room labels and
                    point the sections at them
  identity-keys     Normalize spaceKey on spaces and searchKey on people
  instructor-links  Resolve free-text instructor names to person ids

Changes that depend on others are indented beneath their dependency.
Nothing is written; use 'reconcile plan apply' to commit.

Examples:
  reconcile plan space-backfill
  reconcile plan space-backfill --term 202530
  reconcile plan apply space-backfill --select create-room:MCF:101`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		term, _ := cmd.Flags().GetString("term")

		eng, repo, err := openEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer repo.Close()

		p, err := eng.BuildPlan(context.Background(), plan.Task(args[0]), refgraph.Scope{TermCode: term})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printPlan(p)
	},
}

var planApplyCmd = &cobra.Command{
	Use:   "apply <task>",
	Short: "Apply a backfill plan",
	Long: `Rebuild the plan for one task and commit it.

With --select, only the named changes are applied, plus every change
they depend on. Changes whose dependency failed are reported as blocked
and left unapplied; independent changes still commit.

Examples:
  reconcile plan apply identity-keys
  reconcile plan apply space-backfill --select update-section:s-1042`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		term, _ := cmd.Flags().GetString("term")
		selected, _ := cmd.Flags().GetStringSlice("select")

		eng, repo, err := openEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer repo.Close()

		ctx := context.Background()
		p, err := eng.BuildPlan(ctx, plan.Task(args[0]), refgraph.Scope{TermCode: term})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(p.Changes) == 0 {
			fmt.Println("Nothing to do")
			return
		}

		result, err := eng.ApplyPlan(ctx, p, selected)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: apply failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Applied %d change(s)\n", green("✓"), result.Applied)
		if result.Blocked > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s %d change(s) blocked on failed dependencies: %s\n",
				yellow("⚠"), result.Blocked, strings.Join(result.BlockedIDs, ", "))
		}
		if result.Failed > 0 {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %d change(s) failed:\n", red("✗"), result.Failed)
			for _, msg := range result.Errors {
				fmt.Printf("    %s\n", msg)
			}
			os.Exit(1)
		}
	},
}

func printPlan(p *plan.Plan) {
	if len(p.Changes) == 0 {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Nothing to do for %s\n", green("✓"), p.Task)
		return
	}
	for _, change := range p.Changes {
		indent := ""
		if len(change.DependsOn) > 0 {
			indent = "    "
		}
		fmt.Printf("%s%-28s %s\n", indent, change.ID, change.Label)
	}
	fmt.Printf("\n%d change(s). Apply with:\n  reconcile plan apply %s\n", len(p.Changes), p.Task)
}

func init() {
	planCmd.Flags().String("term", "", "Limit the plan to one term code")
	planApplyCmd.Flags().String("term", "", "Limit the plan to one term code")
	planApplyCmd.Flags().StringSlice("select", nil, "Apply only these change ids (dependencies included automatically)")
	planCmd.AddCommand(planApplyCmd)
	rootCmd.AddCommand(planCmd)
}
