package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/acadix/reconcile/internal/merge"
	"github.com/acadix/reconcile/internal/repository"
	"github.com/acadix/reconcile/internal/types"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <person|section|space> <primary-id> <secondary-id>",
	Short: "Merge a duplicate record into its primary",
	Long: `Merge the secondary record into the primary.

The primary keeps its id and, on conflicting fields, its values; the
secondary contributes any fields the primary lacks. References to the
secondary elsewhere in the data are rewritten to the primary, then the
secondary is deleted.

Use --take to pull specific fields from the secondary instead:

Examples:
  reconcile merge person p-ab12 p-cd34
  reconcile merge person p-ab12 p-cd34 --take firstName,phone
  reconcile merge space r-101a r-101b --dry-run`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		take, _ := cmd.Flags().GetStringSlice("take")

		entityType, err := parseEntityType(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		primaryID, secondaryID := args[1], args[2]

		opts := &merge.Options{Conflicts: merge.SidePrimary}
		if len(take) > 0 {
			opts.Overrides = make(map[string]merge.Side, len(take))
			for _, field := range take {
				opts.Overrides[strings.TrimSpace(field)] = merge.SideSecondary
			}
		}

		eng, repo, err := openEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer repo.Close()

		ctx := context.Background()

		if dryRun {
			fmt.Printf("%s\n\n", color.YellowString("DRY RUN MODE - Nothing will be written"))
			if err := printMergePreview(ctx, repo, entityType, primaryID, secondaryID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("\nRun without --dry-run to merge\n")
			return
		}

		if err := eng.MergeRecords(ctx, entityType, primaryID, secondaryID, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: merge failed: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Merged %s into %s\n", green("✓"), secondaryID, primaryID)
	},
}

func printMergePreview(ctx context.Context, repo repository.Repository, entityType types.EntityType, primaryID, secondaryID string) error {
	collection, err := types.CollectionFor(entityType)
	if err != nil {
		return err
	}
	primary, err := repo.Get(ctx, collection, primaryID)
	if err != nil {
		return fmt.Errorf("primary %s: %w", primaryID, err)
	}
	secondary, err := repo.Get(ctx, collection, secondaryID)
	if err != nil {
		return fmt.Errorf("secondary %s: %w", secondaryID, err)
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s (kept)\n", bold(primaryID))
	for _, line := range fieldLines(primary.Fields) {
		fmt.Println(line)
	}
	fmt.Printf("\n%s (merged in, then deleted)\n", bold(secondaryID))
	for _, line := range fieldLines(secondary.Fields) {
		fmt.Println(line)
	}
	return nil
}

func init() {
	mergeCmd.Flags().Bool("dry-run", false, "Show both records without merging")
	mergeCmd.Flags().StringSlice("take", nil, "Fields to take from the secondary on conflict")
	rootCmd.AddCommand(mergeCmd)
}

// fieldLines renders a field map sorted by key for side-by-side review.
func fieldLines(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("  %-16s %v", k, fields[k]))
	}
	return lines
}
