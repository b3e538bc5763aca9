// Package health folds scan findings into a single 0-100 score for
// display. The score is a rough signal, not a metric: every duplicate
// candidate, orphan, and missing-field record deducts points.
package health

import (
	"time"

	"github.com/acadix/reconcile/internal/types"
)

// Deductions per issue, in points.
const (
	duplicateCost   = 3
	orphanCost      = 2
	missingDataCost = 1
)

// MissingDataCount tallies records lacking core identity fields.
func MissingDataCount(snap *types.Snapshot) int {
	count := 0
	for _, p := range snap.People {
		if p.Email == "" || p.LastName == "" {
			count++
		}
	}
	for _, s := range snap.Sections {
		if s.CourseCode == "" || s.TermCode == "" {
			count++
		}
	}
	for _, sp := range snap.ActiveSpaces() {
		if sp.BuildingCode == "" || sp.SpaceNumber == "" {
			count++
		}
	}
	return count
}

// BuildReport aggregates detector and orphan findings into a fresh
// HealthReport. Reports are never mutated in place; the next scan
// supersedes this one.
func BuildReport(snap *types.Snapshot, duplicates []types.DuplicateCandidate, orphans []types.OrphanIssue) *types.HealthReport {
	// Scope-orphans are informational; only structural orphans count
	// against the score.
	structural := 0
	for _, issue := range orphans {
		if issue.Class == types.OrphanStructural {
			structural++
		}
	}
	missing := MissingDataCount(snap)

	score := 100 -
		duplicateCost*len(duplicates) -
		orphanCost*structural -
		missingDataCost*missing
	if score < 0 {
		score = 0
	}

	return &types.HealthReport{
		Counts: types.HealthCounts{
			People:    len(snap.People),
			Schedules: len(snap.Sections),
			Rooms:     len(snap.ActiveSpaces()),
		},
		Issues: types.HealthIssues{
			Duplicates:  len(duplicates),
			Orphaned:    structural,
			MissingData: missing,
		},
		HealthScore: score,
		GeneratedAt: time.Now().UTC(),
	}
}
