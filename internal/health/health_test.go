package health

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/acadix/reconcile/internal/types"
)

func TestBuildReportPerfectScore(t *testing.T) {
	snap := &types.Snapshot{
		People:   []*types.Person{{ID: "p1", Email: "a@x.edu", LastName: "Smith"}},
		Sections: []*types.Section{{ID: "s1", CourseCode: "CSI 1430", TermCode: "T1"}},
		Spaces:   []*types.Space{{ID: "r1", BuildingCode: "MCF", SpaceNumber: "101", IsActive: true}},
	}

	report := BuildReport(snap, nil, nil)
	assert.Equal(t, 100, report.HealthScore)
	assert.Equal(t, 1, report.Counts.People)
	assert.Equal(t, 1, report.Counts.Schedules)
	assert.Equal(t, 1, report.Counts.Rooms)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestBuildReportDeductions(t *testing.T) {
	snap := &types.Snapshot{
		People: []*types.Person{
			{ID: "p1", Email: "a@x.edu", LastName: "Smith"},
			{ID: "p2"}, // missing email and name
		},
	}
	duplicates := []types.DuplicateCandidate{{Type: types.EntityPerson}}
	orphans := []types.OrphanIssue{
		{Class: types.OrphanStructural},
		{Class: types.OrphanScoped}, // informational, no deduction
	}

	report := BuildReport(snap, duplicates, orphans)
	// 100 - 3 (dup) - 2 (structural orphan) - 1 (missing data)
	assert.Equal(t, 94, report.HealthScore)
	assert.Equal(t, 1, report.Issues.Duplicates)
	assert.Equal(t, 1, report.Issues.Orphaned)
	assert.Equal(t, 1, report.Issues.MissingData)
}

func TestBuildReportScoreFloorsAtZero(t *testing.T) {
	snap := &types.Snapshot{}
	duplicates := make([]types.DuplicateCandidate, 50)
	report := BuildReport(snap, duplicates, nil)
	assert.Equal(t, 0, report.HealthScore)
}

func TestMissingDataCountSkipsInactiveSpaces(t *testing.T) {
	snap := &types.Snapshot{
		Spaces: []*types.Space{
			{ID: "r1", IsActive: false}, // missing fields but soft-deleted
			{ID: "r2", BuildingCode: "MCF", IsActive: true},
		},
	}
	assert.Equal(t, 1, MissingDataCount(snap))
}
