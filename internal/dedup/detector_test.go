package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadix/reconcile/internal/repository"
	"github.com/acadix/reconcile/internal/similarity"
	"github.com/acadix/reconcile/internal/types"
)

func newDetector() *Detector {
	return NewDetector(similarity.NewScorer(similarity.DefaultPolicy()), DefaultFloors())
}

func TestScanFindsEmailDuplicate(t *testing.T) {
	d := newDetector()
	snap := &types.Snapshot{
		People: []*types.Person{
			{ID: "p1", Email: "j.smith@x.edu", FirstName: "J", LastName: "Smith"},
			{ID: "p2", Email: "j.smith@x.edu", FirstName: "Jane", LastName: "Smith"},
			{ID: "p3", Email: "other@x.edu", FirstName: "Omar", LastName: "Reyes"},
		},
	}

	candidates, err := d.Scan(snap, types.EntityPerson, nil)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, 1.0, c.Confidence)
	assert.Equal(t, "Same email", c.Reason)
	assert.Equal(t, "p1", c.Primary.RecordID())
	assert.Equal(t, "p2", c.Secondary.RecordID())
	assert.NotEqual(t, c.Primary.RecordID(), c.Secondary.RecordID())
}

func TestScanBlockingSkipsCrossBlockPairs(t *testing.T) {
	d := newDetector()
	// Same fuzzy-similar first names but different surname initials land in
	// different blocks, so they are never compared.
	snap := &types.Snapshot{
		People: []*types.Person{
			{ID: "p1", FirstName: "Jane", LastName: "Smith"},
			{ID: "p2", FirstName: "Jane", LastName: "Zmith"},
		},
	}
	candidates, err := d.Scan(snap, types.EntityPerson, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestScanSectionFloorSuppressesSameOffering(t *testing.T) {
	d := newDetector()
	snap := &types.Snapshot{
		Sections: []*types.Section{
			{ID: "s1", CourseCode: "CSI 1430", SectionNumber: "01", TermCode: "202510",
				MeetingPattern: "MWF 9:05", InstructorIDs: []string{"p1"}},
			{ID: "s2", CourseCode: "CSI 1430", SectionNumber: "02", TermCode: "202510",
				MeetingPattern: "MWF 9:05", InstructorIDs: []string{"p1"}},
		},
	}

	// The same-offering band (0.88) sits below the section floor (0.90);
	// shared course codes alone must not flag sections.
	candidates, err := d.Scan(snap, types.EntitySection, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	snap.Sections[1].SectionNumber = "01"
	candidates, err = d.Scan(snap, types.EntitySection, nil)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Same course/section/semester", candidates[0].Reason)
}

func TestScanIgnoresInactiveSpaces(t *testing.T) {
	d := newDetector()
	snap := &types.Snapshot{
		Spaces: []*types.Space{
			{ID: "r1", BuildingCode: "MCF", SpaceNumber: "101", IsActive: true},
			{ID: "r2", BuildingCode: "MCF", SpaceNumber: "101", IsActive: false},
		},
	}
	candidates, err := d.Scan(snap, types.EntitySpace, nil)
	require.NoError(t, err)
	assert.Empty(t, candidates, "soft-deleted spaces are not scan candidates")
}

func TestScanOrderIsDeterministic(t *testing.T) {
	d := newDetector()
	snap := &types.Snapshot{
		Spaces: []*types.Space{
			{ID: "r3", BuildingCode: "MCF", SpaceNumber: "102", IsActive: true},
			{ID: "r1", BuildingCode: "MCF", SpaceNumber: "101", IsActive: true},
			{ID: "r4", BuildingCode: "MCF", SpaceNumber: "0102", IsActive: true},
			{ID: "r2", BuildingCode: "MCF", SpaceNumber: "0101", IsActive: true},
		},
	}

	first, err := d.Scan(snap, types.EntitySpace, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Reversed snapshot order must produce the identical candidate list.
	for i, j := 0, len(snap.Spaces)-1; i < j; i, j = i+1, j-1 {
		snap.Spaces[i], snap.Spaces[j] = snap.Spaces[j], snap.Spaces[i]
	}
	second, err := d.Scan(snap, types.EntitySpace, nil)
	require.NoError(t, err)
	require.Len(t, second, 2)

	for i := range first {
		assert.Equal(t, first[i].Primary.RecordID(), second[i].Primary.RecordID())
		assert.Equal(t, first[i].Secondary.RecordID(), second[i].Secondary.RecordID())
	}
	assert.Equal(t, "r1", first[0].Primary.RecordID())
	assert.Equal(t, "r2", first[0].Secondary.RecordID())
}

func TestScanHonorsExclusions(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	registry := NewRegistry(repo, nil)
	d := newDetector()

	snap := &types.Snapshot{
		People: []*types.Person{
			{ID: "p1", Email: "j.smith@x.edu"},
			{ID: "p2", Email: "j.smith@x.edu"},
		},
	}

	// Argument order must not matter: mark (p2, p1), scan still suppressed.
	require.NoError(t, registry.Mark(ctx, types.EntityPerson, "p2", "p1", "father and son share the address"))

	set, err := registry.Load(ctx)
	require.NoError(t, err)

	candidates, err := d.Scan(snap, types.EntityPerson, set)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
