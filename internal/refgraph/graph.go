// Package refgraph builds reverse-reference counts across the three
// collections and classifies unreferenced records. The core safety rule:
// a record referenced only outside the requested scope is scope-orphaned
// and must never become a deletion candidate for that scope's cleanup.
package refgraph

import (
	"fmt"
	"sort"

	"github.com/acadix/reconcile/internal/types"
)

// Scope narrows an orphan scan to one term. The zero value means all terms.
type Scope struct {
	TermCode string
}

func (s Scope) contains(section *types.Section) bool {
	return s.TermCode == "" || section.TermCode == s.TermCode
}

// Counts holds reverse-reference tallies per target id. Office references
// from people carry no term, so they count toward every scope.
type Counts struct {
	SpaceTotal    map[string]int
	SpaceInScope  map[string]int
	PersonTotal   map[string]int
	PersonInScope map[string]int
}

// BuildCounts computes reference counts for the snapshot under one scope.
func BuildCounts(snap *types.Snapshot, scope Scope) *Counts {
	c := &Counts{
		SpaceTotal:    make(map[string]int),
		SpaceInScope:  make(map[string]int),
		PersonTotal:   make(map[string]int),
		PersonInScope: make(map[string]int),
	}
	for _, section := range snap.Sections {
		inScope := scope.contains(section)
		for _, spaceID := range section.SpaceIDs {
			c.SpaceTotal[spaceID]++
			if inScope {
				c.SpaceInScope[spaceID]++
			}
		}
		for _, personID := range section.InstructorIDs {
			c.PersonTotal[personID]++
			if inScope {
				c.PersonInScope[personID]++
			}
		}
	}
	for _, person := range snap.People {
		if person.OfficeSpaceID != "" {
			c.SpaceTotal[person.OfficeSpaceID]++
			c.SpaceInScope[person.OfficeSpaceID]++
		}
	}
	return c
}

// Detect flags orphaned records relative to the scope. Results are sorted
// by issue type then record id for deterministic output.
//
// Spaces and people come in two classes: structurally orphaned (referenced
// nowhere, safe to consider for deletion) and scope-orphaned (used in some
// other term; excluded from this scope's cleanup but never deletable).
// Sections are flagged when every space and instructor reference they
// carry points at a document that no longer exists.
func Detect(snap *types.Snapshot, scope Scope) []types.OrphanIssue {
	counts := BuildCounts(snap, scope)

	var issues []types.OrphanIssue

	for _, space := range snap.ActiveSpaces() {
		total := counts.SpaceTotal[space.ID]
		if total == 0 {
			issues = append(issues, types.OrphanIssue{
				Type:     types.OrphanedSpace,
				Class:    types.OrphanStructural,
				Record:   space,
				Reason:   "no schedule or office references this space",
				Severity: "warning",
			})
			continue
		}
		if scope.TermCode != "" && counts.SpaceInScope[space.ID] == 0 {
			issues = append(issues, types.OrphanIssue{
				Type:     types.OrphanedSpace,
				Class:    types.OrphanScoped,
				Record:   space,
				Reason:   fmt.Sprintf("not referenced within term %s (used elsewhere)", scope.TermCode),
				Severity: "info",
			})
		}
	}

	for _, person := range snap.People {
		total := counts.PersonTotal[person.ID]
		if total == 0 {
			issues = append(issues, types.OrphanIssue{
				Type:     types.OrphanedPerson,
				Class:    types.OrphanStructural,
				Record:   person,
				Reason:   "no schedule lists this person as instructor",
				Severity: "warning",
			})
			continue
		}
		if scope.TermCode != "" && counts.PersonInScope[person.ID] == 0 {
			issues = append(issues, types.OrphanIssue{
				Type:     types.OrphanedPerson,
				Class:    types.OrphanScoped,
				Record:   person,
				Reason:   fmt.Sprintf("not teaching in term %s (teaches elsewhere)", scope.TermCode),
				Severity: "info",
			})
		}
	}

	spaceIDs := make(map[string]bool, len(snap.Spaces))
	for _, space := range snap.Spaces {
		spaceIDs[space.ID] = true
	}
	personIDs := make(map[string]bool, len(snap.People))
	for _, person := range snap.People {
		personIDs[person.ID] = true
	}
	for _, section := range snap.Sections {
		if !scope.contains(section) {
			continue
		}
		if danglingOnly(section.SpaceIDs, spaceIDs) && danglingOnly(section.InstructorIDs, personIDs) &&
			(len(section.SpaceIDs) > 0 || len(section.InstructorIDs) > 0) {
			issues = append(issues, types.OrphanIssue{
				Type:     types.OrphanedSchedule,
				Class:    types.OrphanStructural,
				Record:   section,
				Reason:   "every space and instructor reference is dangling",
				Severity: "warning",
			})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Type != issues[j].Type {
			return issues[i].Type < issues[j].Type
		}
		return issues[i].Record.RecordID() < issues[j].Record.RecordID()
	})
	return issues
}

// danglingOnly reports whether every id in refs is absent from known.
// Empty refs are trivially dangling-only.
func danglingOnly(refs []string, known map[string]bool) bool {
	for _, id := range refs {
		if known[id] {
			return false
		}
	}
	return true
}

// DeletionCandidates filters a scan down to records safe to consider for
// removal: structural orphans only, never scope-orphans.
func DeletionCandidates(issues []types.OrphanIssue) []types.OrphanIssue {
	var out []types.OrphanIssue
	for _, issue := range issues {
		if issue.Class == types.OrphanStructural {
			out = append(out, issue)
		}
	}
	return out
}
