package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/acadix/reconcile/internal/refgraph"
	"github.com/acadix/reconcile/internal/similarity"
	"github.com/acadix/reconcile/internal/types"
)

// Task names a backfill/normalization plan builder.
type Task string

const (
	// TaskSpaceBackfill creates Space documents for free-text room labels
	// on sections and points the sections' spaceIds at them.
	TaskSpaceBackfill Task = "space-backfill"
	// TaskIdentityKeys normalizes spaceKey on spaces and searchKey on
	// people where stale or absent.
	TaskIdentityKeys Task = "identity-keys"
	// TaskInstructorLinks resolves free-text instructor names on sections
	// to Person ids.
	TaskInstructorLinks Task = "instructor-links"
)

// Tasks lists the known builders in display order.
func Tasks() []Task {
	return []Task{TaskSpaceBackfill, TaskIdentityKeys, TaskInstructorLinks}
}

// Build diffs the snapshot against canonical values for one task and
// returns the proposed changes. Change ids are deterministic so previews
// are stable across runs of the same snapshot.
func Build(task Task, snap *types.Snapshot, scope refgraph.Scope) (*Plan, error) {
	p := &Plan{Task: task, Scope: scope.TermCode}
	switch task {
	case TaskSpaceBackfill:
		p.Changes = buildSpaceBackfill(snap, scope)
	case TaskIdentityKeys:
		p.Changes = buildIdentityKeys(snap)
	case TaskInstructorLinks:
		p.Changes = buildInstructorLinks(snap, scope)
	default:
		return nil, fmt.Errorf("unknown plan task: %s", task)
	}
	// The builder must emit a valid DAG; fail loudly here rather than at
	// apply time.
	if _, err := NewGraph(p.Changes); err != nil {
		return nil, fmt.Errorf("task %s produced an invalid plan: %w", task, err)
	}
	return p, nil
}

func inScope(scope refgraph.Scope, section *types.Section) bool {
	return scope.TermCode == "" || section.TermCode == scope.TermCode
}

func buildSpaceBackfill(snap *types.Snapshot, scope refgraph.Scope) []Change {
	// Existing active spaces by canonical key.
	byKey := make(map[string]*types.Space)
	for _, space := range snap.ActiveSpaces() {
		key := space.SpaceKey
		if key == "" {
			key = types.MakeSpaceKey(space.BuildingCode, space.SpaceNumber)
		}
		if key != "" {
			byKey[strings.ToUpper(key)] = space
		}
	}

	var changes []Change
	created := make(map[string]string) // space key -> create-change id

	sections := append([]*types.Section(nil), snap.Sections...)
	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })

	for _, section := range sections {
		if !inScope(scope, section) || len(section.RoomStrings) == 0 {
			continue
		}

		spaceIDs := append([]string(nil), section.SpaceIDs...)
		var deps []string
		changed := false

		for _, room := range section.RoomStrings {
			building, number, ok := parseRoomLabel(room)
			if !ok {
				continue
			}
			key := types.MakeSpaceKey(building, number)

			if existing, ok := byKey[key]; ok {
				if !containsID(spaceIDs, existing.ID) {
					spaceIDs = append(spaceIDs, existing.ID)
					changed = true
				}
				continue
			}

			createID, ok := created[key]
			if !ok {
				createID = "create-room:" + key
				created[key] = createID
				docID := uuid.NewString()
				changes = append(changes, Change{
					ID:         createID,
					Collection: types.CollectionRooms,
					DocumentID: docID,
					Action:     ActionUpsert,
					Data: map[string]interface{}{
						"buildingCode": building,
						"spaceNumber":  number,
						"spaceKey":     key,
						"isActive":     true,
					},
					Label: fmt.Sprintf("Create room %s", key),
				})
				byKey[key] = &types.Space{ID: docID, BuildingCode: building, SpaceNumber: number, SpaceKey: key, IsActive: true}
			}
			deps = append(deps, createID)
			newSpace := byKey[key]
			if !containsID(spaceIDs, newSpace.ID) {
				spaceIDs = append(spaceIDs, newSpace.ID)
				changed = true
			}
		}

		if !changed {
			continue
		}
		changes = append(changes, Change{
			ID:         "update-section:" + section.ID,
			Collection: types.CollectionSchedules,
			DocumentID: section.ID,
			Action:     ActionMerge,
			Before:     map[string]interface{}{"spaceIds": section.SpaceIDs},
			Data:       map[string]interface{}{"spaceIds": spaceIDs},
			Label:      fmt.Sprintf("Point %s %s at %s", section.CourseCode, section.SectionNumber, strings.Join(section.RoomStrings, ", ")),
			DependsOn:  deps,
		})
	}
	return changes
}

func buildIdentityKeys(snap *types.Snapshot) []Change {
	var changes []Change

	spaces := append([]*types.Space(nil), snap.Spaces...)
	sort.Slice(spaces, func(i, j int) bool { return spaces[i].ID < spaces[j].ID })
	for _, space := range spaces {
		canonical := types.MakeSpaceKey(space.BuildingCode, space.SpaceNumber)
		if canonical == "" || space.SpaceKey == canonical {
			continue
		}
		changes = append(changes, Change{
			ID:         "space-key:" + space.ID,
			Collection: types.CollectionRooms,
			DocumentID: space.ID,
			Action:     ActionMerge,
			Before:     map[string]interface{}{"spaceKey": space.SpaceKey},
			Data:       map[string]interface{}{"spaceKey": canonical},
			Label:      fmt.Sprintf("Set space key %s", canonical),
		})
	}

	people := append([]*types.Person(nil), snap.People...)
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })
	for _, person := range people {
		canonical := types.PersonSearchKey(person)
		if canonical == "" || person.SearchKey == canonical {
			continue
		}
		changes = append(changes, Change{
			ID:         "search-key:" + person.ID,
			Collection: types.CollectionPeople,
			DocumentID: person.ID,
			Action:     ActionMerge,
			Before:     map[string]interface{}{"searchKey": person.SearchKey},
			Data:       map[string]interface{}{"searchKey": canonical},
			Label:      fmt.Sprintf("Set search key for %s", person.FullName()),
		})
	}
	return changes
}

func buildInstructorLinks(snap *types.Snapshot, scope refgraph.Scope) []Change {
	// People indexed by normalized full name; ambiguous names resolve to
	// nobody rather than guessing.
	byName := make(map[string]*types.Person)
	ambiguous := make(map[string]bool)
	for _, person := range snap.People {
		name := similarity.NormalizeName(person.FullName())
		if name == "" {
			continue
		}
		if _, exists := byName[name]; exists {
			ambiguous[name] = true
			continue
		}
		byName[name] = person
	}

	var changes []Change
	sections := append([]*types.Section(nil), snap.Sections...)
	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })

	for _, section := range sections {
		if !inScope(scope, section) || len(section.InstructorNames) == 0 {
			continue
		}
		ids := append([]string(nil), section.InstructorIDs...)
		changed := false
		var resolved []string
		for _, raw := range section.InstructorNames {
			name := similarity.NormalizeName(raw)
			if name == "" || ambiguous[name] {
				continue
			}
			person, ok := byName[name]
			if !ok {
				continue
			}
			resolved = append(resolved, raw)
			if !containsID(ids, person.ID) {
				ids = append(ids, person.ID)
				changed = true
			}
		}
		if !changed {
			continue
		}
		changes = append(changes, Change{
			ID:         "link-instructors:" + section.ID,
			Collection: types.CollectionSchedules,
			DocumentID: section.ID,
			Action:     ActionMerge,
			Before:     map[string]interface{}{"instructorIds": section.InstructorIDs},
			Data:       map[string]interface{}{"instructorIds": ids},
			Label:      fmt.Sprintf("Link %s to %s", strings.Join(resolved, ", "), section.CourseCode),
		})
	}
	return changes
}

// parseRoomLabel splits a free-text room label like "MCF 101" or
// "MCF-101" into building code and room number.
func parseRoomLabel(label string) (building, number string, ok bool) {
	fields := strings.FieldsFunc(strings.TrimSpace(label), func(r rune) bool {
		return r == ' ' || r == '-' || r == ':'
	})
	if len(fields) < 2 {
		return "", "", false
	}
	building = strings.ToUpper(fields[0])
	number = strings.ToUpper(strings.Join(fields[1:], " "))
	return building, number, true
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
