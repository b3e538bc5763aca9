package types

import (
	"fmt"
	"strings"
	"time"
)

// EntityType identifies one of the three reconciled record kinds.
type EntityType string

const (
	EntityPerson  EntityType = "person"
	EntitySection EntityType = "section"
	EntitySpace   EntityType = "space"
)

// IsValid checks if the entity type value is valid
func (t EntityType) IsValid() bool {
	switch t {
	case EntityPerson, EntitySection, EntitySpace:
		return true
	}
	return false
}

// Collection names used by the document repository.
const (
	CollectionPeople     = "people"
	CollectionSchedules  = "schedules"
	CollectionRooms      = "rooms"
	CollectionExclusions = "exclusions"
	CollectionAuditLog   = "auditLog"
)

// CollectionFor maps an entity type to its repository collection.
func CollectionFor(t EntityType) (string, error) {
	switch t {
	case EntityPerson:
		return CollectionPeople, nil
	case EntitySection:
		return CollectionSchedules, nil
	case EntitySpace:
		return CollectionRooms, nil
	}
	return "", fmt.Errorf("unknown entity type: %s", t)
}

// Record is the common surface of the three canonical record variants.
// FieldMap returns canonical field names to values; empty values are
// omitted so merge logic can distinguish "absent" from "set".
type Record interface {
	RecordID() string
	Type() EntityType
	FieldMap() map[string]interface{}
}

// Person is a canonical person record. Legacy field aliases are resolved
// once at load time by NormalizePerson; downstream logic never sees them.
type Person struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	BaylorID      string
	Phone         string
	JobTitle      string
	Department    string
	OfficeSpaceID string
	SearchKey     string
}

func (p *Person) RecordID() string { return p.ID }
func (p *Person) Type() EntityType { return EntityPerson }

// FullName returns "First Last" with surrounding whitespace trimmed.
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Person) FieldMap() map[string]interface{} {
	m := make(map[string]interface{})
	putString(m, "email", p.Email)
	putString(m, "firstName", p.FirstName)
	putString(m, "lastName", p.LastName)
	putString(m, "baylorId", p.BaylorID)
	putString(m, "phone", p.Phone)
	putString(m, "jobTitle", p.JobTitle)
	putString(m, "department", p.Department)
	putString(m, "officeSpaceId", p.OfficeSpaceID)
	putString(m, "searchKey", p.SearchKey)
	return m
}

// Section is a canonical course-section record.
type Section struct {
	ID              string
	CourseCode      string
	SectionNumber   string
	TermCode        string
	CRN             string
	Title           string
	MeetingPattern  string
	InstructorIDs   []string
	InstructorNames []string // free-text names not yet linked to people
	SpaceIDs        []string
	RoomStrings     []string // free-text room labels not yet linked to rooms
}

func (s *Section) RecordID() string { return s.ID }
func (s *Section) Type() EntityType { return EntitySection }

func (s *Section) FieldMap() map[string]interface{} {
	m := make(map[string]interface{})
	putString(m, "courseCode", s.CourseCode)
	putString(m, "section", s.SectionNumber)
	putString(m, "termCode", s.TermCode)
	putString(m, "crn", s.CRN)
	putString(m, "title", s.Title)
	putString(m, "meetingPattern", s.MeetingPattern)
	putStrings(m, "instructorIds", s.InstructorIDs)
	putStrings(m, "instructorNames", s.InstructorNames)
	putStrings(m, "spaceIds", s.SpaceIDs)
	putStrings(m, "roomStrings", s.RoomStrings)
	return m
}

// Space is a canonical room/space record. IsActive is a soft-delete flag:
// inactive spaces are excluded from current listings but kept for audit.
type Space struct {
	ID           string
	BuildingCode string
	SpaceNumber  string
	SpaceKey     string
	Name         string
	Capacity     int
	IsActive     bool
}

func (s *Space) RecordID() string { return s.ID }
func (s *Space) Type() EntityType { return EntitySpace }

func (s *Space) FieldMap() map[string]interface{} {
	m := make(map[string]interface{})
	putString(m, "buildingCode", s.BuildingCode)
	putString(m, "spaceNumber", s.SpaceNumber)
	putString(m, "spaceKey", s.SpaceKey)
	putString(m, "name", s.Name)
	if s.Capacity != 0 {
		m["capacity"] = s.Capacity
	}
	m["isActive"] = s.IsActive
	return m
}

// MakeSpaceKey builds the canonical "BUILDING:NUMBER" identity key.
func MakeSpaceKey(buildingCode, spaceNumber string) string {
	b := strings.ToUpper(strings.TrimSpace(buildingCode))
	n := strings.ToUpper(strings.TrimSpace(spaceNumber))
	if b == "" || n == "" {
		return ""
	}
	return b + ":" + n
}

// Snapshot is an immutable point-in-time read of all three collections.
// Analyses take a snapshot argument rather than reading ambient state so
// they stay deterministic and testable.
type Snapshot struct {
	People   []*Person
	Sections []*Section
	Spaces   []*Space
	LoadedAt time.Time
}

// ActiveSpaces returns the spaces not soft-deleted.
func (s *Snapshot) ActiveSpaces() []*Space {
	out := make([]*Space, 0, len(s.Spaces))
	for _, sp := range s.Spaces {
		if sp.IsActive {
			out = append(out, sp)
		}
	}
	return out
}

// DuplicateCandidate is a scored potential duplicate pair awaiting an
// operator decision. Never persisted; recomputed on every scan.
type DuplicateCandidate struct {
	Type       EntityType
	Primary    Record
	Secondary  Record
	Confidence float64
	Reason     string
}

// OrphanClass distinguishes records safe to delete from records that are
// merely unused within the requested scope.
type OrphanClass string

const (
	// OrphanStructural means referenced nowhere at all; a deletion candidate.
	OrphanStructural OrphanClass = "structural"
	// OrphanScoped means referenced only outside the requested scope.
	// Never a deletion candidate.
	OrphanScoped OrphanClass = "scoped"
)

// OrphanIssueType categorizes orphan findings by record kind.
type OrphanIssueType string

const (
	OrphanedSchedule OrphanIssueType = "orphaned_schedule"
	OrphanedSpace    OrphanIssueType = "orphaned_space"
	OrphanedPerson   OrphanIssueType = "orphaned_person"
)

// OrphanIssue is a single orphan finding from a reference-graph scan.
type OrphanIssue struct {
	Type     OrphanIssueType
	Class    OrphanClass
	Record   Record
	Reason   string
	Severity string // "warning" or "info"
}

// HealthReport aggregates scan findings into a single displayable score.
// Constructed fresh on every scan; superseded, not updated, by the next one.
type HealthReport struct {
	Counts      HealthCounts
	Issues      HealthIssues
	HealthScore int
	GeneratedAt time.Time
}

// HealthCounts holds per-collection record totals.
type HealthCounts struct {
	People    int
	Schedules int
	Rooms     int
}

// HealthIssues holds per-category issue totals.
type HealthIssues struct {
	Duplicates  int
	Orphaned    int
	MissingData int
}

// BatchResult is the structured summary every batch operation returns so
// callers can report "merged 8 of 10; 2 failed" instead of a bare boolean.
type BatchResult struct {
	Succeeded int
	Failed    int
	Errors    []string
}

// AddError records a per-item failure without aborting sibling items.
func (r *BatchResult) AddError(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err.Error())
}

func putString(m map[string]interface{}, key, val string) {
	if val != "" {
		m[key] = val
	}
}

func putStrings(m map[string]interface{}, key string, vals []string) {
	if len(vals) > 0 {
		m[key] = vals
	}
}
