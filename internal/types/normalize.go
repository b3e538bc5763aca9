package types

import (
	"fmt"
	"strings"
)

// The source data carries years of legacy field aliases. Normalization
// resolves every alias into the canonical struct exactly once, at load
// time; everything downstream sees only canonical fields.

// NormalizePerson builds a canonical Person from a raw document.
func NormalizePerson(id string, fields map[string]interface{}) *Person {
	p := &Person{
		ID:            id,
		Email:         strings.TrimSpace(strings.ToLower(str(fields, "email", "emailAddress", "mail"))),
		FirstName:     strings.TrimSpace(str(fields, "firstName", "first_name", "givenName")),
		LastName:      strings.TrimSpace(str(fields, "lastName", "last_name", "surname")),
		BaylorID:      strings.TrimSpace(str(fields, "baylorId", "baylor_id", "idNumber")),
		Phone:         strings.TrimSpace(str(fields, "phone", "phoneNumber", "officePhone")),
		JobTitle:      strings.TrimSpace(str(fields, "jobTitle", "title", "position")),
		Department:    strings.TrimSpace(str(fields, "department", "dept")),
		OfficeSpaceID: strings.TrimSpace(str(fields, "officeSpaceId", "officeRoomId", "office")),
		SearchKey:     strings.TrimSpace(str(fields, "searchKey")),
	}
	return p
}

// NormalizeSection builds a canonical Section from a raw document.
func NormalizeSection(id string, fields map[string]interface{}) *Section {
	s := &Section{
		ID:              id,
		CourseCode:      strings.ToUpper(strings.TrimSpace(str(fields, "courseCode", "course", "courseNumber"))),
		SectionNumber:   strings.TrimSpace(str(fields, "section", "sectionNumber")),
		TermCode:        strings.TrimSpace(str(fields, "termCode", "term", "semester")),
		CRN:             strings.TrimSpace(str(fields, "crn")),
		Title:           strings.TrimSpace(str(fields, "title", "courseTitle")),
		MeetingPattern:  strings.TrimSpace(str(fields, "meetingPattern", "meetingTimes", "meetingDays")),
		InstructorIDs:   strs(fields, "instructorIds", "instructorId"),
		InstructorNames: strs(fields, "instructorNames", "instructors", "instructor"),
		SpaceIDs:        strs(fields, "spaceIds", "roomIds", "spaceId"),
		RoomStrings:     strs(fields, "roomStrings", "rooms", "room"),
	}
	return s
}

// NormalizeSpace builds a canonical Space from a raw document. A missing
// isActive defaults to true; the soft-delete flag must be set explicitly.
func NormalizeSpace(id string, fields map[string]interface{}) *Space {
	sp := &Space{
		ID:           id,
		BuildingCode: strings.ToUpper(strings.TrimSpace(str(fields, "buildingCode", "building"))),
		SpaceNumber:  strings.TrimSpace(str(fields, "spaceNumber", "roomNumber", "number")),
		SpaceKey:     strings.TrimSpace(str(fields, "spaceKey")),
		Name:         strings.TrimSpace(str(fields, "name", "displayName")),
		Capacity:     num(fields, "capacity", "seats"),
		IsActive:     boolOr(fields, "isActive", true),
	}
	if sp.SpaceKey == "" {
		sp.SpaceKey = MakeSpaceKey(sp.BuildingCode, sp.SpaceNumber)
	}
	return sp
}

// PersonSearchKey is the canonical identity key backfilled onto person
// documents: "last,first" lowercased.
func PersonSearchKey(p *Person) string {
	last := strings.ToLower(strings.TrimSpace(p.LastName))
	first := strings.ToLower(strings.TrimSpace(p.FirstName))
	if last == "" && first == "" {
		return ""
	}
	return last + "," + first
}

func str(fields map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			switch t := v.(type) {
			case string:
				if t != "" {
					return t
				}
			case fmt.Stringer:
				if s := t.String(); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func strs(fields map[string]interface{}, keys ...string) []string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case []string:
			if len(t) > 0 {
				out := make([]string, 0, len(t))
				for _, s := range t {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
					}
				}
				if len(out) > 0 {
					return out
				}
			}
		case []interface{}:
			out := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return []string{s}
			}
		}
	}
	return nil
}

func num(fields map[string]interface{}, keys ...string) int {
	for _, k := range keys {
		switch t := fields[k].(type) {
		case int:
			if t != 0 {
				return t
			}
		case int64:
			if t != 0 {
				return int(t)
			}
		case float64:
			if t != 0 {
				return int(t)
			}
		}
	}
	return 0
}

func boolOr(fields map[string]interface{}, key string, def bool) bool {
	if v, ok := fields[key].(bool); ok {
		return v
	}
	return def
}
