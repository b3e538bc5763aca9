// Package similarity scores how likely two same-type records are to be the
// same real-world entity. All comparators are symmetric and deterministic;
// thresholds live in a Policy struct so they are data, not scattered
// literals.
package similarity

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/acadix/reconcile/internal/types"
)

// PersonPolicy holds the person comparator bands.
type PersonPolicy struct {
	EmailMatch   float64 // exact case-insensitive email match
	NameBase     float64 // normalized full-name exact match
	PhoneBonus   float64 // secondary agreement raises confidence
	OfficeBonus  float64
	TitlePenalty float64 // conflicting job titles lower it
	NameBandCap  float64 // exact-name band never reaches EmailMatch
	FuzzyFloor   float64 // fuzzy name similarity below this is not a signal
}

// SectionPolicy holds the section comparator bands.
type SectionPolicy struct {
	SameCRN      float64 // courseCode+section+termCode and CRN all match
	SameTriple   float64 // courseCode+section+termCode match, CRN differs
	SameOffering float64 // same course/term/instructor/meeting, section label differs
}

// SpacePolicy holds the space comparator bands.
type SpacePolicy struct {
	SameKey            float64 // identical normalized spaceKey
	SameBuildingNumber float64 // building + numeric-normalized room number
}

// Policy bundles the per-type scoring policies.
type Policy struct {
	Person  PersonPolicy
	Section SectionPolicy
	Space   SpacePolicy
}

// DefaultPolicy returns the production scoring bands.
func DefaultPolicy() Policy {
	return Policy{
		Person: PersonPolicy{
			EmailMatch:   1.0,
			NameBase:     0.90,
			PhoneBonus:   0.05,
			OfficeBonus:  0.03,
			TitlePenalty: 0.05,
			NameBandCap:  0.95,
			FuzzyFloor:   0.70,
		},
		Section: SectionPolicy{
			SameCRN:      0.99,
			SameTriple:   0.98,
			SameOffering: 0.88,
		},
		Space: SpacePolicy{
			SameKey:            1.0,
			SameBuildingNumber: 0.95,
		},
	}
}

// Scorer evaluates record pairs against a Policy.
type Scorer struct {
	policy Policy
}

// NewScorer creates a scorer with the given policy.
func NewScorer(policy Policy) *Scorer {
	return &Scorer{policy: policy}
}

// Score returns a confidence in [0,1] and a human-readable reason for a
// same-type record pair. Confidence 0 means no duplicate signal at all.
func (s *Scorer) Score(a, b types.Record) (float64, string, error) {
	if a.Type() != b.Type() {
		return 0, "", fmt.Errorf("cannot compare %s with %s", a.Type(), b.Type())
	}
	switch a.Type() {
	case types.EntityPerson:
		conf, reason := s.scorePersons(a.(*types.Person), b.(*types.Person))
		return conf, reason, nil
	case types.EntitySection:
		conf, reason := s.scoreSections(a.(*types.Section), b.(*types.Section))
		return conf, reason, nil
	case types.EntitySpace:
		conf, reason := s.scoreSpaces(a.(*types.Space), b.(*types.Space))
		return conf, reason, nil
	}
	return 0, "", fmt.Errorf("unknown entity type: %s", a.Type())
}

func (s *Scorer) scorePersons(a, b *types.Person) (float64, string) {
	p := s.policy.Person

	if a.Email != "" && b.Email != "" && strings.EqualFold(a.Email, b.Email) {
		return p.EmailMatch, "Same email"
	}

	nameA := NormalizeName(a.FullName())
	nameB := NormalizeName(b.FullName())
	if nameA == "" || nameB == "" {
		return 0, ""
	}

	if nameA == nameB {
		conf := p.NameBase
		agreements := []string{}
		if a.Phone != "" && b.Phone != "" && normalizePhone(a.Phone) == normalizePhone(b.Phone) {
			conf += p.PhoneBonus
			agreements = append(agreements, "phone")
		}
		if a.OfficeSpaceID != "" && a.OfficeSpaceID == b.OfficeSpaceID {
			conf += p.OfficeBonus
			agreements = append(agreements, "office")
		}
		if a.JobTitle != "" && b.JobTitle != "" && !strings.EqualFold(a.JobTitle, b.JobTitle) {
			conf -= p.TitlePenalty
		}
		if conf > p.NameBandCap {
			conf = p.NameBandCap
		}
		reason := "Same name"
		if len(agreements) > 0 {
			reason = "Same name and " + strings.Join(agreements, ", ")
		}
		return conf, reason
	}

	ratio := Ratio(nameA, nameB)
	if ratio < p.FuzzyFloor {
		return 0, ""
	}
	return ratio, fmt.Sprintf("Similar names (%.0f%% match)", ratio*100)
}

func (s *Scorer) scoreSections(a, b *types.Section) (float64, string) {
	p := s.policy.Section

	tripleMatch := a.CourseCode != "" && a.CourseCode == b.CourseCode &&
		a.SectionNumber != "" && a.SectionNumber == b.SectionNumber &&
		a.TermCode != "" && a.TermCode == b.TermCode
	if tripleMatch {
		if a.CRN != "" && a.CRN == b.CRN {
			return p.SameCRN, "Same CRN"
		}
		return p.SameTriple, "Same course/section/semester"
	}

	// Different section label or CRN, but the same offering shape: same
	// course, same term, same instructor, same meeting pattern.
	if a.CourseCode != "" && a.CourseCode == b.CourseCode &&
		a.TermCode != "" && a.TermCode == b.TermCode &&
		a.MeetingPattern != "" && a.MeetingPattern == b.MeetingPattern &&
		instructorsOverlap(a, b) {
		return p.SameOffering, "Likely same offering, different section label"
	}

	return 0, ""
}

func (s *Scorer) scoreSpaces(a, b *types.Space) (float64, string) {
	p := s.policy.Space

	keyA := types.MakeSpaceKey(a.BuildingCode, a.SpaceNumber)
	if a.SpaceKey != "" {
		keyA = strings.ToUpper(a.SpaceKey)
	}
	keyB := types.MakeSpaceKey(b.BuildingCode, b.SpaceNumber)
	if b.SpaceKey != "" {
		keyB = strings.ToUpper(b.SpaceKey)
	}
	if keyA != "" && keyA == keyB {
		return p.SameKey, "Same space key"
	}

	if a.BuildingCode != "" && strings.EqualFold(a.BuildingCode, b.BuildingCode) &&
		NormalizeRoomNumber(a.SpaceNumber) != "" &&
		NormalizeRoomNumber(a.SpaceNumber) == NormalizeRoomNumber(b.SpaceNumber) {
		return p.SameBuildingNumber, "Same building and room number"
	}

	return 0, ""
}

// NormalizeName lowercases, strips diacritics and punctuation, and
// collapses whitespace so "José María" and "jose maria" compare equal.
func NormalizeName(name string) string {
	decomposed := norm.NFKD.String(strings.ToLower(name))
	var b strings.Builder
	b.Grow(len(decomposed))
	lastSpace := true
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Combining mark from decomposition: drop it.
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeRoomNumber uppercases and strips leading zeros so "0101" and
// "101" compare equal while "101A" stays distinct from "101B".
func NormalizeRoomNumber(number string) string {
	n := strings.ToUpper(strings.TrimSpace(number))
	trimmed := strings.TrimLeft(n, "0")
	if trimmed == "" && n != "" {
		return "0"
	}
	return trimmed
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func instructorsOverlap(a, b *types.Section) bool {
	if overlap(a.InstructorIDs, b.InstructorIDs) {
		return true
	}
	// Fall back to normalized free-text names when ids are not linked yet.
	for _, na := range a.InstructorNames {
		for _, nb := range b.InstructorNames {
			if NormalizeName(na) != "" && NormalizeName(na) == NormalizeName(nb) {
				return true
			}
		}
	}
	return false
}

func overlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x != "" && x == y {
				return true
			}
		}
	}
	return false
}
