package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadix/reconcile/internal/types"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"smith", "smith", 0},
		{"smith", "smyth", 1},
		{"kitten", "sitting", 3},
		{"garcía", "garcia", 1},
	}
	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"José María", "jose maria"},
		{"  Smith,  Jane ", "smith jane"},
		{"O'Brien", "obrien"},
		{"VAN DER BERG", "van der berg"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeRoomNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0101", "101"},
		{"101", "101"},
		{"101a", "101A"},
		{"000", "0"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeRoomNumber(tt.in); got != tt.want {
			t.Errorf("NormalizeRoomNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPersonEmailMatch(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	a := &types.Person{ID: "a", Email: "j.smith@x.edu", FirstName: "J", LastName: "Smith"}
	b := &types.Person{ID: "b", Email: "J.SMITH@x.edu", FirstName: "Jane", LastName: "Smith"}

	conf, reason, err := s.Score(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, conf)
	assert.Equal(t, "Same email", reason)
}

func TestPersonNameBand(t *testing.T) {
	s := NewScorer(DefaultPolicy())

	t.Run("exact name alone", func(t *testing.T) {
		a := &types.Person{ID: "a", FirstName: "Jane", LastName: "Smith"}
		b := &types.Person{ID: "b", FirstName: "jane", LastName: "SMITH"}
		conf, reason, err := s.Score(a, b)
		require.NoError(t, err)
		assert.InDelta(t, 0.90, conf, 1e-9)
		assert.Equal(t, "Same name", reason)
	})

	t.Run("phone agreement raises confidence", func(t *testing.T) {
		a := &types.Person{ID: "a", FirstName: "Jane", LastName: "Smith", Phone: "(254) 710-1234"}
		b := &types.Person{ID: "b", FirstName: "Jane", LastName: "Smith", Phone: "254-710-1234"}
		conf, reason, err := s.Score(a, b)
		require.NoError(t, err)
		assert.InDelta(t, 0.95, conf, 1e-9)
		assert.Contains(t, reason, "phone")
	})

	t.Run("conflicting job title lowers confidence", func(t *testing.T) {
		a := &types.Person{ID: "a", FirstName: "Jane", LastName: "Smith", JobTitle: "Professor"}
		b := &types.Person{ID: "b", FirstName: "Jane", LastName: "Smith", JobTitle: "Registrar"}
		conf, _, err := s.Score(a, b)
		require.NoError(t, err)
		assert.InDelta(t, 0.85, conf, 1e-9)
	})

	t.Run("band is capped below email match", func(t *testing.T) {
		a := &types.Person{ID: "a", FirstName: "Jane", LastName: "Smith", Phone: "2547101234", OfficeSpaceID: "r1"}
		b := &types.Person{ID: "b", FirstName: "Jane", LastName: "Smith", Phone: "2547101234", OfficeSpaceID: "r1"}
		conf, _, err := s.Score(a, b)
		require.NoError(t, err)
		assert.InDelta(t, 0.95, conf, 1e-9)
	})
}

func TestPersonFuzzyFloor(t *testing.T) {
	s := NewScorer(DefaultPolicy())

	a := &types.Person{ID: "a", FirstName: "Jane", LastName: "Smith"}
	b := &types.Person{ID: "b", FirstName: "Jane", LastName: "Smythe"}
	conf, _, err := s.Score(a, b)
	require.NoError(t, err)
	assert.Greater(t, conf, 0.7, "close surname variant should stay above the floor")
	assert.Less(t, conf, 0.90, "fuzzy match must score below the exact-name band")

	c := &types.Person{ID: "c", FirstName: "Robert", LastName: "Oppenheimer"}
	conf, reason, err := s.Score(a, c)
	require.NoError(t, err)
	assert.Zero(t, conf, "unrelated names are not a signal")
	assert.Empty(t, reason)
}

func TestSectionBands(t *testing.T) {
	s := NewScorer(DefaultPolicy())

	base := &types.Section{ID: "s1", CourseCode: "CSI 1430", SectionNumber: "01", TermCode: "202510", CRN: "12345"}

	t.Run("same CRN", func(t *testing.T) {
		other := &types.Section{ID: "s2", CourseCode: "CSI 1430", SectionNumber: "01", TermCode: "202510", CRN: "12345"}
		conf, reason, err := s.Score(base, other)
		require.NoError(t, err)
		assert.InDelta(t, 0.99, conf, 1e-9)
		assert.Equal(t, "Same CRN", reason)
	})

	t.Run("same triple, different CRN", func(t *testing.T) {
		other := &types.Section{ID: "s2", CourseCode: "CSI 1430", SectionNumber: "01", TermCode: "202510", CRN: "99999"}
		conf, reason, err := s.Score(base, other)
		require.NoError(t, err)
		assert.InDelta(t, 0.98, conf, 1e-9)
		assert.Equal(t, "Same course/section/semester", reason)
	})

	t.Run("same offering different label", func(t *testing.T) {
		a := &types.Section{ID: "s1", CourseCode: "CSI 1430", SectionNumber: "01", TermCode: "202510",
			MeetingPattern: "MWF 9:05", InstructorIDs: []string{"p1"}}
		b := &types.Section{ID: "s2", CourseCode: "CSI 1430", SectionNumber: "1", TermCode: "202510",
			MeetingPattern: "MWF 9:05", InstructorIDs: []string{"p1"}}
		conf, reason, err := s.Score(a, b)
		require.NoError(t, err)
		assert.InDelta(t, 0.88, conf, 1e-9)
		assert.Equal(t, "Likely same offering, different section label", reason)
	})

	t.Run("different term is no signal", func(t *testing.T) {
		other := &types.Section{ID: "s2", CourseCode: "CSI 1430", SectionNumber: "01", TermCode: "202610", CRN: "12345"}
		// Same CRN namespace resets per term; the triple comparator requires
		// term agreement, so this pair carries no signal.
		conf, _, err := s.Score(base, other)
		require.NoError(t, err)
		assert.Zero(t, conf)
	})
}

func TestSpaceBands(t *testing.T) {
	s := NewScorer(DefaultPolicy())

	t.Run("same key", func(t *testing.T) {
		a := &types.Space{ID: "r1", BuildingCode: "MCF", SpaceNumber: "101"}
		b := &types.Space{ID: "r2", SpaceKey: "MCF:101"}
		conf, reason, err := s.Score(a, b)
		require.NoError(t, err)
		assert.Equal(t, 1.0, conf)
		assert.Equal(t, "Same space key", reason)
	})

	t.Run("numeric-normalized number", func(t *testing.T) {
		a := &types.Space{ID: "r1", BuildingCode: "MCF", SpaceNumber: "0101"}
		b := &types.Space{ID: "r2", BuildingCode: "mcf", SpaceNumber: "101"}
		conf, _, err := s.Score(a, b)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, conf, 0.95)
	})

	t.Run("different building", func(t *testing.T) {
		a := &types.Space{ID: "r1", BuildingCode: "MCF", SpaceNumber: "101"}
		b := &types.Space{ID: "r2", BuildingCode: "BSB", SpaceNumber: "101"}
		conf, _, err := s.Score(a, b)
		require.NoError(t, err)
		assert.Zero(t, conf)
	})
}

// Confidence must not depend on argument order.
func TestScoreSymmetry(t *testing.T) {
	s := NewScorer(DefaultPolicy())

	pairs := []struct {
		name string
		a, b types.Record
	}{
		{"person email", &types.Person{ID: "a", Email: "x@y.edu"}, &types.Person{ID: "b", Email: "X@Y.EDU"}},
		{"person fuzzy", &types.Person{ID: "a", FirstName: "Jane", LastName: "Smith"},
			&types.Person{ID: "b", FirstName: "Jane", LastName: "Smythe"}},
		{"section triple", &types.Section{ID: "a", CourseCode: "BIO 1401", SectionNumber: "02", TermCode: "202510"},
			&types.Section{ID: "b", CourseCode: "BIO 1401", SectionNumber: "02", TermCode: "202510"}},
		{"space key", &types.Space{ID: "a", BuildingCode: "MCF", SpaceNumber: "0101"},
			&types.Space{ID: "b", BuildingCode: "MCF", SpaceNumber: "101"}},
	}
	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			ab, abReason, err := s.Score(tt.a, tt.b)
			require.NoError(t, err)
			ba, baReason, err := s.Score(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, ab, ba)
			assert.Equal(t, abReason, baReason)
		})
	}
}

func TestScoreRejectsMixedTypes(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	_, _, err := s.Score(&types.Person{ID: "a"}, &types.Space{ID: "b"})
	require.Error(t, err)
}
