// Package dedup finds likely duplicate records. Scans are pure reads over
// a snapshot: records are partitioned into blocking groups, pairs within a
// group are scored, and pairs under the confidence floor or marked as
// known non-duplicates are dropped.
package dedup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/acadix/reconcile/internal/similarity"
	"github.com/acadix/reconcile/internal/types"
)

// Floors holds the per-type confidence floors. Sections default higher to
// avoid false positives from shared course codes.
type Floors struct {
	Person  float64
	Section float64
	Space   float64
}

// DefaultFloors returns the production confidence floors.
func DefaultFloors() Floors {
	return Floors{Person: 0.70, Section: 0.90, Space: 0.70}
}

// Detector scans one entity type at a time for duplicate candidates.
type Detector struct {
	scorer *similarity.Scorer
	floors Floors
}

// NewDetector creates a detector with the given scorer and floors.
func NewDetector(scorer *similarity.Scorer, floors Floors) *Detector {
	return &Detector{scorer: scorer, floors: floors}
}

// Scan evaluates the snapshot for one entity type and returns candidates
// sorted by confidence descending, ties broken by record id so ordering is
// deterministic. Inactive (soft-deleted) spaces are not scanned.
func (d *Detector) Scan(snap *types.Snapshot, entityType types.EntityType, exclusions *ExclusionSet) ([]types.DuplicateCandidate, error) {
	var records []types.Record
	switch entityType {
	case types.EntityPerson:
		for _, p := range snap.People {
			records = append(records, p)
		}
	case types.EntitySection:
		for _, s := range snap.Sections {
			records = append(records, s)
		}
	case types.EntitySpace:
		for _, sp := range snap.ActiveSpaces() {
			records = append(records, sp)
		}
	default:
		return nil, fmt.Errorf("unknown entity type: %s", entityType)
	}

	floor := d.floorFor(entityType)
	blocks := partition(records)

	var candidates []types.DuplicateCandidate
	for _, block := range blocks {
		// All pairs within a block only; the blocking key keeps the scan
		// well under O(n^2) on full collections.
		for i := 0; i < len(block); i++ {
			for j := i + 1; j < len(block); j++ {
				a, b := block[i], block[j]
				if exclusions.Contains(entityType, a.RecordID(), b.RecordID()) {
					continue
				}
				conf, reason, err := d.scorer.Score(a, b)
				if err != nil {
					return nil, err
				}
				if conf < floor || conf == 0 {
					continue
				}
				primary, secondary := a, b
				if secondary.RecordID() < primary.RecordID() {
					primary, secondary = secondary, primary
				}
				candidates = append(candidates, types.DuplicateCandidate{
					Type:       entityType,
					Primary:    primary,
					Secondary:  secondary,
					Confidence: conf,
					Reason:     reason,
				})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		if candidates[i].Primary.RecordID() != candidates[j].Primary.RecordID() {
			return candidates[i].Primary.RecordID() < candidates[j].Primary.RecordID()
		}
		return candidates[i].Secondary.RecordID() < candidates[j].Secondary.RecordID()
	})
	return candidates, nil
}

func (d *Detector) floorFor(entityType types.EntityType) float64 {
	switch entityType {
	case types.EntitySection:
		return d.floors.Section
	case types.EntitySpace:
		return d.floors.Space
	default:
		return d.floors.Person
	}
}

// partition groups records by a cheap blocking key. Records with an empty
// key share one block; they still get compared against each other.
func partition(records []types.Record) map[string][]types.Record {
	blocks := make(map[string][]types.Record)
	for _, r := range records {
		key := blockingKey(r)
		blocks[key] = append(blocks[key], r)
	}
	// Deterministic intra-block order regardless of snapshot order.
	for _, block := range blocks {
		sort.Slice(block, func(i, j int) bool { return block[i].RecordID() < block[j].RecordID() })
	}
	return blocks
}

func blockingKey(r types.Record) string {
	switch rec := r.(type) {
	case *types.Person:
		name := similarity.NormalizeName(rec.LastName)
		if name == "" {
			return ""
		}
		return string([]rune(name)[0])
	case *types.Section:
		return strings.ToUpper(rec.CourseCode) + "|" + rec.TermCode
	case *types.Space:
		return strings.ToUpper(rec.BuildingCode)
	}
	return ""
}
