package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acadix/reconcile/internal/audit"
	"github.com/acadix/reconcile/internal/repository"
	"github.com/acadix/reconcile/internal/types"
)

// Exclusion is a persisted "not a duplicate" decision for an unordered id
// pair. Exactly one record exists per pair; lookups are pair-symmetric.
type Exclusion struct {
	EntityType types.EntityType
	IDLow      string
	IDHigh     string
	Reason     string
	CreatedAt  time.Time
}

// Registry persists operator exclusions and answers symmetric lookups.
type Registry struct {
	repo  repository.Repository
	audit audit.Logger
}

// NewRegistry creates a registry backed by the exclusions collection.
func NewRegistry(repo repository.Repository, auditLogger audit.Logger) *Registry {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Registry{repo: repo, audit: auditLogger}
}

// pairKey sorts the two ids lexicographically so the relation is symmetric
// regardless of argument order.
func pairKey(entityType types.EntityType, idA, idB string) (low, high, key string) {
	low, high = idA, idB
	if high < low {
		low, high = high, low
	}
	return low, high, fmt.Sprintf("%s|%s|%s", entityType, low, high)
}

// Mark records that the pair is not a duplicate. Idempotent: re-marking
// overwrites the reason without duplicating storage.
func (r *Registry) Mark(ctx context.Context, entityType types.EntityType, idA, idB, reason string) error {
	if !entityType.IsValid() {
		return &types.ValidationError{Field: "entityType", Msg: fmt.Sprintf("unknown entity type %q", entityType)}
	}
	if idA == "" || idB == "" {
		return &types.ValidationError{Field: "id", Msg: "both record ids are required"}
	}
	if idA == idB {
		return &types.ValidationError{Field: "id", Msg: "cannot exclude a record against itself"}
	}

	low, high, key := pairKey(entityType, idA, idB)

	createdAt := time.Now().UTC()
	if existing, err := r.repo.Get(ctx, types.CollectionExclusions, key); err == nil {
		if s, ok := existing.Fields["createdAt"].(string); ok {
			if parsed, perr := time.Parse(time.RFC3339Nano, s); perr == nil {
				createdAt = parsed
			}
		}
	} else if !errors.Is(err, types.ErrNotFound) {
		return err
	}

	fields := map[string]interface{}{
		"entityType": string(entityType),
		"idLow":      low,
		"idHigh":     high,
		"reason":     reason,
		"createdAt":  createdAt.Format(time.RFC3339Nano),
	}
	if err := r.repo.Put(ctx, types.CollectionExclusions, key, fields, repository.ModeOverwrite); err != nil {
		return err
	}
	r.audit.Record(ctx, audit.Entry{
		EntityLabel: "Exclusion",
		Collection:  types.CollectionExclusions,
		DocumentID:  key,
		After:       fields,
		Origin:      "markNotDuplicate",
	})
	return nil
}

// IsExcluded reports whether the pair has been marked "not a duplicate".
func (r *Registry) IsExcluded(ctx context.Context, entityType types.EntityType, idA, idB string) (bool, error) {
	_, _, key := pairKey(entityType, idA, idB)
	_, err := r.repo.Get(ctx, types.CollectionExclusions, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// List returns all exclusions for one entity type, for operator review.
func (r *Registry) List(ctx context.Context, entityType types.EntityType) ([]Exclusion, error) {
	set, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []Exclusion
	for _, e := range set.all {
		if e.EntityType == entityType {
			out = append(out, e)
		}
	}
	return out, nil
}

// Load reads the full exclusion collection into an in-memory set so a scan
// does one read instead of one lookup per compared pair.
func (r *Registry) Load(ctx context.Context) (*ExclusionSet, error) {
	return r.load(ctx)
}

func (r *Registry) load(ctx context.Context) (*ExclusionSet, error) {
	docs, err := r.repo.List(ctx, types.CollectionExclusions)
	if err != nil {
		return nil, err
	}
	set := &ExclusionSet{pairs: make(map[string]struct{}, len(docs))}
	for _, doc := range docs {
		e := Exclusion{
			EntityType: types.EntityType(docString(doc.Fields, "entityType")),
			IDLow:      docString(doc.Fields, "idLow"),
			IDHigh:     docString(doc.Fields, "idHigh"),
			Reason:     docString(doc.Fields, "reason"),
		}
		if s := docString(doc.Fields, "createdAt"); s != "" {
			if parsed, perr := time.Parse(time.RFC3339Nano, s); perr == nil {
				e.CreatedAt = parsed
			}
		}
		if e.EntityType == "" || e.IDLow == "" || e.IDHigh == "" {
			continue
		}
		_, _, key := pairKey(e.EntityType, e.IDLow, e.IDHigh)
		set.pairs[key] = struct{}{}
		set.all = append(set.all, e)
	}
	return set, nil
}

// ExclusionSet is an immutable in-memory view of the exclusion collection.
type ExclusionSet struct {
	pairs map[string]struct{}
	all   []Exclusion
}

// Contains answers the symmetric pair lookup.
func (s *ExclusionSet) Contains(entityType types.EntityType, idA, idB string) bool {
	if s == nil {
		return false
	}
	_, _, key := pairKey(entityType, idA, idB)
	_, ok := s.pairs[key]
	return ok
}

func docString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
