// Package merge collapses a confirmed duplicate pair into a single
// survivor. Ordering is fixed: write merged fields to the survivor,
// rewrite inbound references, then delete the loser. Any failure before
// the delete aborts the merge with the loser still intact.
package merge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/acadix/reconcile/internal/audit"
	"github.com/acadix/reconcile/internal/repository"
	"github.com/acadix/reconcile/internal/types"
)

// Side names which record a field override takes its value from.
type Side string

const (
	SidePrimary   Side = "primary"
	SideSecondary Side = "secondary"
)

// Options tunes a single merge.
type Options struct {
	// Overrides forces specific fields to come from one side. Referencing
	// a field present on neither record is a validation error.
	Overrides map[string]Side
	// Conflicts decides non-overridden fields that are non-empty on both
	// sides. The survivor (primary) wins by default; this is an explicit
	// policy choice, not an accident of iteration order.
	Conflicts Side
}

// Resolver performs merges against the document repository.
type Resolver struct {
	repo  repository.Repository
	audit audit.Logger
	log   *zap.Logger
}

// NewResolver creates a merge resolver.
func NewResolver(repo repository.Repository, auditLogger audit.Logger, log *zap.Logger) *Resolver {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{repo: repo, audit: auditLogger, log: log}
}

// Merge merges secondaryID into primaryID for the given entity type.
// Both documents are re-fetched first, so merging against an already
// deleted loser fails cleanly with a not-found error instead of
// corrupting the survivor.
func (r *Resolver) Merge(ctx context.Context, entityType types.EntityType, primaryID, secondaryID string, opts *Options) error {
	if primaryID == "" || secondaryID == "" {
		return &types.ValidationError{Field: "id", Msg: "primary and secondary ids are required"}
	}
	if primaryID == secondaryID {
		return &types.ValidationError{Field: "id", Msg: "cannot merge a record into itself"}
	}
	collection, err := types.CollectionFor(entityType)
	if err != nil {
		return &types.ValidationError{Field: "entityType", Msg: err.Error()}
	}
	if opts == nil {
		opts = &Options{}
	}
	if opts.Conflicts == "" {
		opts.Conflicts = SidePrimary
	}
	if opts.Conflicts != SidePrimary && opts.Conflicts != SideSecondary {
		return &types.ValidationError{Field: "conflicts", Msg: fmt.Sprintf("unknown conflict policy %q", opts.Conflicts)}
	}

	primaryDoc, err := r.repo.Get(ctx, collection, primaryID)
	if err != nil {
		return err
	}
	secondaryDoc, err := r.repo.Get(ctx, collection, secondaryID)
	if err != nil {
		return err
	}

	primaryFields := canonicalFields(entityType, primaryDoc)
	secondaryFields := canonicalFields(entityType, secondaryDoc)

	if err := validateOverrides(opts.Overrides, primaryFields, secondaryFields); err != nil {
		return err
	}

	merged := resolveFields(primaryFields, secondaryFields, opts)

	// Merge metadata rides on the survivor for audit trails.
	merged["mergedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	merged["mergedFrom"] = appendMergedFrom(primaryDoc.Fields, secondaryID)

	// Step 1: merge-mode write so fields not loaded in this pass survive.
	if err := r.repo.Put(ctx, collection, primaryID, merged, repository.ModeMerge); err != nil {
		return fmt.Errorf("merge write failed, loser retained: %w", err)
	}
	r.audit.Record(ctx, audit.Entry{
		EntityLabel: label(entityType),
		Collection:  collection,
		DocumentID:  primaryID,
		After:       merged,
		Before:      primaryDoc.Fields,
		Origin:      "mergeRecords",
	})

	// Step 2: repoint every inbound reference from loser to survivor.
	if err := r.rewriteReferences(ctx, entityType, secondaryID, primaryID); err != nil {
		return fmt.Errorf("reference rewrite failed, loser retained: %w", err)
	}

	// Step 3: only now is the loser safe to remove.
	if err := r.repo.Delete(ctx, collection, secondaryID); err != nil {
		return err
	}
	r.audit.Record(ctx, audit.Entry{
		EntityLabel: label(entityType),
		Collection:  collection,
		DocumentID:  secondaryID,
		Before:      secondaryDoc.Fields,
		Origin:      "mergeRecords",
	})

	r.log.Info("merged records",
		zap.String("entityType", string(entityType)),
		zap.String("survivor", primaryID),
		zap.String("removed", secondaryID))
	return nil
}

// rewriteReferences fans out to the collections that can cite the loser's
// id and repoints them at the survivor. Small explicit writes, not a
// cascade delete.
func (r *Resolver) rewriteReferences(ctx context.Context, entityType types.EntityType, fromID, toID string) error {
	switch entityType {
	case types.EntitySpace:
		if err := r.rewriteSectionLists(ctx, "spaceIds", fromID, toID); err != nil {
			return err
		}
		return r.rewritePersonOffices(ctx, fromID, toID)
	case types.EntityPerson:
		return r.rewriteSectionLists(ctx, "instructorIds", fromID, toID)
	case types.EntitySection:
		// Nothing references sections.
		return nil
	}
	return nil
}

func (r *Resolver) rewriteSectionLists(ctx context.Context, field, fromID, toID string) error {
	docs, err := r.repo.List(ctx, types.CollectionSchedules)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		section := types.NormalizeSection(doc.ID, doc.Fields)
		var current []string
		switch field {
		case "spaceIds":
			current = section.SpaceIDs
		case "instructorIds":
			current = section.InstructorIDs
		}
		rewritten, changed := replaceID(current, fromID, toID)
		if !changed {
			continue
		}
		update := map[string]interface{}{field: rewritten}
		if err := r.repo.Put(ctx, types.CollectionSchedules, doc.ID, update, repository.ModeMerge); err != nil {
			return err
		}
		r.audit.Record(ctx, audit.Entry{
			EntityLabel: "Section",
			Collection:  types.CollectionSchedules,
			DocumentID:  doc.ID,
			After:       update,
			Before:      map[string]interface{}{field: current},
			Origin:      "mergeRecords",
		})
	}
	return nil
}

func (r *Resolver) rewritePersonOffices(ctx context.Context, fromID, toID string) error {
	docs, err := r.repo.List(ctx, types.CollectionPeople)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		person := types.NormalizePerson(doc.ID, doc.Fields)
		if person.OfficeSpaceID != fromID {
			continue
		}
		update := map[string]interface{}{"officeSpaceId": toID}
		if err := r.repo.Put(ctx, types.CollectionPeople, doc.ID, update, repository.ModeMerge); err != nil {
			return err
		}
		r.audit.Record(ctx, audit.Entry{
			EntityLabel: "Person",
			Collection:  types.CollectionPeople,
			DocumentID:  doc.ID,
			After:       update,
			Before:      map[string]interface{}{"officeSpaceId": fromID},
			Origin:      "mergeRecords",
		})
	}
	return nil
}

// resolveFields computes the merged field set over the union of both
// sides' canonical fields.
func resolveFields(primary, secondary map[string]interface{}, opts *Options) map[string]interface{} {
	merged := make(map[string]interface{}, len(primary)+len(secondary))

	for field := range union(primary, secondary) {
		if side, ok := opts.Overrides[field]; ok {
			if v, present := pick(side, primary, secondary, field); present {
				merged[field] = v
			}
			continue
		}
		pv, pOK := primary[field]
		sv, sOK := secondary[field]
		switch {
		case pOK && sOK:
			if opts.Conflicts == SideSecondary {
				merged[field] = sv
			} else {
				merged[field] = pv
			}
		case pOK:
			merged[field] = pv
		case sOK:
			merged[field] = sv
		}
	}
	return merged
}

func validateOverrides(overrides map[string]Side, primary, secondary map[string]interface{}) error {
	for field, side := range overrides {
		if side != SidePrimary && side != SideSecondary {
			return &types.ValidationError{Field: field, Msg: fmt.Sprintf("override side must be %q or %q, got %q", SidePrimary, SideSecondary, side)}
		}
		_, onPrimary := primary[field]
		_, onSecondary := secondary[field]
		if !onPrimary && !onSecondary {
			return &types.ValidationError{Field: field, Msg: "override references a field present on neither record"}
		}
	}
	return nil
}

func pick(side Side, primary, secondary map[string]interface{}, field string) (interface{}, bool) {
	first, second := secondary, primary
	if side == SidePrimary {
		first, second = primary, secondary
	}
	if v, ok := first[field]; ok {
		return v, true
	}
	if v, ok := second[field]; ok {
		return v, true
	}
	return nil, false
}

func canonicalFields(entityType types.EntityType, doc *repository.Document) map[string]interface{} {
	switch entityType {
	case types.EntityPerson:
		return types.NormalizePerson(doc.ID, doc.Fields).FieldMap()
	case types.EntitySection:
		return types.NormalizeSection(doc.ID, doc.Fields).FieldMap()
	case types.EntitySpace:
		return types.NormalizeSpace(doc.ID, doc.Fields).FieldMap()
	}
	return doc.Fields
}

func appendMergedFrom(primaryFields map[string]interface{}, secondaryID string) []string {
	var history []string
	switch prior := primaryFields["mergedFrom"].(type) {
	case []string:
		history = append(history, prior...)
	case []interface{}:
		for _, v := range prior {
			if s, ok := v.(string); ok {
				history = append(history, s)
			}
		}
	}
	return append(history, secondaryID)
}

func replaceID(ids []string, fromID, toID string) ([]string, bool) {
	if len(ids) == 0 {
		return ids, false
	}
	changed := false
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == fromID {
			id = toID
			changed = true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, changed
}

func union(a, b map[string]interface{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func label(entityType types.EntityType) string {
	switch entityType {
	case types.EntityPerson:
		return "Person"
	case types.EntitySection:
		return "Section"
	case types.EntitySpace:
		return "Space"
	}
	return string(entityType)
}
