// Package engine is the call surface the presentation layer consumes. It
// wires the detector, merge resolver, orphan scanner, plan pipeline, and
// health scorer over one document repository.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/acadix/reconcile/internal/audit"
	"github.com/acadix/reconcile/internal/config"
	"github.com/acadix/reconcile/internal/dedup"
	"github.com/acadix/reconcile/internal/health"
	"github.com/acadix/reconcile/internal/merge"
	"github.com/acadix/reconcile/internal/plan"
	"github.com/acadix/reconcile/internal/refgraph"
	"github.com/acadix/reconcile/internal/repository"
	"github.com/acadix/reconcile/internal/types"
)

// Engine bundles the reconciliation operations.
type Engine struct {
	repo     repository.Repository
	registry *dedup.Registry
	detector *dedup.Detector
	resolver *merge.Resolver
	applier  *plan.Applier
	audit    audit.Logger
	log      *zap.Logger
}

// New builds an engine over the given repository using the config's
// thresholds and pacing.
func New(repo repository.Repository, cfg *config.Config, log *zap.Logger) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	auditLogger := audit.NewRepoLogger(repo, log)

	var limiter *rate.Limiter
	if cfg.Apply.WritesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Apply.WritesPerSecond), cfg.Apply.Burst)
	}

	scorer := similarityScorer(cfg)
	return &Engine{
		repo:     repo,
		registry: dedup.NewRegistry(repo, auditLogger),
		detector: dedup.NewDetector(scorer, cfg.Floors()),
		resolver: merge.NewResolver(repo, auditLogger, log),
		applier:  plan.NewApplier(repo, auditLogger, log, limiter),
		audit:    auditLogger,
		log:      log,
	}
}

// ScanDuplicates loads a fresh snapshot and returns ranked duplicate
// candidates for one entity type, with excluded pairs suppressed.
func (e *Engine) ScanDuplicates(ctx context.Context, entityType types.EntityType) ([]types.DuplicateCandidate, error) {
	if !entityType.IsValid() {
		return nil, &types.ValidationError{Field: "entityType", Msg: fmt.Sprintf("unknown entity type %q", entityType)}
	}
	snap, err := e.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	exclusions, err := e.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	return e.detector.Scan(snap, entityType, exclusions)
}

// MarkNotDuplicate persists an operator's "not a duplicate" decision.
func (e *Engine) MarkNotDuplicate(ctx context.Context, entityType types.EntityType, idA, idB, reason string) error {
	return e.registry.Mark(ctx, entityType, idA, idB, reason)
}

// Exclusions lists the persisted decisions for one entity type.
func (e *Engine) Exclusions(ctx context.Context, entityType types.EntityType) ([]dedup.Exclusion, error) {
	return e.registry.List(ctx, entityType)
}

// MergeRecords merges the secondary record into the primary.
func (e *Engine) MergeRecords(ctx context.Context, entityType types.EntityType, primaryID, secondaryID string, opts *merge.Options) error {
	return e.resolver.Merge(ctx, entityType, primaryID, secondaryID, opts)
}

// MergeMany merges a batch of candidates, collecting per-pair failures
// without aborting the siblings.
func (e *Engine) MergeMany(ctx context.Context, candidates []types.DuplicateCandidate) *types.BatchResult {
	result := &types.BatchResult{}
	for _, cand := range candidates {
		err := e.resolver.Merge(ctx, cand.Type, cand.Primary.RecordID(), cand.Secondary.RecordID(), nil)
		if err != nil {
			result.AddError(fmt.Errorf("%s/%s + %s: %w", cand.Type, cand.Primary.RecordID(), cand.Secondary.RecordID(), err))
			continue
		}
		result.Succeeded++
	}
	return result
}

// FindOrphaned scans for orphaned records relative to the scope.
func (e *Engine) FindOrphaned(ctx context.Context, scope refgraph.Scope) ([]types.OrphanIssue, error) {
	snap, err := e.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return refgraph.Detect(snap, scope), nil
}

// CleanupOrphans removes structurally orphaned records found under the
// scope: spaces are soft-deleted (isActive=false, retained for audit),
// people are deleted. Scope-orphans are never touched. Reference counts
// are re-checked against the live snapshot right before each removal;
// a record that picked up a reference since the scan is refused with a
// ReferenceIntegrityError rather than deleted.
func (e *Engine) CleanupOrphans(ctx context.Context, scope refgraph.Scope) (*types.BatchResult, error) {
	snap, err := e.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	candidates := refgraph.DeletionCandidates(refgraph.Detect(snap, scope))
	counts := refgraph.BuildCounts(snap, refgraph.Scope{})

	result := &types.BatchResult{}
	for _, issue := range candidates {
		switch issue.Type {
		case types.OrphanedSpace:
			id := issue.Record.RecordID()
			if n := counts.SpaceTotal[id]; n > 0 {
				result.AddError(&types.ReferenceIntegrityError{Collection: types.CollectionRooms, ID: id, RefCount: n})
				continue
			}
			update := map[string]interface{}{"isActive": false}
			if err := e.repo.Put(ctx, types.CollectionRooms, id, update, repository.ModeMerge); err != nil {
				result.AddError(err)
				continue
			}
			e.audit.Record(ctx, audit.Entry{
				EntityLabel: "Space",
				Collection:  types.CollectionRooms,
				DocumentID:  id,
				After:       update,
				Origin:      "cleanupOrphans",
			})
			result.Succeeded++
		case types.OrphanedPerson:
			id := issue.Record.RecordID()
			if n := counts.PersonTotal[id]; n > 0 {
				result.AddError(&types.ReferenceIntegrityError{Collection: types.CollectionPeople, ID: id, RefCount: n})
				continue
			}
			if err := e.repo.Delete(ctx, types.CollectionPeople, id); err != nil {
				result.AddError(err)
				continue
			}
			e.audit.Record(ctx, audit.Entry{
				EntityLabel: "Person",
				Collection:  types.CollectionPeople,
				DocumentID:  id,
				Before:      issue.Record.FieldMap(),
				Origin:      "cleanupOrphans",
			})
			result.Succeeded++
		default:
			// Dangling schedules are reported, never auto-deleted.
		}
	}
	return result, nil
}

// BuildPlan runs one backfill task's diff over a fresh snapshot.
func (e *Engine) BuildPlan(ctx context.Context, task plan.Task, scope refgraph.Scope) (*plan.Plan, error) {
	snap, err := e.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return plan.Build(task, snap, scope)
}

// ApplyPlan commits a dependency-closed selection of plan changes.
func (e *Engine) ApplyPlan(ctx context.Context, p *plan.Plan, selectedIDs []string) (*plan.ApplyResult, error) {
	return e.applier.Apply(ctx, p, selectedIDs)
}

// HealthReport scans all three entity types plus orphans and aggregates
// the findings into one score.
func (e *Engine) HealthReport(ctx context.Context) (*types.HealthReport, error) {
	snap, err := e.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	exclusions, err := e.registry.Load(ctx)
	if err != nil {
		return nil, err
	}

	var duplicates []types.DuplicateCandidate
	for _, entityType := range []types.EntityType{types.EntityPerson, types.EntitySection, types.EntitySpace} {
		found, err := e.detector.Scan(snap, entityType, exclusions)
		if err != nil {
			return nil, err
		}
		duplicates = append(duplicates, found...)
	}

	orphans := refgraph.Detect(snap, refgraph.Scope{})
	return health.BuildReport(snap, duplicates, orphans), nil
}
