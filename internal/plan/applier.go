package plan

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/acadix/reconcile/internal/audit"
	"github.com/acadix/reconcile/internal/repository"
	"github.com/acadix/reconcile/internal/types"
)

// ApplyResult reports per-node outcomes for one plan application.
type ApplyResult struct {
	Applied    int
	Blocked    int
	Failed     int
	AppliedIDs []string
	BlockedIDs []string
	FailedIDs  []string
	Errors     []string

	// Chunk accounting: a plan larger than the repository batch cap is
	// committed in chunks; partial completion across chunks is possible
	// and re-running the remainder is safe (writes are idempotent).
	CommittedChunks int
	FailedChunks    int
}

// Applier commits a dependency-closed selection of plan changes.
type Applier struct {
	repo    repository.Repository
	audit   audit.Logger
	log     *zap.Logger
	limiter *rate.Limiter
}

// NewApplier creates an applier. limiter paces chunk commits against the
// document store; nil means no pacing.
func NewApplier(repo repository.Repository, auditLogger audit.Logger, log *zap.Logger, limiter *rate.Limiter) *Applier {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Applier{repo: repo, audit: auditLogger, log: log, limiter: limiter}
}

// Apply expands selectedIDs to a dependency-closed set (selecting a change
// pulls in its transitive dependsOn ancestors), then commits the selection
// in dependency order. A change whose dependency failed is reported as
// blocked and never applied. An empty selectedIDs selects the whole plan.
func (a *Applier) Apply(ctx context.Context, p *Plan, selectedIDs []string) (*ApplyResult, error) {
	graph, err := NewGraph(p.Changes)
	if err != nil {
		return nil, err
	}

	for _, id := range selectedIDs {
		if _, ok := graph.Change(id); !ok {
			return nil, &types.ValidationError{Field: "selectedIds", Msg: fmt.Sprintf("unknown change id %q", id)}
		}
	}

	selected := graph.ForwardClosure(selectedIDs...)
	if len(selectedIDs) == 0 {
		selected = graph.ForwardClosure(allIDs(p.Changes)...)
	}

	result := &ApplyResult{}
	failed := make(map[string]bool)
	blocked := make(map[string]bool)
	pending := make(map[string]bool)

	var chunk []*Change
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		if err := a.commitChunk(ctx, p, chunk); err != nil {
			result.FailedChunks++
			result.Errors = append(result.Errors, err.Error())
			for _, c := range chunk {
				failed[c.ID] = true
				result.Failed++
				result.FailedIDs = append(result.FailedIDs, c.ID)
			}
		} else {
			result.CommittedChunks++
			for _, c := range chunk {
				result.Applied++
				result.AppliedIDs = append(result.AppliedIDs, c.ID)
				a.audit.Record(ctx, audit.Entry{
					EntityLabel: string(p.Task),
					Collection:  c.Collection,
					DocumentID:  c.DocumentID,
					After:       c.Data,
					Before:      c.Before,
					Origin:      "applyPlan",
				})
			}
		}
		chunk = chunk[:0]
		pending = make(map[string]bool)
	}

	for _, id := range graph.TopoOrder() {
		if !selected[id] {
			continue
		}
		change, _ := graph.Change(id)

		// A dependent only commits once its dependencies' outcome is
		// final, so flush any dependency still sitting in the open chunk.
		for _, dep := range change.DependsOn {
			if pending[dep] {
				flush()
				break
			}
		}

		if dep, bad := firstBadDependency(change, failed, blocked); bad {
			blocked[id] = true
			result.Blocked++
			result.BlockedIDs = append(result.BlockedIDs, id)
			result.Errors = append(result.Errors, (&types.DependencyBlockedError{ChangeID: id, BlockedOn: dep}).Error())
			continue
		}

		chunk = append(chunk, change)
		pending[id] = true
		if len(chunk) == repository.MaxBatchSize {
			flush()
		}
	}
	flush()

	a.log.Info("plan applied",
		zap.String("task", string(p.Task)),
		zap.Int("applied", result.Applied),
		zap.Int("blocked", result.Blocked),
		zap.Int("failed", result.Failed),
		zap.Int("chunks", result.CommittedChunks+result.FailedChunks))
	return result, nil
}

func (a *Applier) commitChunk(ctx context.Context, p *Plan, chunk []*Change) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	mutations := make([]repository.Mutation, 0, len(chunk))
	for _, c := range chunk {
		// Both actions write merge-mode: re-applying an already-applied
		// change is a no-op diff, which keeps interrupted plans
		// re-runnable. Upsert differs only in that the document may not
		// exist yet.
		mutations = append(mutations, repository.Mutation{
			Collection: c.Collection,
			ID:         c.DocumentID,
			Fields:     c.Data,
			Mode:       repository.ModeMerge,
		})
	}
	if err := a.repo.BatchWrite(ctx, mutations); err != nil {
		return fmt.Errorf("chunk of %d change(s) failed: %w", len(chunk), err)
	}
	return nil
}

func firstBadDependency(c *Change, failed, blocked map[string]bool) (string, bool) {
	for _, dep := range c.DependsOn {
		if failed[dep] || blocked[dep] {
			return dep, true
		}
	}
	return "", false
}

func allIDs(changes []Change) []string {
	ids := make([]string, len(changes))
	for i := range changes {
		ids[i] = changes[i].ID
	}
	return ids
}
