package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/acadix/reconcile/internal/config"
	"github.com/acadix/reconcile/internal/similarity"
	"github.com/acadix/reconcile/internal/types"
)

// LoadSnapshot reads all three entity collections and normalizes them
// into canonical structs. The three reads run concurrently; everything
// downstream works on the returned snapshot, so one operation sees one
// consistent view of the data.
func (e *Engine) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	snap := &types.Snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		docs, err := e.repo.List(gctx, types.CollectionPeople)
		if err != nil {
			return err
		}
		snap.People = make([]*types.Person, 0, len(docs))
		for _, doc := range docs {
			snap.People = append(snap.People, types.NormalizePerson(doc.ID, doc.Fields))
		}
		return nil
	})
	g.Go(func() error {
		docs, err := e.repo.List(gctx, types.CollectionSchedules)
		if err != nil {
			return err
		}
		snap.Sections = make([]*types.Section, 0, len(docs))
		for _, doc := range docs {
			snap.Sections = append(snap.Sections, types.NormalizeSection(doc.ID, doc.Fields))
		}
		return nil
	})
	g.Go(func() error {
		docs, err := e.repo.List(gctx, types.CollectionRooms)
		if err != nil {
			return err
		}
		snap.Spaces = make([]*types.Space, 0, len(docs))
		for _, doc := range docs {
			snap.Spaces = append(snap.Spaces, types.NormalizeSpace(doc.ID, doc.Fields))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func similarityScorer(cfg *config.Config) *similarity.Scorer {
	return similarity.NewScorer(cfg.ScoringPolicy())
}
