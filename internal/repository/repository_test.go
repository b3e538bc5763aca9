package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadix/reconcile/internal/types"
)

// Both backends that can run without external services share one behavior
// suite; Postgres is covered by the same semantics but needs a live server.
func backends(t *testing.T) map[string]Repository {
	t.Helper()
	sq, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Repository{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fields := map[string]interface{}{"firstName": "Jane", "lastName": "Smith"}
			require.NoError(t, repo.Put(ctx, "people", "p1", fields, ModeOverwrite))

			doc, err := repo.Get(ctx, "people", "p1")
			require.NoError(t, err)
			assert.Equal(t, "p1", doc.ID)
			assert.Equal(t, "Jane", doc.Fields["firstName"])
		})
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Get(ctx, "people", "nope")
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrNotFound))

			var repoErr *types.RepositoryError
			require.True(t, errors.As(err, &repoErr))
			assert.Equal(t, "get", repoErr.Op)
		})
	}
}

func TestMergeModePreservesUnwrittenFields(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Put(ctx, "rooms", "r1", map[string]interface{}{
				"buildingCode": "MCF",
				"spaceNumber":  "101",
				"name":         "Lecture Hall",
			}, ModeOverwrite))

			// Merge-mode write touching only spaceKey must not clobber name.
			require.NoError(t, repo.Put(ctx, "rooms", "r1", map[string]interface{}{
				"spaceKey": "MCF:101",
			}, ModeMerge))

			doc, err := repo.Get(ctx, "rooms", "r1")
			require.NoError(t, err)
			assert.Equal(t, "Lecture Hall", doc.Fields["name"])
			assert.Equal(t, "MCF:101", doc.Fields["spaceKey"])
		})
	}
}

func TestOverwriteModeReplacesDocument(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Put(ctx, "rooms", "r1", map[string]interface{}{
				"buildingCode": "MCF", "name": "Old",
			}, ModeOverwrite))
			require.NoError(t, repo.Put(ctx, "rooms", "r1", map[string]interface{}{
				"buildingCode": "MCF",
			}, ModeOverwrite))

			doc, err := repo.Get(ctx, "rooms", "r1")
			require.NoError(t, err)
			_, hasName := doc.Fields["name"]
			assert.False(t, hasName, "overwrite should drop fields not in the new document")
		})
	}
}

func TestListIsSortedByID(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"c", "a", "b"} {
				require.NoError(t, repo.Put(ctx, "people", id, map[string]interface{}{"lastName": id}, ModeOverwrite))
			}
			docs, err := repo.List(ctx, "people")
			require.NoError(t, err)
			require.Len(t, docs, 3)
			assert.Equal(t, []string{"a", "b", "c"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
		})
	}
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := repo.Delete(ctx, "people", "ghost")
			assert.True(t, errors.Is(err, types.ErrNotFound))
		})
	}
}

func TestBatchWriteMixedMutations(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Put(ctx, "people", "old", map[string]interface{}{"lastName": "Gone"}, ModeOverwrite))

			err := repo.BatchWrite(ctx, []Mutation{
				{Collection: "people", ID: "p1", Fields: map[string]interface{}{"lastName": "Ng"}, Mode: ModeOverwrite},
				{Collection: "people", ID: "p1", Fields: map[string]interface{}{"firstName": "Ada"}, Mode: ModeMerge},
				{Collection: "people", ID: "old", Delete: true},
			})
			require.NoError(t, err)

			doc, err := repo.Get(ctx, "people", "p1")
			require.NoError(t, err)
			assert.Equal(t, "Ng", doc.Fields["lastName"])
			assert.Equal(t, "Ada", doc.Fields["firstName"])

			_, err = repo.Get(ctx, "people", "old")
			assert.True(t, errors.Is(err, types.ErrNotFound))
		})
	}
}

func TestBatchWriteRejectsOversizedBatch(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			muts := make([]Mutation, MaxBatchSize+1)
			for i := range muts {
				muts[i] = Mutation{
					Collection: "people",
					ID:         fmt.Sprintf("p%d", i),
					Fields:     map[string]interface{}{"n": i},
					Mode:       ModeOverwrite,
				}
			}
			err := repo.BatchWrite(ctx, muts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "exceeds cap")
		})
	}
}

func TestBatchWriteValidatesMutations(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := repo.BatchWrite(ctx, []Mutation{{Collection: "", ID: "x"}})
			require.Error(t, err)

			err = repo.BatchWrite(ctx, []Mutation{{Collection: "people", ID: "x", Mode: "upsert"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid write mode")
		})
	}
}

func TestMemoryReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	require.NoError(t, repo.Put(ctx, "schedules", "s1", map[string]interface{}{
		"spaceIds": []string{"r1"},
	}, ModeOverwrite))

	doc, err := repo.Get(ctx, "schedules", "s1")
	require.NoError(t, err)
	doc.Fields["spaceIds"].([]string)[0] = "mutated"

	again, err := repo.Get(ctx, "schedules", "s1")
	require.NoError(t, err)
	assert.Equal(t, "r1", again.Fields["spaceIds"].([]string)[0])
}
