package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadix/reconcile/internal/repository"
	"github.com/acadix/reconcile/internal/types"
)

func TestMarkIsSymmetric(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(repository.NewMemory(), nil)

	require.NoError(t, registry.Mark(ctx, types.EntityPerson, "b", "a", "reviewed"))

	got, err := registry.IsExcluded(ctx, types.EntityPerson, "a", "b")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = registry.IsExcluded(ctx, types.EntityPerson, "b", "a")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestMarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	registry := NewRegistry(repo, nil)

	require.NoError(t, registry.Mark(ctx, types.EntityPerson, "a", "b", "first reason"))
	require.NoError(t, registry.Mark(ctx, types.EntityPerson, "b", "a", "second reason"))

	docs, err := repo.List(ctx, types.CollectionExclusions)
	require.NoError(t, err)
	require.Len(t, docs, 1, "re-marking must not duplicate storage")
	assert.Equal(t, "second reason", docs[0].Fields["reason"])
	assert.Equal(t, "a", docs[0].Fields["idLow"])
	assert.Equal(t, "b", docs[0].Fields["idHigh"])
}

func TestMarkPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	registry := NewRegistry(repo, nil)

	require.NoError(t, registry.Mark(ctx, types.EntityPerson, "a", "b", "first"))
	docs, err := repo.List(ctx, types.CollectionExclusions)
	require.NoError(t, err)
	created := docs[0].Fields["createdAt"]

	require.NoError(t, registry.Mark(ctx, types.EntityPerson, "a", "b", "second"))
	docs, err = repo.List(ctx, types.CollectionExclusions)
	require.NoError(t, err)
	assert.Equal(t, created, docs[0].Fields["createdAt"])
}

func TestMarkValidation(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(repository.NewMemory(), nil)

	var valErr *types.ValidationError

	err := registry.Mark(ctx, "course", "a", "b", "")
	require.ErrorAs(t, err, &valErr)

	err = registry.Mark(ctx, types.EntityPerson, "a", "", "")
	require.ErrorAs(t, err, &valErr)

	err = registry.Mark(ctx, types.EntityPerson, "a", "a", "")
	require.ErrorAs(t, err, &valErr)
}

func TestDifferentEntityTypesAreSeparate(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(repository.NewMemory(), nil)

	require.NoError(t, registry.Mark(ctx, types.EntityPerson, "a", "b", ""))

	got, err := registry.IsExcluded(ctx, types.EntitySpace, "a", "b")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestListFiltersByType(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(repository.NewMemory(), nil)

	require.NoError(t, registry.Mark(ctx, types.EntityPerson, "a", "b", "people"))
	require.NoError(t, registry.Mark(ctx, types.EntitySpace, "r1", "r2", "rooms"))

	people, err := registry.List(ctx, types.EntityPerson)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "people", people[0].Reason)
	assert.False(t, people[0].CreatedAt.IsZero())
}
