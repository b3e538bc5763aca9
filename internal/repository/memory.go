package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/acadix/reconcile/internal/types"
)

// Memory is an in-process Repository used by tests and dry-run previews.
// All reads return copies so callers can treat results as snapshots.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]map[string]interface{})}
}

func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll := m.collections[collection]
	docs := make([]Document, 0, len(coll))
	for id, fields := range coll {
		docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
	}
	// Stable order keeps downstream analyses deterministic.
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.collections[collection][id]
	if !ok {
		return nil, &types.RepositoryError{Op: "get", Collection: collection, ID: id, Err: types.ErrNotFound}
	}
	return &Document{ID: id, Fields: copyFields(fields)}, nil
}

func (m *Memory) Put(ctx context.Context, collection, id string, fields map[string]interface{}, mode WriteMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, id, fields, mode)
	return nil
}

func (m *Memory) put(collection, id string, fields map[string]interface{}, mode WriteMode) {
	coll := m.collections[collection]
	if coll == nil {
		coll = make(map[string]map[string]interface{})
		m.collections[collection] = coll
	}
	if mode == ModeMerge {
		if existing, ok := coll[id]; ok {
			coll[id] = mergeFields(existing, copyFields(fields))
			return
		}
	}
	coll[id] = copyFields(fields)
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return &types.RepositoryError{Op: "delete", Collection: collection, ID: id, Err: types.ErrNotFound}
	}
	delete(m.collections[collection], id)
	return nil
}

// BatchWrite applies all mutations under one lock so the batch is atomic
// with respect to concurrent readers.
func (m *Memory) BatchWrite(ctx context.Context, mutations []Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateBatch(mutations); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mut := range mutations {
		if mut.Delete {
			delete(m.collections[mut.Collection], mut.ID)
			continue
		}
		m.put(mut.Collection, mut.ID, mut.Fields, mut.Mode)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
