// Package repository provides the document store the reconciliation engine
// reads and writes. Three backends share one interface: an in-memory store
// for tests and dry runs, SQLite for single-operator installs, and Postgres
// for shared deployments.
package repository

import (
	"context"
	"fmt"
)

// WriteMode selects how Put treats fields already on the document.
type WriteMode string

const (
	// ModeOverwrite replaces the whole document with the given fields.
	ModeOverwrite WriteMode = "overwrite"
	// ModeMerge updates only the given fields, leaving others intact.
	// Reconciliation writes always use merge mode so fields not loaded in
	// the current pass are never clobbered.
	ModeMerge WriteMode = "merge"
)

// MaxBatchSize caps the number of mutations in a single BatchWrite.
// Larger plans must be split into chunks by the caller.
const MaxBatchSize = 500

// Document is a raw stored record: an opaque id plus a field map.
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// Mutation is one entry in a batched write. Delete=true removes the
// document; otherwise Fields are written with the given Mode.
type Mutation struct {
	Collection string
	ID         string
	Fields     map[string]interface{}
	Mode       WriteMode
	Delete     bool
}

// Repository is the document store interface. A batch either fully commits
// or fully fails; there is no partial commit within one BatchWrite call.
type Repository interface {
	List(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	Put(ctx context.Context, collection, id string, fields map[string]interface{}, mode WriteMode) error
	Delete(ctx context.Context, collection, id string) error
	BatchWrite(ctx context.Context, mutations []Mutation) error
	Close() error
}

func validateBatch(mutations []Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	if len(mutations) > MaxBatchSize {
		return fmt.Errorf("batch of %d mutations exceeds cap of %d", len(mutations), MaxBatchSize)
	}
	for i, m := range mutations {
		if m.Collection == "" || m.ID == "" {
			return fmt.Errorf("mutation %d: collection and id are required", i)
		}
		if !m.Delete && m.Mode != ModeOverwrite && m.Mode != ModeMerge {
			return fmt.Errorf("mutation %d: invalid write mode %q", i, m.Mode)
		}
	}
	return nil
}

// mergeFields overlays updates onto existing, returning a fresh map.
func mergeFields(existing, updates map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(existing)+len(updates))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if vs, ok := v.([]string); ok {
			cp := make([]string, len(vs))
			copy(cp, vs)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
