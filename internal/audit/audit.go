// Package audit records an append-only change-log row for every committed
// mutation. Audit is a best-effort side effect: a failed audit write is
// logged and swallowed, it never fails the mutation that already committed.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acadix/reconcile/internal/repository"
	"github.com/acadix/reconcile/internal/types"
)

// Entry is one change-log row.
type Entry struct {
	EntityLabel string
	Collection  string
	DocumentID  string
	After       map[string]interface{}
	Before      map[string]interface{}
	Origin      string // which engine operation produced the mutation
}

// Logger records committed mutations.
type Logger interface {
	Record(ctx context.Context, entry Entry)
}

// RepoLogger persists entries into the auditLog collection.
type RepoLogger struct {
	repo repository.Repository
	log  *zap.Logger
}

var _ Logger = (*RepoLogger)(nil)

// NewRepoLogger creates an audit logger backed by the given repository.
func NewRepoLogger(repo repository.Repository, log *zap.Logger) *RepoLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &RepoLogger{repo: repo, log: log}
}

func (l *RepoLogger) Record(ctx context.Context, entry Entry) {
	row := map[string]interface{}{
		"entityLabel": entry.EntityLabel,
		"collection":  entry.Collection,
		"documentId":  entry.DocumentID,
		"origin":      entry.Origin,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if entry.After != nil {
		row["after"] = entry.After
	}
	if entry.Before != nil {
		row["before"] = entry.Before
	}

	id := uuid.NewString()
	if err := l.repo.Put(ctx, types.CollectionAuditLog, id, row, repository.ModeOverwrite); err != nil {
		l.log.Warn("audit write failed",
			zap.String("collection", entry.Collection),
			zap.String("documentId", entry.DocumentID),
			zap.String("origin", entry.Origin),
			zap.Error(err))
		return
	}
	l.log.Debug("audit recorded",
		zap.String("entity", entry.EntityLabel),
		zap.String("collection", entry.Collection),
		zap.String("documentId", entry.DocumentID),
		zap.String("origin", entry.Origin))
}

// Nop discards all entries. Used by dry runs and tests.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
