// Package boardsync moves board documents between a session and the remote
// document store.
package boardsync

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
)

const defaultSaveTimeout = 30 * time.Second

// DocumentStore is the remote store, keyed by user identity.
type DocumentStore interface {
	GetDocument(ctx context.Context, userID string) (*domain.Document, error)
	SetDocument(ctx context.Context, userID string, doc domain.Document) error
}

// Syncer loads and saves board documents.
type Syncer struct {
	store       DocumentStore
	logger      *log.Logger
	saveTimeout time.Duration
}

// New creates a Syncer. A non-positive saveTimeout selects the default.
func New(store DocumentStore, logger *log.Logger, saveTimeout time.Duration) *Syncer {
	if store == nil {
		panic("boardsync.New: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if saveTimeout <= 0 {
		saveTimeout = defaultSaveTimeout
	}
	return &Syncer{store: store, logger: logger, saveTimeout: saveTimeout}
}

// Load reads the document for userID. found is false for a user who has never
// saved a board.
func (s *Syncer) Load(ctx context.Context, userID string) (doc domain.Document, found bool, err error) {
	ctx, op := startOperation(ctx, s.logger, "load", userID)
	defer func() { op.End(found, err) }()

	stored, err := s.store.GetDocument(ctx, userID)
	if err != nil {
		return domain.Document{}, false, &domain.StoreError{Op: "load", Identity: userID, Err: err}
	}
	if stored == nil {
		return domain.Document{}, false, nil
	}
	return stored.Normalized(), true, nil
}

// Save overwrites the document for userID.
func (s *Syncer) Save(ctx context.Context, userID string, doc domain.Document) (err error) {
	ctx, op := startOperation(ctx, s.logger, "save", userID)
	defer func() { op.End(true, err) }()

	if err := s.store.SetDocument(ctx, userID, doc.Normalized()); err != nil {
		return &domain.StoreError{Op: "save", Identity: userID, Err: err}
	}
	return nil
}
