package boardsync

import (
	"context"
	"sync"

	"kanban-board/domain"
)

type fakeStore struct {
	mu     sync.Mutex
	docs   map[string]domain.Document
	saved  []domain.Document
	getErr error
	setErr error

	// block, when set, holds every SetDocument call until it is closed or the
	// call's context ends. started receives one value per SetDocument call.
	block   chan struct{}
	started chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]domain.Document{}}
}

func (f *fakeStore) GetDocument(ctx context.Context, userID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[userID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (f *fakeStore) SetDocument(ctx context.Context, userID string, doc domain.Document) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.saved = append(f.saved, doc)
	f.docs[userID] = doc
	return nil
}

func (f *fakeStore) Saved() []domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, len(f.saved))
	copy(out, f.saved)
	return out
}
