package boardsync

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
)

// Saver persists the snapshots of one session. At most one write is in flight
// at a time; documents scheduled meanwhile collapse into the most recent one,
// which is written as soon as the current write returns.
type Saver struct {
	syncer    *Syncer
	userID    string
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending *domain.Document
	running bool
	closed  bool
	writes  int
}

// NewSaver starts a saver bound to the session sessionID of userID.
func (s *Syncer) NewSaver(userID, sessionID string) *Saver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Saver{
		syncer:    s,
		userID:    userID,
		sessionID: sessionID,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Schedule queues doc for writing and returns immediately. It is a no-op once
// the saver is closed.
func (sv *Saver) Schedule(doc domain.Document) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.closed {
		return
	}
	sv.pending = &doc
	if sv.running {
		return
	}
	sv.running = true
	sv.wg.Add(1)
	go sv.run()
}

func (sv *Saver) run() {
	defer sv.wg.Done()
	for {
		sv.mu.Lock()
		doc := sv.pending
		sv.pending = nil
		if doc == nil {
			sv.running = false
			sv.mu.Unlock()
			return
		}
		sv.writes++
		sv.mu.Unlock()

		sv.write(*doc)
	}
}

func (sv *Saver) write(doc domain.Document) {
	ctx, cancel := context.WithTimeout(sv.ctx, sv.syncer.saveTimeout)
	defer cancel()
	if err := sv.syncer.Save(ctx, sv.userID, doc); err != nil {
		sv.syncer.logger.WithFields(log.Fields{"user": sv.userID, "session": sv.sessionID}).
			WithError(err).Error("board save dropped")
	}
}

// Close stops the saver and waits for its worker to exit. With flush set the
// pending document is still written; otherwise it is discarded and the write
// in flight is cancelled.
func (sv *Saver) Close(flush bool) {
	sv.mu.Lock()
	sv.closed = true
	if !flush {
		sv.pending = nil
		sv.cancel()
	}
	sv.mu.Unlock()

	sv.wg.Wait()
	sv.cancel()
}

// Writes returns how many documents the saver has started writing.
func (sv *Saver) Writes() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.writes
}
