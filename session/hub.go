package session

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"kanban-board/boardsync"
	"kanban-board/domain"
)

// Hub keeps one Controller per logged-in identity for a multi-user server.
type Hub struct {
	syncer    *boardsync.Syncer
	provider  IdentityProvider
	publisher EventPublisher
	logger    *log.Logger

	mu       sync.Mutex
	sessions map[string]*hubEntry
}

type hubEntry struct {
	ctrl  *Controller
	ready chan struct{}
	err   error
}

// NewHub creates an empty hub. publisher may be nil.
func NewHub(syncer *boardsync.Syncer, provider IdentityProvider, publisher EventPublisher, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Hub{
		syncer:    syncer,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
		sessions:  make(map[string]*hubEntry),
	}
}

// Session returns the controller for userID, starting a session on first use.
func (h *Hub) Session(ctx context.Context, userID string) (*Controller, error) {
	return h.acquire(ctx, userID, "", false)
}

// Login starts a fresh session for userID, reloading the board if one is
// already active. displayName is set on sign-up.
func (h *Hub) Login(ctx context.Context, userID, displayName string) (*Controller, error) {
	return h.acquire(ctx, userID, displayName, true)
}

func (h *Hub) acquire(ctx context.Context, userID, displayName string, relogin bool) (*Controller, error) {
	if userID == "" {
		return nil, domain.ErrNoIdentity
	}

	h.mu.Lock()
	e, ok := h.sessions[userID]
	if !ok {
		e = &hubEntry{
			ctrl:  NewController(h.syncer, h.provider, h.publisher, h.logger),
			ready: make(chan struct{}),
		}
		h.sessions[userID] = e
		h.mu.Unlock()

		e.err = e.ctrl.OnLogin(ctx, userID, displayName)
		close(e.ready)
		if e.err != nil {
			h.remove(userID, e)
			return nil, e.err
		}
		return e.ctrl, nil
	}
	h.mu.Unlock()

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	if relogin {
		if err := e.ctrl.OnLogin(ctx, userID, displayName); err != nil {
			return nil, err
		}
	}
	return e.ctrl, nil
}

// Logout signs userID out and forgets its session. Without an active session
// the identity provider is still asked to sign the user out. When a login for
// userID replaces the session during sign-out, the new session stays
// registered and ErrSuperseded is returned.
func (h *Hub) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrNoIdentity
	}

	h.mu.Lock()
	e, ok := h.sessions[userID]
	h.mu.Unlock()

	if !ok {
		if err := h.provider.SignOut(ctx, userID); err != nil {
			h.logger.WithError(err).WithField("user", userID).Error("logout error")
			return &domain.AuthError{Op: "sign-out", Err: err}
		}
		return nil
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := e.ctrl.OnLogout(ctx); err != nil {
		return err
	}
	h.remove(userID, e)
	return nil
}

// Active reports whether userID has a session.
func (h *Hub) Active(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[userID]
	return ok
}

// Shutdown flushes the pending saves of every session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	entries := make([]*hubEntry, 0, len(h.sessions))
	for _, e := range h.sessions {
		entries = append(entries, e)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *hubEntry) {
			defer wg.Done()
			<-e.ready
			e.ctrl.Close()
		}(e)
	}
	wg.Wait()
	h.logger.Infof("flushed %d sessions", len(entries))
}

func (h *Hub) remove(userID string, e *hubEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[userID] == e {
		delete(h.sessions, userID)
	}
}
