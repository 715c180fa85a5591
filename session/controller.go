// Package session owns a user's board for the lifetime of a login.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban-board/boardsync"
	"kanban-board/domain"
)

// IdentityProvider signs users out of the external identity service.
type IdentityProvider interface {
	SignOut(ctx context.Context, userID string) error
}

// EventPublisher records session events. Publish must not block for long.
type EventPublisher interface {
	Publish(eventType, userID, sessionID string)
}

// ErrSuperseded is returned by OnLogout when a newer login replaced the
// session while the user was being signed out. The newer session is kept.
var ErrSuperseded = errors.New("session replaced by a newer login")

// Observer is called with a fresh snapshot after every change to the board.
// Observers run while the controller is locked: they must return quickly and
// must not call back into the controller.
type Observer func(domain.Snapshot)

// Controller tracks who is logged in and serialises every operation on the
// board. The zero value is not usable; call NewController.
type Controller struct {
	syncer    *boardsync.Syncer
	provider  IdentityProvider
	publisher EventPublisher
	logger    *log.Logger

	mu         sync.Mutex
	board      *domain.Board
	identity   string
	sessionID  string
	saver      *boardsync.Saver
	retiring   *boardsync.Saver
	observers  map[int]Observer
	nextObsID  int
	stopSaving func()
}

// NewController creates a controller with an empty board and no identity.
// publisher may be nil.
func NewController(syncer *boardsync.Syncer, provider IdentityProvider, publisher EventPublisher, logger *log.Logger) *Controller {
	if syncer == nil {
		panic("session.NewController: syncer is nil")
	}
	if provider == nil {
		panic("session.NewController: identity provider is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		syncer:    syncer,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
		board:     domain.NewBoard(),
		observers: make(map[int]Observer),
	}
}

// OnLogin starts a session for userID and loads the stored board. A non-empty
// displayName comes from the sign-up path: it is shown immediately and kept
// unless the stored document carries a username of its own. Load failures
// leave the board empty and are only logged.
func (c *Controller) OnLogin(ctx context.Context, userID, displayName string) error {
	if userID == "" {
		return domain.ErrNoIdentity
	}

	c.mu.Lock()
	previous := c.detachSaverLocked()
	retiring := c.retiring
	sessionID := uuid.NewString()
	c.identity = userID
	c.sessionID = sessionID
	c.board.Reset()
	if displayName != "" {
		c.board.SetUsername(displayName)
	}
	c.notifyLocked()
	c.mu.Unlock()

	// Earlier sessions' writes land before this session reads.
	for _, sv := range []*boardsync.Saver{previous, retiring} {
		if sv != nil {
			sv.Close(true)
		}
	}

	doc, found, err := c.syncer.Load(ctx, userID)

	c.mu.Lock()
	if c.sessionID != sessionID {
		c.mu.Unlock()
		c.logger.WithFields(log.Fields{"user": userID, "session": sessionID}).Info("discarding load for superseded session")
		return nil
	}

	persistName := false
	switch {
	case err != nil:
		c.logger.WithError(err).WithField("user", userID).Warn("board load failed; starting with an empty board")
		persistName = displayName != ""
	case found:
		c.board.Restore(doc)
		if doc.Username == "" && displayName != "" {
			c.board.SetUsername(displayName)
			persistName = true
		}
	default:
		persistName = displayName != ""
	}

	c.notifyLocked()
	c.attachSaverLocked(userID, sessionID)
	if persistName {
		c.saver.Schedule(c.board.Snapshot().Document())
	}
	c.mu.Unlock()

	eventType := domain.UserLoggedIn
	if displayName != "" {
		eventType = domain.UserSignedUp
	}
	c.publish(eventType, userID, sessionID)
	c.logger.WithFields(log.Fields{"user": userID, "session": sessionID, "found": found}).Info("session started")
	return nil
}

// OnLogout signs the current user out. If the identity provider refuses, the
// session is left untouched and an *domain.AuthError is returned. On success
// the board returns to its defaults and the session's pending save is flushed,
// each write bounded by the save timeout. A later login waits for that flush
// before it loads. ErrSuperseded is returned when a login replaced the session
// during sign-out.
func (c *Controller) OnLogout(ctx context.Context) error {
	c.mu.Lock()
	userID := c.identity
	sessionID := c.sessionID
	c.mu.Unlock()

	if userID != "" {
		if err := c.provider.SignOut(ctx, userID); err != nil {
			c.logger.WithError(err).WithField("user", userID).Error("logout error")
			return &domain.AuthError{Op: "sign-out", Err: err}
		}
	}

	c.mu.Lock()
	if c.sessionID != sessionID {
		c.mu.Unlock()
		c.logger.WithFields(log.Fields{"user": userID, "session": sessionID}).Info("logout superseded by a newer login")
		return ErrSuperseded
	}
	saver := c.detachSaverLocked()
	c.retiring = saver
	c.identity = ""
	c.sessionID = ""
	c.board.Reset()
	c.notifyLocked()
	c.mu.Unlock()

	if saver != nil {
		saver.Close(true)
		c.mu.Lock()
		if c.retiring == saver {
			c.retiring = nil
		}
		c.mu.Unlock()
	}
	if userID != "" {
		c.publish(domain.UserLoggedOut, userID, sessionID)
		c.logger.WithFields(log.Fields{"user": userID, "session": sessionID}).Info("user logged out")
	}
	return nil
}

// Close flushes the pending save of the current session and stops saving.
// The board stays readable.
func (c *Controller) Close() {
	c.mu.Lock()
	saver := c.detachSaverLocked()
	c.mu.Unlock()
	if saver != nil {
		saver.Close(true)
	}
}

// Identity returns the logged-in user, or "" when nobody is logged in.
func (c *Controller) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// SessionID returns the id of the current login, or "".
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Snapshot returns a copy of the board.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.Snapshot()
}

// AddTask appends the trimmed text to the to-do list unless it is blank or
// already there.
func (c *Controller) AddTask(text string) domain.Snapshot {
	return c.mutate(func(b *domain.Board) bool { return b.AddTask(text) })
}

// MoveTask relocates text to dest.
func (c *Controller) MoveTask(text string, dest domain.ListID) domain.Snapshot {
	return c.mutate(func(b *domain.Board) bool { return b.MoveTask(text, dest) })
}

// DeleteTask removes text from every list.
func (c *Controller) DeleteTask(text string) domain.Snapshot {
	return c.mutate(func(b *domain.Board) bool { return b.DeleteTask(text) })
}

// ToggleTheme flips the theme flag.
func (c *Controller) ToggleTheme() domain.Snapshot {
	return c.mutate(func(b *domain.Board) bool {
		b.ToggleTheme()
		return true
	})
}

// Subscribe registers an observer and returns a function that removes it.
func (c *Controller) Subscribe(o Observer) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.subscribeLocked(o)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Controller) mutate(op func(*domain.Board) bool) domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if op(c.board) {
		c.notifyLocked()
	}
	return c.board.Snapshot()
}

func (c *Controller) subscribeLocked(o Observer) int {
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = o
	return id
}

func (c *Controller) notifyLocked() {
	if len(c.observers) == 0 {
		return
	}
	snap := c.board.Snapshot()
	for _, o := range c.observers {
		o(snap)
	}
}

// attachSaverLocked creates the session's saver and registers it as an
// observer, so every later change is persisted.
func (c *Controller) attachSaverLocked(userID, sessionID string) {
	saver := c.syncer.NewSaver(userID, sessionID)
	id := c.subscribeLocked(func(s domain.Snapshot) {
		saver.Schedule(s.Document())
	})
	c.saver = saver
	c.stopSaving = func() { delete(c.observers, id) }
}

func (c *Controller) detachSaverLocked() *boardsync.Saver {
	saver := c.saver
	if c.stopSaving != nil {
		c.stopSaving()
		c.stopSaving = nil
	}
	c.saver = nil
	return saver
}

func (c *Controller) publish(eventType, userID, sessionID string) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(eventType, userID, sessionID)
}

// IsAuthError reports whether err came from the identity provider.
func IsAuthError(err error) bool {
	var authErr *domain.AuthError
	return errors.As(err, &authErr)
}
