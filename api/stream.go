package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
)

// boardChanges signals a stream that the board changed. Bursts of changes
// collapse into one pending signal; the stream always sends the latest board.
type boardChanges struct {
	ch chan struct{}
}

func newBoardChanges() *boardChanges {
	return &boardChanges{ch: make(chan struct{}, 1)}
}

func (b *boardChanges) notify(domain.Snapshot) {
	select {
	case b.ch <- struct{}{}:
	default:
	}
}

// streamBoard sends the current board as a server-sent event, then one event
// per change until the client goes away.
func streamBoard(sessions Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(ctx, authHeader(c, true))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		sessCtx, cancel := sessionContext(ctx)
		ctrl, err := sessions.Session(sessCtx, userID)
		cancel()
		if err != nil {
			return respondError(c, err)
		}

		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		c.Response().WriteHeader(http.StatusOK)

		changes := newBoardChanges()
		unsubscribe := ctrl.Subscribe(changes.notify)
		defer unsubscribe()

		entry := logger.WithField("user", userID)
		entry.Debug("board stream opened")
		defer entry.Debug("board stream closed")

		for {
			if err := writeBoardEvent(c.Response(), ctrl.Snapshot()); err != nil {
				entry.WithError(err).Warn("board stream write failed")
				return nil
			}
			flusher.Flush()

			select {
			case <-ctx.Done():
				return nil
			case <-changes.ch:
			}
		}
	}
}

func writeBoardEvent(w http.ResponseWriter, s domain.Snapshot) error {
	data, err := sonic.Marshal(newBoardResponse(s))
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')
	_, err = w.Write(buf)
	return err
}
