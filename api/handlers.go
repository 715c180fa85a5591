package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
	"kanban-board/session"
)

// sessionTimeout bounds the board load behind a login. The load is detached
// from the request and is not cancelled when the client goes away.
const sessionTimeout = 30 * time.Second

var (
	errInvalidBody  = errors.New("invalid body")
	errBodyTooLarge = errors.New("body too large")
)

var bodyDecoder = sonic.Config{DisallowUnknownFields: true}.Froze()

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, sessions Sessions, auth Authenticator, logger *log.Logger) {
	e.POST("/api/session", postSession(sessions, auth, logger))
	e.DELETE("/api/session", deleteSession(sessions, auth, logger))

	e.GET("/api/board", boardRoute("/api/board", sessions, auth, logger, getBoard))
	e.POST("/api/board/tasks", boardRoute("/api/board/tasks", sessions, auth, logger, addTask))
	e.POST("/api/board/tasks/move", boardRoute("/api/board/tasks/move", sessions, auth, logger, moveTask))
	e.POST("/api/board/tasks/delete", boardRoute("/api/board/tasks/delete", sessions, auth, logger, deleteTask))
	e.POST("/api/board/theme", boardRoute("/api/board/theme", sessions, auth, logger, toggleTheme))
	e.GET("/api/board/stream", streamBoard(sessions, auth, logger))

	e.GET("/healthz", healthz)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// boardOp runs one operation on an authenticated user's board.
type boardOp func(c echo.Context, ctrl *session.Controller, m *boardRequestMetrics) error

func boardRoute(route string, sessions Sessions, auth Authenticator, logger *log.Logger, op boardOp) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		m, ctx := instrument(c, logger, route)
		defer func() {
			m.Log(c.Response().Status, err)
		}()

		userID, ok, err := authenticate(c, ctx, auth, m)
		if !ok {
			return err
		}

		sessCtx, cancel := sessionContext(ctx)
		defer cancel()
		sessionStart := time.Now()
		ctrl, sessErr := sessions.Session(sessCtx, userID)
		m.ObserveSession(time.Since(sessionStart))
		if sessErr != nil {
			m.SetErrorStage("session")
			return respondError(c, sessErr)
		}
		return op(c, ctrl, m)
	}
}

func getBoard(c echo.Context, ctrl *session.Controller, m *boardRequestMetrics) error {
	return respondBoard(c, m, ctrl.Snapshot())
}

func addTask(c echo.Context, ctrl *session.Controller, m *boardRequestMetrics) error {
	var req taskRequest
	if err := decodeBody(c, &req, false); err != nil {
		m.SetErrorStage("decode")
		return respondError(c, err)
	}
	before := ctrl.Snapshot()
	return respondChange(c, m, before, ctrl.AddTask(req.Text))
}

func moveTask(c echo.Context, ctrl *session.Controller, m *boardRequestMetrics) error {
	var req moveRequest
	if err := decodeBody(c, &req, false); err != nil {
		m.SetErrorStage("decode")
		return respondError(c, err)
	}
	dest, err := domain.ParseListID(req.List)
	if err != nil {
		m.SetErrorStage("list")
		return respondError(c, err)
	}
	before := ctrl.Snapshot()
	return respondChange(c, m, before, ctrl.MoveTask(req.Text, dest))
}

func deleteTask(c echo.Context, ctrl *session.Controller, m *boardRequestMetrics) error {
	var req taskRequest
	if err := decodeBody(c, &req, false); err != nil {
		m.SetErrorStage("decode")
		return respondError(c, err)
	}
	before := ctrl.Snapshot()
	return respondChange(c, m, before, ctrl.DeleteTask(req.Text))
}

func toggleTheme(c echo.Context, ctrl *session.Controller, m *boardRequestMetrics) error {
	m.SetChanged(true)
	return respondBoard(c, m, ctrl.ToggleTheme())
}

func postSession(sessions Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		m, ctx := instrument(c, logger, "/api/session")
		defer func() {
			m.Log(c.Response().Status, err)
		}()

		userID, ok, err := authenticate(c, ctx, auth, m)
		if !ok {
			return err
		}

		var req sessionRequest
		if err := decodeBody(c, &req, true); err != nil {
			m.SetErrorStage("decode")
			return respondError(c, err)
		}

		loginCtx, cancel := sessionContext(ctx)
		defer cancel()
		sessionStart := time.Now()
		ctrl, loginErr := sessions.Login(loginCtx, userID, req.DisplayName)
		m.ObserveSession(time.Since(sessionStart))
		if loginErr != nil {
			m.SetErrorStage("session")
			return respondError(c, loginErr)
		}
		m.SetChanged(true)
		return respondBoard(c, m, ctrl.Snapshot())
	}
}

func deleteSession(sessions Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		m, ctx := instrument(c, logger, "/api/session")
		defer func() {
			m.Log(c.Response().Status, err)
		}()

		userID, ok, err := authenticate(c, ctx, auth, m)
		if !ok {
			return err
		}

		if logoutErr := sessions.Logout(ctx, userID); logoutErr != nil {
			m.SetErrorStage("logout")
			if session.IsAuthError(logoutErr) {
				logger.WithError(logoutErr).WithField("user", userID).Warn("sign-out refused")
			}
			return respondError(c, logoutErr)
		}
		m.SetChanged(true)
		return respondBoard(c, m, domain.NewBoard().Snapshot())
	}
}

func sessionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sessionTimeout)
}

func instrument(c echo.Context, logger *log.Logger, route string) (*boardRequestMetrics, context.Context) {
	m, ctx := newBoardRequestMetrics(c.Request().Context(), logger, route)
	c.SetRequest(c.Request().WithContext(ctx))
	return m, ctx
}

// authenticate resolves the caller. When ok is false the 401 has already
// been written and err is the result of writing it.
func authenticate(c echo.Context, ctx context.Context, auth Authenticator, m *boardRequestMetrics) (userID string, ok bool, err error) {
	authStart := time.Now()
	userID, authErr := auth.UserIDFromAuthHeader(ctx, authHeader(c, false))
	m.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		m.SetErrorStage("auth")
		return "", false, c.String(http.StatusUnauthorized, authErr.Error())
	}
	m.SetUser(userID)
	return userID, true, nil
}

func respondBoard(c echo.Context, m *boardRequestMetrics, s domain.Snapshot) error {
	m.SetTaskCount(len(s.Todo) + len(s.InProgress) + len(s.Completed))
	err := c.JSON(http.StatusOK, newBoardResponse(s))
	if err != nil {
		m.SetErrorStage("encode_response")
	}
	return err
}

func respondChange(c echo.Context, m *boardRequestMetrics, before, after domain.Snapshot) error {
	m.SetChanged(!reflect.DeepEqual(before, after))
	return respondBoard(c, m, after)
}

func respondError(c echo.Context, err error) error {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.String(status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errInvalidBody),
		errors.Is(err, domain.ErrNoIdentity),
		errors.Is(err, domain.ErrUnknownList):
		return http.StatusBadRequest
	case session.IsAuthError(err):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a JSON body of at most postBodyMaxSize bytes. Unknown
// fields are rejected. An empty body is accepted only when optional is set.
func decodeBody(c echo.Context, dst any, optional bool) error {
	body := c.Request().Body
	if body == nil {
		body = http.NoBody
	}
	data, err := io.ReadAll(io.LimitReader(body, postBodyMaxSize+1))
	if err != nil {
		return errInvalidBody
	}
	if len(data) > postBodyMaxSize {
		return errBodyTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if optional {
			return nil
		}
		return errInvalidBody
	}
	if err := bodyDecoder.Unmarshal(data, dst); err != nil {
		return errInvalidBody
	}
	return nil
}
