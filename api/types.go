package api

import (
	"context"
	"time"

	"kanban-board/session"
)

// Sessions hands out the board controller of an identity.
type Sessions interface {
	Session(ctx context.Context, userID string) (*session.Controller, error)
	Login(ctx context.Context, userID, displayName string) (*session.Controller, error)
	Logout(ctx context.Context, userID string) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(ctx context.Context, header string) (string, error)
}

// Revocations reports when a user last signed out.
type Revocations interface {
	RevokedAt(ctx context.Context, userID string) (time.Time, bool, error)
}
