package domain

import "errors"

// ErrNoIdentity is returned when a session is started without a user identity.
var ErrNoIdentity = errors.New("missing user identity")

// AuthError reports a failed sign-in, sign-up or sign-out.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return "auth " + e.Op + ": " + e.Err.Error() }

func (e *AuthError) Unwrap() error { return e.Err }

// StoreError reports a failed document load or save.
type StoreError struct {
	Op       string
	Identity string
	Err      error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + " " + e.Identity + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }
