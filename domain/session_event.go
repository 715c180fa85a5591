package domain

const (
	UserSignedUp  = "user-signed-up"
	UserLoggedIn  = "user-logged-in"
	UserLoggedOut = "user-logged-out"
)

// SessionEvent records a login or logout for auditing.
type SessionEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
