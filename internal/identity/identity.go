package identity

import "github.com/google/uuid"

// State classifies the caller for cart authority decisions.
type State string

const (
	// StateAnonymous is a visitor without an account; the guest cart slot is
	// authoritative.
	StateAnonymous State = "anonymous"
	// StateUnverified is an authenticated account that has not passed
	// verification. It has no cart at all: reads are empty, writes are denied.
	StateUnverified State = "unverified"
	// StateVerified is an authenticated, verified account; the remote cart is
	// authoritative.
	StateVerified State = "verified"
)

func (s State) IsValid() bool {
	switch s {
	case StateAnonymous, StateUnverified, StateVerified:
		return true
	}
	return false
}

// Identity is the engine's view of the current caller. SessionID is the
// device session and is present in every state; UserID only when
// authenticated. LoginID distinguishes one login session from the next for
// the same user and device: it changes on every re-login, so per-login
// work (the guest cart merge) runs again after a logout/login cycle.
type Identity struct {
	State     State
	UserID    uuid.UUID
	SessionID string
	LoginID   string
}

// Anonymous builds an anonymous identity for the given device session.
func Anonymous(sessionID string) Identity {
	return Identity{State: StateAnonymous, SessionID: sessionID}
}

// Authenticated builds an identity for a logged-in user; verified selects
// between the verified and unverified states.
func Authenticated(userID uuid.UUID, sessionID string, verified bool) Identity {
	state := StateUnverified
	if verified {
		state = StateVerified
	}
	return Identity{State: state, UserID: userID, SessionID: sessionID}
}

// Key returns the stable key under which one logical cart session lives:
// the user id when authenticated, the device session otherwise.
func (i Identity) Key() string {
	if i.UserID != uuid.Nil {
		return i.UserID.String()
	}
	return i.SessionID
}
