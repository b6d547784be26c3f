package domain

import "fmt"

// Actor identifies the owner of a reservation or cart: either an
// authenticated user or an anonymous session, never both.
type Actor struct {
	userID    string
	sessionID string
}

// UserActor builds an actor for an authenticated user.
func UserActor(userID string) Actor {
	return Actor{userID: userID}
}

// SessionActor builds an actor for an anonymous session.
func SessionActor(sessionID string) Actor {
	return Actor{sessionID: sessionID}
}

func (a Actor) UserID() string    { return a.userID }
func (a Actor) SessionID() string { return a.sessionID }

// IsAnonymous reports whether the actor is identified by a session
// rather than a user account.
func (a Actor) IsAnonymous() bool { return a.userID == "" }

// IsZero reports whether the actor carries no identity at all.
func (a Actor) IsZero() bool { return a.userID == "" && a.sessionID == "" }

func (a Actor) String() string {
	if a.userID != "" {
		return fmt.Sprintf("user:%s", a.userID)
	}
	if a.sessionID != "" {
		return fmt.Sprintf("session:%s", a.sessionID)
	}
	return "actor:unknown"
}
