package entity

import "strings"

// Session identifies the caller of one request. Issuance and refresh happen
// upstream; the engine only reads the headers the auth layer stamped.
type Session struct {
	Key           string
	UserID        string
	Role          string
	Authenticated bool
}

func NewSession(key, userID, role string) Session {
	key = strings.TrimSpace(key)
	userID = strings.TrimSpace(userID)
	return Session{
		Key:           key,
		UserID:        userID,
		Role:          strings.TrimSpace(role),
		Authenticated: userID != "",
	}
}
