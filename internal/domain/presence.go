package domain

import "time"

// Presence is the last-known connection state for a user. It lives only in
// process memory: a relay restart resets every user to the zero value.
type Presence struct {
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}
