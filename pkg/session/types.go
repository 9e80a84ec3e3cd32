// Package session owns the authenticated identity: it acquires a session via
// programmatic or browser-driven login, persists it to a durable store keyed
// by username, validates freshness, and refreshes or re-authenticates as
// needed. Domain services read session state through the manager and never
// mutate it directly.
package session

import "time"

// State is the in-memory view of the authenticated identity.
type State struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	AccessToken   string    `json:"access_token,omitempty"`
	RefreshToken  string    `json:"refresh_token,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	Scopes        []string  `json:"scopes,omitempty"`
	// Mode records which access path produced the session: "api" or "browser".
	Mode string `json:"mode,omitempty"`
}

// Record is the durable representation of a session, one per identity.
// A record is valid only while younger than MaxRecordAge.
type Record struct {
	Username  string            `json:"username"`
	Timestamp time.Time         `json:"timestamp"`
	Cookies   map[string]string `json:"cookies,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Tokens    Tokens            `json:"tokens,omitempty"`
	Mode      string            `json:"mode,omitempty"`
}

// Tokens holds the OAuth-style token pair, when the programmatic path
// produced one.
type Tokens struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// MaxRecordAge is how long a durable session record stays adoptable without
// a fresh network login.
const MaxRecordAge = 7 * 24 * time.Hour

// Valid reports whether the record is young enough to adopt.
func (r *Record) Valid() bool {
	if r == nil || r.Timestamp.IsZero() {
		return false
	}
	return time.Since(r.Timestamp) < MaxRecordAge
}
