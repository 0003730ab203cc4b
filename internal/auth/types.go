package auth

import "time"

// Permission identifies a protected capability by its route key. Permissions
// are compared by route equality only; no wildcard or hierarchical matching.
type Permission struct {
	ID          string    `json:"id"`
	Route       string    `json:"route"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Role is a named permission bundle shared between users. Changing a role's
// permission set affects every holder on their next resolve.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// User is the authenticated principal. Whitelist and Blacklist are per-user
// permission overrides that bypass role-derived grants; blacklist entries win
// over everything else for the same route.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Roles        []Role       `json:"roles,omitempty"`
	Whitelist    []Permission `json:"whitelist,omitempty"`
	Blacklist    []Permission `json:"blacklist,omitempty"`
	AccessToken  string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// RevokedToken records a token string that must no longer be honored even if
// its signature and expiry are otherwise valid.
type RevokedToken struct {
	Token     string    `json:"-"`
	RevokedAt time.Time `json:"revoked_at"`
}

// OverrideKind distinguishes the two per-user override sets.
type OverrideKind string

const (
	OverrideWhitelist OverrideKind = "whitelist"
	OverrideBlacklist OverrideKind = "blacklist"
)
