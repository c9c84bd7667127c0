package core

import (
	"context"
	"time"
)

// ProfileSnapshot is the provider profile captured once at login.
type ProfileSnapshot struct {
	ID          int64     `json:"id"`
	Login       string    `json:"login"`
	Name        string    `json:"name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	Location    string    `json:"location"`
	Email       string    `json:"email,omitempty"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
	PublicRepos int       `json:"public_repos"`
	PublicGists int       `json:"public_gists"`
	HTMLURL     string    `json:"html_url"`
}

// Session binds an opaque session ID to an access token and the cached profile.
type Session struct {
	ID          string           `json:"id"`
	AccessToken string           `json:"access_token"`
	Profile     *ProfileSnapshot `json:"profile,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// ExpiredAt reports whether the session is no longer valid at t.
// A session is expired at exactly its ExpiresAt instant.
func (s *Session) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// RepositorySummary is a read-only projection of a provider repository.
type RepositorySummary struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Language        string    `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Homepage        string    `json:"homepage"`
	UpdatedAt       time.Time `json:"updated_at"`
	HTMLURL         string    `json:"html_url"`
}

// Pagination describes one page of a repository listing.
// Total is the number of pages advertised by the provider.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// SessionStore defines the interface for creating, resolving and destroying sessions.
type SessionStore interface {
	// Create stores a new session and returns a copy carrying its ID and deadline.
	Create(ctx context.Context, token string, profile *ProfileSnapshot) (*Session, error)
	Resolve(ctx context.Context, id string) (*Session, error)
	Destroy(ctx context.Context, id string) error
	Close()
}
