package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-training/cvgen-relay/pkg/core"
)

var (
	// ErrSessionNotFound is returned when a session is absent or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptyToken is returned when creating a session without an access token.
	ErrEmptyToken = errors.New("access token cannot be empty")
	// ErrEmptySessionID is returned when the session ID string is empty.
	ErrEmptySessionID = errors.New("session ID cannot be empty")
	// ErrIDCollision is returned when no unique session ID could be generated.
	ErrIDCollision = errors.New("could not allocate a unique session ID")
)

const (
	// idBytes is the entropy of a session ID before encoding.
	idBytes = 32
	// maxCreateAttempts bounds retries on session ID collision.
	maxCreateAttempts = 3
)

// generateSessionID returns 32 random bytes encoded as unpadded base64url.
func generateSessionID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemoryStore implements the core.SessionStore interface using an in-memory map.
// Expiry is checked lazily on Resolve, and Create sweeps entries whose
// deadline has passed so abandoned sessions do not accumulate.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	ttl      time.Duration
	now      func() time.Time
	newID    func() (string, error)
}

var _ core.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new instance of MemoryStore with the given session TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*core.Session),
		ttl:      ttl,
		now:      time.Now,
		newID:    generateSessionID,
	}
}

// Create stores a new session and returns a copy of it.
func (m *MemoryStore) Create(ctx context.Context, token string, profile *core.ProfileSnapshot) (*core.Session, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	for range maxCreateAttempts {
		id, err := m.newID()
		if err != nil {
			return nil, err
		}

		now := m.now()
		m.mu.Lock()
		m.sweepLocked(now)
		if _, exists := m.sessions[id]; exists {
			m.mu.Unlock()
			continue
		}
		session := &core.Session{
			ID:          id,
			AccessToken: token,
			Profile:     profile,
			CreatedAt:   now,
			ExpiresAt:   now.Add(m.ttl),
		}
		m.sessions[id] = session
		m.mu.Unlock()
		out := *session
		return &out, nil
	}

	return nil, ErrIDCollision
}

// Resolve returns a copy of the session for id.
// It returns ErrSessionNotFound if the session does not exist or has expired.
func (m *MemoryStore) Resolve(ctx context.Context, id string) (*core.Session, error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}

	m.mu.RLock()
	session, exists := m.sessions[id]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrSessionNotFound
	}

	if session.ExpiredAt(m.now()) {
		m.mu.Lock()
		if current, ok := m.sessions[id]; ok && current == session {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	out := *session
	return &out, nil
}

// sweepLocked removes every session expired at now. m.mu must be held for writing.
func (m *MemoryStore) sweepLocked(now time.Time) {
	for id, session := range m.sessions {
		if session.ExpiredAt(now) {
			delete(m.sessions, id)
		}
	}
}

// Destroy removes a session. Destroying an absent session is not an error.
func (m *MemoryStore) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions, including not yet swept expired ones.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() {}
