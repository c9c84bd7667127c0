package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-training/cvgen-relay/pkg/core"
	"github.com/redis/rueidis"
)

// sessionPrefix namespaces session keys in Redis.
const sessionPrefix = "cvgen:session:"

// RedisStore implements the core.SessionStore interface using Redis via rueidis.
// Sessions are shared between relay instances pointing at the same Redis.
type RedisStore struct {
	client rueidis.Client
	ttl    time.Duration
	now    func() time.Time
	newID  func() (string, error)
}

var _ core.SessionStore = (*RedisStore)(nil)

// NewRedisStore creates a new instance of RedisStore with the provided rueidis client.
func NewRedisStore(client rueidis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		newID:  generateSessionID,
	}
}

// RedisOptions contains configuration for Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStoreFromOptions creates a new RedisStore with simplified options.
func NewRedisStoreFromOptions(opts RedisOptions, ttl time.Duration) (*RedisStore, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{opts.Addr},
		Password:     opts.Password,
		SelectDB:     opts.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return NewRedisStore(client, ttl), nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() {
	r.client.Close()
}

// Create stores a new session with SET NX PX so an existing key is never overwritten.
func (r *RedisStore) Create(ctx context.Context, token string, profile *core.ProfileSnapshot) (*core.Session, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	for range maxCreateAttempts {
		id, err := r.newID()
		if err != nil {
			return nil, err
		}

		now := r.now()
		session := core.Session{
			ID:          id,
			AccessToken: token,
			Profile:     profile,
			CreatedAt:   now,
			ExpiresAt:   now.Add(r.ttl),
		}
		data, err := json.Marshal(session)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal session: %w", err)
		}

		cmd := r.client.B().Set().Key(sessionPrefix + id).Value(string(data)).Nx().
			PxMilliseconds(expiryMillis(r.ttl)).Build()
		err = r.client.Do(ctx, cmd).Error()
		if rueidis.IsRedisNil(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save session to redis: %w", err)
		}
		return &session, nil
	}

	return nil, ErrIDCollision
}

// expiryMillis converts d to a PX argument, rounding up so the key never
// disappears before the stored deadline.
func expiryMillis(d time.Duration) int64 {
	ms := d.Milliseconds()
	if time.Duration(ms)*time.Millisecond < d {
		ms++
	}
	return max(ms, 1)
}

// Resolve retrieves a session from Redis.
// It returns ErrSessionNotFound if the key does not exist or the session has expired.
func (r *RedisStore) Resolve(ctx context.Context, id string) (*core.Session, error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}

	cmd := r.client.B().Get().Key(sessionPrefix + id).Build()
	result, err := r.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var session core.Session
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	// The key may outlive the deadline by rounding; the stored deadline is authoritative.
	if session.ExpiredAt(r.now()) {
		_ = r.Destroy(ctx, id)
		return nil, ErrSessionNotFound
	}

	return &session, nil
}

// Destroy removes a session from Redis. Destroying an absent session is not an error.
func (r *RedisStore) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	cmd := r.client.B().Del().Key(sessionPrefix + id).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}
