// Package relay turns a one-time authorization code into a server-side
// session and serves identity and repository reads bound to that session.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-training/cvgen-relay/pkg/core"
	"github.com/go-training/cvgen-relay/pkg/provider"
	"github.com/go-training/cvgen-relay/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/go-training/cvgen-relay/pkg/relay"

var (
	ErrMissingCode    = errors.New("authorization code is required")
	ErrInvalidState   = errors.New("invalid oauth state")
	ErrExchangeFailed = errors.New("failed to exchange authorization code")
	ErrFetchFailed    = errors.New("failed to fetch data from github")
	ErrSessionFailed  = errors.New("failed to create session")
	ErrUnauthorized   = errors.New("not authenticated")
	ErrLogoutFailed   = errors.New("failed to logout")
)

// Provider is the identity provider surface the relay depends on.
type Provider interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)
	FetchProfile(ctx context.Context, token string) (*core.ProfileSnapshot, error)
	ListRepositories(ctx context.Context, token string, page, perPage int) ([]core.RepositorySummary, *core.Pagination, error)
}

// Result is the outcome of a successful Authenticate.
type Result struct {
	SessionID string
	// ExpiresAt is the session deadline recorded by the store.
	ExpiresAt time.Time
	Profile   *core.ProfileSnapshot
	State     State
}

// Relay coordinates the provider client and the session store.
type Relay struct {
	provider Provider
	store    core.SessionStore
	tracer   trace.Tracer
}

// New returns a Relay backed by p and s.
func New(p Provider, s core.SessionStore) *Relay {
	return &Relay{
		provider: p,
		store:    s,
		tracer:   otel.Tracer(tracerName),
	}
}

// Authenticate exchanges code exactly once, fetches the profile and creates
// a session. A non-empty previousSessionID is destroyed before the new
// session is created. Returned errors match one of the package sentinels.
func (r *Relay) Authenticate(ctx context.Context, code, previousSessionID string) (res *Result, err error) {
	ctx, span := r.tracer.Start(ctx, "relay.Authenticate")
	defer span.End()

	attempt := NewAttempt()
	log := core.LoggerFromCtx(ctx)
	defer func() {
		span.SetAttributes(attribute.String("relay.state", attempt.State().String()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if code == "" {
		attempt.Fail()
		return nil, ErrMissingCode
	}
	if err := attempt.Transition(CodeReceived); err != nil {
		return nil, err
	}
	if err := attempt.Transition(Exchanging); err != nil {
		return nil, err
	}

	token, err := r.provider.ExchangeCode(ctx, code, "")
	if err != nil {
		attempt.Fail()
		span.RecordError(err)
		log.Error("code exchange failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	profile, err := r.provider.FetchProfile(ctx, token)
	if err != nil {
		attempt.Fail()
		span.RecordError(err)
		log.Error("profile fetch failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	if previousSessionID != "" {
		if err := r.store.Destroy(ctx, previousSessionID); err != nil {
			log.Warn("failed to destroy previous session", "error", err)
		}
	}

	session, err := r.store.Create(ctx, token, profile)
	if err != nil {
		attempt.Fail()
		span.RecordError(err)
		log.Error("session create failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSessionFailed, err)
	}

	if err := attempt.Transition(Authenticated); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("github.login", profile.Login))
	log.Info("user authenticated", "login", profile.Login)

	return &Result{
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
		Profile:   profile,
		State:     attempt.State(),
	}, nil
}

// Identity resolves a session ID to its session.
func (r *Relay) Identity(ctx context.Context, id string) (*core.Session, error) {
	if id == "" {
		return nil, ErrUnauthorized
	}
	session, err := r.store.Resolve(ctx, id)
	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrEmptySessionID):
		return nil, ErrUnauthorized
	default:
		core.LoggerFromCtx(ctx).Error("session lookup failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSessionFailed, err)
	}
}

// Repositories lists one page of repositories for token, sorted by stars.
func (r *Relay) Repositories(ctx context.Context, token string, page, perPage int) ([]core.RepositorySummary, *core.Pagination, error) {
	if token == "" {
		return nil, nil, ErrUnauthorized
	}

	ctx, span := r.tracer.Start(ctx, "relay.Repositories",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("per_page", perPage)))
	defer span.End()

	repos, pagination, err := r.provider.ListRepositories(ctx, token, page, perPage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list repositories")
		core.LoggerFromCtx(ctx).Error("repository listing failed", "error", err)
		return nil, nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	provider.SortByStars(repos)
	return repos, pagination, nil
}

// Logout destroys the session. An empty id is a no-op.
func (r *Relay) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := r.store.Destroy(ctx, id); err != nil {
		core.LoggerFromCtx(ctx).Error("session destroy failed", "error", err)
		return fmt.Errorf("%w: %v", ErrLogoutFailed, err)
	}
	return nil
}
