// Package router exposes the relay over HTTP.
package router

import (
	"context"
	"time"

	"github.com/go-training/cvgen-relay/pkg/core"
	"github.com/go-training/cvgen-relay/pkg/guard"
	"github.com/go-training/cvgen-relay/pkg/relay"

	"github.com/gin-gonic/gin"
)

// Relay is the auth relay surface the handlers call.
type Relay interface {
	Authenticate(ctx context.Context, code, previousSessionID string) (*relay.Result, error)
	Identity(ctx context.Context, id string) (*core.Session, error)
	Repositories(ctx context.Context, token string, page, perPage int) ([]core.RepositorySummary, *core.Pagination, error)
	Logout(ctx context.Context, id string) error
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// FrontendURL is where the callback redirects after a successful login.
	FrontendURL string
	// DebugErrors adds a details field to error responses.
	DebugErrors bool
	// AuthorizeURL builds the provider authorize URL for a state value.
	AuthorizeURL func(state string) string
	// OnFault is called after a handler panic has been answered.
	OnFault func(recovered any)
}

type server struct {
	relay     Relay
	sessions  *guard.Sessions
	opts      Options
	startedAt time.Time
}

// New builds the gin engine with every route and middleware attached.
func New(r Relay, sessions *guard.Sessions, opts Options) *gin.Engine {
	s := &server{
		relay:     r,
		sessions:  sessions,
		opts:      opts,
		startedAt: time.Now(),
	}

	engine := gin.New()
	engine.Use(
		requestID(),
		accessLog(),
		recovery(opts.OnFault),
		guard.SecurityHeaders(),
		guard.OriginGuard(opts.AllowedOrigins),
	)

	engine.GET("/health", s.health)

	auth := engine.Group("/auth")
	{
		auth.GET("/github/login", s.login)
		auth.GET("/github/callback", s.callback)
		auth.POST("/github/send", s.send)
		auth.POST("/github", s.send)
		auth.POST("/logout", s.logout)
	}

	api := engine.Group("/api")
	{
		api.GET("/user", s.user)
		api.GET("/repos", s.repos)
	}

	return engine
}
