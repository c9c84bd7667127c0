package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-training/cvgen-relay/pkg/config"
	"github.com/go-training/cvgen-relay/pkg/guard"
	"github.com/go-training/cvgen-relay/pkg/logger"
	"github.com/go-training/cvgen-relay/pkg/provider"
	"github.com/go-training/cvgen-relay/pkg/relay"
	"github.com/go-training/cvgen-relay/pkg/router"
	"github.com/go-training/cvgen-relay/pkg/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// errFault is returned when the process stopped because of a handler panic
// or a listener failure.
var errFault = errors.New("relay stopped after a fault")

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet; report through cobra.
		return fmt.Errorf("load config: %w", err)
	}
	if addrFlag != "" {
		cfg.Port = addrFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}

	logger.NewWithLevel(cfg.IsProduction(), cfg.LogLevel)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	storeConfig := store.Config{
		Type: store.ParseStoreType(cfg.Store),
		TTL:  cfg.SessionTTL,
		Redis: store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
	}
	sessionStore, err := store.NewStore(storeConfig)
	if err != nil {
		slog.Error("Failed to create store", "type", cfg.Store, "error", err)
		return err
	}
	switch storeConfig.Type {
	case store.StoreTypeMemory:
		slog.Info("Using in-memory session store")
	case store.StoreTypeRedis:
		slog.Info("Using Redis session store", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	}

	github, err := provider.NewGitHub(provider.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		WebURL:       cfg.GitHubWebURL,
		APIURL:       cfg.GitHubAPIURL,
		Timeout:      cfg.HTTPTimeout,
	})
	if err != nil {
		sessionStore.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var faulted atomic.Bool
	fault := func() {
		faulted.Store(true)
		cancel()
	}

	sessions := guard.NewSessions(cfg.SessionSecret, guard.CookiePolicy{
		Production: cfg.IsProduction(),
		CrossSite:  cfg.CookieCrossSite,
	})
	handler := router.New(relay.New(github, sessionStore), sessions, router.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		FrontendURL:    cfg.FrontendURL,
		DebugErrors:    cfg.DebugErrors,
		AuthorizeURL:   github.AuthorizeURL,
		OnFault: func(recovered any) {
			slog.Error("Terminating after handler fault", "panic", recovered)
			fault()
		},
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	m := graceful.NewManager(graceful.WithContext(ctx))

	m.AddRunningJob(func(ctx context.Context) error {
		slog.Info("HTTP server listening", "addr", srv.Addr, "env", cfg.Env)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "err", err)
				fault()
				return err
			}
			return nil
		case <-ctx.Done():
			slog.Info("Shutdown signal received, shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("Server forced to shutdown", "err", err)
				return err
			}
			slog.Info("Server shutdown gracefully")
			return nil
		}
	})

	m.AddShutdownJob(func() error {
		sessionStore.Close()
		slog.Info("Session store closed")
		return nil
	})

	<-m.Done()

	if faulted.Load() {
		return errFault
	}
	return nil
}
