package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatify/backend/internal/auth"
	"github.com/chatify/backend/internal/config"
	"github.com/chatify/backend/internal/db"
	"github.com/chatify/backend/internal/friends"
	"github.com/chatify/backend/internal/handlers"
	"github.com/chatify/backend/internal/middleware"
	"github.com/chatify/backend/internal/repositories"
	"github.com/chatify/backend/internal/storage"
	"github.com/chatify/backend/internal/ws"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers and the live event gateway.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, error) {
	users := repositories.NewPostgresUserRepository(pool)
	messages := repositories.NewPostgresMessageRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)
	sessions := auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore)

	gateway := ws.NewGateway(messages, sessions, users, logger)
	coordinator := friends.NewCoordinator(users, messages, gateway, logger)

	deps := handlers.Dependencies{
		Users:    users,
		Sessions: sessions,
		Messages: messages,
		Friends:  coordinator,
		Gateway:  gateway,
		Limiter:  middleware.NewIPRateLimiter(cfg.AuthRateRequests, cfg.AuthRateWindow, cfg.AuthRateBurst, 10*time.Minute),
	}

	// Avatar uploads stay disabled unless an object store is configured.
	if cfg.ObjectStore.Bucket != "" {
		avatars, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, err
		}
		deps.Avatars = avatars
	}

	return deps, nil
}
