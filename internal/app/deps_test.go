package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatify/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
		AuthRateRequests: 10,
		AuthRateWindow:   time.Minute,
		AuthRateBurst:    5,
		ObjectStore:      config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, err := buildDependencies(context.Background(), fakePool{}, cfg, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps.Users == nil {
		t.Fatal("expected user repository to be configured")
	}
	if deps.Sessions == nil {
		t.Fatal("expected session manager to be configured")
	}
	if deps.Messages == nil {
		t.Fatal("expected message repository to be configured")
	}
	if deps.Friends == nil {
		t.Fatal("expected friend coordinator to be configured")
	}
	if deps.Gateway == nil {
		t.Fatal("expected live event gateway to be configured")
	}
	if deps.Limiter == nil {
		t.Fatal("expected rate limiter to be configured")
	}
	if deps.Avatars == nil {
		t.Fatal("expected avatar storage to be configured")
	}
}

func TestBuildDependenciesWithoutObjectStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, err := buildDependencies(context.Background(), fakePool{}, config.Config{}, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deps.Avatars != nil {
		t.Fatal("avatar storage must stay disabled without a bucket")
	}
}
