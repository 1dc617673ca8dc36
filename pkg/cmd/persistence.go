// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dukex/dataindex/pkg/persistence"
	"github.com/dukex/dataindex/pkg/persistence/bolt"
	"github.com/dukex/dataindex/pkg/persistence/file"
	"github.com/dukex/dataindex/pkg/persistence/postgresql"
	"github.com/dukex/dataindex/pkg/persistence/rediscache"
)

var ErrUnsupportedPersistence = errors.New("unsupported persistence provider")

var supportedPersistenceProviders = []string{"file", "bolt", "postgres", "postgresql"}

type PersistenceConfig struct {
	DatabaseURL string
	// CacheURL enables the redis read-through cache when set.
	CacheURL string
	CacheTTL time.Duration
}

// NewPersistence opens the backend selected by the scheme of DatabaseURL.
// A URL without a scheme is a directory for the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, config PersistenceConfig) (persistence.Persistence, error) {
	provider, err := parsePersistenceProvider(config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var backend persistence.Persistence

	switch provider {
	case "postgres", "postgresql":
		backend, err = postgresql.NewPersistence(ctx, logger, config.DatabaseURL)
	case "bolt":
		backend, err = bolt.NewPersistence(logger, config.DatabaseURL)
	default:
		root := strings.TrimPrefix(config.DatabaseURL, "file://")

		err = os.MkdirAll(root, 0o750)
		if err == nil {
			backend = file.NewPersistence(root)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s persistence: %w", provider, err)
	}

	if config.CacheURL == "" {
		return backend, nil
	}

	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = rediscache.DefaultTTL
	}

	cached, err := rediscache.NewPersistence(ctx, logger, backend, config.CacheURL, ttl)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open cache: %w", err), backend.Close(ctx))
	}

	return cached, nil
}

func parsePersistenceProvider(databaseURL string) (string, error) {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", nil
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedPersistence, provider)
}
