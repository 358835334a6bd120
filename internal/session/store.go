package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jo-hoe/imagebot/internal/raster"
)

const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
	StoreTypeSQLite = "sqlite"
)

// Store holds at most one current image per session key. A key without an
// image is an empty session; Put replaces whatever was there.
type Store interface {
	// Get returns the current image for key and whether one exists.
	Get(ctx context.Context, key string) (*raster.Image, bool, error)
	Put(ctx context.Context, key string, img *raster.Image) error
	Close() error
}

// StoreConfig selects and parameterises a Store back end.
type StoreConfig struct {
	Type             string        `yaml:"type" koanf:"type"`
	ConnectionString string        `yaml:"connectionString" koanf:"connectionstring"`
	TTL              time.Duration `yaml:"ttl" koanf:"ttl"`
}

// NewStore creates the store named by cfg.Type. An empty type selects the
// in-memory store.
func NewStore(ctx context.Context, cfg StoreConfig) (store Store, err error) {
	switch cfg.Type {
	case "", StoreTypeMemory:
		store = NewMemoryStore(cfg.TTL)
	case StoreTypeRedis:
		store, err = NewRedisStore(ctx, cfg.ConnectionString, cfg.TTL)
	case StoreTypeSQLite:
		store, err = NewSQLiteStore(ctx, cfg.ConnectionString, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s session store: %w", cfg.Type, err)
	}

	slog.Info("Session store initialized", "type", storeTypeName(cfg.Type), "ttl", cfg.TTL)
	return store, nil
}

// SupportedStoreTypes lists the accepted StoreConfig.Type values.
func SupportedStoreTypes() []string {
	return []string{StoreTypeMemory, StoreTypeRedis, StoreTypeSQLite}
}

func storeTypeName(t string) string {
	if t == "" {
		return StoreTypeMemory
	}
	return t
}
