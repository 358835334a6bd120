package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jo-hoe/imagebot/internal/raster"
)

const redisKeyPrefix = "imagebot:session:"

// RedisStore keeps PNG-encoded session images in redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the server described by connectionString, which
// is either a redis:// URL or a plain host:port address.
func NewRedisStore(ctx context.Context, connectionString string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redisOptions(connectionString)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisOptions(connectionString string) (*redis.Options, error) {
	if connectionString == "" {
		return nil, errors.New("redis connection string is empty")
	}
	if strings.Contains(connectionString, "://") {
		opts, err := redis.ParseURL(connectionString)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: connectionString}, nil
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (*raster.Image, bool, error) {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session %s: %w", key, err)
	}

	img, err := raster.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode session %s: %w", key, err)
	}
	return img, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, img *raster.Image) error {
	data, err := raster.Marshal(img)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", key, err)
	}
	if err := s.client.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
