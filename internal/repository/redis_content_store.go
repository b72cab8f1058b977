package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RedisContentStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    zerolog.Logger
}

func NewRedisContentStore(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*RedisContentStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connected to Redis")

	return &RedisContentStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
		logger:    logger,
	}, nil
}

func (s *RedisContentStore) Put(ctx context.Context, data []byte) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		id := newContentID()
		ok, err := s.client.SetNX(ctx, s.key(id), data, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("failed to store content: %w", err)
		}
		if ok {
			return id, nil
		}
	}

	return "", errors.New("failed to allocate content id")
}

func (s *RedisContentStore) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, contentNotFound(id)
		}
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	return data, nil
}

func (s *RedisContentStore) Close() error {
	return s.client.Close()
}

func (s *RedisContentStore) key(id string) string {
	return s.keyPrefix + id
}
