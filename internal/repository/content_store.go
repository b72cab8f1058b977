package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContentStore keeps submitted bytes under opaque random ids. Objects are
// never mutated or deleted.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

type contentStore struct {
	provider ContentStore
	name     string
	logger   zerolog.Logger
}

// NewContentStore wraps a provider with the checks and logging every
// provider shares.
func NewContentStore(provider ContentStore, name string, logger zerolog.Logger) ContentStore {
	return &contentStore{
		provider: provider,
		name:     name,
		logger:   logger.With().Str("storage_provider", name).Logger(),
	}
}

func (s *contentStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: content is empty", models.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := s.provider.Put(ctx, data)
	if err != nil {
		s.logger.Error().Err(err).Int("size", len(data)).Msg("Failed to store content")
		return "", err
	}

	s.logger.Debug().Str("content_id", id).Int("size", len(data)).Msg("Content stored")
	return id, nil
}

func (s *contentStore) Get(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty content id", models.ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.provider.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error().Err(err).Str("content_id", id).Msg("Failed to read content")
		}
		return nil, err
	}

	return data, nil
}

func newContentID() string {
	return uuid.New().String()
}

// validContentID rejects ids this service could never have issued, which
// also keeps them safe to use as file names and object keys.
func validContentID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func contentNotFound(id string) error {
	return fmt.Errorf("content %s: %w", id, models.ErrNotFound)
}
