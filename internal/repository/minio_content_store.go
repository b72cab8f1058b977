package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

type MinIOContentStore struct {
	client *minio.Client
	bucket string
	region string
	prefix string
	logger zerolog.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

func NewMinIOContentStore(cfg config.MinIOConfig, connectTimeout time.Duration, logger zerolog.Logger) (*MinIOContentStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &MinIOContentStore{
		client: client,
		bucket: cfg.BucketName,
		region: cfg.Region,
		prefix: cfg.Prefix,
		logger: logger,
	}

	// Не валим старт, если MinIO ещё не поднялся: бакет проверяется повторно при первом запросе.
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := store.ensureBucket(ctx); err != nil {
		logger.Error().Err(err).
			Str("endpoint", cfg.Endpoint).
			Str("bucket", cfg.BucketName).
			Msg("MinIO not ready during startup; will retry on demand")
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.BucketName).
		Bool("ssl", cfg.UseSSL).
		Msg("MinIO content store configured")

	return store, nil
}

func (s *MinIOContentStore) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			code := minio.ToErrorResponse(err).Code
			if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
				return nil
			}
			return err
		}
		s.logger.Info().Str("bucket", s.bucket).Msg("Created new bucket")
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("minio not ready: %w", err)
	}

	s.bucketEnsured = true
	return nil
}

func (s *MinIOContentStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	id := newContentID()
	info, err := s.client.PutObject(ctx, s.bucket, s.objectName(id), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload content: %w", err)
	}

	s.logger.Debug().
		Str("bucket", s.bucket).
		Str("content_id", id).
		Str("etag", info.ETag).
		Int("size", len(data)).
		Msg("Content uploaded to MinIO")

	return id, nil
}

func (s *MinIOContentStore) Get(ctx context.Context, id string) ([]byte, error) {
	if !validContentID(id) {
		return nil, contentNotFound(id)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	if _, err := s.client.StatObject(ctx, s.bucket, s.objectName(id), minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, contentNotFound(id)
		}
		return nil, fmt.Errorf("failed to stat content: %w", err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, s.objectName(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, contentNotFound(id)
		}
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	return data, nil
}

func (s *MinIOContentStore) objectName(id string) string {
	return path.Join(s.prefix, id)
}
