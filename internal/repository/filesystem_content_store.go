package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FilesystemContentStore keeps one file per object under root. Writes go to
// a temporary file first and are renamed into place, so a reader never sees
// a partial object.
type FilesystemContentStore struct {
	root   string
	logger zerolog.Logger
}

func NewFilesystemContentStore(root string, logger zerolog.Logger) (*FilesystemContentStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}

	logger.Info().Str("root", root).Msg("Filesystem content store ready")

	return &FilesystemContentStore{root: root, logger: logger}, nil
}

func (s *FilesystemContentStore) Put(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close content file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := newContentID()
	for {
		_, err := os.Lstat(s.path(id))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to check content path: %w", err)
		}
		id = newContentID()
	}

	if err := os.Rename(tmpName, s.path(id)); err != nil {
		return "", fmt.Errorf("failed to commit content: %w", err)
	}

	return id, nil
}

func (s *FilesystemContentStore) Get(_ context.Context, id string) ([]byte, error) {
	if !validContentID(id) {
		return nil, contentNotFound(id)
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, contentNotFound(id)
		}
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	return data, nil
}

func (s *FilesystemContentStore) path(id string) string {
	return filepath.Join(s.root, id)
}
