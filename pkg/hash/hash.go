// Package hash computes content fingerprints: fixed-size hex digests of raw bytes.
package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// Hasher fingerprints byte payloads. Equal input always yields an equal,
// fixed-length fingerprint.
type Hasher interface {
	Calculate(data []byte) (string, error)
	CalculateReader(reader io.Reader) (string, error)
	Algorithm() Algorithm
	Size() int
}

type FileHasher struct {
	algorithm Algorithm
}

// NewFileHasher validates the algorithm name up front so a misconfigured
// service fails at startup instead of on the first submission.
func NewFileHasher(algorithm string) (*FileHasher, error) {
	algo := Algorithm(strings.ToLower(strings.TrimSpace(algorithm)))
	if algo == "" {
		algo = SHA256
	}

	h := &FileHasher{algorithm: algo}
	if _, err := h.newHash(); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *FileHasher) Calculate(data []byte) (string, error) {
	hasher, err := h.newHash()
	if err != nil {
		return "", err
	}

	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *FileHasher) CalculateReader(reader io.Reader) (string, error) {
	hasher, err := h.newHash()
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to read data: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *FileHasher) Algorithm() Algorithm {
	return h.algorithm
}

// Size is the length of the hex-encoded fingerprint.
func (h *FileHasher) Size() int {
	hasher, err := h.newHash()
	if err != nil {
		return 0
	}
	return hex.EncodedLen(hasher.Size())
}

func (h *FileHasher) newHash() (hash.Hash, error) {
	switch h.algorithm {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", h.algorithm)
	}
}
