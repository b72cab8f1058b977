package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync/atomic"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// ContentClient is a content store backed by a remote content service
// speaking the /api/v1/files protocol.
type ContentClient struct {
	baseURL    string
	endpoint   string
	retryCount uint64
	retryDelay time.Duration
	client     *http.Client
	logger     zerolog.Logger
}

type uploadEnvelope struct {
	Success bool                         `json:"success"`
	Data    models.UploadContentResponse `json:"data"`
}

func NewContentClient(cfg config.ContentServiceConfig, logger zerolog.Logger) *ContentClient {
	retryCount := cfg.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 100 * time.Millisecond
	}

	return &ContentClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		endpoint:   cfg.FilesEndpoint,
		retryCount: uint64(retryCount),
		retryDelay: retryDelay,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Put uploads data and returns the id the content service assigned.
// Uploads are not idempotent, so a retry happens only when the request
// never reached the server. Once the body is written, any failure is final.
func (c *ContentClient) Put(ctx context.Context, data []byte) (string, error) {
	url := c.baseURL + c.endpoint

	var fileID string
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		var written atomic.Bool
		trace := &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { written.Store(true) },
		}

		req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := c.client.Do(req)
		if err != nil {
			err = fmt.Errorf("failed to upload content: %w", err)
			if written.Load() {
				// Сервер мог уже сохранить файл, повтор создал бы копию.
				return err
			}
			c.logger.Warn().Err(err).Msg("Content upload failed before sending, retrying")
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp, "", false); err != nil {
			return err
		}

		var envelope uploadEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if envelope.Data.FileID == "" {
			return fmt.Errorf("content service returned no file id")
		}

		fileID = envelope.Data.FileID
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug().Str("content_id", fileID).Int("size", len(data)).Msg("Content uploaded")
	return fileID, nil
}

func (c *ContentClient) Get(ctx context.Context, id string) ([]byte, error) {
	url := fmt.Sprintf("%s%s/%s", c.baseURL, c.endpoint, id)

	var content []byte
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Str("content_id", id).Msg("Content download failed, retrying")
			return retry.RetryableError(fmt.Errorf("failed to download content: %w", err))
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp, id, true); err != nil {
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("failed to read content: %w", err))
		}

		content = body
		return nil
	})
	if err != nil {
		return nil, err
	}

	return content, nil
}

func (c *ContentClient) backoff() retry.Backoff {
	b := retry.NewFibonacci(c.retryDelay)
	return retry.WithMaxRetries(c.retryCount, b)
}

// classifyStatus maps a non-2xx response to an error. Server-side failures
// are retryable when the caller allows it; client errors are always final.
func classifyStatus(resp *http.Response, id string, retryable bool) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("content %s: %w", id, models.ErrNotFound)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: content service rejected request", models.ErrInvalidInput)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("content service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if retryable && (resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests) {
		return retry.RetryableError(err)
	}
	return err
}
