package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContentService struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures atomic.Int32
	uploads  atomic.Int32
	// hangup drops the connection after reading an upload.
	hangup atomic.Bool
}

func (f *fakeContentService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		f.uploads.Add(1)
		if f.hangup.Load() {
			io.Copy(io.Discard, r.Body)
			conn, _, err := http.NewResponseController(w).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
	}
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/files":
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			http.Error(w, "empty", http.StatusBadRequest)
			return
		}
		id := uuid.New().String()
		f.mu.Lock()
		f.objects[id] = body
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    models.UploadContentResponse{FileID: id, FileSize: int64(len(body))},
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/files/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/files/")
		f.mu.Lock()
		body, ok := f.objects[id]
		f.mu.Unlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write(body)
	default:
		http.Error(w, "bad route", http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, retries int) (*ContentClient, *fakeContentService) {
	t.Helper()
	fake := &fakeContentService{objects: make(map[string][]byte)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := NewContentClient(config.ContentServiceConfig{
		URL:           server.URL,
		FilesEndpoint: "/api/v1/files",
		Timeout:       5 * time.Second,
		RetryCount:    retries,
		RetryDelay:    time.Millisecond,
	}, zerolog.Nop())
	return client, fake
}

func TestContentClientRoundTrip(t *testing.T) {
	client, _ := newTestClient(t, 0)
	ctx := context.Background()

	id, err := client.Put(ctx, []byte("remote bytes"))
	require.NoError(t, err)

	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "remote bytes", string(got))
}

func TestContentClientNotFound(t *testing.T) {
	client, _ := newTestClient(t, 2)

	_, err := client.Get(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestContentClientRetriesServerErrorsOnDownload(t *testing.T) {
	client, fake := newTestClient(t, 3)
	ctx := context.Background()

	id, err := client.Put(ctx, []byte("eventually read"))
	require.NoError(t, err)

	fake.failures.Store(2)
	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "eventually read", string(got))
	assert.Zero(t, fake.failures.Load())
}

func TestContentClientGivesUpAfterRetries(t *testing.T) {
	client, fake := newTestClient(t, 1)
	fake.failures.Store(10)

	_, err := client.Get(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Equal(t, int32(8), fake.failures.Load())
}

func TestContentClientDoesNotRetryUploadAfterServerError(t *testing.T) {
	client, fake := newTestClient(t, 3)
	fake.failures.Store(1)

	_, err := client.Put(context.Background(), []byte("maybe stored"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Equal(t, int32(1), fake.uploads.Load())
	assert.Zero(t, fake.failures.Load())
}

func TestContentClientDoesNotRetryUploadAfterHangup(t *testing.T) {
	client, fake := newTestClient(t, 3)
	fake.hangup.Store(true)

	_, err := client.Put(context.Background(), []byte("lost response"))
	require.Error(t, err)
	assert.Equal(t, int32(1), fake.uploads.Load())
}

func TestContentClientRetriesUploadBeforeSending(t *testing.T) {
	client, fake := newTestClient(t, 2)

	var dials atomic.Int32
	client.client.Transport = &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if dials.Add(1) == 1 {
				return nil, errors.New("connection refused")
			}
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}

	id, err := client.Put(context.Background(), []byte("stored once"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, int32(2), dials.Load())
	assert.Equal(t, int32(1), fake.uploads.Load())
}

func TestContentClientDoesNotRetryClientErrors(t *testing.T) {
	client, _ := newTestClient(t, 3)

	_, err := client.Put(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
