package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, ledger, storage string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	return &config.Config{
		Server: config.ServerConfig{
			Address:        "127.0.0.1:0",
			RequestTimeout: 10 * time.Second,
			MaxUploadSize:  1 << 20,
		},
		Ledger:    config.LedgerConfig{Driver: ledger},
		SQLite:    config.SQLiteConfig{Path: filepath.Join(dir, "ledger.db"), BusyTimeout: time.Second},
		Storage:   config.StorageConfig{Provider: storage, FilesystemRoot: filepath.Join(dir, "content")},
		Worker:    config.WorkerConfig{MaxWorkers: 2, ReconcileInterval: time.Hour, ReconcileBatch: 10},
		Detection: config.DetectionConfig{HashAlgorithm: "sha256"},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}},
	}
}

func submit(t *testing.T, h http.Handler, submitter, content string) models.SubmitResult {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("submitter_id", submitter)
	mw.WriteField("assignment_id", "hw1")
	part, err := mw.CreateFormFile("file", "work.txt")
	require.NoError(t, err)
	part.Write([]byte(content))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env struct {
		Data models.SubmitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func TestAppWiring(t *testing.T) {
	cases := []struct {
		ledger  string
		storage string
	}{
		{config.LedgerMemory, config.StorageMemory},
		{config.LedgerSQLite, config.StorageFilesystem},
	}

	for _, tc := range cases {
		t.Run(tc.ledger+"/"+tc.storage, func(t *testing.T) {
			a, err := New(context.Background(), testConfig(t, tc.ledger, tc.storage), "test", zerolog.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { a.Shutdown(context.Background()) })

			first := submit(t, a.Handler(), "alice", "identical essay")
			second := submit(t, a.Handler(), "bob", "identical essay")
			third := submit(t, a.Handler(), "ALICE", "identical essay")

			assert.False(t, first.IsDuplicate)
			assert.True(t, second.IsDuplicate)
			// Своя же ранняя работа не в счёт, даже в другом регистре.
			require.True(t, third.IsDuplicate)
			assert.Equal(t, second.SubmissionID, *third.MatchedSubmissionID)

			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
			assert.Equal(t, http.StatusOK, rec.Code)

			completed, err := a.Reconcile(context.Background(), 10)
			require.NoError(t, err)
			assert.Zero(t, completed)
		})
	}
}

func TestAppRejectsUnknownHashAlgorithm(t *testing.T) {
	cfg := testConfig(t, config.LedgerMemory, config.StorageMemory)
	cfg.Detection.HashAlgorithm = "crc32"

	_, err := New(context.Background(), cfg, "test", zerolog.Nop())
	assert.Error(t, err)
}
