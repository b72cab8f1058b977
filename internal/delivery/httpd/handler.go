package httpd

import (
	"net/http"
	"strconv"

	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Handler struct {
	submissionService service.SubmissionService
	reportService     service.ReportService
	contentStore      repository.ContentStore
	opts              Options
	logger            zerolog.Logger
}

// Options tunes the HTTP surface. Zero values fall back to defaults.
type Options struct {
	Version       string
	MaxUploadSize int64
}

func NewHandler(
	submissionService service.SubmissionService,
	reportService service.ReportService,
	contentStore repository.ContentStore,
	opts Options,
	logger zerolog.Logger,
) *Handler {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 32 << 20
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	return &Handler{
		submissionService: submissionService,
		reportService:     reportService,
		contentStore:      contentStore,
		opts:              opts,
		logger:            logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/status", h.GetServiceStatus)

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/submissions", func(r chi.Router) {
			r.Post("/", h.Submit)
			r.Post("/reconcile", h.ReconcileUnreported)
			r.Get("/{submission_id}/reports", h.GetReports)
			r.Post("/{submission_id}/report", h.CompleteReport)
		})

		api.Get("/assignments/{assignment_id}/summary", h.GetAssignmentSummary)

		api.Route("/files", func(r chi.Router) {
			r.Post("/", h.UploadContent)
			r.Get("/{file_id}", h.DownloadContent)
		})
	})
}

// Вспомогательные функции
func getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}
