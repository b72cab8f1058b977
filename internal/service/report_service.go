package service

import (
	"context"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/rs/zerolog"
)

type ReportService interface {
	GetReports(ctx context.Context, submissionID string) ([]models.ReportResponse, error)
	GetAssignmentSummary(ctx context.Context, assignmentID string) (*models.AssignmentAggregate, error)
	GetServiceStatus(ctx context.Context) (*models.ServiceStatus, error)
}

type StatusInfo struct {
	Version         string
	LedgerDriver    string
	StorageProvider string
	EventsEnabled   bool
	ActiveWorkers   func() int
}

type reportService struct {
	ledger repository.Ledger
	info   StatusInfo
	logger zerolog.Logger
}

func NewReportService(ledger repository.Ledger, info StatusInfo, logger zerolog.Logger) ReportService {
	return &reportService{
		ledger: ledger,
		info:   info,
		logger: logger,
	}
}

func (s *reportService) GetReports(ctx context.Context, submissionID string) ([]models.ReportResponse, error) {
	reports, err := s.ledger.GetReportsFor(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no reports for submission %s: %w", submissionID, models.ErrNotFound)
	}

	sub, err := s.ledger.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	responses := make([]models.ReportResponse, 0, len(reports))
	for i := range reports {
		responses = append(responses, models.NewReportResponse(sub, &reports[i]))
	}

	return responses, nil
}

func (s *reportService) GetAssignmentSummary(ctx context.Context, assignmentID string) (*models.AssignmentAggregate, error) {
	agg, err := s.ledger.GetAssignmentAggregate(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment summary: %w", err)
	}
	if agg.TotalSubmissions == 0 {
		return nil, fmt.Errorf("assignment %s has no submissions: %w", assignmentID, models.ErrNotFound)
	}

	return agg, nil
}

func (s *reportService) GetServiceStatus(ctx context.Context) (*models.ServiceStatus, error) {
	status := &models.ServiceStatus{
		Service:       "plagiarism-checker",
		Version:       s.info.Version,
		LedgerDriver:  s.info.LedgerDriver,
		StorageDriver: s.info.StorageProvider,
		EventsEnabled: s.info.EventsEnabled,
		LedgerHealthy: true,
		Timestamp:     time.Now().UTC(),
	}

	if err := s.ledger.Ping(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Ledger ping failed")
		status.LedgerHealthy = false
	}
	if s.info.ActiveWorkers != nil {
		status.ActiveWorkers = s.info.ActiveWorkers()
	}

	return status, nil
}
