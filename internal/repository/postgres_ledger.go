package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	reportsSubmissionUnique = "detection_reports_submission_id_key"

	submissionsLockKey = "submissions"
)

const submissionColumns = `id, submitter_id, submitter_name, assignment_id, content_ref, fingerprint, created_at`

type PostgresLedger struct {
	*PostgresRepository
}

func NewPostgresLedger(db *sql.DB, logger zerolog.Logger) *PostgresLedger {
	return &PostgresLedger{PostgresRepository: NewPostgresRepository(db, logger)}
}

// RecordSubmission takes a transaction-scoped advisory lock shared by every
// insert, so submissions are ordered and get strictly increasing timestamps
// across the whole table.
func (l *PostgresLedger) RecordSubmission(ctx context.Context, sub *models.Submission) (*models.Submission, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	stored := *sub
	err := l.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, submissionsLockKey,
		); err != nil {
			return fmt.Errorf("failed to lock submissions: %w", err)
		}

		var last sql.NullTime
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(created_at) FROM submissions`,
		).Scan(&last); err != nil {
			return fmt.Errorf("failed to read latest timestamp: %w", err)
		}
		stored.CreatedAt = nextTimestamp(sub.CreatedAt, last.Time)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO submissions (id, submitter_id, submitter_key, submitter_name, assignment_id, content_ref, fingerprint, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			stored.ID, stored.SubmitterID, stored.SubmitterKey(), stored.SubmitterName,
			stored.AssignmentID, stored.ContentRef, stored.Fingerprint, stored.CreatedAt,
		)
		return err
	})
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, fmt.Errorf("submission %s: %w", sub.ID, models.ErrConflict)
		}
		return nil, unavailable("failed to record submission", err)
	}

	l.logger.Debug().
		Str("submission_id", stored.ID).
		Str("assignment_id", stored.AssignmentID).
		Time("created_at", stored.CreatedAt).
		Msg("Submission recorded")

	return &stored, nil
}

func (l *PostgresLedger) RecordDetection(ctx context.Context, report *models.DetectionReport) (*models.DetectionReport, error) {
	if err := validateReport(report); err != nil {
		return nil, err
	}

	stored := copyReport(report)
	stored.CreatedAt = reportTimestamp(report.CreatedAt)

	// Ошибки проверки возвращаются как есть, без обёртки StoreUnavailable.
	var checkErr error
	err := l.WithTx(ctx, func(tx *sql.Tx) error {
		sub, err := lookupPostgresSubmission(ctx, tx, report.SubmissionID)
		if err != nil {
			checkErr = err
			return err
		}
		if report.IsDuplicate {
			matched, err := lookupPostgresSubmission(ctx, tx, report.MatchedID())
			if err != nil {
				checkErr = err
				return err
			}
			if err := validateMatch(sub, matched); err != nil {
				checkErr = err
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO detection_reports (id, submission_id, is_duplicate, matched_submission_id, score, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			stored.ID, stored.SubmissionID, stored.IsDuplicate, stored.MatchedSubmissionID, stored.Score, stored.CreatedAt,
		)
		return err
	})
	if checkErr != nil {
		return nil, checkErr
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch string(pqErr.Code) {
			case pgUniqueViolation:
				if pqErr.Constraint == reportsSubmissionUnique {
					return nil, fmt.Errorf("submission %s: %w", report.SubmissionID, models.ErrAlreadyRecorded)
				}
				return nil, fmt.Errorf("report %s: %w", report.ID, models.ErrConflict)
			case pgForeignKeyViolation:
				return nil, fmt.Errorf("report references unknown submission: %w", models.ErrNotFound)
			case pgCheckViolation:
				return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, pqErr.Message)
			}
		}
		return nil, unavailable("failed to record detection", err)
	}

	return stored, nil
}

func lookupPostgresSubmission(ctx context.Context, tx *sql.Tx, id string) (*models.Submission, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, submissionNotFound(id)
	}
	if err != nil {
		return nil, unavailable("failed to check submission", err)
	}
	return sub, nil
}

func (l *PostgresLedger) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)

	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, submissionNotFound(id)
		}
		return nil, unavailable("failed to get submission", err)
	}

	return sub, nil
}

func (l *PostgresLedger) GetReportsFor(ctx context.Context, submissionID string) ([]models.DetectionReport, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, submission_id, is_duplicate, matched_submission_id, score, created_at
		FROM detection_reports
		WHERE submission_id = $1
		ORDER BY created_at, id`, submissionID)
	if err != nil {
		return nil, unavailable("failed to get reports", err)
	}
	defer rows.Close()

	reports := make([]models.DetectionReport, 0, 1)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, unavailable("failed to scan report", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("failed to iterate reports", err)
	}

	return reports, nil
}

func (l *PostgresLedger) GetAssignmentAggregate(ctx context.Context, assignmentID string) (*models.AssignmentAggregate, error) {
	agg := &models.AssignmentAggregate{AssignmentID: assignmentID}

	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(s.id), COUNT(r.id) FILTER (WHERE r.is_duplicate)
		FROM submissions s
		LEFT JOIN detection_reports r ON r.submission_id = s.id
		WHERE s.assignment_id = $1`, assignmentID,
	).Scan(&agg.TotalSubmissions, &agg.DuplicateCount)
	if err != nil {
		return nil, unavailable("failed to aggregate assignment", err)
	}

	return agg, nil
}

func (l *PostgresLedger) FindEarliestMatch(ctx context.Context, q MatchQuery) (*models.Submission, error) {
	before := sql.NullTime{Time: q.Before, Valid: !q.Before.IsZero()}

	row := l.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE assignment_id = $1
		  AND fingerprint = $2
		  AND submitter_key <> $3
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at, id
		LIMIT 1`,
		q.AssignmentID, q.Fingerprint, models.SubmitterKey(q.ExcludeSubmitter), before,
	)

	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("failed to find match", err)
	}

	return sub, nil
}

func (l *PostgresLedger) ListUnreported(ctx context.Context, limit int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT s.id, s.submitter_id, s.submitter_name, s.assignment_id, s.content_ref, s.fingerprint, s.created_at
		FROM submissions s
		LEFT JOIN detection_reports r ON r.submission_id = s.id
		WHERE r.id IS NULL
		ORDER BY s.created_at, s.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, unavailable("failed to list unreported submissions", err)
	}
	defer rows.Close()

	pending := make([]models.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, unavailable("failed to scan submission", err)
		}
		pending = append(pending, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("failed to iterate submissions", err)
	}

	return pending, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var sub models.Submission
	if err := row.Scan(
		&sub.ID,
		&sub.SubmitterID,
		&sub.SubmitterName,
		&sub.AssignmentID,
		&sub.ContentRef,
		&sub.Fingerprint,
		&sub.CreatedAt,
	); err != nil {
		return nil, err
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	return &sub, nil
}

func scanReport(row rowScanner) (*models.DetectionReport, error) {
	var (
		report  models.DetectionReport
		matched sql.NullString
	)
	if err := row.Scan(
		&report.ID,
		&report.SubmissionID,
		&report.IsDuplicate,
		&matched,
		&report.Score,
		&report.CreatedAt,
	); err != nil {
		return nil, err
	}
	if matched.Valid {
		report.MatchedSubmissionID = &matched.String
	}
	report.CreatedAt = report.CreatedAt.UTC()
	return &report, nil
}

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
