package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

const sqliteSubmissionColumns = `id, submitter_id, submitter_name, assignment_id, content_ref, fingerprint, created_at_us`

// SQLiteLedger stores the ledger in a single SQLite file. Timestamps are
// kept as integer microseconds since the epoch.
type SQLiteLedger struct {
	db     *sql.DB
	logger zerolog.Logger

	// writeMu keeps the read-max-then-insert sequence atomic with respect
	// to other writers in this process.
	writeMu sync.Mutex
}

func NewSQLiteLedger(db *sql.DB, logger zerolog.Logger) (*SQLiteLedger, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteLedger{db: db, logger: logger}, nil
}

func (l *SQLiteLedger) RecordSubmission(ctx context.Context, sub *models.Submission) (*models.Submission, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(created_at_us) FROM submissions`,
	).Scan(&last); err != nil {
		return nil, unavailable("failed to read latest timestamp", err)
	}

	var lastCreated time.Time
	if last.Valid {
		lastCreated = fromMicros(last.Int64)
	}

	stored := *sub
	stored.CreatedAt = nextTimestamp(sub.CreatedAt, lastCreated)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO submissions (id, submitter_id, submitter_key, submitter_name, assignment_id, content_ref, fingerprint, created_at_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.SubmitterID, stored.SubmitterKey(), stored.SubmitterName,
		stored.AssignmentID, stored.ContentRef, stored.Fingerprint, stored.CreatedAt.UnixMicro(),
	); err != nil {
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
			return nil, fmt.Errorf("submission %s: %w", sub.ID, models.ErrConflict)
		}
		return nil, unavailable("failed to insert submission", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("failed to commit submission", err)
	}

	return &stored, nil
}

func (l *SQLiteLedger) RecordDetection(ctx context.Context, report *models.DetectionReport) (*models.DetectionReport, error) {
	if err := validateReport(report); err != nil {
		return nil, err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("failed to begin transaction", err)
	}
	defer tx.Rollback()

	sub, err := l.lookupSubmission(ctx, tx, report.SubmissionID)
	if err != nil {
		return nil, err
	}
	if report.IsDuplicate {
		matched, err := l.lookupSubmission(ctx, tx, report.MatchedID())
		if err != nil {
			return nil, err
		}
		if err := validateMatch(sub, matched); err != nil {
			return nil, err
		}
	}

	stored := copyReport(report)
	stored.CreatedAt = reportTimestamp(report.CreatedAt)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO detection_reports (id, submission_id, is_duplicate, matched_submission_id, score, created_at_us)
		VALUES (?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.SubmissionID, stored.IsDuplicate, stored.MatchedSubmissionID, stored.Score, stored.CreatedAt.UnixMicro(),
	); err != nil {
		switch {
		case isConstraint(err, sqlite3.ErrConstraintUnique):
			return nil, fmt.Errorf("submission %s: %w", report.SubmissionID, models.ErrAlreadyRecorded)
		case isConstraint(err, sqlite3.ErrConstraintPrimaryKey):
			return nil, fmt.Errorf("report %s: %w", report.ID, models.ErrConflict)
		case isConstraint(err, sqlite3.ErrConstraintCheck):
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		return nil, unavailable("failed to insert report", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("failed to commit report", err)
	}

	return stored, nil
}

func (l *SQLiteLedger) lookupSubmission(ctx context.Context, tx *sql.Tx, id string) (*models.Submission, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+sqliteSubmissionColumns+` FROM submissions WHERE id = ?`, id)

	sub, err := scanSQLiteSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, submissionNotFound(id)
	}
	if err != nil {
		return nil, unavailable("failed to check submission", err)
	}
	return sub, nil
}

func (l *SQLiteLedger) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+sqliteSubmissionColumns+` FROM submissions WHERE id = ?`, id)

	sub, err := scanSQLiteSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, submissionNotFound(id)
		}
		return nil, unavailable("failed to get submission", err)
	}

	return sub, nil
}

func (l *SQLiteLedger) GetReportsFor(ctx context.Context, submissionID string) ([]models.DetectionReport, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, submission_id, is_duplicate, matched_submission_id, score, created_at_us
		FROM detection_reports
		WHERE submission_id = ?
		ORDER BY created_at_us, id`, submissionID)
	if err != nil {
		return nil, unavailable("failed to get reports", err)
	}
	defer rows.Close()

	reports := make([]models.DetectionReport, 0, 1)
	for rows.Next() {
		var (
			report  models.DetectionReport
			matched sql.NullString
			created int64
		)
		if err := rows.Scan(&report.ID, &report.SubmissionID, &report.IsDuplicate, &matched, &report.Score, &created); err != nil {
			return nil, unavailable("failed to scan report", err)
		}
		if matched.Valid {
			report.MatchedSubmissionID = &matched.String
		}
		report.CreatedAt = fromMicros(created)
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("failed to iterate reports", err)
	}

	return reports, nil
}

func (l *SQLiteLedger) GetAssignmentAggregate(ctx context.Context, assignmentID string) (*models.AssignmentAggregate, error) {
	agg := &models.AssignmentAggregate{AssignmentID: assignmentID}

	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(s.id), COALESCE(SUM(CASE WHEN r.is_duplicate = 1 THEN 1 ELSE 0 END), 0)
		FROM submissions s
		LEFT JOIN detection_reports r ON r.submission_id = s.id
		WHERE s.assignment_id = ?`, assignmentID,
	).Scan(&agg.TotalSubmissions, &agg.DuplicateCount)
	if err != nil {
		return nil, unavailable("failed to aggregate assignment", err)
	}

	return agg, nil
}

func (l *SQLiteLedger) FindEarliestMatch(ctx context.Context, q MatchQuery) (*models.Submission, error) {
	var before sql.NullInt64
	if !q.Before.IsZero() {
		before = sql.NullInt64{Int64: q.Before.UnixMicro(), Valid: true}
	}

	row := l.db.QueryRowContext(ctx, `
		SELECT `+sqliteSubmissionColumns+`
		FROM submissions
		WHERE assignment_id = ?
		  AND fingerprint = ?
		  AND submitter_key <> ?
		  AND (? IS NULL OR created_at_us < ?)
		ORDER BY created_at_us, id
		LIMIT 1`,
		q.AssignmentID, q.Fingerprint, models.SubmitterKey(q.ExcludeSubmitter), before, before,
	)

	sub, err := scanSQLiteSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("failed to find match", err)
	}

	return sub, nil
}

func (l *SQLiteLedger) ListUnreported(ctx context.Context, limit int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT s.id, s.submitter_id, s.submitter_name, s.assignment_id, s.content_ref, s.fingerprint, s.created_at_us
		FROM submissions s
		LEFT JOIN detection_reports r ON r.submission_id = s.id
		WHERE r.id IS NULL
		ORDER BY s.created_at_us, s.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("failed to list unreported submissions", err)
	}
	defer rows.Close()

	pending := make([]models.Submission, 0)
	for rows.Next() {
		sub, err := scanSQLiteSubmission(rows)
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

func (l *SQLiteLedger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return l.db.PingContext(ctx)
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func scanSQLiteSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub     models.Submission
		created int64
	)
	if err := row.Scan(
		&sub.ID,
		&sub.SubmitterID,
		&sub.SubmitterName,
		&sub.AssignmentID,
		&sub.ContentRef,
		&sub.Fingerprint,
		&created,
	); err != nil {
		return nil, err
	}
	sub.CreatedAt = fromMicros(created)
	return &sub, nil
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint && sqliteErr.ExtendedCode == code
}
