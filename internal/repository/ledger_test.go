package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/migrations"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type ledgerFactory func(t *testing.T) Ledger

func ledgerBackends(t *testing.T) map[string]ledgerFactory {
	backends := map[string]ledgerFactory{
		"memory": func(t *testing.T) Ledger { return NewMemoryLedger() },
		"sqlite": newTestSQLiteLedger,
	}
	if dsn := os.Getenv("LEDGER_TEST_POSTGRES_DSN"); dsn != "" {
		backends["postgres"] = func(t *testing.T) Ledger { return newTestPostgresLedger(t, dsn) }
	}
	return backends
}

func newTestSQLiteLedger(t *testing.T) Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	ledger, err := NewSQLiteLedger(db, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func newTestPostgresLedger(t *testing.T, dsn string) Ledger {
	t.Helper()
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	files, err := fs.Glob(migrations.Postgres, migrations.PostgresDir+"/*.up.sql")
	require.NoError(t, err)
	sort.Strings(files)
	for _, name := range files {
		body, err := migrations.Postgres.ReadFile(name)
		require.NoError(t, err)
		_, err = db.Exec(string(body))
		require.NoError(t, err, name)
	}
	_, err = db.Exec(`TRUNCATE detection_reports, submissions`)
	require.NoError(t, err)

	ledger := NewPostgresLedger(db, zerolog.Nop())
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func newSubmission(assignment, submitter, fingerprint string) *models.Submission {
	return &models.Submission{
		ID:            uuid.New().String(),
		SubmitterID:   submitter,
		SubmitterName: "Name " + submitter,
		AssignmentID:  assignment,
		ContentRef:    uuid.New().String(),
		Fingerprint:   fingerprint,
		CreatedAt:     time.Now().UTC(),
	}
}

func forEachLedger(t *testing.T, fn func(t *testing.T, ledger Ledger)) {
	for name, factory := range ledgerBackends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestLedgerRecordAndGetSubmission(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()
		sub := newSubmission("a1", "s1", "fp")

		recorded, err := ledger.RecordSubmission(ctx, sub)
		require.NoError(t, err)
		assert.False(t, recorded.CreatedAt.IsZero())

		got, err := ledger.GetSubmission(ctx, sub.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(recorded, got); diff != "" {
			t.Errorf("stored submission mismatch (-recorded +got):\n%s", diff)
		}

		_, err = ledger.GetSubmission(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestLedgerRejectsDuplicateSubmissionID(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()
		sub := newSubmission("a1", "s1", "fp")

		_, err := ledger.RecordSubmission(ctx, sub)
		require.NoError(t, err)

		_, err = ledger.RecordSubmission(ctx, sub)
		assert.ErrorIs(t, err, models.ErrConflict)
	})
}

func TestLedgerRejectsIncompleteSubmission(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		sub := newSubmission("a1", "", "fp")
		_, err := ledger.RecordSubmission(context.Background(), sub)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestLedgerTimestampsStrictlyIncreasePerKey(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()
		fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		var previous time.Time
		for i := 0; i < 5; i++ {
			sub := newSubmission("a1", fmt.Sprintf("s%d", i), "fp")
			sub.CreatedAt = fixed

			recorded, err := ledger.RecordSubmission(ctx, sub)
			require.NoError(t, err)
			if i > 0 {
				assert.True(t, recorded.CreatedAt.After(previous), "timestamp %d did not increase", i)
			}
			previous = recorded.CreatedAt
		}
	})
}

func TestLedgerTimestampsNeverDecreaseAcrossKeys(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()
		now := time.Now().UTC()

		first := newSubmission("a1", "s1", "fp-1")
		first.CreatedAt = now
		recordedFirst, err := ledger.RecordSubmission(ctx, first)
		require.NoError(t, err)

		// A slower caller read the clock earlier but inserts later.
		second := newSubmission("a1", "s2", "fp-2")
		second.CreatedAt = now.Add(-time.Second)
		recordedSecond, err := ledger.RecordSubmission(ctx, second)
		require.NoError(t, err)

		other := newSubmission("a2", "s3", "fp-3")
		other.CreatedAt = now.Add(-time.Hour)
		recordedOther, err := ledger.RecordSubmission(ctx, other)
		require.NoError(t, err)

		assert.True(t, recordedSecond.CreatedAt.After(recordedFirst.CreatedAt))
		assert.True(t, recordedOther.CreatedAt.After(recordedSecond.CreatedAt))

		pending, err := ledger.ListUnreported(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, []string{first.ID, second.ID, other.ID},
			[]string{pending[0].ID, pending[1].ID, pending[2].ID})
	})
}

func TestLedgerRejectsReportWithInvalidMatch(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()

		first, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s1", "fp"))
		require.NoError(t, err)
		later, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s2", "fp"))
		require.NoError(t, err)
		sameSubmitter, err := ledger.RecordSubmission(ctx, newSubmission("a1", "S1", "fp"))
		require.NoError(t, err)
		otherAssignment, err := ledger.RecordSubmission(ctx, newSubmission("a2", "s3", "fp"))
		require.NoError(t, err)
		otherContent, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s4", "fp-other"))
		require.NoError(t, err)

		cases := map[string]*models.DetectionReport{
			"later match":      models.NewDetectionReport(first.ID, later),
			"same submitter":   models.NewDetectionReport(sameSubmitter.ID, first),
			"other assignment": models.NewDetectionReport(otherAssignment.ID, first),
			"other content":    models.NewDetectionReport(otherContent.ID, first),
		}
		for name, report := range cases {
			_, err := ledger.RecordDetection(ctx, report)
			assert.ErrorIs(t, err, models.ErrInvalidInput, name)
		}

		for _, id := range []string{first.ID, sameSubmitter.ID, otherAssignment.ID, otherContent.ID} {
			reports, err := ledger.GetReportsFor(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, reports)
		}

		_, err = ledger.RecordDetection(ctx, models.NewDetectionReport(later.ID, first))
		assert.NoError(t, err)
	})
}

func TestLedgerRecordDetection(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()
		first, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s1", "fp"))
		require.NoError(t, err)
		second, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s2", "fp"))
		require.NoError(t, err)

		reports, err := ledger.GetReportsFor(ctx, second.ID)
		require.NoError(t, err)
		assert.Empty(t, reports)

		report := models.NewDetectionReport(second.ID, first)
		stored, err := ledger.RecordDetection(ctx, report)
		require.NoError(t, err)
		assert.True(t, stored.SameOutcome(report))

		reports, err = ledger.GetReportsFor(ctx, second.ID)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, report.ID, reports[0].ID)
		assert.True(t, reports[0].IsDuplicate)
		assert.Equal(t, first.ID, reports[0].MatchedID())
		assert.Equal(t, models.ScoreDuplicate, reports[0].Score)

		_, err = ledger.RecordDetection(ctx, models.NewDetectionReport(second.ID, nil))
		assert.ErrorIs(t, err, models.ErrAlreadyRecorded)
	})
}

func TestLedgerRecordDetectionUnknownSubmission(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		_, err := ledger.RecordDetection(context.Background(), models.NewDetectionReport(uuid.New().String(), nil))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestLedgerRejectsInconsistentReport(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()
		sub, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s1", "fp"))
		require.NoError(t, err)

		report := models.NewDetectionReport(sub.ID, nil)
		report.IsDuplicate = true
		_, err = ledger.RecordDetection(ctx, report)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestLedgerAssignmentAggregate(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()

		agg, err := ledger.GetAssignmentAggregate(ctx, "unknown")
		require.NoError(t, err)
		assert.Equal(t, models.AssignmentAggregate{AssignmentID: "unknown"}, *agg)

		a, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s1", "fp-1"))
		require.NoError(t, err)
		b, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s2", "fp-1"))
		require.NoError(t, err)
		c, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s3", "fp-2"))
		require.NoError(t, err)
		_, err = ledger.RecordSubmission(ctx, newSubmission("a2", "s1", "fp-1"))
		require.NoError(t, err)

		for _, report := range []*models.DetectionReport{
			models.NewDetectionReport(a.ID, nil),
			models.NewDetectionReport(b.ID, a),
			models.NewDetectionReport(c.ID, nil),
		} {
			_, err := ledger.RecordDetection(ctx, report)
			require.NoError(t, err)
		}

		agg, err = ledger.GetAssignmentAggregate(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, 3, agg.TotalSubmissions)
		assert.Equal(t, 1, agg.DuplicateCount)
	})
}

func TestLedgerFindEarliestMatch(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()

		first, err := ledger.RecordSubmission(ctx, newSubmission("a1", "Alice", "fp"))
		require.NoError(t, err)
		second, err := ledger.RecordSubmission(ctx, newSubmission("a1", "bob", "fp"))
		require.NoError(t, err)
		_, err = ledger.RecordSubmission(ctx, newSubmission("a2", "carol", "fp"))
		require.NoError(t, err)
		_, err = ledger.RecordSubmission(ctx, newSubmission("a1", "dave", "other"))
		require.NoError(t, err)

		match, err := ledger.FindEarliestMatch(ctx, MatchQuery{AssignmentID: "a1", Fingerprint: "fp", ExcludeSubmitter: "carol"})
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, first.ID, match.ID)

		match, err = ledger.FindEarliestMatch(ctx, MatchQuery{AssignmentID: "a1", Fingerprint: "fp", ExcludeSubmitter: "ALICE"})
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, second.ID, match.ID)

		match, err = ledger.FindEarliestMatch(ctx, MatchQuery{
			AssignmentID:     "a1",
			Fingerprint:      "fp",
			ExcludeSubmitter: "alice",
			Before:           second.CreatedAt,
		})
		require.NoError(t, err)
		assert.Nil(t, match)

		match, err = ledger.FindEarliestMatch(ctx, MatchQuery{AssignmentID: "a3", Fingerprint: "fp", ExcludeSubmitter: "x"})
		require.NoError(t, err)
		assert.Nil(t, match)
	})
}

func TestLedgerListUnreported(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()

		var subs []*models.Submission
		for i := 0; i < 3; i++ {
			sub, err := ledger.RecordSubmission(ctx, newSubmission("a1", fmt.Sprintf("s%d", i), fmt.Sprintf("fp-%d", i)))
			require.NoError(t, err)
			subs = append(subs, sub)
		}
		_, err := ledger.RecordDetection(ctx, models.NewDetectionReport(subs[1].ID, nil))
		require.NoError(t, err)

		pending, err := ledger.ListUnreported(ctx, 10)
		require.NoError(t, err)

		ids := make([]string, 0, len(pending))
		for _, sub := range pending {
			ids = append(ids, sub.ID)
		}
		assert.ElementsMatch(t, []string{subs[0].ID, subs[2].ID}, ids)

		limited, err := ledger.ListUnreported(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestLedgerConcurrentInsertsAreOrdered(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx := context.Background()
		const n = 16

		recorded := make([]*models.Submission, n)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				sub, err := ledger.RecordSubmission(gctx, newSubmission("a1", fmt.Sprintf("s%d", i), "fp"))
				recorded[i] = sub
				return err
			})
		}
		require.NoError(t, g.Wait())

		seen := make(map[time.Time]bool, n)
		for _, sub := range recorded {
			assert.False(t, seen[sub.CreatedAt], "duplicate timestamp %s", sub.CreatedAt)
			seen[sub.CreatedAt] = true
		}

		// Exactly one record has no strictly earlier record from another submitter.
		originals := 0
		for _, sub := range recorded {
			match, err := ledger.FindEarliestMatch(ctx, MatchQuery{
				AssignmentID:     sub.AssignmentID,
				Fingerprint:      sub.Fingerprint,
				ExcludeSubmitter: sub.SubmitterID,
				Before:           sub.CreatedAt,
			})
			require.NoError(t, err)
			if match == nil {
				originals++
			}
		}
		assert.Equal(t, 1, originals)
	})
}

func TestLedgerHonoursCanceledContext(t *testing.T) {
	forEachLedger(t, func(t *testing.T, ledger Ledger) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := ledger.RecordSubmission(ctx, newSubmission("a1", "s1", "fp"))
		assert.Error(t, err)

		agg, err := ledger.GetAssignmentAggregate(context.Background(), "a1")
		require.NoError(t, err)
		assert.Zero(t, agg.TotalSubmissions)
	})
}

func TestNextTimestamp(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 123456789, time.UTC)

	assert.Equal(t, base.Truncate(time.Microsecond), nextTimestamp(base, time.Time{}))
	assert.Equal(t, base.Truncate(time.Microsecond).Add(time.Microsecond), nextTimestamp(base, base.Truncate(time.Microsecond)))
	assert.Equal(t, base.Add(time.Hour).Truncate(time.Microsecond).Add(time.Microsecond),
		nextTimestamp(base, base.Add(time.Hour)))
	assert.False(t, nextTimestamp(time.Time{}, time.Time{}).IsZero())
}
