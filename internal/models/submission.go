package models

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Submission struct {
	ID            string    `json:"id" db:"id"`
	SubmitterID   string    `json:"submitter_id" db:"submitter_id"`
	SubmitterName string    `json:"submitter_name" db:"submitter_name"`
	AssignmentID  string    `json:"assignment_id" db:"assignment_id"`
	ContentRef    string    `json:"content_ref" db:"content_ref"`
	Fingerprint   string    `json:"fingerprint" db:"fingerprint"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// SubmitterKey is the caseless form used when comparing submitters.
func (s *Submission) SubmitterKey() string {
	return SubmitterKey(s.SubmitterID)
}

// SameSubmitter reports whether two submitter ids identify the same person.
// It compares the same keys the SQL ledgers store, so every backend agrees.
func SameSubmitter(a, b string) bool {
	return SubmitterKey(a) == SubmitterKey(b)
}

// SubmitterKey applies full Unicode case folding between canonical
// decomposition and composition, so "Straße", "STRASSE" and "strasse" share
// one key. A Caser holds state, hence one per call.
func SubmitterKey(submitterID string) string {
	return norm.NFC.String(cases.Fold().String(norm.NFD.String(submitterID)))
}
