// Package moderation defines the moderation statuses of scraped jobs.
//
// PENDING is the only entry state. The ingestion pipeline only ever creates
// jobs in PENDING; moving out of it belongs to whoever moderates the board.
package moderation

import "fmt"

// Status values mirror the jobs.status CHECK constraint in PostgreSQL.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Initial is the status every ingested job is created with.
const Initial = StatusPending

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}
