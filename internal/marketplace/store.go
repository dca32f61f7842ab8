package marketplace

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the relational backend the matching engine reads profiles and jobs
// from and caches match records in.
type Store interface {
	GetCandidate(ctx context.Context, id string) (*Candidate, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) (*Jobs, error)
	ListApplications(ctx context.Context, candidateID string) (Applications, error)

	// GetMatchRecord returns nil and no error when the pair has no record.
	GetMatchRecord(ctx context.Context, candidateID, jobID string) (*MatchRecord, error)
	// UpsertMatchRecord writes the update keyed uniquely on (candidateID, jobID).
	UpsertMatchRecord(ctx context.Context, candidateID, jobID string, update MatchUpdate) error
}
