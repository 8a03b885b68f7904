// Package store persists session state: candidates and quota allocations.
//
// Stores are interface-driven to keep the domain logic testable and to allow
// swapping the durable SQLite store for the in-memory twin in tests without
// rewiring business code.
package store

import (
	"context"

	"bursa/internal/session/models"
	dErrors "bursa/pkg/domain-errors"
)

// ErrNotFound keeps store-level 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

// SearchField selects which candidate column lookups run against.
type SearchField string

const (
	FieldNumber     SearchField = "number"
	FieldExternalID SearchField = "external_id"
	FieldName       SearchField = "name"
)

func (f SearchField) IsValid() bool {
	switch f {
	case FieldNumber, FieldExternalID, FieldName:
		return true
	}
	return false
}

// DefaultFuzzyLimit caps fuzzy search results when the caller passes no limit.
const DefaultFuzzyLimit = 20

// Store is the record store contract. Read methods returning candidate lists
// order rows by canonical level order, then program, then application number;
// exported documents rely on that ordering.
type Store interface {
	// UpsertCandidates inserts or replaces candidates by request id. No quota
	// checking happens here: bulk import is a data load, not a new decision.
	UpsertCandidates(ctx context.Context, records []models.Candidate) error

	// UpsertQuotas replaces capacity entries by bucket.
	UpsertQuotas(ctx context.Context, capacities map[models.Bucket]int) error

	// AllCandidates returns the full ordered snapshot.
	AllCandidates(ctx context.Context) ([]models.Candidate, error)

	// Quotas returns the full capacity snapshot.
	Quotas(ctx context.Context) (map[models.Bucket]int, error)

	// FavorableCounts recomputes favorable decisions per bucket from current
	// rows. Quota checks depend on this being fresh, never cached.
	FavorableCounts(ctx context.Context) (map[models.Bucket]int, error)

	// Stats returns session aggregates in one consistent read.
	Stats(ctx context.Context) (models.Stats, error)

	// FindExact looks a candidate up by one field. A miss returns
	// (nil, nil); a non-numeric query against the number field is a miss,
	// not an error.
	FindExact(ctx context.Context, field SearchField, query string) (*models.Candidate, error)

	// FindFuzzy returns case-insensitive substring matches ordered by
	// application number, capped at limit (DefaultFuzzyLimit when <= 0).
	FindFuzzy(ctx context.Context, field SearchField, query string, limit int) ([]models.Candidate, error)

	// SetDecision writes a decision unconditionally. Quota preconditions are
	// the decision service's responsibility.
	SetDecision(ctx context.Context, requestID string, decision models.Decision) error

	// CountCandidates reports how many candidates are loaded.
	CountCandidates(ctx context.Context) (int, error)

	// TotalQuota sums capacity over all buckets.
	TotalQuota(ctx context.Context) (int, error)

	// Update runs fn inside a single transaction. No other Update on the
	// store observes an intermediate state, which makes the decision
	// service's read-check-write sequences safe per bucket.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// Reset drops all session data. Idempotent.
	Reset(ctx context.Context) error
}

// Tx is the view handed to Update callbacks.
type Tx interface {
	// Candidate fetches one candidate by request id, nil on miss.
	Candidate(requestID string) (*models.Candidate, error)

	// Capacity returns a bucket's capacity; ok is false when the bucket has
	// no quota row.
	Capacity(b models.Bucket) (capacity int, ok bool, err error)

	// FavorableCount counts favorable decisions in one bucket.
	FavorableCount(b models.Bucket) (int, error)

	// SetDecision writes a decision unconditionally.
	SetDecision(requestID string, decision models.Decision) error

	// AdjustCapacity adds delta to a bucket's capacity.
	AdjustCapacity(b models.Bucket, delta int) error
}
