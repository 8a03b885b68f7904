// Package service implements the session's business rules: quota-gated
// decisions, conserved capacity transfers and session lifecycle.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"bursa/internal/platform/metrics"
	"bursa/internal/session/models"
	"bursa/internal/session/store"
	dErrors "bursa/pkg/domain-errors"
)

// SessionStatus reports whether a session has candidate data loaded.
type SessionStatus string

const (
	StatusNotLoaded SessionStatus = "not_loaded"
	StatusLoaded    SessionStatus = "loaded"
)

// TransferResult carries both new capacities after a successful transfer.
type TransferResult struct {
	From         models.Bucket `json:"from"`
	To           models.Bucket `json:"to"`
	Amount       int           `json:"amount"`
	FromCapacity int           `json:"from_capacity"`
	ToCapacity   int           `json:"to_capacity"`
}

type Service struct {
	store      store.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	fuzzyLimit int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFuzzyLimit overrides the fuzzy search result cap.
func WithFuzzyLimit(limit int) Option {
	return func(s *Service) {
		s.fuzzyLimit = limit
	}
}

func New(st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("session store is required")
	}

	svc := &Service{
		store:      st,
		logger:     slog.Default(),
		fuzzyLimit: store.DefaultFuzzyLimit,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Status derives the loaded state from row existence; there is no separate
// flag to drift out of sync.
func (s *Service) Status(ctx context.Context) (SessionStatus, error) {
	n, err := s.store.CountCandidates(ctx)
	if err != nil {
		return StatusNotLoaded, dErrors.Wrap(err, dErrors.CodeInternal, "failed to probe session state")
	}
	if n > 0 {
		return StatusLoaded, nil
	}
	return StatusNotLoaded, nil
}

// LoadCandidates bulk-upserts imported records. Decisions carried in the
// import file are written as-is: a load restores prior state, it does not
// re-decide.
func (s *Service) LoadCandidates(ctx context.Context, records []models.Candidate) (int, error) {
	if len(records) == 0 {
		return 0, dErrors.New(dErrors.CodeUnprocessable, "import produced no candidate records")
	}
	if err := s.store.UpsertCandidates(ctx, records); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidates")
	}
	if s.metrics != nil {
		s.metrics.RecordImport(len(records))
	}
	s.logger.InfoContext(ctx, "candidates loaded", "count", len(records))
	return len(records), nil
}

// LoadCapacityPlan seeds quota rows from the external seat allocation.
func (s *Service) LoadCapacityPlan(ctx context.Context, plan models.CapacityPlan) (int, error) {
	buckets := plan.Buckets()
	if len(buckets) == 0 {
		return 0, dErrors.New(dErrors.CodeUnprocessable, "capacity plan contains no buckets")
	}
	if err := s.store.UpsertQuotas(ctx, buckets); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load capacity plan")
	}
	s.logger.InfoContext(ctx, "capacity plan loaded", "buckets", len(buckets))
	return len(buckets), nil
}

// ApplyDecision records a reviewer decision. Entering Favorable is gated by
// the bucket's capacity; the count is re-read inside the same transaction as
// the write, so two simultaneous favorable decisions cannot both slip under
// the quota. A candidate already Favorable passes the gate unchanged.
func (s *Service) ApplyDecision(ctx context.Context, requestID string, decision models.Decision) error {
	if !decision.IsValid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "invalid decision %q", decision)
	}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		c, err := tx.Candidate(requestID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read candidate")
		}
		if c == nil {
			return dErrors.Newf(dErrors.CodeNotFound, "candidate %s not found", requestID)
		}

		if decision == models.DecisionFavorable && c.Decision != models.DecisionFavorable {
			bucket := c.Bucket()
			capacity, constrained, err := tx.Capacity(bucket)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read capacity")
			}
			if constrained {
				favorable, err := tx.FavorableCount(bucket)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count favorable decisions")
				}
				if favorable >= capacity {
					return dErrors.Newf(dErrors.CodeConflict,
						"quota exhausted for %s: %d of %d seats awarded", bucket, favorable, capacity)
				}
			}
		}

		return tx.SetDecision(requestID, decision)
	})
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeConflict && s.metrics != nil {
			s.metrics.DecisionRejected()
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.DecisionApplied(string(decision))
	}
	s.logger.InfoContext(ctx, "decision applied", "request_id", requestID, "decision", decision)
	return nil
}

// TransferCapacity moves seats between buckets. Both updates happen in one
// transaction, so the global capacity sum is unchanged by construction and a
// rejection leaves both buckets untouched.
func (s *Service) TransferCapacity(ctx context.Context, from, to models.Bucket, amount int) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, dErrors.New(dErrors.CodeBadRequest, "transfer amount must be greater than 0")
	}
	if from == to {
		return TransferResult{}, dErrors.New(dErrors.CodeBadRequest, "source and destination buckets must differ")
	}

	var result TransferResult
	err := s.store.Update(ctx, func(tx store.Tx) error {
		fromCapacity, ok, err := tx.Capacity(from)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read source capacity")
		}
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "source bucket %s not found", from)
		}

		favorable, err := tx.FavorableCount(from)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count favorable decisions")
		}
		available := fromCapacity - favorable
		if amount > available {
			return dErrors.Newf(dErrors.CodeConflict,
				"insufficient available seats in %s: capacity %d, favorable %d, available %d",
				from, fromCapacity, favorable, available)
		}

		toCapacity, ok, err := tx.Capacity(to)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read destination capacity")
		}
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "destination bucket %s not found", to)
		}

		if err := tx.AdjustCapacity(from, -amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit source bucket")
		}
		if err := tx.AdjustCapacity(to, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit destination bucket")
		}

		result = TransferResult{
			From:         from,
			To:           to,
			Amount:       amount,
			FromCapacity: fromCapacity - amount,
			ToCapacity:   toCapacity + amount,
		}
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.TransferRejected()
		}
		return TransferResult{}, err
	}

	if s.metrics != nil {
		s.metrics.TransferApplied()
	}
	s.logger.InfoContext(ctx, "capacity transferred",
		"from", from.String(), "to", to.String(), "amount", amount,
		"from_capacity", result.FromCapacity, "to_capacity", result.ToCapacity)
	return result, nil
}

// Search looks a candidate up by field, exact match first with fuzzy
// fallback. Misses return an empty slice, never an error.
func (s *Service) Search(ctx context.Context, field store.SearchField, query string) ([]models.Candidate, error) {
	if !field.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown search field %q", field)
	}

	exact, err := s.store.FindExact(ctx, field, query)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "exact lookup failed")
	}
	if exact != nil {
		return []models.Candidate{*exact}, nil
	}

	matches, err := s.store.FindFuzzy(ctx, field, query, s.fuzzyLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fuzzy lookup failed")
	}
	return matches, nil
}

func (s *Service) Candidates(ctx context.Context) ([]models.Candidate, error) {
	out, err := s.store.AllCandidates(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidates")
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute stats")
	}
	return st, nil
}

// QuotaStatuses joins quota capacities with fresh favorable counts, ordered
// by canonical level order then program name.
func (s *Service) QuotaStatuses(ctx context.Context) ([]models.QuotaStatus, error) {
	quotas, err := s.store.Quotas(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read quotas")
	}
	favorable, err := s.store.FavorableCounts(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count favorable decisions")
	}

	out := make([]models.QuotaStatus, 0, len(quotas))
	for bucket, capacity := range quotas {
		fav := favorable[bucket]
		out = append(out, models.QuotaStatus{
			Bucket:      bucket,
			Capacity:    capacity,
			Favorable:   fav,
			Remaining:   capacity - fav,
			Constrained: true,
		})
	}
	// Buckets with favorable decisions but no quota row are unconstrained;
	// they still belong on the sheet so the missing allocation is visible.
	for bucket, fav := range favorable {
		if _, ok := quotas[bucket]; !ok && fav > 0 {
			out = append(out, models.QuotaStatus{Bucket: bucket, Favorable: fav})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if ra, rb := out[i].Level.Rank(), out[j].Level.Rank(); ra != rb {
			return ra < rb
		}
		return out[i].Program < out[j].Program
	})
	return out, nil
}

// FavorableCounts exposes fresh per-bucket counts for the export formatter.
func (s *Service) FavorableCounts(ctx context.Context) (map[models.Bucket]int, error) {
	out, err := s.store.FavorableCounts(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count favorable decisions")
	}
	return out, nil
}

// CanonicalPrograms returns the program spellings known to the quota table,
// used as the import adapter's reference list.
func (s *Service) CanonicalPrograms(ctx context.Context) ([]string, error) {
	quotas, err := s.store.Quotas(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read quotas")
	}
	seen := make(map[string]bool, len(quotas))
	var names []string
	for bucket := range quotas {
		if !seen[bucket.Program] {
			seen[bucket.Program] = true
			names = append(names, bucket.Program)
		}
	}
	sort.Strings(names)
	return names, nil
}

// TotalQuota sums all bucket capacities; transfers never change it.
func (s *Service) TotalQuota(ctx context.Context) (int, error) {
	total, err := s.store.TotalQuota(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sum quotas")
	}
	return total, nil
}

// Reset clears all session data, returning the system to not_loaded.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset session")
	}
	s.logger.InfoContext(ctx, "session reset")
	return nil
}
