package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"bursa/internal/session/models"
)

// InMemoryStore keeps session state in maps. It mirrors the SQLite store's
// behavior exactly so service and handler tests run against a real store
// instead of mocks.
type InMemoryStore struct {
	mu         sync.RWMutex
	candidates map[string]models.Candidate
	quotas     map[models.Bucket]int
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		candidates: make(map[string]models.Candidate),
		quotas:     make(map[models.Bucket]int),
	}
}

func (s *InMemoryStore) UpsertCandidates(_ context.Context, records []models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range records {
		s.candidates[c.RequestID] = c
	}
	return nil
}

func (s *InMemoryStore) UpsertQuotas(_ context.Context, capacities map[models.Bucket]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for bucket, capacity := range capacities {
		s.quotas[bucket] = capacity
	}
	return nil
}

func (s *InMemoryStore) AllCandidates(_ context.Context) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedCandidatesLocked(), nil
}

func (s *InMemoryStore) orderedCandidatesLocked() []models.Candidate {
	out := make([]models.Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := a.Level.Rank(), b.Level.Rank(); ra != rb {
			return ra < rb
		}
		if a.Program != b.Program {
			return a.Program < b.Program
		}
		return a.ApplicationNumber < b.ApplicationNumber
	})
	return out
}

func (s *InMemoryStore) Quotas(_ context.Context) (map[models.Bucket]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Bucket]int, len(s.quotas))
	for bucket, capacity := range s.quotas {
		out[bucket] = capacity
	}
	return out, nil
}

func (s *InMemoryStore) FavorableCounts(_ context.Context) (map[models.Bucket]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Bucket]int)
	for _, c := range s.candidates {
		if c.Decision == models.DecisionFavorable {
			out[c.Bucket()]++
		}
	}
	return out, nil
}

func (s *InMemoryStore) Stats(_ context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st models.Stats
	for _, c := range s.candidates {
		st.Total++
		switch c.Decision {
		case models.DecisionFavorable:
			st.Favorable++
		case models.DecisionUnfavorable:
			st.Unfavorable++
		case models.DecisionAlternate:
			st.Alternate++
		}
	}
	st.Decided = st.Favorable + st.Unfavorable + st.Alternate
	st.Pending = st.Total - st.Decided
	return st, nil
}

func (s *InMemoryStore) FindExact(_ context.Context, field SearchField, query string) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match func(models.Candidate) bool
	switch field {
	case FieldNumber:
		n, err := strconv.Atoi(strings.TrimSpace(query))
		if err != nil {
			return nil, nil
		}
		match = func(c models.Candidate) bool { return c.ApplicationNumber == n }
	case FieldExternalID:
		match = func(c models.Candidate) bool { return c.ExternalID == query }
	case FieldName:
		match = func(c models.Candidate) bool { return strings.EqualFold(c.Name, query) }
	default:
		return nil, nil
	}

	for _, c := range s.orderedCandidatesLocked() {
		if match(c) {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) FindFuzzy(_ context.Context, field SearchField, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = DefaultFuzzyLimit
	}
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []models.Candidate
	for _, c := range s.candidates {
		var hay string
		switch field {
		case FieldNumber:
			hay = strconv.Itoa(c.ApplicationNumber)
		case FieldExternalID:
			hay = strings.ToLower(c.ExternalID)
		case FieldName:
			hay = strings.ToLower(c.Name)
		default:
			return nil, nil
		}
		if strings.Contains(hay, needle) {
			matches = append(matches, c)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ApplicationNumber < matches[j].ApplicationNumber
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *InMemoryStore) SetDecision(_ context.Context, requestID string, decision models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setDecisionLocked(requestID, decision)
}

func (s *InMemoryStore) setDecisionLocked(requestID string, decision models.Decision) error {
	c, ok := s.candidates[requestID]
	if !ok {
		return ErrNotFound
	}
	c.Decision = decision
	s.candidates[requestID] = c
	return nil
}

func (s *InMemoryStore) CountCandidates(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candidates), nil
}

func (s *InMemoryStore) TotalQuota(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, capacity := range s.quotas {
		total += capacity
	}
	return total, nil
}

// Update holds the write lock for the whole callback, giving the same
// serialization the SQLite store gets from its single-writer transaction.
// Mutations are staged and applied only when fn succeeds.
func (s *InMemoryStore) Update(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	for _, apply := range tx.staged {
		apply()
	}
	return nil
}

func (s *InMemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = make(map[string]models.Candidate)
	s.quotas = make(map[models.Bucket]int)
	return nil
}

// memTx stages writes so a failed callback leaves no partial state, matching
// transactional rollback semantics.
type memTx struct {
	store  *InMemoryStore
	staged []func()

	decisions  map[string]models.Decision
	capacities map[models.Bucket]int
}

func (t *memTx) Candidate(requestID string) (*models.Candidate, error) {
	c, ok := t.store.candidates[requestID]
	if !ok {
		return nil, nil
	}
	if t.decisions != nil {
		if d, staged := t.decisions[requestID]; staged {
			c.Decision = d
		}
	}
	return &c, nil
}

func (t *memTx) Capacity(b models.Bucket) (int, bool, error) {
	if t.capacities != nil {
		if capacity, staged := t.capacities[b]; staged {
			return capacity, true, nil
		}
	}
	capacity, ok := t.store.quotas[b]
	return capacity, ok, nil
}

func (t *memTx) FavorableCount(b models.Bucket) (int, error) {
	n := 0
	for id, c := range t.store.candidates {
		decision := c.Decision
		if t.decisions != nil {
			if d, staged := t.decisions[id]; staged {
				decision = d
			}
		}
		if decision == models.DecisionFavorable && c.Bucket() == b {
			n++
		}
	}
	return n, nil
}

func (t *memTx) SetDecision(requestID string, decision models.Decision) error {
	if _, ok := t.store.candidates[requestID]; !ok {
		return ErrNotFound
	}
	if t.decisions == nil {
		t.decisions = make(map[string]models.Decision)
	}
	t.decisions[requestID] = decision
	t.staged = append(t.staged, func() {
		_ = t.store.setDecisionLocked(requestID, decision)
	})
	return nil
}

func (t *memTx) AdjustCapacity(b models.Bucket, delta int) error {
	current, ok, err := t.Capacity(b)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if t.capacities == nil {
		t.capacities = make(map[models.Bucket]int)
	}
	t.capacities[b] = current + delta
	t.staged = append(t.staged, func() {
		t.store.quotas[b] = t.store.quotas[b] + delta
	})
	return nil
}
