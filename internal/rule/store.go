package rule

import (
	"sort"
	"sync"
	"time"
)

// DefaultValidity is the expiry horizon applied when a rule is created
// without an explicit expiry date.
const DefaultValidity = 365 * 24 * time.Hour

// Store owns the authoritative rule collection and its index set. Every
// mutation runs under a single lock covering both, so the provisional-removal
// sequence used during updates can never be observed half-applied.
type Store struct {
	mu       sync.RWMutex
	rules    map[int64]*Rule
	ix       *IndexSet
	nextID   int64
	now      func() time.Time
	validity time.Duration
}

// StoreConfig groups optional Store settings.
type StoreConfig struct {
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
	// DefaultValidity overrides the default expiry horizon.
	DefaultValidity time.Duration
}

// NewStore constructs an empty rule store.
func NewStore(cfg StoreConfig) *Store {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	validity := cfg.DefaultValidity
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Store{
		rules:    make(map[int64]*Rule),
		ix:       NewIndexSet(),
		now:      now,
		validity: validity,
	}
}

// Create validates, indexes, and persists a new rule. Ids are assigned
// monotonically starting at 1; a failed create leaves the store and index
// untouched and does not consume an id.
func (s *Store) Create(family Family, d Details) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := validatorFor(family, s.ix)
	if v == nil {
		return Rule{}, validationf("unknown rule family %q", family)
	}

	now := s.now()
	if d.StartDate == nil {
		start := now
		d.StartDate = &start
	}
	if d.ExpiryDate == nil {
		expiry := d.StartDate.Add(s.validity)
		d.ExpiryDate = &expiry
	}

	candidate := &Rule{ID: s.nextID + 1, Family: family, Details: d}
	if err := v.validateForCreate(candidate); err != nil {
		return Rule{}, err
	}
	s.nextID++
	s.rules[candidate.ID] = candidate
	return candidate.clone(), nil
}

// Get returns a copy of the rule with the given id.
func (s *Store) Get(id int64) (Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return Rule{}, ErrNotFound
	}
	return r.clone(), nil
}

// List returns copies of all rules whose effective active flag equals active,
// ordered by id ascending.
func (s *Store) List(active bool) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Details.IsActive() == active {
			out = append(out, r.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update merges the overlay onto the stored rule and re-validates. A non-empty
// family must match the stored one. On validation failure the stored rule and
// its index entry are left exactly as they were.
func (s *Store) Update(id int64, family Family, overlay Details) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[id]
	if !ok {
		return Rule{}, ErrNotFound
	}
	if family != "" && family != existing.Family {
		return Rule{}, validationf("rule family cannot be modified")
	}

	candidate := &Rule{ID: id, Family: existing.Family, Details: Merge(overlay, existing.Details)}
	v := validatorFor(existing.Family, s.ix)
	if err := v.validateForUpdate(existing, candidate); err != nil {
		return Rule{}, err
	}
	s.rules[id] = candidate
	return candidate.clone(), nil
}

// Delete removes the rule, deindexing it first when it is active.
func (s *Store) Delete(id int64) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[id]
	if !ok {
		return Rule{}, ErrNotFound
	}
	if existing.Details.IsActive() {
		validatorFor(existing.Family, s.ix).deindex(existing)
	}
	delete(s.rules, id)
	return existing.clone(), nil
}

// DeactivateExpired deactivates and deindexes every active rule whose expiry
// date is before now, returning how many rules were swept.
func (s *Store) DeactivateExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for _, r := range s.rules {
		if !r.Details.IsActive() {
			continue
		}
		if r.Details.ExpiryDate == nil || !r.Details.ExpiryDate.Before(now) {
			continue
		}
		validatorFor(r.Family, s.ix).deindex(r)
		inactive := false
		r.Details.Active = &inactive
		swept++
	}
	return swept
}

// ActiveCounts reports the number of active rules per family.
func (s *Store) ActiveCounts() map[Family]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Family]int, 3)
	for _, r := range s.rules {
		if r.Details.IsActive() {
			out[r.Family]++
		}
	}
	return out
}

// Len reports the number of stored rules regardless of active state.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

func (r *Rule) clone() Rule {
	out := *r
	out.Details = r.Details.clone()
	return out
}

func (d Details) clone() Details {
	out := d
	out.Active = clonePtr(d.Active)
	out.StartDate = clonePtr(d.StartDate)
	out.ExpiryDate = clonePtr(d.ExpiryDate)
	out.Threshold = clonePtr(d.Threshold)
	out.Discount = clonePtr(d.Discount)
	out.ProductID = clonePtr(d.ProductID)
	out.BuyProducts = append([]int64(nil), d.BuyProducts...)
	out.BuyQuantity = clonePtr(d.BuyQuantity)
	out.GetProducts = append([]int64(nil), d.GetProducts...)
	out.GetQuantity = clonePtr(d.GetQuantity)
	out.RepetitionLimit = clonePtr(d.RepetitionLimit)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
