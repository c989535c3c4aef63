// Package override implements the runtime policy override store: CRUD over
// admin-installed behavior patches plus the O(1) (workflow, rule) lookup the
// engine uses on its hot path. Every mutation persists through the repository
// before returning; reads hand out snapshot copies so an in-flight evaluate
// never observes a half-written override.
package override

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resolvd/resolvd/internal/logging"
	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/ports"
)

// Store manages policy overrides in memory with write-through persistence.
// Safe for concurrent use: admin mutations may run while evaluate() calls
// read on other goroutines.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]domain.PolicyOverride
	active map[string]string // (workflow,rule) key -> override id, active only

	repo   ports.OverrideRepository
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithRepository enables write-through persistence.
func WithRepository(repo ports.OverrideRepository) Option {
	return func(s *Store) { s.repo = repo }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock injects the time source for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty override store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		byID:   make(map[string]domain.PolicyOverride),
		active: make(map[string]string),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores overrides from the repository. Individual corrupt entries
// were already skipped by the repository; entries with missing identifiers
// are skipped here and logged, never fatal.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	loaded, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range loaded {
		if o.OverrideID == "" || o.Workflow == "" || o.RuleID == "" {
			s.logger.Warn("skipping override with missing identifiers", "override_id", o.OverrideID)
			continue
		}
		s.byID[o.OverrideID] = o
		if o.Active {
			s.active[o.Key()] = o.OverrideID
		}
	}
	return nil
}

// Add installs an override and persists before returning. When the override
// is active it displaces any previously active override for the same
// (workflow, rule) in the hot-path index; the engine honors at most one.
func (s *Store) Add(ctx context.Context, o domain.PolicyOverride) (domain.PolicyOverride, error) {
	if o.Workflow == "" || o.RuleID == "" {
		return domain.PolicyOverride{}, fmt.Errorf("override requires workflow and rule_id")
	}
	if !o.OverrideAction.Valid() {
		return domain.PolicyOverride{}, fmt.Errorf("unknown override action %q", o.OverrideAction)
	}
	if o.OverrideID == "" {
		o.OverrideID = "ovr_" + uuid.NewString()[:8]
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[o.OverrideID] = o
	if o.Active {
		s.active[o.Key()] = o.OverrideID
	}

	if err := s.persistLocked(ctx); err != nil {
		return domain.PolicyOverride{}, err
	}
	return o, nil
}

// Lookup returns a copy of the active override for (workflow, rule), if any.
// The copy is taken under one read lock, so callers see a single atomic
// snapshot.
func (s *Store) Lookup(workflow, ruleID string) (domain.PolicyOverride, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.active[domain.OverrideKey(workflow, ruleID)]
	if !ok {
		return domain.PolicyOverride{}, false
	}
	o, ok := s.byID[id]
	if !ok || !o.Active {
		return domain.PolicyOverride{}, false
	}
	return cloneOverride(o), true
}

// Get returns an override by id.
func (s *Store) Get(overrideID string) (domain.PolicyOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[overrideID]
	if !ok {
		return domain.PolicyOverride{}, domain.ErrOverrideNotFound
	}
	return cloneOverride(o), nil
}

// List returns all overrides, optionally only active ones, ordered by
// creation time for stable admin output.
func (s *Store) List(activeOnly bool) []domain.PolicyOverride {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PolicyOverride, 0, len(s.byID))
	for _, o := range s.byID {
		if activeOnly && !o.Active {
			continue
		}
		out = append(out, cloneOverride(o))
	}
	sortByCreatedAt(out)
	return out
}

// Toggle flips an override's active flag and returns the new state.
func (s *Store) Toggle(ctx context.Context, overrideID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.byID[overrideID]
	if !ok {
		return false, domain.ErrOverrideNotFound
	}
	o.Active = !o.Active
	s.byID[overrideID] = o

	key := o.Key()
	if o.Active {
		s.active[key] = o.OverrideID
	} else if s.active[key] == o.OverrideID {
		delete(s.active, key)
	}

	if err := s.persistLocked(ctx); err != nil {
		return false, err
	}
	return o.Active, nil
}

// Remove deletes an override.
func (s *Store) Remove(ctx context.Context, overrideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.byID[overrideID]
	if !ok {
		return domain.ErrOverrideNotFound
	}
	delete(s.byID, overrideID)
	if s.active[o.Key()] == o.OverrideID {
		delete(s.active, o.Key())
	}
	return s.persistLocked(ctx)
}

// Clear removes all overrides.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[string]domain.PolicyOverride)
	s.active = make(map[string]string)
	return s.persistLocked(ctx)
}

// ActiveCount reports the number of active overrides, for metrics.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	all := make([]domain.PolicyOverride, 0, len(s.byID))
	for _, o := range s.byID {
		all = append(all, o)
	}
	sortByCreatedAt(all)
	if err := s.repo.SaveAll(ctx, all); err != nil {
		return fmt.Errorf("persist overrides: %w", err)
	}
	return nil
}

func cloneOverride(o domain.PolicyOverride) domain.PolicyOverride {
	cp := o
	cp.ContextUpdates = copyAnyMap(o.ContextUpdates)
	cp.ToolParamOverrides = copyAnyMap(o.ToolParamOverrides)
	return cp
}

func copyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortByCreatedAt(list []domain.PolicyOverride) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && less(list[j], list[j-1]); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

func less(a, b domain.PolicyOverride) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.OverrideID < b.OverrideID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
