package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/resolvd/resolvd/internal/logging"
	"github.com/resolvd/resolvd/pkg/domain"
)

// OverrideRepository implements ports.OverrideRepository as a single JSON
// file. Writes go through a temp file plus rename so a crash mid-write never
// leaves a truncated journal.
type OverrideRepository struct {
	path   string
	logger *slog.Logger
}

// RepoOption configures the OverrideRepository.
type RepoOption func(*OverrideRepository)

// WithRepoLogger sets a structured logger.
func WithRepoLogger(logger *slog.Logger) RepoOption {
	return func(r *OverrideRepository) { r.logger = logger }
}

// NewOverrideRepository creates a repository at the given path. The parent
// directory is created on first save.
func NewOverrideRepository(path string, opts ...RepoOption) *OverrideRepository {
	r := &OverrideRepository{
		path:   path,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaveAll writes the full override set atomically.
func (r *OverrideRepository) SaveAll(ctx context.Context, overrides []domain.PolicyOverride) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create override dir: %w", err)
	}

	data, err := json.MarshalIndent(overrides, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal overrides: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write overrides: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace overrides file: %w", err)
	}
	return nil
}

// LoadAll reads the journal. A missing file yields an empty set. A corrupted
// entry is skipped and logged, never fatal; an unreadable journal as a whole
// also degrades to an empty set so boot proceeds.
func (r *OverrideRepository) LoadAll(ctx context.Context) ([]domain.PolicyOverride, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read overrides: %w", err)
	}

	// Decode entry by entry so one corrupt record doesn't discard the rest.
	var rawEntries []json.RawMessage
	if err := json.Unmarshal(data, &rawEntries); err != nil {
		r.logger.Warn("override journal unreadable, starting empty", "path", r.path, "err", err)
		return nil, nil
	}

	overrides := make([]domain.PolicyOverride, 0, len(rawEntries))
	for i, raw := range rawEntries {
		var o domain.PolicyOverride
		if err := json.Unmarshal(raw, &o); err != nil {
			r.logger.Warn("skipping corrupted override entry", "index", i, "err", err)
			continue
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}
