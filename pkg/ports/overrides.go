package ports

import (
	"context"

	"github.com/resolvd/resolvd/pkg/domain"
)

// OverrideRepository persists the policy override set. The override store
// writes through it before acknowledging any mutation.
//
// LoadAll must be lenient: a corrupted entry is skipped (and logged by the
// implementation), never fatal, so one bad record cannot take down boot.
type OverrideRepository interface {
	SaveAll(ctx context.Context, overrides []domain.PolicyOverride) error
	LoadAll(ctx context.Context) ([]domain.PolicyOverride, error)
}
