package port

import (
	"context"

	"github.com/trustmesh/escrow-engine/internal/core/domain"
)

// EventJournal is the append-only record stream for external observers. It
// is the only place a resolved order's outcome survives.
type EventJournal interface {
	OrderCreated(ctx context.Context, ev domain.OrderCreated) error
	OrderResolved(ctx context.Context, ev domain.OrderResolved) error
	FeeWithdrawn(ctx context.Context, ev domain.FeeWithdrawn) error
}
