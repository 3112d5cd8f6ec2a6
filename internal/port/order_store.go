package port

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// OrderStateStore is the minimal existence map behind the order state
// machine: an id is either pending or absent.
type OrderStateStore interface {
	// MarkPending records id as pending; returns false if it already is.
	MarkPending(ctx context.Context, id common.Hash) (bool, error)

	// TakePending deletes the pending marker; returns false if absent.
	TakePending(ctx context.Context, id common.Hash) (bool, error)

	// RestorePending re-creates a marker removed by TakePending. Used to roll
	// back a resolution whose asset transfer failed.
	RestorePending(ctx context.Context, id common.Hash) error
}
