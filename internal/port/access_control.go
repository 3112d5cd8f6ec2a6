package port

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// AccessControl answers the two capability questions the engine needs and
// accepts exemption grants. The backing role store is an external
// collaborator.
type AccessControl interface {
	IsAdministrator(ctx context.Context, addr common.Address) (bool, error)

	IsFeeExempt(ctx context.Context, addr common.Address) (bool, error)

	// GrantFeeExemption marks every address as fee-exempt. Authorization is
	// enforced by the caller (service layer), not here.
	GrantFeeExemption(ctx context.Context, addrs []common.Address) error
}
