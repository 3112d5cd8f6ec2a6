package port

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetGateway moves custody of a fungible asset between parties and the
// escrow system. Both operations are all-or-nothing: any shortfall, missing
// authorization or non-conformant asset returns an error and moves nothing.
type AssetGateway interface {
	// Pull transfers amount of token from `from` into escrow custody.
	Pull(ctx context.Context, token, from common.Address, amount *big.Int) error

	// Push transfers amount of token out of escrow custody to `to`.
	Push(ctx context.Context, token, to common.Address, amount *big.Int) error
}
