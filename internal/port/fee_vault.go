package port

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeVault accumulates collected fees per token, strictly segregated from
// escrowed principal (principal never passes through the vault).
type FeeVault interface {
	Credit(ctx context.Context, token common.Address, amount *big.Int) error

	// Debit returns false without mutating when amount exceeds the token's
	// accrued balance.
	Debit(ctx context.Context, token common.Address, amount *big.Int) (bool, error)

	Balance(ctx context.Context, token common.Address) (*big.Int, error)
}
