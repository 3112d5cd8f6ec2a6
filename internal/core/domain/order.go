package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome is the terminal fate of a resolved order. It appears only in
// emitted events; resolved orders leave no ledger state behind.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeRefunded  Outcome = "refunded"
)

// OrderParams are the immutable identity fields of an escrow order. The
// order id is derived from exactly these fields, so any resolution call must
// reproduce them bit for bit, including DraftAt, the unix timestamp recorded
// at creation.
type OrderParams struct {
	Token     common.Address
	Symbol    string
	Sender    common.Address
	Recipient common.Address
	Amount    *big.Int
	Fee       *big.Int
	DraftAt   int64
}

// maxAmountBits bounds amounts to one uint256 word, matching the fixed-width
// id packing.
const maxAmountBits = 256

// Validate checks that the principal and fee are present, non-negative and
// representable in 256 bits.
func (p OrderParams) Validate() error {
	if err := ValidateAmount(p.Amount); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if err := ValidateAmount(p.Fee); err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	return nil
}

func ValidateAmount(v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: missing", ErrInvalidAmount)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: negative value %s", ErrInvalidAmount, v)
	}
	if v.BitLen() > maxAmountBits {
		return fmt.Errorf("%w: value exceeds 256 bits", ErrInvalidAmount)
	}
	return nil
}
