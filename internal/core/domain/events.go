package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OrderCreated is appended once per successful creation. It carries every
// identity field plus the timestamp that was baked into the id, so observers
// can resolve the order later.
type OrderCreated struct {
	ID        common.Hash
	Sender    common.Address
	Recipient common.Address
	Token     common.Address
	Symbol    string
	Amount    *big.Int
	Fee       *big.Int
	Remark    string
	CreatedAt time.Time
}

// OrderResolved is appended once per resolution and is the only durable
// record of an order's terminal fate.
type OrderResolved struct {
	ID         common.Hash
	Sender     common.Address
	Recipient  common.Address
	Outcome    Outcome
	Operator   common.Address
	ResolvedAt time.Time
}

// FeeWithdrawn is appended when an administrator withdraws accrued fees.
type FeeWithdrawn struct {
	Administrator common.Address
	Token         common.Address
	Amount        *big.Int
	WithdrawnAt   time.Time
}
