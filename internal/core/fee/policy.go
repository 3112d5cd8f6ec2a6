// Package fee computes the required escrow fee for an order.
package fee

import (
	"math/big"
	"sync"
)

var thousand = big.NewInt(1000)

// Policy holds the global fee rate, expressed in thousandths: the required
// fee is floor(amount/1000) * rate. The division truncates, so any amount
// below 1000 owes no fee regardless of rate.
type Policy struct {
	mu   sync.RWMutex
	rate int64
}

func NewPolicy(rate int64) *Policy {
	if rate < 0 {
		rate = 0
	}
	return &Policy{rate: rate}
}

// Rate returns the current rate in thousandths.
func (p *Policy) Rate() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rate
}

// SetRate replaces the rate for all subsequent creations. Pending orders are
// unaffected: their fee was validated and fixed at creation.
func (p *Policy) SetRate(rate int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
}

// Required returns the fee owed for amount. Exempt callers owe zero.
func (p *Policy) Required(amount *big.Int, exempt bool) *big.Int {
	if exempt {
		return new(big.Int)
	}
	p.mu.RLock()
	rate := p.rate
	p.mu.RUnlock()

	f := new(big.Int).Div(amount, thousand)
	return f.Mul(f, big.NewInt(rate))
}
