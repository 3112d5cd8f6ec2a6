package identity

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/trustmesh/escrow-engine/internal/core/domain"
)

func baseParams() domain.OrderParams {
	return domain.OrderParams{
		Token:     common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Symbol:    "USDT",
		Sender:    common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Recipient: common.HexToAddress("0x00000000000000000000000000000000000000b2"),
		Amount:    big.NewInt(1000),
		Fee:       big.NewInt(4),
		DraftAt:   1700000000,
	}
}

func TestDerive_Deterministic(t *testing.T) {
	a := Derive(baseParams())
	b := Derive(baseParams())
	assert.Equal(t, a, b)
	assert.NotEqual(t, common.Hash{}, a)
}

func TestDerive_EveryFieldMatters(t *testing.T) {
	base := Derive(baseParams())

	mutations := map[string]func(*domain.OrderParams){
		"token":     func(p *domain.OrderParams) { p.Token = common.HexToAddress("0xbb") },
		"symbol":    func(p *domain.OrderParams) { p.Symbol = "USDC" },
		"sender":    func(p *domain.OrderParams) { p.Sender = common.HexToAddress("0xa2") },
		"recipient": func(p *domain.OrderParams) { p.Recipient = common.HexToAddress("0xb3") },
		"amount":    func(p *domain.OrderParams) { p.Amount = big.NewInt(1001) },
		"fee":       func(p *domain.OrderParams) { p.Fee = big.NewInt(5) },
		"draftAt":   func(p *domain.OrderParams) { p.DraftAt = 1700000001 },
	}

	for name, mutate := range mutations {
		p := baseParams()
		mutate(&p)
		assert.NotEqual(t, base, Derive(p), "mutating %s must change the id", name)
	}
}

func TestDerive_NoFieldBoundaryAmbiguity(t *testing.T) {
	// Moving a byte between symbol and the following fixed-width fields must
	// not collide: the length prefix pins the symbol's extent.
	a := baseParams()
	a.Symbol = "AB"

	b := baseParams()
	b.Symbol = "A"

	assert.NotEqual(t, Derive(a), Derive(b))
}

func TestDerive_LargeAmounts(t *testing.T) {
	p := baseParams()
	p.Amount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	q := baseParams()
	q.Amount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(2))

	assert.NotEqual(t, Derive(p), Derive(q))
}
