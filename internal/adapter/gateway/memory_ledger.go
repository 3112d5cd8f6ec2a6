// Package gateway hosts AssetGateway implementations.
package gateway

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// MemoryLedger is an in-process fungible token ledger with
// transferFrom/transfer semantics: Pull consumes a prior allowance granted
// to the escrow account, Push spends from custody. Both are all-or-nothing.
// Custody can only be funded through Pull, so an unsolicited payment to the
// system has no representation.
type MemoryLedger struct {
	mu         sync.Mutex
	balances   map[common.Address]map[common.Address]*big.Int // token -> holder
	allowances map[common.Address]map[common.Address]*big.Int // token -> owner
	custody    map[common.Address]*big.Int                    // token
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
		custody:    make(map[common.Address]*big.Int),
	}
}

// Mint credits amount of token to holder out of thin air.
func (l *MemoryLedger) Mint(token, holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.entry(l.balances, token, holder)
	bal.Add(bal, amount)
}

// Approve authorizes the escrow account to pull up to amount of token from
// owner. It replaces any prior allowance.
func (l *MemoryLedger) Approve(token, owner common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(l.allowances, token, owner).Set(amount)
}

func (l *MemoryLedger) Pull(ctx context.Context, token, from common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.entry(l.allowances, token, from)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	bal := l.entry(l.balances, token, from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	allowance.Sub(allowance, amount)
	bal.Sub(bal, amount)

	cust, ok := l.custody[token]
	if !ok {
		cust = new(big.Int)
		l.custody[token] = cust
	}
	cust.Add(cust, amount)
	return nil
}

func (l *MemoryLedger) Push(ctx context.Context, token, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cust, ok := l.custody[token]
	if !ok || cust.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	cust.Sub(cust, amount)
	bal := l.entry(l.balances, token, to)
	bal.Add(bal, amount)
	return nil
}

// BalanceOf returns holder's balance of token.
func (l *MemoryLedger) BalanceOf(token, holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.entry(l.balances, token, holder))
}

// CustodyBalance returns the amount of token currently held in escrow.
func (l *MemoryLedger) CustodyBalance(token common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cust, ok := l.custody[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(cust)
}

func (l *MemoryLedger) entry(m map[common.Address]map[common.Address]*big.Int, token, addr common.Address) *big.Int {
	inner, ok := m[token]
	if !ok {
		inner = make(map[common.Address]*big.Int)
		m[token] = inner
	}
	v, ok := inner[addr]
	if !ok {
		v = new(big.Int)
		inner[addr] = v
	}
	return v
}
