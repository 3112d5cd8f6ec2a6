package storage

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/trustmesh/escrow-engine/internal/core/domain"
)

// Memory is a single-process store covering all three storage ports:
// existence flags, fee vault and event journal. It is the default backend
// when no Redis/MySQL endpoints are configured, and the workhorse of the
// test suite.
type Memory struct {
	mu      sync.Mutex
	pending map[common.Hash]struct{}
	fees    map[common.Address]*big.Int
	events  []JournalEntry
	seq     uint64
}

// JournalEntry wraps one appended event with its journal position.
type JournalEntry struct {
	ID   string
	Seq  uint64
	Kind string
	At   time.Time

	Created   *domain.OrderCreated
	Resolved  *domain.OrderResolved
	Withdrawn *domain.FeeWithdrawn
}

func NewMemory() *Memory {
	return &Memory{
		pending: make(map[common.Hash]struct{}),
		fees:    make(map[common.Address]*big.Int),
	}
}

func (m *Memory) MarkPending(ctx context.Context, id common.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[id]; ok {
		return false, nil
	}
	m.pending[id] = struct{}{}
	return true, nil
}

func (m *Memory) TakePending(ctx context.Context, id common.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[id]; !ok {
		return false, nil
	}
	delete(m.pending, id)
	return true, nil
}

func (m *Memory) RestorePending(ctx context.Context, id common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[id] = struct{}{}
	return nil
}

func (m *Memory) Credit(ctx context.Context, token common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.fees[token]
	if !ok {
		bal = new(big.Int)
		m.fees[token] = bal
	}
	bal.Add(bal, amount)
	return nil
}

func (m *Memory) Debit(ctx context.Context, token common.Address, amount *big.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.fees[token]
	if !ok || bal.Cmp(amount) < 0 {
		return false, nil
	}
	bal.Sub(bal, amount)
	return true, nil
}

func (m *Memory) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.fees[token]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(bal), nil
}

func (m *Memory) OrderCreated(ctx context.Context, ev domain.OrderCreated) error {
	m.append(JournalEntry{Kind: "order_created", At: ev.CreatedAt, Created: &ev})
	return nil
}

func (m *Memory) OrderResolved(ctx context.Context, ev domain.OrderResolved) error {
	m.append(JournalEntry{Kind: "order_resolved", At: ev.ResolvedAt, Resolved: &ev})
	return nil
}

func (m *Memory) FeeWithdrawn(ctx context.Context, ev domain.FeeWithdrawn) error {
	m.append(JournalEntry{Kind: "fee_withdrawn", At: ev.WithdrawnAt, Withdrawn: &ev})
	return nil
}

func (m *Memory) append(e JournalEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e.Seq = m.seq
	e.ID = uuid.NewString()
	m.events = append(m.events, e)
}

// Entries returns a snapshot of the journal in append order.
func (m *Memory) Entries() []JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JournalEntry, len(m.events))
	copy(out, m.events)
	return out
}
