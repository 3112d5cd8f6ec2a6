package storage

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmesh/escrow-engine/internal/core/domain"
)

var (
	testID    = common.HexToHash("0x01")
	testToken = common.HexToAddress("0xee")
)

func TestMemory_PendingLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.MarkPending(ctx, testID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.MarkPending(ctx, testID)
	require.NoError(t, err)
	assert.False(t, ok, "second mark must report existing")

	ok, err = m.TakePending(ctx, testID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.TakePending(ctx, testID)
	require.NoError(t, err)
	assert.False(t, ok, "taking an absent id must fail")

	require.NoError(t, m.RestorePending(ctx, testID))
	ok, err = m.TakePending(ctx, testID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_FeeVault(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	bal, err := m.Balance(ctx, testToken)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())

	require.NoError(t, m.Credit(ctx, testToken, big.NewInt(10)))
	require.NoError(t, m.Credit(ctx, testToken, big.NewInt(5)))

	ok, err := m.Debit(ctx, testToken, big.NewInt(20))
	require.NoError(t, err)
	assert.False(t, ok, "overdraft must be rejected")

	ok, err = m.Debit(ctx, testToken, big.NewInt(12))
	require.NoError(t, err)
	assert.True(t, ok)

	bal, err = m.Balance(ctx, testToken)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bal.Int64())
}

func TestMemory_JournalOrderingAndIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.OrderCreated(ctx, domain.OrderCreated{ID: testID, Amount: big.NewInt(1), Fee: big.NewInt(0), CreatedAt: now}))
	require.NoError(t, m.OrderResolved(ctx, domain.OrderResolved{ID: testID, Outcome: domain.OutcomeConfirmed, ResolvedAt: now}))
	require.NoError(t, m.FeeWithdrawn(ctx, domain.FeeWithdrawn{Token: testToken, Amount: big.NewInt(1), WithdrawnAt: now}))

	entries := m.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, "order_created", entries[0].Kind)
	assert.Equal(t, "order_resolved", entries[1].Kind)
	assert.Equal(t, "fee_withdrawn", entries[2].Kind)

	var prev uint64
	for _, e := range entries {
		assert.Greater(t, e.Seq, prev, "sequence must be strictly increasing")
		assert.NotEmpty(t, e.ID)
		prev = e.Seq
	}
}
