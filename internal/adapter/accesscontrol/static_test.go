package accesscontrol

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_SeededRoles(t *testing.T) {
	admin := common.HexToAddress("0xad")
	vip := common.HexToAddress("0x01")
	nobody := common.HexToAddress("0x02")

	s := NewStatic([]common.Address{admin}, []common.Address{vip})
	ctx := context.Background()

	ok, err := s.IsAdministrator(ctx, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsAdministrator(ctx, nobody)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsFeeExempt(ctx, vip)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsFeeExempt(ctx, admin)
	require.NoError(t, err)
	assert.False(t, ok, "admins are not implicitly exempt")
}

func TestStatic_GrantFeeExemption(t *testing.T) {
	s := NewStatic(nil, nil)
	ctx := context.Background()
	a := common.HexToAddress("0x0a")
	b := common.HexToAddress("0x0b")

	require.NoError(t, s.GrantFeeExemption(ctx, []common.Address{a, b}))

	for _, addr := range []common.Address{a, b} {
		ok, err := s.IsFeeExempt(ctx, addr)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
