package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrvx-tools/mrvxdef/mrverrors"
)

func TestPoolDrawsDistinctSlots(t *testing.T) {
	pool := NewPool(8)
	seen := map[int]bool{}
	for i := 0; i < 8; i++ {
		rk, err := pool.Draw()
		require.NoError(t, err)
		assert.False(t, seen[rk], "slot %d drawn twice", rk)
		assert.GreaterOrEqual(t, rk, 0)
		assert.Less(t, rk, 8)
		seen[rk] = true
	}
	assert.Equal(t, 8, len(seen))
}

func TestPoolExhausted(t *testing.T) {
	pool := NewPool(2)
	_, err := pool.Draw()
	require.NoError(t, err)
	_, err = pool.Draw()
	require.NoError(t, err)

	_, err = pool.Draw()
	require.Error(t, err)
	assert.True(t, mrverrors.Is(err, mrverrors.PoolExhausted))
}
