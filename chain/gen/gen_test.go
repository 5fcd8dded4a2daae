package gen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func testGeneration(t *testing.T, n int, msgs int) {
	g, err := NewGenerator()
	require.NoError(t, err)

	g.msgsPerBlock = msgs

	var height int64
	for i := 0; i < n; i++ {
		mts, err := g.NextTipSet()
		require.NoError(t, err, "error at epoch %d", i)
		require.Greater(t, int64(mts.TipSet.TipSet().Height()), height)
		height = int64(mts.TipSet.TipSet().Height())
	}
}

func TestChainGeneration(t *testing.T) {
	t.Run("10-no-messages", func(t *testing.T) { testGeneration(t, 10, 0) })
	t.Run("10-messages", func(t *testing.T) { testGeneration(t, 10, 10) })
}

func TestChainGenerationState(t *testing.T) {
	ctx := context.Background()

	g, err := NewGenerator()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := g.NextTipSet()
		require.NoError(t, err)
	}

	head := g.ChainStore().GetHeaviestTipSet()

	// the banker funded every random message, so its nonce must have moved
	bankerID, err := g.StateManager().LookupID(ctx, g.Banker(), head)
	require.NoError(t, err)

	act, err := g.StateManager().GetActor(bankerID, head)
	require.NoError(t, err)
	require.NotZero(t, act.Nonce)
}
