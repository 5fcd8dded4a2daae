package store_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/chain/store"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/types/mock"
)

func newTestChainStore(t *testing.T) *store.ChainStore {
	t.Helper()

	ds := dssync.MutexWrap(datastore.NewMapDatastore())
	bs := blockstore.NewBlockstore(ds)
	return store.NewChainStore(bs, ds)
}

func TestChainHead(t *testing.T) {
	ctx := context.Background()
	cs := newTestChainStore(t)

	gen := mock.MkBlock(nil, 0, 0)
	require.NoError(t, cs.SetGenesis(ctx, gen))

	gents := mock.TipSet(gen)
	require.True(t, gents.Equals(cs.GetHeaviestTipSet()))

	next := mock.MkBlock(gents, 1, 1)
	require.NoError(t, cs.PutTipSet(ctx, mock.TipSet(next)))

	require.True(t, mock.TipSet(next).Equals(cs.GetHeaviestTipSet()))
}

func TestHeavierForkWins(t *testing.T) {
	ctx := context.Background()
	cs := newTestChainStore(t)

	gen := mock.MkBlock(nil, 0, 0)
	require.NoError(t, cs.SetGenesis(ctx, gen))
	gents := mock.TipSet(gen)

	// fork a: two epochs of single blocks
	tsA1 := mock.TipSet(mock.MkBlock(gents, 1, 1))
	tsA2 := mock.TipSet(mock.MkBlock(tsA1, 1, 2))

	// fork b: same length, but its tip carries two election wins
	tsB1 := mock.TipSet(mock.MkBlock(gents, 1, 3))
	tsB2 := mock.TipSet(mock.MkBlock(tsB1, 1, 4), mock.MkBlock(tsB1, 1, 5))

	for _, ts := range []*types.TipSet{tsA1, tsA2, tsB1, tsB2} {
		require.NoError(t, cs.PersistBlockHeaders(ctx, ts.Blocks()...))
	}

	require.NoError(t, cs.MaybeTakeHeavierTipSet(ctx, tsA2))
	require.True(t, tsA2.Equals(cs.GetHeaviestTipSet()))

	require.NoError(t, cs.MaybeTakeHeavierTipSet(ctx, tsB2))
	require.True(t, tsB2.Equals(cs.GetHeaviestTipSet()))

	wa, err := cs.Weight(ctx, tsA2)
	require.NoError(t, err)
	wb, err := cs.Weight(ctx, tsB2)
	require.NoError(t, err)
	assert.True(t, wb.GreaterThan(wa))
}

func TestWeightTieBreak(t *testing.T) {
	ctx := context.Background()

	gen := mock.MkBlock(nil, 0, 0)
	gents := mock.TipSet(gen)

	a := mock.TipSet(mock.MkBlock(gents, 1, 1))
	b := mock.TipSet(mock.MkBlock(gents, 1, 2))

	// same parent weight and win count, different keys
	lesser, greater := a, b
	if bytes.Compare(b.Key().Bytes(), a.Key().Bytes()) < 0 {
		lesser, greater = b, a
	}

	// the lexicographically smaller key must win regardless of arrival order
	for _, order := range [][]*types.TipSet{{lesser, greater}, {greater, lesser}} {
		cs := newTestChainStore(t)
		require.NoError(t, cs.SetGenesis(ctx, gen))

		for _, ts := range order {
			require.NoError(t, cs.PersistBlockHeaders(ctx, ts.Blocks()...))
			require.NoError(t, cs.MaybeTakeHeavierTipSet(ctx, ts))
		}

		wl, err := cs.Weight(ctx, lesser)
		require.NoError(t, err)
		wg, err := cs.Weight(ctx, greater)
		require.NoError(t, err)
		require.True(t, wl.Equals(wg))

		require.True(t, lesser.Equals(cs.GetHeaviestTipSet()))
	}
}

func TestChainExpansion(t *testing.T) {
	ctx := context.Background()
	cs := newTestChainStore(t)

	gen := mock.MkBlock(nil, 0, 0)
	require.NoError(t, cs.SetGenesis(ctx, gen))
	gents := mock.TipSet(gen)

	// blocks at the same height with the same parents coalesce into one tipset
	b1 := mock.MkBlock(gents, 1, 1)
	b2 := mock.MkBlock(gents, 1, 2)
	b3 := mock.MkBlock(gents, 1, 3)
	for _, b := range []*types.BlockHeader{b1, b2, b3} {
		require.NoError(t, cs.PutTipSet(ctx, mock.TipSet(b)))
	}

	head := cs.GetHeaviestTipSet()
	require.Equal(t, 3, len(head.Blocks()))
	require.Equal(t, gents.Key(), head.Parents())
}

func TestReorgOps(t *testing.T) {
	ctx := context.Background()
	cs := newTestChainStore(t)

	gen := mock.MkBlock(nil, 0, 0)
	require.NoError(t, cs.SetGenesis(ctx, gen))
	gents := mock.TipSet(gen)

	shared := mock.TipSet(mock.MkBlock(gents, 1, 1))
	require.NoError(t, cs.PersistBlockHeaders(ctx, shared.Blocks()...))

	left := shared
	right := shared
	for i := uint64(0); i < 3; i++ {
		left = mock.TipSet(mock.MkBlock(left, 1, 10+i))
		require.NoError(t, cs.PersistBlockHeaders(ctx, left.Blocks()...))
	}
	for i := uint64(0); i < 2; i++ {
		right = mock.TipSet(mock.MkBlock(right, 1, 20+i))
		require.NoError(t, cs.PersistBlockHeaders(ctx, right.Blocks()...))
	}

	revert, apply, err := cs.ReorgOps(ctx, left, right)
	require.NoError(t, err)

	require.Equal(t, 3, len(revert))
	require.True(t, revert[0].Equals(left))
	require.Equal(t, 2, len(apply))
	require.True(t, apply[0].Equals(right))

	// both walks stop at the common ancestor
	require.Equal(t, shared.Key(), revert[len(revert)-1].Parents())
	require.Equal(t, shared.Key(), apply[len(apply)-1].Parents())
}
