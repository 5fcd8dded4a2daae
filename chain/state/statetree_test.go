package state

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-address"

	"github.com/emberchain/ember/chain/actors"
	"github.com/emberchain/ember/chain/types"
)

func idAddr(t *testing.T, i uint64) address.Address {
	t.Helper()
	a, err := address.NewIDAddress(i)
	require.NoError(t, err)
	return a
}

func TestStateTreeRoundtrip(t *testing.T) {
	ctx := context.Background()
	cst := cbor.NewMemCborStore()

	st, err := NewStateTree(cst)
	require.NoError(t, err)

	var addrs []address.Address
	for i := uint64(100); i < 110; i++ {
		a := idAddr(t, i)
		addrs = append(addrs, a)

		err := st.SetActor(a, &types.Actor{
			Code:    actors.AccountCodeCid,
			Head:    actors.AccountCodeCid,
			Balance: types.NewInt(10000 + i),
			Nonce:   i,
		})
		require.NoError(t, err)
	}

	root, err := st.Flush(ctx)
	require.NoError(t, err)

	st2, err := LoadStateTree(cst, root)
	require.NoError(t, err)

	for i, a := range addrs {
		act, err := st2.GetActor(a)
		require.NoError(t, err)
		require.Equal(t, types.NewInt(10100+uint64(i)), act.Balance)
		require.Equal(t, uint64(100+i), act.Nonce)
	}
}

func TestStateTreeSnapshotRevert(t *testing.T) {
	ctx := context.Background()
	cst := cbor.NewMemCborStore()

	st, err := NewStateTree(cst)
	require.NoError(t, err)

	a := idAddr(t, 42)
	require.NoError(t, st.SetActor(a, &types.Actor{
		Code:    actors.AccountCodeCid,
		Head:    actors.AccountCodeCid,
		Balance: types.NewInt(1000),
	}))

	require.NoError(t, st.Snapshot(ctx))

	require.NoError(t, st.MutateActor(a, func(act *types.Actor) error {
		act.Balance = types.NewInt(0)
		act.Nonce = 7
		return nil
	}))

	act, err := st.GetActor(a)
	require.NoError(t, err)
	require.Equal(t, uint64(7), act.Nonce)

	require.NoError(t, st.Revert())
	st.ClearSnapshot()

	act, err = st.GetActor(a)
	require.NoError(t, err)
	require.Equal(t, types.NewInt(1000), act.Balance)
	require.Equal(t, uint64(0), act.Nonce)
}

func TestStateTreeCaching(t *testing.T) {
	ctx := context.Background()
	cst := cbor.NewMemCborStore()

	st, err := NewStateTree(cst)
	require.NoError(t, err)

	a := idAddr(t, 1000)

	_, err = st.GetActor(a)
	require.Error(t, err)

	require.NoError(t, st.SetActor(a, &types.Actor{
		Code:    actors.AccountCodeCid,
		Head:    actors.AccountCodeCid,
		Balance: types.NewInt(500),
	}))

	// mutations must be visible before a flush
	act, err := st.GetActor(a)
	require.NoError(t, err)
	require.Equal(t, types.NewInt(500), act.Balance)

	var roots []cid.Cid
	for i := 0; i < 2; i++ {
		root, err := st.Flush(ctx)
		require.NoError(t, err)
		roots = append(roots, root)
	}

	// flushing twice without mutations yields the same root
	require.Equal(t, roots[0], roots[1])
}
