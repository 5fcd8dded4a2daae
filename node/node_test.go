package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/wallet"
	"github.com/emberchain/ember/node/config"
	"github.com/emberchain/ember/node/repo"
)

func TestNodeAssembly(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultFullNode()
	cfg.Drand.Mock = true

	r := repo.NewMemory(cfg)
	lr, err := r.Lock()
	require.NoError(t, err)
	defer lr.Close() //nolint:errcheck

	w, err := wallet.NewWallet(wallet.NewMemKeyStore())
	require.NoError(t, err)
	banker, err := w.GenerateKey(ctx, types.KTSecp256k1)
	require.NoError(t, err)

	tmpl := &GenesisTemplate{
		Accounts: []GenesisAccount{
			{Address: banker.String(), Balance: "100000000000"},
		},
		Timestamp: 100000,
	}
	require.NoError(t, InitGenesis(ctx, lr, tmpl))

	// InitGenesis is idempotent
	require.NoError(t, InitGenesis(ctx, lr, tmpl))

	nd, err := New(ctx, lr)
	require.NoError(t, err)
	defer nd.Stop(ctx) //nolint:errcheck

	napi := nd.API()

	v, err := napi.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, build.UserVersion(), v.Version)
	assert.Equal(t, build.BlockDelaySecs, v.BlockDelay)

	head, err := napi.ChainHead(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, head.Height())

	gen, err := napi.ChainGetGenesis(ctx)
	require.NoError(t, err)
	require.True(t, gen.Equals(head))

	bal, err := napi.WalletBalance(ctx, banker)
	require.NoError(t, err)
	assert.Equal(t, "100000000000", bal.String())

	naddr, err := napi.WalletNew(ctx)
	require.NoError(t, err)

	has, err := napi.WalletHas(ctx, naddr)
	require.NoError(t, err)
	assert.True(t, has)

	ss, err := napi.SyncState(ctx)
	require.NoError(t, err)
	require.NotNil(t, ss)

	pend, err := napi.MpoolPending(ctx, types.EmptyTSK)
	require.NoError(t, err)
	assert.Empty(t, pend)
}
