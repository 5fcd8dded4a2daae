package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/lib/sigs"
)

func TestWallet(t *testing.T) {
	ctx := context.Background()

	w, err := NewWallet(NewMemKeyStore())
	require.NoError(t, err)

	a1, err := w.GenerateKey(ctx, types.KTSecp256k1)
	require.NoError(t, err)

	// first key generated becomes the default
	def, err := w.GetDefault()
	require.NoError(t, err)
	assert.Equal(t, a1, def)

	a2, err := w.GenerateKey(ctx, types.KTSecp256k1)
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)

	addrs, err := w.ListAddrs(ctx)
	require.NoError(t, err)
	assert.Len(t, addrs, 2)

	msg := []byte("the message")
	sig, err := w.Sign(ctx, a1, msg)
	require.NoError(t, err)
	require.NoError(t, sigs.Verify(sig, a1, msg))
	assert.Error(t, sigs.Verify(sig, a2, msg))
}

func TestWalletExportImport(t *testing.T) {
	ctx := context.Background()

	w, err := NewWallet(NewMemKeyStore())
	require.NoError(t, err)

	a1, err := w.GenerateKey(ctx, types.KTSecp256k1)
	require.NoError(t, err)

	ki, err := w.Export(ctx, a1)
	require.NoError(t, err)

	w2, err := NewWallet(NewMemKeyStore())
	require.NoError(t, err)

	a2, err := w2.Import(ctx, ki)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)

	msg := []byte("cross wallet")
	sig, err := w2.Sign(ctx, a2, msg)
	require.NoError(t, err)
	require.NoError(t, sigs.Verify(sig, a1, msg))
}

func TestWalletDeleteKey(t *testing.T) {
	ctx := context.Background()

	w, err := NewWallet(NewMemKeyStore())
	require.NoError(t, err)

	a1, err := w.GenerateKey(ctx, types.KTSecp256k1)
	require.NoError(t, err)

	has, err := w.HasKey(ctx, a1)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, w.DeleteKey(ctx, a1))

	has, err = w.HasKey(ctx, a1)
	require.NoError(t, err)
	assert.False(t, has)
}
