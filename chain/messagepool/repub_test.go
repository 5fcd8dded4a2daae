package messagepool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/types/mock"
	"github.com/emberchain/ember/chain/wallet"
)

func TestRepubMessages(t *testing.T) {
	tma := newTestMpoolAPI()
	mp := newTestMpool(t, tma)

	w, err := wallet.NewWallet(wallet.NewMemKeyStore())
	require.NoError(t, err)

	sender, err := w.GenerateKey(context.TODO(), types.KTSecp256k1)
	require.NoError(t, err)
	target := mock.Address(1001)

	for i := 0; i < 10; i++ {
		m := mock.MkMessage(sender, target, uint64(i), w)
		_, err := mp.Push(context.TODO(), m)
		require.NoError(t, err)
	}

	require.Equal(t, 10, tma.published)

	// pushed messages are local, so a republish round sends all of them again
	require.NoError(t, mp.republishPendingMessages())

	require.Equal(t, 20, tma.published)

	mp.lk.Lock()
	require.Len(t, mp.republished, 10)
	mp.lk.Unlock()
}
