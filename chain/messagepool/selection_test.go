package messagepool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-address"

	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/types/mock"
	"github.com/emberchain/ember/chain/wallet"
)

func makeTestMessage(t *testing.T, w *wallet.Wallet, from, to address.Address, nonce uint64, gasLimit int64, gasPremium uint64) *types.SignedMessage {
	t.Helper()
	msg := &types.Message{
		To:         to,
		From:       from,
		Value:      types.NewInt(1),
		Nonce:      nonce,
		GasLimit:   gasLimit,
		GasFeeCap:  types.NewInt(100 + gasPremium),
		GasPremium: types.NewInt(gasPremium),
	}
	sig, err := w.Sign(context.TODO(), from, msg.Cid().Bytes())
	require.NoError(t, err)
	return &types.SignedMessage{Message: *msg, Signature: *sig}
}

func makeTestKey(t *testing.T) (*wallet.Wallet, address.Address) {
	t.Helper()
	w, err := wallet.NewWallet(wallet.NewMemKeyStore())
	require.NoError(t, err)
	a, err := w.GenerateKey(context.TODO(), types.KTSecp256k1)
	require.NoError(t, err)
	return w, a
}

func TestMessageChains(t *testing.T) {
	tma := newTestMpoolAPI()
	mp := newTestMpool(t, tma)

	w, a := makeTestKey(t)
	target := mock.Address(1001)

	// a nonce gap at 3 must cut the chain
	for _, nonce := range []uint64{0, 1, 2, 4, 5} {
		mustAdd(t, mp, makeTestMessage(t, w, a, target, nonce, 1000000, 1))
	}

	mp.lk.Lock()
	chain, err := mp.createMessageChain(context.TODO(), a, mp.pending[a], mp.curTs)
	mp.lk.Unlock()
	require.NoError(t, err)
	require.NotNil(t, chain)

	require.Len(t, chain.msgs, 3)
	for i, m := range chain.msgs {
		require.Equal(t, uint64(i), m.Message.Nonce)
	}
	require.EqualValues(t, 3000000, chain.gasLimit)
}

func TestSelectMessagesPremiumOrder(t *testing.T) {
	tma := newTestMpoolAPI()
	mp := newTestMpool(t, tma)

	w1, a1 := makeTestKey(t)
	w2, a2 := makeTestKey(t)

	for i := uint64(0); i < 3; i++ {
		mustAdd(t, mp, makeTestMessage(t, w1, a1, a2, i, 1000000, 1))
		mustAdd(t, mp, makeTestMessage(t, w2, a2, a1, i, 1000000, 10))
	}

	selected, err := mp.SelectMessages(context.TODO(), nil)
	require.NoError(t, err)
	require.Len(t, selected, 6)

	// a2 pays the higher premium, so its chain comes first, in nonce order
	for i := 0; i < 3; i++ {
		require.Equal(t, a2, selected[i].Message.From)
		require.Equal(t, uint64(i), selected[i].Message.Nonce)
	}
	for i := 3; i < 6; i++ {
		require.Equal(t, a1, selected[i].Message.From)
		require.Equal(t, uint64(i-3), selected[i].Message.Nonce)
	}
}

func TestSelectMessagesGasLimit(t *testing.T) {
	tma := newTestMpoolAPI()
	mp := newTestMpool(t, tma)

	w, a := makeTestKey(t)
	target := mock.Address(1001)
	tma.setBalance(a, 1000000)

	// each message takes over a third of the block gas limit, only two fit
	gasLimit := int64(4_000_000_000)
	for i := uint64(0); i < 3; i++ {
		msg := &types.Message{
			To:         target,
			From:       a,
			Value:      types.NewInt(0),
			Nonce:      i,
			GasLimit:   gasLimit,
			GasFeeCap:  types.NewInt(0),
			GasPremium: types.NewInt(0),
		}
		sig, err := w.Sign(context.TODO(), a, msg.Cid().Bytes())
		require.NoError(t, err)
		mustAdd(t, mp, &types.SignedMessage{Message: *msg, Signature: *sig})
	}

	selected, err := mp.SelectMessages(context.TODO(), nil)
	require.NoError(t, err)
	require.Len(t, selected, 2)
}

func TestSelectMessagesBalanceLimit(t *testing.T) {
	tma := newTestMpoolAPI()
	mp := newTestMpool(t, tma)

	w, a := makeTestKey(t)
	target := mock.Address(1001)

	// enough for a single message's worth of gas plus value
	tma.setBalance(a, 101*1000000+10)

	mustAdd(t, mp, makeTestMessage(t, w, a, target, 0, 1000000, 1))
	mustAdd(t, mp, makeTestMessage(t, w, a, target, 1, 1000000, 1))

	selected, err := mp.SelectMessages(context.TODO(), nil)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.Equal(t, uint64(0), selected[0].Message.Nonce)
}

func TestSelectMessagesPriority(t *testing.T) {
	tma := newTestMpoolAPI()
	mp := newTestMpool(t, tma)

	w1, a1 := makeTestKey(t)
	w2, a2 := makeTestKey(t)

	cfg := DefaultConfig()
	cfg.PriorityAddrs = []address.Address{a1}
	require.NoError(t, mp.SetConfig(context.TODO(), cfg))

	// a1 pays a lower premium but is a priority sender
	mustAdd(t, mp, makeTestMessage(t, w1, a1, a2, 0, 1000000, 1))
	mustAdd(t, mp, makeTestMessage(t, w2, a2, a1, 0, 1000000, 10))

	selected, err := mp.SelectMessages(context.TODO(), nil)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	require.Equal(t, a1, selected[0].Message.From)
	require.Equal(t, a2, selected[1].Message.From)
}

func TestPruneMessages(t *testing.T) {
	tma := newTestMpoolAPI()
	mp := newTestMpool(t, tma)

	w1, a1 := makeTestKey(t)
	w2, a2 := makeTestKey(t)

	for i := uint64(0); i < 10; i++ {
		mustAdd(t, mp, makeTestMessage(t, w1, a1, a2, i, 1000000, 1))
		mustAdd(t, mp, makeTestMessage(t, w2, a2, a1, i, 1000000, 10))
	}

	mp.cfgLk.Lock()
	mp.cfg.SizeLimitLow = 10
	mp.cfgLk.Unlock()

	mp.lk.Lock()
	err := mp.pruneMessages(context.TODO(), mp.curTs)
	mp.lk.Unlock()
	require.NoError(t, err)

	// the cheaper sender's chain goes first
	pending, _ := mp.Pending()
	require.Len(t, pending, 10)
	for _, m := range pending {
		require.Equal(t, a2, m.Message.From)
	}
}
