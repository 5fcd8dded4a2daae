package messagepool

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/go-address"

	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/types/mock"
	"github.com/emberchain/ember/chain/wallet"
)

type testMpoolAPI struct {
	cb func(rev, app []*types.TipSet) error

	bmsgs      map[cid.Cid][]*types.SignedMessage
	statenonce map[address.Address]uint64
	balance    map[address.Address]types.BigInt

	gen *types.TipSet

	tipsets []*types.TipSet

	published int
}

func newTestMpoolAPI() *testMpoolAPI {
	return &testMpoolAPI{
		bmsgs:      make(map[cid.Cid][]*types.SignedMessage),
		statenonce: make(map[address.Address]uint64),
		balance:    make(map[address.Address]types.BigInt),
		gen:        mock.TipSet(mock.MkBlock(nil, 1, 1)),
	}
}

func (tma *testMpoolAPI) applyBlock(t *testing.T, b *types.BlockHeader) {
	t.Helper()
	ts := mock.TipSet(b)
	tma.tipsets = append(tma.tipsets, ts)
	if err := tma.cb(nil, []*types.TipSet{ts}); err != nil {
		t.Fatal(err)
	}
}

func (tma *testMpoolAPI) revertBlock(t *testing.T, b *types.BlockHeader) {
	t.Helper()
	if err := tma.cb([]*types.TipSet{mock.TipSet(b)}, nil); err != nil {
		t.Fatal(err)
	}
}

func (tma *testMpoolAPI) setStateNonce(addr address.Address, v uint64) {
	tma.statenonce[addr] = v
}

func (tma *testMpoolAPI) setBalance(addr address.Address, v uint64) {
	tma.balance[addr] = types.NewInt(v)
}

func (tma *testMpoolAPI) setBlockMessages(h *types.BlockHeader, msgs ...*types.SignedMessage) {
	tma.bmsgs[h.Cid()] = msgs
}

func (tma *testMpoolAPI) SubscribeHeadChanges(cb func(rev, app []*types.TipSet) error) *types.TipSet {
	tma.cb = cb
	return tma.gen
}

func (tma *testMpoolAPI) PutMessage(ctx context.Context, m types.ChainMsg) (cid.Cid, error) {
	return cid.Undef, nil
}

func (tma *testMpoolAPI) PubSubPublish(msgb []byte) error {
	tma.published++
	return nil
}

func (tma *testMpoolAPI) GetActorAfter(ctx context.Context, addr address.Address, ts *types.TipSet) (*types.Actor, error) {
	balance, ok := tma.balance[addr]
	if !ok {
		balance = types.NewInt(1000e6)
	}
	return &types.Actor{
		Nonce:   tma.statenonce[addr],
		Balance: balance,
	}, nil
}

func (tma *testMpoolAPI) StateAccountKey(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error) {
	return addr, nil
}

func (tma *testMpoolAPI) MessagesForBlock(ctx context.Context, h *types.BlockHeader) ([]*types.SignedMessage, error) {
	return tma.bmsgs[h.Cid()], nil
}

func (tma *testMpoolAPI) LoadTipSet(ctx context.Context, tsk types.TipSetKey) (*types.TipSet, error) {
	for _, ts := range tma.tipsets {
		if ts.Key() == tsk {
			return ts, nil
		}
	}

	return tma.gen, nil
}

var _ Provider = (*testMpoolAPI)(nil)

func newTestMpool(t *testing.T, tma *testMpoolAPI) *MessagePool {
	t.Helper()
	ds := dssync.MutexWrap(datastore.NewMapDatastore())

	mp, err := New(tma, ds, "mptest")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = mp.Close()
	})

	return mp
}

func assertNonce(t *testing.T, mp *MessagePool, addr address.Address, val uint64) {
	t.Helper()
	n, err := mp.GetNonce(addr)
	if err != nil {
		t.Fatal(err)
	}

	if n != val {
		t.Fatalf("expected nonce of %d, got %d", val, n)
	}
}

func mustAdd(t *testing.T, mp *MessagePool, msg *types.SignedMessage) {
	t.Helper()
	if err := mp.Add(context.TODO(), msg); err != nil {
		t.Fatal(err)
	}
}

func TestMessagePool(t *testing.T) {
	tma := newTestMpoolAPI()

	w, err := wallet.NewWallet(wallet.NewMemKeyStore())
	require.NoError(t, err)

	mp := newTestMpool(t, tma)

	a := mock.MkBlock(nil, 1, 1)

	sender, err := w.GenerateKey(context.TODO(), types.KTSecp256k1)
	require.NoError(t, err)
	target := mock.Address(1001)

	var msgs []*types.SignedMessage
	for i := 0; i < 5; i++ {
		msgs = append(msgs, mock.MkMessage(sender, target, uint64(i), w))
	}

	tma.setStateNonce(sender, 0)
	assertNonce(t, mp, sender, 0)
	mustAdd(t, mp, msgs[0])
	assertNonce(t, mp, sender, 1)
	mustAdd(t, mp, msgs[1])
	assertNonce(t, mp, sender, 2)

	tma.setBlockMessages(a, msgs[0], msgs[1])
	tma.applyBlock(t, a)
	tma.setStateNonce(sender, 2)

	assertNonce(t, mp, sender, 2)

	pmsgs, _ := mp.Pending()
	require.Empty(t, pmsgs)
}

func TestRevertMessages(t *testing.T) {
	tma := newTestMpoolAPI()

	w, err := wallet.NewWallet(wallet.NewMemKeyStore())
	require.NoError(t, err)

	mp := newTestMpool(t, tma)

	a := mock.MkBlock(nil, 1, 1)
	b := mock.MkBlock(mock.TipSet(a), 1, 2)

	sender, err := w.GenerateKey(context.TODO(), types.KTSecp256k1)
	require.NoError(t, err)
	target := mock.Address(1001)

	var msgs []*types.SignedMessage
	for i := 0; i < 4; i++ {
		msgs = append(msgs, mock.MkMessage(sender, target, uint64(i), w))
	}

	tma.setStateNonce(sender, 0)
	for _, m := range msgs {
		mustAdd(t, mp, m)
	}
	assertNonce(t, mp, sender, 4)

	tma.setBlockMessages(a, msgs[0])
	tma.setBlockMessages(b, msgs[1], msgs[2], msgs[3])

	tma.applyBlock(t, a)
	tma.setStateNonce(sender, 1)
	assertNonce(t, mp, sender, 4)

	pmsgs, _ := mp.Pending()
	require.Len(t, pmsgs, 3)

	tma.applyBlock(t, b)
	pmsgs, _ = mp.Pending()
	require.Empty(t, pmsgs)

	// revert b; its messages should be back in the pool
	tma.revertBlock(t, b)

	assertNonce(t, mp, sender, 4)

	pmsgs, _ = mp.Pending()
	require.Len(t, pmsgs, 3)
}

func TestReplaceByFee(t *testing.T) {
	tma := newTestMpoolAPI()

	w, err := wallet.NewWallet(wallet.NewMemKeyStore())
	require.NoError(t, err)

	mp := newTestMpool(t, tma)

	sender, err := w.GenerateKey(context.TODO(), types.KTSecp256k1)
	require.NoError(t, err)
	target := mock.Address(1001)

	mkMsg := func(nonce uint64, value uint64, premium uint64) *types.SignedMessage {
		msg := &types.Message{
			To:         target,
			From:       sender,
			Value:      types.NewInt(value),
			Nonce:      nonce,
			GasLimit:   1000000,
			GasFeeCap:  types.NewInt(100),
			GasPremium: types.NewInt(premium),
		}
		sig, err := w.Sign(context.TODO(), sender, msg.Cid().Bytes())
		require.NoError(t, err)
		return &types.SignedMessage{Message: *msg, Signature: *sig}
	}

	mustAdd(t, mp, mkMsg(0, 1, 100))

	// different message at the same nonce without a big enough premium bump
	err = mp.Add(context.TODO(), mkMsg(0, 2, 101))
	require.ErrorIs(t, err, ErrRBFTooLowPremium)

	// 100 + 100*64/256 + 1 = 126
	replacement := mkMsg(0, 2, 126)
	mustAdd(t, mp, replacement)

	pmsgs, _ := mp.Pending()
	require.Len(t, pmsgs, 1)
	require.Equal(t, replacement.Cid(), pmsgs[0].Cid())
}

func TestNonceTooLow(t *testing.T) {
	tma := newTestMpoolAPI()

	w, err := wallet.NewWallet(wallet.NewMemKeyStore())
	require.NoError(t, err)

	mp := newTestMpool(t, tma)

	sender, err := w.GenerateKey(context.TODO(), types.KTSecp256k1)
	require.NoError(t, err)
	target := mock.Address(1001)

	tma.setStateNonce(sender, 5)

	err = mp.Add(context.TODO(), mock.MkMessage(sender, target, 3, w))
	require.ErrorIs(t, err, ErrNonceTooLow)
}

func TestNotEnoughFunds(t *testing.T) {
	tma := newTestMpoolAPI()

	w, err := wallet.NewWallet(wallet.NewMemKeyStore())
	require.NoError(t, err)

	mp := newTestMpool(t, tma)

	sender, err := w.GenerateKey(context.TODO(), types.KTSecp256k1)
	require.NoError(t, err)
	target := mock.Address(1001)

	// mock messages carry a gas cost of 1000000 * 100
	tma.setBalance(sender, 1000)

	err = mp.Add(context.TODO(), mock.MkMessage(sender, target, 0, w))
	require.ErrorIs(t, err, ErrNotEnoughFunds)
}
