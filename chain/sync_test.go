package chain_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/filecoin-project/go-state-types/abi"
	block "github.com/ipfs/go-block-format"
	dstore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/chain"
	"github.com/emberchain/ember/chain/gen"
	"github.com/emberchain/ember/chain/stmgr"
	"github.com/emberchain/ember/chain/store"
	"github.com/emberchain/ember/chain/types"
)

// mockFetcher serves chain data straight out of a source node's chainstore.
type mockFetcher struct {
	cs *store.ChainStore
}

func (mf *mockFetcher) AddPeer(p string) {}

func (mf *mockFetcher) GetBlocks(ctx context.Context, tsk types.TipSetKey, count int) ([]*types.TipSet, error) {
	var out []*types.TipSet

	ts, err := mf.cs.LoadTipSet(ctx, tsk)
	if err != nil {
		return nil, err
	}

	for i := 0; i < count; i++ {
		out = append(out, ts)
		if ts.Height() == 0 {
			break
		}

		ts, err = mf.cs.LoadTipSet(ctx, ts.Parents())
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (mf *mockFetcher) GetFullTipSet(ctx context.Context, p string, tsk types.TipSetKey) (*store.FullTipSet, error) {
	ts, err := mf.cs.LoadTipSet(ctx, tsk)
	if err != nil {
		return nil, err
	}

	return mf.cs.TryFillTipSet(ctx, ts)
}

func (mf *mockFetcher) GetChainMessages(ctx context.Context, h *types.TipSet, count uint64) ([]*chain.TipSetMessages, error) {
	var out []*chain.TipSetMessages

	ts := h
	for i := uint64(0); i < count; i++ {
		var tsm chain.TipSetMessages
		for _, b := range ts.Blocks() {
			msgs, err := mf.cs.MessagesForBlock(ctx, b)
			if err != nil {
				return nil, err
			}
			tsm.Messages = append(tsm.Messages, msgs)
		}
		out = append(out, &tsm)

		if ts.Height() == 0 {
			break
		}

		var err error
		ts, err = mf.cs.LoadTipSet(ctx, ts.Parents())
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

var _ chain.TipSetFetcher = (*mockFetcher)(nil)

type syncTestUtil struct {
	t *testing.T

	ctx context.Context
	g   *gen.ChainGen

	genesisBlocks []block.Block

	syncers []*chain.Syncer
}

func prepSyncTest(t *testing.T, h int) *syncTestUtil {
	g, err := gen.NewGenerator()
	require.NoError(t, err)

	tu := &syncTestUtil{
		t:   t,
		ctx: context.Background(),
		g:   g,
	}

	// snapshot the genesis state before any blocks are mined, new nodes
	// bootstrap from it
	ch, err := g.Blockstore().AllKeysChan(tu.ctx)
	require.NoError(t, err)
	for c := range ch {
		b, err := g.Blockstore().Get(tu.ctx, c)
		require.NoError(t, err)
		tu.genesisBlocks = append(tu.genesisBlocks, b)
	}

	for i := 0; i < h; i++ {
		mts, err := g.NextTipSet()
		require.NoError(t, err)
		require.Equal(t, abi.ChainEpoch(i+1), mts.TipSet.TipSet().Height(), "wrong height")
	}

	return tu
}

func (tu *syncTestUtil) addClientNode() *chain.Syncer {
	bs := blockstore.NewBlockstore(dssync.MutexWrap(dstore.NewMapDatastore()))
	for _, b := range tu.genesisBlocks {
		require.NoError(tu.t, bs.Put(tu.ctx, b))
	}

	cs := store.NewChainStore(bs, dssync.MutexWrap(dstore.NewMapDatastore()))
	require.NoError(tu.t, cs.SetGenesis(tu.ctx, tu.g.Genesis()))

	sm := stmgr.NewStateManager(cs)

	syncer, err := chain.NewSyncer(tu.ctx, sm, &mockFetcher{cs: tu.g.ChainStore()}, tu.g.Beacon(), fmt.Sprintf("client%d", len(tu.syncers)))
	require.NoError(tu.t, err)

	tu.syncers = append(tu.syncers, syncer)
	return syncer
}

// sourceSyncer validates blocks against the generator's own chain, for tests
// that hand-craft bad blocks.
func (tu *syncTestUtil) sourceSyncer() *chain.Syncer {
	syncer, err := chain.NewSyncer(tu.ctx, tu.g.StateManager(), &mockFetcher{cs: tu.g.ChainStore()}, tu.g.Beacon(), "self")
	require.NoError(tu.t, err)
	return syncer
}

func (tu *syncTestUtil) compareSourceState(client *chain.Syncer) {
	sourceHead := tu.g.CurTipset.TipSet()
	clientHead := client.ChainStore().GetHeaviestTipSet()
	require.Equal(tu.t, sourceHead.Key(), clientHead.Key())

	addrs, err := tu.g.Wallet().ListAddrs(tu.ctx)
	require.NoError(tu.t, err)

	csm := stmgr.NewStateManager(client.ChainStore())
	for _, addr := range addrs {
		sourceBalance, err := tu.g.StateManager().GetBalance(addr, sourceHead)
		require.NoError(tu.t, err)

		actBalance, err := csm.GetBalance(addr, clientHead)
		require.NoError(tu.t, err)

		require.Equal(tu.t, sourceBalance, actBalance)
	}
}

func (tu *syncTestUtil) mineOnBlock(base *types.TipSet, n int) *types.TipSet {
	ts := base
	for i := 0; i < n; i++ {
		mts, err := tu.g.NextTipSetFromMiners(ts, tu.g.Miners)
		require.NoError(tu.t, err)
		ts = mts.TipSet.TipSet()
	}
	return ts
}

// resignBlock re-signs a mutated header with the producing miner's key so
// only the mutation under test trips validation.
func (tu *syncTestUtil) resignBlock(fblk *types.FullBlock, mut func(*types.BlockHeader)) *types.FullBlock {
	hdr := *fblk.Header
	mut(&hdr)

	waddr, err := tu.g.StateManager().ResolveToKeyAddress(tu.ctx, hdr.Miner, tu.g.CurTipset.TipSet())
	require.NoError(tu.t, err)

	sb, err := hdr.SigningBytes()
	require.NoError(tu.t, err)

	sig, err := tu.g.Wallet().Sign(tu.ctx, waddr, sb)
	require.NoError(tu.t, err)
	hdr.BlockSig = sig

	return &types.FullBlock{
		Header:   &hdr,
		Messages: fblk.Messages,
	}
}

func TestSyncSimple(t *testing.T) {
	H := 20
	tu := prepSyncTest(t, H)

	head := tu.g.CurTipset.TipSet()
	require.Equal(t, abi.ChainEpoch(H), head.Height())

	client := tu.addClientNode()
	require.Equal(t, abi.ChainEpoch(0), client.ChainStore().GetHeaviestTipSet().Height())

	require.NoError(t, client.Sync(tu.ctx, head))

	tu.compareSourceState(client)
}

func TestSyncIncremental(t *testing.T) {
	tu := prepSyncTest(t, 5)

	client := tu.addClientNode()
	require.NoError(t, client.Sync(tu.ctx, tu.g.CurTipset.TipSet()))
	require.Equal(t, abi.ChainEpoch(5), client.ChainStore().GetHeaviestTipSet().Height())

	// the source keeps mining, catch up from a non-genesis base
	for i := 0; i < 5; i++ {
		_, err := tu.g.NextTipSet()
		require.NoError(t, err)
	}

	require.NoError(t, client.Sync(tu.ctx, tu.g.CurTipset.TipSet()))

	tu.compareSourceState(client)
}

func TestSyncBadWinCount(t *testing.T) {
	tu := prepSyncTest(t, 5)

	mts, err := tu.g.NextTipSet()
	require.NoError(t, err)

	good := mts.TipSet.Blocks[0]
	bad := tu.resignBlock(good, func(h *types.BlockHeader) {
		h.ElectionProof = &types.ElectionProof{
			WinCount: h.ElectionProof.WinCount + 1,
			VRFProof: h.ElectionProof.VRFProof,
		}
	})

	syncer := tu.sourceSyncer()

	err = syncer.ValidateBlock(tu.ctx, bad)
	require.Error(t, err)
	require.NotErrorIs(t, err, chain.ErrTemporal)

	// permanent failures land in the bad block cache
	err = syncer.ValidateTipSet(tu.ctx, store.NewFullTipSet([]*types.FullBlock{bad}))
	require.Error(t, err)

	_, marked := syncer.CheckBadBlockCache(bad.Cid())
	require.True(t, marked)

	// the untouched block still validates
	require.NoError(t, syncer.ValidateBlock(tu.ctx, good))
}

func TestSyncFutureBlock(t *testing.T) {
	tu := prepSyncTest(t, 5)

	mts, err := tu.g.NextTipSet()
	require.NoError(t, err)

	bad := tu.resignBlock(mts.TipSet.Blocks[0], func(h *types.BlockHeader) {
		h.Timestamp = uint64(time.Now().Add(time.Hour).Unix())
	})

	syncer := tu.sourceSyncer()

	err = syncer.ValidateBlock(tu.ctx, bad)
	require.ErrorIs(t, err, chain.ErrTemporal)

	// temporal failures must not poison the bad block cache
	err = syncer.ValidateTipSet(tu.ctx, store.NewFullTipSet([]*types.FullBlock{bad}))
	require.Error(t, err)

	_, marked := syncer.CheckBadBlockCache(bad.Cid())
	require.False(t, marked)
}

func TestSyncBadSignature(t *testing.T) {
	tu := prepSyncTest(t, 5)

	mts, err := tu.g.NextTipSet()
	require.NoError(t, err)

	bad := *mts.TipSet.Blocks[0].Header
	sig := *bad.BlockSig
	sig.Data = append([]byte{}, sig.Data...)
	sig.Data[0] ^= 0xff
	bad.BlockSig = &sig

	syncer := tu.sourceSyncer()

	err = syncer.ValidateBlock(tu.ctx, &types.FullBlock{
		Header:   &bad,
		Messages: mts.TipSet.Blocks[0].Messages,
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, chain.ErrTemporal)
}

func TestSyncFork(t *testing.T) {
	tu := prepSyncTest(t, 2)

	base := tu.g.CurTipset.TipSet()

	shorter := tu.mineOnBlock(base, 3)

	require.NoError(t, tu.g.ResyncBankerNonce(base))
	longer := tu.mineOnBlock(base, 8)

	client := tu.addClientNode()
	require.NoError(t, client.Sync(tu.ctx, shorter))
	require.Equal(t, shorter.Key(), client.ChainStore().GetHeaviestTipSet().Key())

	// a heavier competing chain wins the head
	require.NoError(t, client.Sync(tu.ctx, longer))
	require.Equal(t, longer.Key(), client.ChainStore().GetHeaviestTipSet().Key())

	// offering the lighter chain again is a no-op
	require.NoError(t, client.Sync(tu.ctx, shorter))
	require.Equal(t, longer.Key(), client.ChainStore().GetHeaviestTipSet().Key())
}

func TestSyncMarkBad(t *testing.T) {
	tu := prepSyncTest(t, 3)

	head := tu.g.CurTipset.TipSet()
	client := tu.addClientNode()

	client.MarkBad(head.Cids()[0])

	reason, ok := client.CheckBadBlockCache(head.Cids()[0])
	require.True(t, ok)
	require.Contains(t, reason, "manually marked bad")

	client.UnmarkBad(head.Cids()[0])
	_, ok = client.CheckBadBlockCache(head.Cids()[0])
	require.False(t, ok)

	require.NoError(t, client.Sync(tu.ctx, head))
	tu.compareSourceState(client)
}
