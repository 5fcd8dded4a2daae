package gen

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	block "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	dstore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/api"
	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/beacon"
	"github.com/emberchain/ember/chain/gen/genesis"
	"github.com/emberchain/ember/chain/stmgr"
	"github.com/emberchain/ember/chain/store"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/wallet"
)

var log = logging.Logger("gen")

const msgsPerBlock = 20

// ChainGen produces a valid chain for testing. Blocks carry real tickets,
// election proofs and signatures, so everything it emits passes full
// consensus validation.
type ChainGen struct {
	msgsPerBlock int

	bs blockstore.Blockstore

	cs *store.ChainStore

	sm *stmgr.StateManager

	beacon beacon.RandomBeacon

	genesis   *types.BlockHeader
	CurTipset *store.FullTipSet

	w *wallet.Wallet

	Miners []address.Address

	banker      address.Address
	bankerNonce uint64

	receivers []address.Address

	GetMessages func(*ChainGen) ([]*types.SignedMessage, error)
}

type mybs struct {
	blockstore.Blockstore
}

func (m mybs) Get(ctx context.Context, c cid.Cid) (block.Block, error) {
	b, err := m.Blockstore.Get(ctx, c)
	if err != nil {
		log.Errorf("Get failed: %s %s", c, err)
		return nil, err
	}

	return b, nil
}

func NewGenerator() (*ChainGen, error) {
	return NewGeneratorWithMiners(3)
}

func NewGeneratorWithMiners(numMiners int) (*ChainGen, error) {
	ctx := context.TODO()

	bds := dssync.MutexWrap(dstore.NewMapDatastore())
	mds := dssync.MutexWrap(dstore.NewMapDatastore())
	bs := mybs{blockstore.NewBlockstore(bds)}

	w, err := wallet.NewWallet(wallet.NewMemKeyStore())
	if err != nil {
		return nil, xerrors.Errorf("creating wallet failed: %w", err)
	}

	banker, err := w.GenerateKey(ctx, types.KTSecp256k1)
	if err != nil {
		return nil, xerrors.Errorf("failed to generate banker key: %w", err)
	}

	receivers := make([]address.Address, msgsPerBlock)
	for r := range receivers {
		receivers[r], err = w.GenerateKey(ctx, types.KTSecp256k1)
		if err != nil {
			return nil, xerrors.Errorf("failed to generate receiver key: %w", err)
		}
	}

	miners := make([]address.Address, numMiners)
	balances := map[address.Address]types.BigInt{
		banker: types.NewInt(50_000_000_000_000),
	}
	for i := range miners {
		miners[i], err = w.GenerateKey(ctx, types.KTSecp256k1)
		if err != nil {
			return nil, xerrors.Errorf("failed to generate miner key: %w", err)
		}
		balances[miners[i]] = types.NewInt(5_000_000)
	}

	genb, err := genesis.MakeGenesisBlock(ctx, bs, balances, uint64(build.Clock.Now().Unix()-10000))
	if err != nil {
		return nil, xerrors.Errorf("make genesis block failed: %w", err)
	}

	cs := store.NewChainStore(bs, mds)

	if err := cs.SetGenesis(ctx, genb.Genesis); err != nil {
		return nil, xerrors.Errorf("set genesis failed: %w", err)
	}

	// the genesis state knows keys only by their id allocations, resolve
	// miners to the ids the init actor handed out
	sm := stmgr.NewStateManager(cs)
	gents, err := types.NewTipSet([]*types.BlockHeader{genb.Genesis})
	if err != nil {
		return nil, err
	}
	for i := range miners {
		ida, err := sm.LookupID(ctx, miners[i], gents)
		if err != nil {
			return nil, xerrors.Errorf("resolving miner id address: %w", err)
		}
		miners[i] = ida
	}

	gen := &ChainGen{
		bs:           bs,
		cs:           cs,
		sm:           sm,
		beacon:       beacon.NewMockBeacon(time.Duration(build.BlockDelaySecs) * time.Second),
		msgsPerBlock: msgsPerBlock,
		genesis:      genb.Genesis,
		w:            w,
		Miners:       miners,
		banker:       banker,
		receivers:    receivers,
		CurTipset:    store.NewFullTipSet([]*types.FullBlock{{Header: genb.Genesis}}),
	}

	gen.GetMessages = getRandomMessages

	return gen, nil
}

func (cg *ChainGen) StateManager() *stmgr.StateManager {
	return cg.sm
}

func (cg *ChainGen) ChainStore() *store.ChainStore {
	return cg.cs
}

func (cg *ChainGen) Blockstore() blockstore.Blockstore {
	return cg.bs
}

func (cg *ChainGen) Genesis() *types.BlockHeader {
	return cg.genesis
}

func (cg *ChainGen) Wallet() *wallet.Wallet {
	return cg.w
}

func (cg *ChainGen) Banker() address.Address {
	return cg.banker
}

func (cg *ChainGen) Beacon() beacon.RandomBeacon {
	return cg.beacon
}

func (cg *ChainGen) nextBlockProof(ctx context.Context, pts *types.TipSet, m address.Address, round abi.ChainEpoch) (*types.ElectionProof, *types.Ticket, []types.BeaconEntry, error) {
	prev, err := cg.cs.GetLatestBeaconEntry(ctx, pts)
	if err != nil {
		return nil, nil, nil, xerrors.Errorf("get latest beacon entry: %w", err)
	}

	entries, err := beacon.BeaconEntriesForBlock(ctx, cg.beacon, round, *prev)
	if err != nil {
		return nil, nil, nil, xerrors.Errorf("get beacon entries for block: %w", err)
	}

	rbase := *prev
	if len(entries) > 0 {
		rbase = entries[len(entries)-1]
	}

	worker, err := cg.sm.ResolveToKeyAddress(ctx, m, pts)
	if err != nil {
		return nil, nil, nil, xerrors.Errorf("resolving miner worker: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := m.MarshalCBOR(buf); err != nil {
		return nil, nil, nil, xerrors.Errorf("failed to cbor marshal address: %w", err)
	}

	eRand, err := store.DrawRandomness(rbase.Data, crypto.DomainSeparationTag_ElectionProofProduction, round, buf.Bytes())
	if err != nil {
		return nil, nil, nil, xerrors.Errorf("drawing election randomness: %w", err)
	}

	evrf, err := ComputeVRF(ctx, cg.w.Sign, worker, eRand)
	if err != nil {
		return nil, nil, nil, xerrors.Errorf("computing election vrf: %w", err)
	}

	eproof := &types.ElectionProof{
		WinCount: ElectionWinCount(evrf),
		VRFProof: evrf,
	}

	tRand, err := store.DrawRandomness(rbase.Data, crypto.DomainSeparationTag_TicketProduction, round-build.TicketRandomnessLookback, buf.Bytes())
	if err != nil {
		return nil, nil, nil, xerrors.Errorf("drawing ticket randomness: %w", err)
	}

	tvrf, err := ComputeVRF(ctx, cg.w.Sign, worker, tRand)
	if err != nil {
		return nil, nil, nil, xerrors.Errorf("computing ticket vrf: %w", err)
	}

	return eproof, &types.Ticket{VRFProof: tvrf}, entries, nil
}

type MinedTipSet struct {
	TipSet   *store.FullTipSet
	Messages []*types.SignedMessage
}

func (cg *ChainGen) NextTipSet() (*MinedTipSet, error) {
	mts, err := cg.NextTipSetFromMiners(cg.CurTipset.TipSet(), cg.Miners)
	if err != nil {
		return nil, err
	}

	cg.CurTipset = mts.TipSet
	return mts, nil
}

func (cg *ChainGen) NextTipSetFromMiners(base *types.TipSet, miners []address.Address) (*MinedTipSet, error) {
	ctx := context.TODO()

	msgs, err := cg.GetMessages(cg)
	if err != nil {
		return nil, xerrors.Errorf("get random messages: %w", err)
	}

	ms := make([][]*types.SignedMessage, len(miners))
	for i := range ms {
		ms[i] = msgs
	}

	fts, err := cg.NextTipSetFromMinersWithMessages(ctx, base, miners, ms)
	if err != nil {
		return nil, err
	}

	return &MinedTipSet{
		TipSet:   fts,
		Messages: msgs,
	}, nil
}

func (cg *ChainGen) NextTipSetFromMinersWithMessages(ctx context.Context, base *types.TipSet, miners []address.Address, msgs [][]*types.SignedMessage) (*store.FullTipSet, error) {
	var blks []*types.FullBlock

	round := base.Height() + 1

	for mi, m := range miners {
		eproof, ticket, entries, err := cg.nextBlockProof(ctx, base, m, round)
		if err != nil {
			return nil, xerrors.Errorf("next block proof: %w", err)
		}

		fblk, err := cg.makeBlock(ctx, base, m, ticket, eproof, entries, round, msgs[mi])
		if err != nil {
			return nil, xerrors.Errorf("making a block for next tipset failed: %w", err)
		}

		if err := cg.cs.AddBlock(ctx, fblk.Header); err != nil {
			return nil, xerrors.Errorf("storing block in chainstore: %w", err)
		}

		blks = append(blks, fblk)
	}

	fts := store.NewFullTipSet(blks)
	cg.CurTipset = fts

	return fts, nil
}

func (cg *ChainGen) makeBlock(ctx context.Context, parents *types.TipSet, m address.Address, ticket *types.Ticket, eproof *types.ElectionProof, bvals []types.BeaconEntry, height abi.ChainEpoch, msgs []*types.SignedMessage) (*types.FullBlock, error) {
	ts := parents.MinTimestamp() + uint64(height-parents.Height())*build.BlockDelaySecs

	fblk, err := MinerCreateBlock(ctx, cg.sm, cg.w, &api.BlockTemplate{
		Miner:        m,
		Parents:      parents.Key(),
		Ticket:       ticket,
		Eproof:       eproof,
		BeaconValues: bvals,
		Messages:     msgs,
		Epoch:        height,
		Timestamp:    ts,
	})
	if err != nil {
		return nil, err
	}

	return fblk, nil
}

// ResyncBankerNonce forces the banker nonce to the value the state of the
// given tipset expects, for tests that fork the chain under the generator.
func (cg *ChainGen) ResyncBankerNonce(ts *types.TipSet) error {
	act, err := cg.sm.GetActor(cg.banker, ts)
	if err != nil {
		return err
	}
	cg.bankerNonce = act.Nonce
	return nil
}

func getRandomMessages(cg *ChainGen) ([]*types.SignedMessage, error) {
	msgs := make([]*types.SignedMessage, cg.msgsPerBlock)
	for m := range msgs {
		msg := types.Message{
			To:   cg.receivers[m%len(cg.receivers)],
			From: cg.banker,

			Nonce: cg.bankerNonce,

			Value: types.NewInt(uint64(m + 1)),

			Method: 0,

			GasLimit:   100_000_000,
			GasFeeCap:  types.NewInt(0),
			GasPremium: types.NewInt(0),
		}
		cg.bankerNonce++

		sig, err := cg.w.Sign(context.TODO(), cg.banker, msg.Cid().Bytes())
		if err != nil {
			return nil, err
		}

		msgs[m] = &types.SignedMessage{
			Message:   msg,
			Signature: *sig,
		}
	}

	return msgs, nil
}

func (cg *ChainGen) String() string {
	return fmt.Sprintf("ChainGen(h=%d, miners=%d)", cg.CurTipset.TipSet().Height(), len(cg.Miners))
}
