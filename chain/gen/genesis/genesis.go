package genesis

import (
	"bytes"
	"context"
	"sort"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	"github.com/minio/blake2b-simd"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	amt "github.com/filecoin-project/go-amt-ipld/v2"
	hamt "github.com/ipfs/go-hamt-ipld"
	bstore "github.com/ipfs/go-ipfs-blockstore"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/actors"
	"github.com/emberchain/ember/chain/state"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/vm"
)

var log = logging.Logger("genesis")

type GenesisBootstrap struct {
	Genesis *types.BlockHeader
}

// SetupInitActor builds the init actor with an address map that already
// contains an id allocation for every genesis account key.
func SetupInitActor(ctx context.Context, bs bstore.Blockstore, addrs []address.Address) (*types.Actor, error) {
	var ias actors.InitActorState
	ias.NextID = actors.FirstNonSingletonActorId
	ias.NetworkName = build.NetworkName

	cst := cbor.NewCborStore(bs)
	amap := hamt.NewNode(cst)

	for i, a := range addrs {
		actorID := cbg.CborInt(actors.FirstNonSingletonActorId + uint64(i))
		if err := amap.Set(ctx, string(a.Bytes()), &actorID); err != nil {
			return nil, err
		}
	}

	ias.NextID += uint64(len(addrs))
	if err := amap.Flush(ctx); err != nil {
		return nil, err
	}
	amapcid, err := cst.Put(ctx, amap)
	if err != nil {
		return nil, err
	}

	ias.AddressMap = amapcid

	statecid, err := cst.Put(ctx, &ias)
	if err != nil {
		return nil, err
	}

	act := &types.Actor{
		Code:    actors.InitCodeCid,
		Head:    statecid,
		Balance: types.NewInt(0),
	}

	return act, nil
}

// MakeInitialStateTree assembles the genesis state: the system, init and
// reward singletons, the burnt funds account, and one account actor per
// funded key address. Key addresses get ids in iteration order starting at
// FirstNonSingletonActorId, matching the allocations recorded in the init
// actor's address map.
func MakeInitialStateTree(ctx context.Context, bs bstore.Blockstore, balances map[address.Address]types.BigInt) (*state.StateTree, error) {
	cst := cbor.NewCborStore(bs)
	st, err := state.NewStateTree(cst)
	if err != nil {
		return nil, xerrors.Errorf("making new state tree: %w", err)
	}

	// deterministic account ordering, genesis must be reproducible
	addrs := make([]address.Address, 0, len(balances))
	for a := range balances {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0
	})

	if err := st.SetActor(actors.SystemAddress, &types.Actor{
		Code:    actors.SystemCodeCid,
		Head:    vm.EmptyObjectCid,
		Balance: types.NewInt(0),
	}); err != nil {
		return nil, xerrors.Errorf("set system actor: %w", err)
	}

	initact, err := SetupInitActor(ctx, bs, addrs)
	if err != nil {
		return nil, xerrors.Errorf("setup init actor: %w", err)
	}

	if err := st.SetActor(actors.InitAddress, initact); err != nil {
		return nil, xerrors.Errorf("set init actor: %w", err)
	}

	rst := &actors.RewardActorState{TotalMined: types.NewInt(0)}
	rstcid, err := cst.Put(ctx, rst)
	if err != nil {
		return nil, xerrors.Errorf("put reward actor state: %w", err)
	}

	if err := st.SetActor(actors.RewardAddress, &types.Actor{
		Code:    actors.RewardCodeCid,
		Head:    rstcid,
		Balance: types.BigInt{Int: build.InitialRewardBalance},
	}); err != nil {
		return nil, xerrors.Errorf("set reward actor: %w", err)
	}

	if err := st.SetActor(actors.BurntFundsAddress, &types.Actor{
		Code:    actors.AccountCodeCid,
		Head:    vm.EmptyObjectCid,
		Balance: types.NewInt(0),
	}); err != nil {
		return nil, xerrors.Errorf("set burnt funds account actor: %w", err)
	}

	for i, a := range addrs {
		ast, err := cst.Put(ctx, &actors.AccountActorState{Address: a})
		if err != nil {
			return nil, xerrors.Errorf("put account actor state: %w", err)
		}

		ida, err := address.NewIDAddress(actors.FirstNonSingletonActorId + uint64(i))
		if err != nil {
			return nil, err
		}

		if err := st.SetActor(ida, &types.Actor{
			Code:    actors.AccountCodeCid,
			Head:    ast,
			Balance: balances[a],
		}); err != nil {
			return nil, xerrors.Errorf("setting account from balance map: %w", err)
		}
	}

	return st, nil
}


func MakeGenesisBlock(ctx context.Context, bs bstore.Blockstore, balances map[address.Address]types.BigInt, timestamp uint64) (*GenesisBootstrap, error) {
	st, err := MakeInitialStateTree(ctx, bs, balances)
	if err != nil {
		return nil, xerrors.Errorf("make initial state tree failed: %w", err)
	}

	stateroot, err := st.Flush(ctx)
	if err != nil {
		return nil, xerrors.Errorf("flush state tree failed: %w", err)
	}

	cst := cbor.NewCborStore(bs)

	emptyroot, err := amt.FromArray(ctx, cst, nil)
	if err != nil {
		return nil, xerrors.Errorf("amt build failed: %w", err)
	}

	log.Infof("genesis empty message root: %s", emptyroot)

	genesisticket := &types.Ticket{
		VRFProof: []byte("vrf proof0000000vrf proof0000000"),
	}

	seed := blake2b.Sum256([]byte(build.NetworkName))

	b := &types.BlockHeader{
		Miner:  actors.SystemAddress,
		Ticket: genesisticket,
		BeaconEntries: []types.BeaconEntry{{
			Round: 0,
			Data:  seed[:],
		}},
		Parents:               []cid.Cid{},
		Height:                0,
		ParentWeight:          types.NewInt(0),
		ParentStateRoot:       stateroot,
		Messages:              emptyroot,
		ParentMessageReceipts: emptyroot,
		Timestamp:             timestamp,
	}

	sb, err := b.ToStorageBlock()
	if err != nil {
		return nil, xerrors.Errorf("serializing block header failed: %w", err)
	}

	if err := bs.Put(ctx, sb); err != nil {
		return nil, xerrors.Errorf("putting header to blockstore: %w", err)
	}

	return &GenesisBootstrap{
		Genesis: b,
	}, nil
}
