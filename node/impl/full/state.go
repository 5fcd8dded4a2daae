package full

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/ipfs/go-cid"

	"github.com/emberchain/ember/api"
	"github.com/emberchain/ember/chain/stmgr"
	"github.com/emberchain/ember/chain/store"
	"github.com/emberchain/ember/chain/types"
)

type StateAPI struct {
	StateManager *stmgr.StateManager
	Chain        *store.ChainStore
}

func (a *StateAPI) StateCall(ctx context.Context, msg *types.Message, tsk types.TipSetKey) (*api.InvocResult, error) {
	ts, err := a.loadTipSet(ctx, tsk)
	if err != nil {
		return nil, err
	}

	return a.StateManager.Call(ctx, msg, ts)
}

func (a *StateAPI) StateGetActor(ctx context.Context, actor address.Address, tsk types.TipSetKey) (*types.Actor, error) {
	ts, err := a.loadTipSet(ctx, tsk)
	if err != nil {
		return nil, err
	}

	return a.StateManager.GetActor(actor, ts)
}

func (a *StateAPI) StateLookupID(ctx context.Context, addr address.Address, tsk types.TipSetKey) (address.Address, error) {
	ts, err := a.loadTipSet(ctx, tsk)
	if err != nil {
		return address.Undef, err
	}

	return a.StateManager.LookupID(ctx, addr, ts)
}

func (a *StateAPI) StateAccountKey(ctx context.Context, addr address.Address, tsk types.TipSetKey) (address.Address, error) {
	ts, err := a.loadTipSet(ctx, tsk)
	if err != nil {
		return address.Undef, err
	}

	return a.StateManager.ResolveToKeyAddress(ctx, addr, ts)
}

func (a *StateAPI) StateGetReceipt(ctx context.Context, msg cid.Cid, tsk types.TipSetKey) (*types.MessageReceipt, error) {
	ts, err := a.loadTipSet(ctx, tsk)
	if err != nil {
		return nil, err
	}

	return a.StateManager.GetReceipt(ctx, msg, ts)
}

func (a *StateAPI) StateGetRandomness(ctx context.Context, personalization crypto.DomainSeparationTag, randEpoch abi.ChainEpoch, entropy []byte, tsk types.TipSetKey) (abi.Randomness, error) {
	ts, err := a.loadTipSet(ctx, tsk)
	if err != nil {
		return nil, err
	}

	return a.StateManager.GetRandomness(ctx, personalization, randEpoch, entropy, ts)
}

// loadTipSet treats the empty key as the current head.
func (a *StateAPI) loadTipSet(ctx context.Context, tsk types.TipSetKey) (*types.TipSet, error) {
	if tsk == types.EmptyTSK {
		return a.Chain.GetHeaviestTipSet(), nil
	}

	ts, err := a.Chain.LoadTipSet(ctx, tsk)
	if err != nil {
		return nil, xerrors.Errorf("loading tipset %s: %w", tsk, err)
	}

	return ts, nil
}
