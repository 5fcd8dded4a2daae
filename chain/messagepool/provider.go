package messagepool

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"

	"github.com/emberchain/ember/chain/stmgr"
	"github.com/emberchain/ember/chain/store"
	"github.com/emberchain/ember/chain/types"
)

// Provider is the message pool's window into the chain: current head, actor
// state after a tipset, and outbound message propagation.
type Provider interface {
	SubscribeHeadChanges(func(rev, app []*types.TipSet) error) *types.TipSet
	PutMessage(ctx context.Context, m types.ChainMsg) (cid.Cid, error)
	PubSubPublish(msgb []byte) error
	GetActorAfter(ctx context.Context, addr address.Address, ts *types.TipSet) (*types.Actor, error)
	StateAccountKey(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error)
	MessagesForBlock(ctx context.Context, b *types.BlockHeader) ([]*types.SignedMessage, error)
	LoadTipSet(ctx context.Context, tsk types.TipSetKey) (*types.TipSet, error)
}

// PublishFunc propagates a serialized signed message to the network. The
// pool itself is transport-agnostic.
type PublishFunc func(msgb []byte) error

type mpoolProvider struct {
	sm      *stmgr.StateManager
	publish PublishFunc
}

func NewProvider(sm *stmgr.StateManager, publish PublishFunc) Provider {
	return &mpoolProvider{sm: sm, publish: publish}
}

func (mpp *mpoolProvider) SubscribeHeadChanges(cb func(rev, app []*types.TipSet) error) *types.TipSet {
	mpp.sm.ChainStore().SubscribeHeadChanges(store.ReorgNotifee(cb))
	return mpp.sm.ChainStore().GetHeaviestTipSet()
}

func (mpp *mpoolProvider) PutMessage(ctx context.Context, m types.ChainMsg) (cid.Cid, error) {
	return mpp.sm.ChainStore().PutMessage(ctx, m)
}

func (mpp *mpoolProvider) PubSubPublish(msgb []byte) error {
	if mpp.publish == nil {
		return nil
	}
	return mpp.publish(msgb)
}

// GetActorAfter returns the actor as it is after all messages of the given
// tipset have executed. Nonce and balance checks in the pool want the state
// the next block will build on.
func (mpp *mpoolProvider) GetActorAfter(ctx context.Context, addr address.Address, ts *types.TipSet) (*types.Actor, error) {
	st, _, err := mpp.sm.TipSetState(ctx, ts)
	if err != nil {
		return nil, err
	}

	stree, err := mpp.sm.StateTree(st)
	if err != nil {
		return nil, err
	}

	return stree.GetActor(addr)
}

func (mpp *mpoolProvider) StateAccountKey(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error) {
	return mpp.sm.ResolveToKeyAddress(ctx, addr, ts)
}

func (mpp *mpoolProvider) MessagesForBlock(ctx context.Context, b *types.BlockHeader) ([]*types.SignedMessage, error) {
	return mpp.sm.ChainStore().MessagesForBlock(ctx, b)
}

func (mpp *mpoolProvider) LoadTipSet(ctx context.Context, tsk types.TipSetKey) (*types.TipSet, error) {
	return mpp.sm.ChainStore().LoadTipSet(ctx, tsk)
}
