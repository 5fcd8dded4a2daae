package gen

import (
	"context"

	amt "github.com/filecoin-project/go-amt-ipld/v2"
	cbor "github.com/ipfs/go-ipld-cbor"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/api"
	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/stmgr"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/wallet"
)

// MinerCreateBlock assembles a block from the given template, computes the
// parent state and message roots, and signs the header with the miner's
// worker key.
func MinerCreateBlock(ctx context.Context, sm *stmgr.StateManager, w *wallet.Wallet, bt *api.BlockTemplate) (*types.FullBlock, error) {
	pts, err := sm.ChainStore().LoadTipSet(ctx, bt.Parents)
	if err != nil {
		return nil, xerrors.Errorf("failed to load parent tipset: %w", err)
	}

	st, recpts, err := sm.TipSetState(ctx, pts)
	if err != nil {
		return nil, xerrors.Errorf("failed to load tipset state: %w", err)
	}

	worker, err := sm.ResolveToKeyAddress(ctx, bt.Miner, pts)
	if err != nil {
		return nil, xerrors.Errorf("failed to get miner worker: %w", err)
	}

	next := &types.BlockHeader{
		Miner:                 bt.Miner,
		Parents:               bt.Parents.Cids(),
		Ticket:                bt.Ticket,
		ElectionProof:         bt.Eproof,
		BeaconEntries:         bt.BeaconValues,
		Height:                bt.Epoch,
		Timestamp:             bt.Timestamp,
		ParentStateRoot:       st,
		ParentMessageReceipts: recpts,
	}

	if len(bt.Messages) > build.BlockMessageLimit {
		return nil, xerrors.Errorf("attempted to put %d messages in a block (limit %d)", len(bt.Messages), build.BlockMessageLimit)
	}

	var msgCids []cbg.CBORMarshaler
	for _, msg := range bt.Messages {
		c, err := sm.ChainStore().PutMessage(ctx, msg)
		if err != nil {
			return nil, err
		}

		mc := cbg.CborCid(c)
		msgCids = append(msgCids, &mc)
	}

	cst := cbor.NewCborStore(sm.ChainStore().Blockstore())
	mroot, err := amt.FromArray(ctx, cst, msgCids)
	if err != nil {
		return nil, xerrors.Errorf("failed to build message amt: %w", err)
	}
	next.Messages = mroot

	pweight, err := sm.ChainStore().Weight(ctx, pts)
	if err != nil {
		return nil, err
	}
	next.ParentWeight = pweight

	nosigbytes, err := next.SigningBytes()
	if err != nil {
		return nil, xerrors.Errorf("failed to get signing bytes for block: %w", err)
	}

	sig, err := w.Sign(ctx, worker, nosigbytes)
	if err != nil {
		return nil, xerrors.Errorf("failed to sign new block: %w", err)
	}
	next.BlockSig = sig

	return &types.FullBlock{
		Header:   next,
		Messages: bt.Messages,
	}, nil
}
