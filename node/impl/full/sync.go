package full

import (
	"context"

	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/api"
	"github.com/emberchain/ember/chain"
	"github.com/emberchain/ember/chain/types"
)

type SyncAPI struct {
	Syncer *chain.Syncer
}

func (a *SyncAPI) SyncState(ctx context.Context) (*api.SyncState, error) {
	states := a.Syncer.State()

	out := &api.SyncState{}

	for _, ss := range states {
		out.ActiveSyncs = append(out.ActiveSyncs, api.ActiveSync{
			Base:    ss.Base,
			Target:  ss.Target,
			Stage:   ss.Stage,
			Height:  ss.Height,
			Start:   ss.Start,
			End:     ss.End,
			Message: ss.Message,
		})
	}
	return out, nil
}

func (a *SyncAPI) SyncSubmitBlock(ctx context.Context, blk *types.BlockMsg) error {
	smsgs, err := a.Syncer.ChainStore().LoadSignedMessagesFromCids(ctx, blk.Messages)
	if err != nil {
		return xerrors.Errorf("loading block messages: %w", err)
	}

	fb := &types.FullBlock{
		Header:   blk.Header,
		Messages: smsgs,
	}

	if !a.Syncer.InformNewBlock(a.Syncer.LocalPeer(), fb) {
		return xerrors.New("block was not accepted")
	}

	return nil
}

func (a *SyncAPI) SyncMarkBad(ctx context.Context, bcid cid.Cid) error {
	a.Syncer.MarkBad(bcid)
	return nil
}

func (a *SyncAPI) SyncCheckBad(ctx context.Context, bcid cid.Cid) (string, error) {
	reason, ok := a.Syncer.CheckBadBlockCache(bcid)
	if !ok {
		return "", nil
	}

	return reason, nil
}
