package impl

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"github.com/emberchain/ember/api"
	"github.com/emberchain/ember/chain/gen"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/node/impl/full"
)

var log = logging.Logger("node")

type FullNodeAPI struct {
	CommonAPI
	full.ChainAPI
	full.MpoolAPI
	full.StateAPI
	full.SyncAPI
	full.BeaconAPI
}

func (n *FullNodeAPI) MinerCreateBlock(ctx context.Context, bt *api.BlockTemplate) (*types.BlockMsg, error) {
	fblk, err := gen.MinerCreateBlock(ctx, n.StateAPI.StateManager, n.MpoolAPI.Wallet, bt)
	if err != nil {
		return nil, err
	}

	var out types.BlockMsg
	out.Header = fblk.Header
	for _, msg := range fblk.Messages {
		out.Messages = append(out.Messages, msg.Cid())
	}

	return &out, nil
}

var _ api.FullNode = &FullNodeAPI{}
