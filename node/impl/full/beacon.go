package full

import (
	"context"

	"github.com/filecoin-project/go-state-types/abi"

	"github.com/emberchain/ember/chain/beacon"
	"github.com/emberchain/ember/chain/types"
)

type BeaconAPI struct {
	Beacon beacon.RandomBeacon
}

// BeaconGetEntry returns the beacon entry for the given epoch, blocking until
// the entry becomes available.
func (a *BeaconAPI) BeaconGetEntry(ctx context.Context, epoch abi.ChainEpoch) (*types.BeaconEntry, error) {
	rr := a.Beacon.MaxBeaconRoundForEpoch(epoch)
	e := a.Beacon.Entry(ctx, rr)

	select {
	case be, ok := <-e:
		if !ok {
			return nil, ctx.Err()
		}
		if be.Err != nil {
			return nil, be.Err
		}

		return &be.Entry, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
