package store

import (
	"context"
	big2 "math/big"

	"golang.org/x/xerrors"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/types"
)

// Weight computes the aggregate chain weight of a tipset: its parent weight,
// plus a constant chain component for the epoch, plus an election component
// proportional to how many wins the tipset's blocks carry out of the ideal
// block count for a single epoch.
func (cs *ChainStore) Weight(ctx context.Context, ts *types.TipSet) (types.BigInt, error) {
	if ts == nil {
		return types.NewInt(0), nil
	}

	out := new(big2.Int).Set(ts.ParentWeight().Int)

	out.Add(out, big2.NewInt(build.WPowerFactor<<8))

	var totalWinCount int64
	for _, b := range ts.Blocks() {
		if b.ElectionProof == nil {
			return types.NewInt(0), xerrors.Errorf("block %s has no election proof", b.Cid())
		}
		totalWinCount += b.ElectionProof.WinCount
	}

	eWeight := big2.NewInt(build.WPowerFactor * totalWinCount * build.WRatioNum)
	eWeight.Lsh(eWeight, 8)
	eWeight.Div(eWeight, new(big2.Int).SetUint64(build.BlocksPerEpoch*build.WRatioDen))
	out.Add(out, eWeight)

	return types.BigInt{Int: out}, nil
}
