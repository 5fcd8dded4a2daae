package beacon

import (
	"context"

	"github.com/filecoin-project/go-state-types/abi"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/types"
)

var log = logging.Logger("beacon")

type Response struct {
	Entry types.BeaconEntry
	Err   error
}

// RandomBeacon represents a system that provides randomness.
// Other components interrogate the RandomBeacon to acquire randomness that's
// valid for a specific chain epoch. Also to verify beacon entries that have
// been posted on chain.
type RandomBeacon interface {
	Entry(context.Context, uint64) <-chan Response
	VerifyEntry(entry types.BeaconEntry, prevEntrySig []byte) error
	MaxBeaconRoundForEpoch(abi.ChainEpoch) uint64
}

// ValidateBlockValues checks that the beacon entries in a block header form a
// valid extension of the latest entry its chain has seen.
func ValidateBlockValues(b RandomBeacon, h *types.BlockHeader, prevEntry types.BeaconEntry) error {
	maxRound := b.MaxBeaconRoundForEpoch(h.Height)
	if maxRound == prevEntry.Round {
		if len(h.BeaconEntries) != 0 {
			return xerrors.Errorf("expected not to have any beacon entries in this block, got %d", len(h.BeaconEntries))
		}
		return nil
	}

	if len(h.BeaconEntries) == 0 {
		return xerrors.Errorf("expected to have beacon entries in this block, but didn't find any")
	}

	last := h.BeaconEntries[len(h.BeaconEntries)-1]
	if last.Round != maxRound {
		return xerrors.Errorf("expected final beacon entry in block to be at round %d, got %d", maxRound, last.Round)
	}

	for i, e := range h.BeaconEntries {
		if e.Round <= prevEntry.Round {
			return xerrors.Errorf("beacon entry %d did not advance the round (%d <= %d)", i, e.Round, prevEntry.Round)
		}
		// the genesis block carries a seed, not a real beacon signature, so
		// the entry anchored directly on it cannot be chain-verified
		if prevEntry.Round != 0 {
			if err := b.VerifyEntry(e, prevEntry.Data); err != nil {
				return xerrors.Errorf("beacon entry %d (%d - %x (%d)) was invalid: %w", i, e.Round, e.Data, len(e.Data), err)
			}
		}
		prevEntry = e
	}

	return nil
}

// BeaconEntriesForBlock fetches the beacon entries a new block at the given
// epoch must carry: every round after the previous entry, up to the maximum
// round for the epoch. Returns no entries when the beacon has not advanced
// since the previous block.
func BeaconEntriesForBlock(ctx context.Context, beacon RandomBeacon, epoch abi.ChainEpoch, prev types.BeaconEntry) ([]types.BeaconEntry, error) {
	start := build.Clock.Now()

	maxRound := beacon.MaxBeaconRoundForEpoch(epoch)
	if maxRound == prev.Round {
		return nil, nil
	}

	// the first block after genesis carries a single entry anchoring the chain
	if prev.Round == 0 {
		prev.Round = maxRound - 1
	}

	cur := maxRound
	var out []types.BeaconEntry
	for cur > prev.Round {
		rch := beacon.Entry(ctx, cur)
		select {
		case resp := <-rch:
			if resp.Err != nil {
				return nil, xerrors.Errorf("beacon entry request returned error: %w", resp.Err)
			}

			out = append(out, resp.Entry)
			cur = resp.Entry.Round - 1
		case <-ctx.Done():
			return nil, xerrors.Errorf("context timed out waiting on beacon entry to come back for epoch %d: %w", epoch, ctx.Err())
		}
	}

	log.Debugw("fetching beacon entries", "took", build.Clock.Since(start), "numEntries", len(out))

	// reverse to return the entries in round order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}
