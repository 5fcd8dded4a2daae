package beacon

import (
	"context"
	"testing"
	"time"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/chain/types"
)

func entry(t *testing.T, b RandomBeacon, round uint64) types.BeaconEntry {
	t.Helper()
	resp := <-b.Entry(context.Background(), round)
	require.NoError(t, resp.Err)
	return resp.Entry
}

func TestBeaconEntriesForBlock(t *testing.T) {
	ctx := context.Background()
	mb := NewMockBeacon(time.Second)

	prev := entry(t, mb, 103)

	entries, err := BeaconEntriesForBlock(ctx, mb, abi.ChainEpoch(5), prev)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(104), entries[0].Round)
	require.Equal(t, uint64(105), entries[1].Round)
}

func TestBeaconEntriesForBlockNoNewRounds(t *testing.T) {
	ctx := context.Background()
	mb := NewMockBeacon(time.Second)

	prev := entry(t, mb, 105)

	entries, err := BeaconEntriesForBlock(ctx, mb, abi.ChainEpoch(5), prev)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestValidateBlockValues(t *testing.T) {
	ctx := context.Background()
	mb := NewMockBeacon(time.Second)

	prev := entry(t, mb, 103)

	entries, err := BeaconEntriesForBlock(ctx, mb, abi.ChainEpoch(5), prev)
	require.NoError(t, err)

	h := &types.BlockHeader{
		Height:        5,
		BeaconEntries: entries,
	}
	require.NoError(t, ValidateBlockValues(mb, h, prev))

	// a block at this height must extend the beacon chain to round 105
	h.BeaconEntries = entries[:1]
	require.Error(t, ValidateBlockValues(mb, h, prev))

	// no new rounds since the previous entry means no entries in the block
	prevAtMax := entry(t, mb, 105)
	h.BeaconEntries = nil
	require.NoError(t, ValidateBlockValues(mb, h, prevAtMax))

	h.BeaconEntries = entries
	require.Error(t, ValidateBlockValues(mb, h, prevAtMax))
}

func TestValidateBlockValuesRejectsBadEntry(t *testing.T) {
	ctx := context.Background()
	mb := NewMockBeacon(time.Second)

	prev := entry(t, mb, 103)

	entries, err := BeaconEntriesForBlock(ctx, mb, abi.ChainEpoch(5), prev)
	require.NoError(t, err)

	entries[1].Data[0] ^= 0xff
	h := &types.BlockHeader{
		Height:        5,
		BeaconEntries: entries,
	}
	require.Error(t, ValidateBlockValues(mb, h, prev))
}
