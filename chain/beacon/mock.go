package beacon

import (
	"bytes"
	"context"
	"encoding/binary"
	"time"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/minio/blake2b-simd"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/chain/types"
)

// MockBeacon assumes that chain rounds are 1:1 mapped with the beacon rounds
type MockBeacon struct {
	interval time.Duration
}

func NewMockBeacon(interval time.Duration) RandomBeacon {
	return &MockBeacon{
		interval: interval,
	}
}

func (mb *MockBeacon) RoundTime() time.Duration {
	return mb.interval
}

func (mb *MockBeacon) entryForIndex(index uint64) types.BeaconEntry {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, index)
	rval := blake2b.Sum256(buf)
	return types.BeaconEntry{
		Round: index,
		Data:  rval[:],
	}
}

func (mb *MockBeacon) Entry(ctx context.Context, index uint64) <-chan Response {
	e := mb.entryForIndex(index)
	out := make(chan Response, 1)
	out <- Response{Entry: e}
	return out
}

func (mb *MockBeacon) VerifyEntry(from types.BeaconEntry, _prevEntrySig []byte) error {
	oe := mb.entryForIndex(from.Round)
	if !bytes.Equal(from.Data, oe.Data) {
		return xerrors.Errorf("mock beacon entry was invalid")
	}
	return nil
}

func (mb *MockBeacon) MaxBeaconRoundForEpoch(epoch abi.ChainEpoch) uint64 {
	// offset for better testing
	return uint64(epoch + 100)
}

var _ RandomBeacon = (*MockBeacon)(nil)
