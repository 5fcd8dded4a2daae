// Only tests local round math, fetching entries requires network access.
package drand

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emberchain/ember/build"
)

func TestMaxBeaconRoundForEpoch(t *testing.T) {
	todayTs := uint64(1652222222)
	db, err := NewDrandBeacon(todayTs, build.BlockDelaySecs, Config{
		ChainInfoJSON: build.DrandChainInfoJSON,
	})
	assert.NoError(t, err)

	mbr := db.MaxBeaconRoundForEpoch(100)
	assert.Greater(t, mbr, uint64(1))

	// rounds advance with epochs at the same cadence (30s each)
	assert.Equal(t, mbr+1, db.MaxBeaconRoundForEpoch(101))

	// epochs before drand genesis anchor to the first round
	early, err := NewDrandBeacon(db.drandGenTime-1000, build.BlockDelaySecs, Config{
		ChainInfoJSON: build.DrandChainInfoJSON,
	})
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), early.MaxBeaconRoundForEpoch(1))
}
