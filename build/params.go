package build

import (
	"math/big"

	"github.com/filecoin-project/go-state-types/abi"
)

// Core network constants

const NetworkName = "embernet"

// Seconds
const BlockDelaySecs = uint64(30)

// Seconds
const PropagationDelaySecs = uint64(6)

// Seconds
const AllowableClockDriftSecs = uint64(1)

// Blocks (e): expected number of leaders per epoch
const BlocksPerEpoch = uint64(5)

// Epochs
const Finality = abi.ChainEpoch(900)

// Epochs: a fork deeper than this is never followed
const ForkLengthThreshold = Finality

// Epochs: how far behind the block's own epoch the ticket randomness is drawn
const TicketRandomnessLookback = abi.ChainEpoch(1)

// Blocks: cap on election win count claimed by a single block
const MaxWinCount = int64(3 * BlocksPerEpoch)

// constants for Weight calculation
// The ratio of weight contributed by short-term vs long-term factors in a given round
const WRatioNum = int64(1)
const WRatioDen = uint64(2)

// Fixed per-tipset weight contribution standing in for a power table.
const WPowerFactor = int64(12)

// /////
// Devnet settings

const TotalEmber = 2_000_000_000
const MiningRewardTotal = 1_400_000_000

const EmberPrecision = 1_000_000_000_000_000_000

var InitialRewardBalance *big.Int

func init() {
	InitialRewardBalance = big.NewInt(MiningRewardTotal)
	InitialRewardBalance = InitialRewardBalance.Mul(InitialRewardBalance, big.NewInt(EmberPrecision))
}

// Sync
const BadBlockCacheSize = 1 << 15

// assuming 4000 messages per round, this lets us not lose any messages across a
// 10 block reorg.
const SignatureCacheSize = 40000

// Size of signature verification cache
const VerifSigCacheSize = 32000

// ///////
// Limits

const BlockMessageLimit = 512

const BlockGasLimit = int64(10_000_000_000)

// Epochs a message can wait in the pool before repeat checks give up on it
const MessageMaxAge = abi.ChainEpoch(2880)
