package actors

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/emberchain/ember/chain/types"
)

// BlockRewardBase is the fixed amount minted per winning block, before the
// gas premium collected from message senders is added on top.
var BlockRewardBase = types.FromEmber(5)

// RewardActor holds the mining reward pool and pays block producers. The
// pool is funded at genesis; the premium share of each block's gas fees is
// routed here by the VM before the award message runs.
type RewardActor struct{}

type RewardActorState struct {
	TotalMined types.BigInt
}

type rewardMethods struct {
	Constructor      abi.MethodNum
	AwardBlockReward abi.MethodNum
}

var RewardMethods = rewardMethods{1, 2}

func (ra RewardActor) Exports() []interface{} {
	return []interface{}{
		nil,
		ra.Constructor,
		ra.AwardBlockReward,
	}
}

func (ra RewardActor) Constructor(rt Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(SystemAddress)

	rt.StateCreate(&RewardActorState{TotalMined: big.Zero()})
	return nil
}

type AwardBlockRewardParams struct {
	Miner     address.Address
	GasReward types.BigInt
	WinCount  int64
}

// AwardBlockReward pays a block producer the base reward scaled by win
// count, plus the gas premiums their block collected. Invoked once per
// block by an implicit system message during tipset execution.
func (ra RewardActor) AwardBlockReward(rt Runtime, params *AwardBlockRewardParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(SystemAddress)

	if params.WinCount < 1 {
		rt.Abortf(exitcode.ErrIllegalArgument, "invalid win count %d", params.WinCount)
	}

	minted := types.BigMul(BlockRewardBase, types.NewInt(uint64(params.WinCount)))
	total := types.BigAdd(minted, params.GasReward)

	// The pool is finite. Once exhausted, producers only earn premiums.
	balance := rt.CurrentBalance()
	if total.GreaterThan(balance) {
		total = balance
		minted = big.Zero()
	}

	var st RewardActorState
	rt.StateTransaction(&st, func() {
		st.TotalMined = types.BigAdd(st.TotalMined, minted)
	})

	_, aerr := rt.Send(params.Miner, 0, nil, total)
	if aerr != nil {
		rt.Abortf(exitcode.ErrIllegalState, "failed to pay block reward to %s: %s", params.Miner, aerr)
	}

	return nil
}
