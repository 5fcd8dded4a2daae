package stmgr

import (
	"context"

	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/api"
	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/store"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/vm"
)

// Call applies the given message to the parent state of the given tipset
// without charging fees or persisting any state changes. Used to simulate
// sends and read actor state.
func (sm *StateManager) Call(ctx context.Context, msg *types.Message, ts *types.TipSet) (*api.InvocResult, error) {
	ctx, span := trace.StartSpan(ctx, "statemanager.Call")
	defer span.End()

	if ts == nil {
		ts = sm.cs.GetHeaviestTipSet()
	}

	pstate := ts.ParentState()

	r := store.NewChainRand(sm.cs, ts.Cids(), ts.Height())

	vmi, err := vm.NewVM(pstate, ts.Height(), r, sm.cs.Blockstore())
	if err != nil {
		return nil, xerrors.Errorf("failed to set up vm: %w", err)
	}

	if msg.GasLimit == 0 {
		msg.GasLimit = build.BlockGasLimit
	}
	if msg.GasFeeCap == types.EmptyInt {
		msg.GasFeeCap = types.NewInt(0)
	}
	if msg.GasPremium == types.EmptyInt {
		msg.GasPremium = types.NewInt(0)
	}
	if msg.Value == types.EmptyInt {
		msg.Value = types.NewInt(0)
	}

	fromActor, err := vmi.StateTree().GetActor(msg.From)
	if err != nil {
		return nil, xerrors.Errorf("call raw get actor: %w", err)
	}

	msg.Nonce = fromActor.Nonce

	ret, _ := vmi.ApplyImplicitMessage(ctx, msg)
	if ret == nil {
		return nil, xerrors.New("call failed to produce a result")
	}

	var errs string
	if ret.ActorErr != nil {
		errs = ret.ActorErr.Error()
		log.Warnf("chain call failed: %s", ret.ActorErr)
	}

	return &api.InvocResult{
		Msg:      msg,
		MsgRct:   &ret.MessageReceipt,
		Error:    errs,
		Duration: ret.Duration,
	}, nil
}
