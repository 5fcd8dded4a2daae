package stmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/filecoin-project/go-address"
	amt "github.com/filecoin-project/go-amt-ipld/v2"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	cbg "github.com/whyrusleeping/cbor-gen"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/chain/actors"
	"github.com/emberchain/ember/chain/state"
	"github.com/emberchain/ember/chain/store"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/vm"
)

var log = logging.Logger("statemgr")

// StateManager computes and caches the state transitions implied by tipsets.
type StateManager struct {
	cs *store.ChainStore

	stCache  map[string][]cid.Cid
	compWait map[string]chan struct{}
	stlk     sync.Mutex
}

func NewStateManager(cs *store.ChainStore) *StateManager {
	return &StateManager{
		cs:       cs,
		stCache:  make(map[string][]cid.Cid),
		compWait: make(map[string]chan struct{}),
	}
}

func cidsToKey(cids []cid.Cid) string {
	var out string
	for _, c := range cids {
		out += c.KeyString()
	}
	return out
}

// TipSetState returns the state root and message receipts root that result
// from executing the given tipset. Computation for a given tipset happens at
// most once; concurrent callers wait for the first computation to finish.
func (sm *StateManager) TipSetState(ctx context.Context, ts *types.TipSet) (st cid.Cid, rec cid.Cid, err error) {
	ctx, span := trace.StartSpan(ctx, "tipSetState")
	defer span.End()
	if span.IsRecordingEvents() {
		span.AddAttributes(trace.StringAttribute("tipset", fmt.Sprint(ts.Cids())))
	}

	ck := cidsToKey(ts.Cids())
	sm.stlk.Lock()
	cw, cwok := sm.compWait[ck]
	for cwok {
		sm.stlk.Unlock()
		span.AddAttributes(trace.BoolAttribute("waited", true))
		select {
		case <-cw:
			sm.stlk.Lock()
			cw, cwok = sm.compWait[ck]
		case <-ctx.Done():
			return cid.Undef, cid.Undef, ctx.Err()
		}
	}
	cached, ok := sm.stCache[ck]
	if ok {
		sm.stlk.Unlock()
		span.AddAttributes(trace.BoolAttribute("cache", true))
		return cached[0], cached[1], nil
	}
	ch := make(chan struct{})
	sm.compWait[ck] = ch

	defer func() {
		sm.stlk.Lock()
		delete(sm.compWait, ck)
		if st != cid.Undef {
			sm.stCache[ck] = []cid.Cid{st, rec}
		}
		sm.stlk.Unlock()
		close(ch)
	}()

	sm.stlk.Unlock()

	if ts.Height() == 0 {
		// genesis state, no messages were executed to arrive at it
		return ts.Blocks()[0].ParentStateRoot, ts.Blocks()[0].ParentMessageReceipts, nil
	}

	st, rec, err = sm.computeTipSetState(ctx, ts, nil)
	return st, rec, err
}

// ExecCallback gets called on each executed message, explicit and implicit,
// with the applied message and its result.
type ExecCallback func(cid.Cid, *types.Message, *vm.ApplyRet) error

// BlockMessages is a block's contribution to tipset execution: the producer
// being rewarded, its win count, and the messages it included.
type BlockMessages struct {
	Miner    address.Address
	WinCount int64
	Messages []*types.SignedMessage
}

func (sm *StateManager) computeTipSetState(ctx context.Context, ts *types.TipSet, cb ExecCallback) (cid.Cid, cid.Cid, error) {
	ctx, span := trace.StartSpan(ctx, "computeTipSetState")
	defer span.End()

	blks := ts.Blocks()

	for i := 0; i < len(blks); i++ {
		for j := i + 1; j < len(blks); j++ {
			if blks[i].Miner == blks[j].Miner {
				return cid.Undef, cid.Undef,
					xerrors.Errorf("duplicate miner in a tipset (%s %s)",
						blks[i].Miner, blks[j].Miner)
			}
		}
	}

	var parentEpoch abi.ChainEpoch
	pstate := blks[0].ParentStateRoot
	if blks[0].Height > 0 {
		parent, err := sm.cs.GetBlock(ctx, blks[0].Parents[0])
		if err != nil {
			return cid.Undef, cid.Undef, xerrors.Errorf("getting parent block: %w", err)
		}

		parentEpoch = parent.Height
	}

	var bms []BlockMessages
	for _, b := range blks {
		msgs, err := sm.cs.MessagesForBlock(ctx, b)
		if err != nil {
			return cid.Undef, cid.Undef, xerrors.Errorf("getting messages for block: %w", err)
		}

		bm := BlockMessages{
			Miner:    b.Miner,
			WinCount: b.ElectionProof.WinCount,
			Messages: msgs,
		}

		bms = append(bms, bm)
	}

	r := store.NewChainRand(sm.cs, ts.Cids(), blks[0].Height)

	return sm.ApplyBlocks(ctx, parentEpoch, pstate, bms, blks[0].Height, r, cb)
}

// ApplyBlocks executes all messages of a tipset, block by block in canonical
// order, against the supplied parent state. Messages appearing in multiple
// blocks are executed once, at their first occurrence. After each block's
// messages, an implicit system message awards the block reward plus the gas
// premiums the block collected to its producer.
func (sm *StateManager) ApplyBlocks(ctx context.Context, parentEpoch abi.ChainEpoch, pstate cid.Cid, bms []BlockMessages, epoch abi.ChainEpoch, r vm.Rand, cb ExecCallback) (cid.Cid, cid.Cid, error) {
	vmi, err := vm.NewVM(pstate, parentEpoch, r, sm.cs.Blockstore())
	if err != nil {
		return cid.Undef, cid.Undef, xerrors.Errorf("instantiating VM failed: %w", err)
	}

	// null rounds simply advance the epoch, no messages run in them
	for i := parentEpoch; i < epoch; i++ {
		vmi.SetBlockHeight(i + 1)
	}

	var receipts []cbg.CBORMarshaler
	processedMsgs := map[cid.Cid]bool{}
	for _, b := range bms {
		gasReward := types.NewInt(0)

		for _, m := range b.Messages {
			mcid := m.Cid()
			if processedMsgs[mcid] {
				continue
			}
			ret, err := vmi.ApplyMessage(ctx, m)
			if err != nil {
				return cid.Undef, cid.Undef, xerrors.Errorf("applying message %s: %w", mcid, err)
			}

			receipts = append(receipts, &ret.MessageReceipt)
			gasReward = types.BigAdd(gasReward, ret.MinerTip)

			if cb != nil {
				if err := cb(mcid, m.VMMessage(), ret); err != nil {
					return cid.Undef, cid.Undef, err
				}
			}
			processedMsgs[mcid] = true
		}

		params, aerr := actors.SerializeParams(&actors.AwardBlockRewardParams{
			Miner:     b.Miner,
			GasReward: gasReward,
			WinCount:  b.WinCount,
		})
		if aerr != nil {
			return cid.Undef, cid.Undef, xerrors.Errorf("failed to serialize award params: %w", aerr)
		}

		rwMsg := &types.Message{
			From:       actors.SystemAddress,
			To:         actors.RewardAddress,
			Nonce:      uint64(epoch),
			Value:      types.NewInt(0),
			GasFeeCap:  types.NewInt(0),
			GasPremium: types.NewInt(0),
			GasLimit:   1 << 30,
			Method:     actors.RewardMethods.AwardBlockReward,
			Params:     params,
		}
		ret, actErr := vmi.ApplyImplicitMessage(ctx, rwMsg)
		if actErr != nil {
			return cid.Undef, cid.Undef, xerrors.Errorf("failed to apply reward message for miner %s: %w", b.Miner, actErr)
		}
		if cb != nil {
			if err := cb(rwMsg.Cid(), rwMsg, ret); err != nil {
				return cid.Undef, cid.Undef, xerrors.Errorf("callback failed on reward message: %w", err)
			}
		}

		if ret.ExitCode != 0 {
			return cid.Undef, cid.Undef, xerrors.Errorf("reward application message failed (exit %d)", ret.ExitCode)
		}
	}

	cst := cbor.NewCborStore(sm.cs.Blockstore())
	rectroot, err := amt.FromArray(ctx, cst, receipts)
	if err != nil {
		return cid.Undef, cid.Undef, xerrors.Errorf("failed to build receipts amt: %w", err)
	}

	st, err := vmi.Flush(ctx)
	if err != nil {
		return cid.Undef, cid.Undef, xerrors.Errorf("vm flush failed: %w", err)
	}

	return st, rectroot, nil
}

func (sm *StateManager) ChainStore() *store.ChainStore {
	return sm.cs
}

func (sm *StateManager) parentState(ts *types.TipSet) cid.Cid {
	if ts == nil {
		ts = sm.cs.GetHeaviestTipSet()
	}

	return ts.ParentState()
}

func (sm *StateManager) ParentStateTree(ts *types.TipSet) (*state.StateTree, error) {
	cst := cbor.NewCborStore(sm.cs.Blockstore())
	st, err := state.LoadStateTree(cst, sm.parentState(ts))
	if err != nil {
		return nil, xerrors.Errorf("load state tree: %w", err)
	}

	return st, nil
}

func (sm *StateManager) StateTree(st cid.Cid) (*state.StateTree, error) {
	cst := cbor.NewCborStore(sm.cs.Blockstore())
	tree, err := state.LoadStateTree(cst, st)
	if err != nil {
		return nil, xerrors.Errorf("load state tree: %w", err)
	}

	return tree, nil
}

func (sm *StateManager) GetActor(addr address.Address, ts *types.TipSet) (*types.Actor, error) {
	st, err := sm.ParentStateTree(ts)
	if err != nil {
		return nil, err
	}

	return st.GetActor(addr)
}

func (sm *StateManager) GetBalance(addr address.Address, ts *types.TipSet) (types.BigInt, error) {
	act, err := sm.GetActor(addr, ts)
	if err != nil {
		if xerrors.Is(err, types.ErrActorNotFound) {
			return types.NewInt(0), nil
		}
		return types.EmptyInt, xerrors.Errorf("get actor: %w", err)
	}

	return act.Balance, nil
}

// LoadActorState loads the head state object of the actor at the given
// address into 'out'.
func (sm *StateManager) LoadActorState(ctx context.Context, addr address.Address, out interface{}, ts *types.TipSet) (*types.Actor, error) {
	act, err := sm.GetActor(addr, ts)
	if err != nil {
		return nil, err
	}

	cst := cbor.NewCborStore(sm.cs.Blockstore())
	if err := cst.Get(ctx, act.Head, out); err != nil {
		return nil, err
	}

	return act, nil
}

// ResolveToKeyAddress resolves the given address to its public key address if
// it isn't one already, using the parent state of the given tipset.
func (sm *StateManager) ResolveToKeyAddress(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error) {
	switch addr.Protocol() {
	case address.SECP256K1:
		return addr, nil
	case address.Actor:
		return address.Undef, xerrors.New("cannot resolve actor address to key address")
	default:
	}

	st, err := sm.ParentStateTree(ts)
	if err != nil {
		return address.Undef, err
	}

	cst := cbor.NewCborStore(sm.cs.Blockstore())
	return vm.ResolveToKeyAddr(st, cst, addr)
}

// GetMinerWorker returns the key address a block producer signs blocks with.
func (sm *StateManager) GetMinerWorker(ctx context.Context, ts *types.TipSet, maddr address.Address) (address.Address, error) {
	return sm.ResolveToKeyAddress(ctx, maddr, ts)
}

func (sm *StateManager) LookupID(ctx context.Context, addr address.Address, ts *types.TipSet) (address.Address, error) {
	st, err := sm.ParentStateTree(ts)
	if err != nil {
		return address.Undef, err
	}

	return st.LookupID(addr)
}

// GetRandomness samples beacon-backed randomness at the given epoch, walking
// the chain behind the given tipset.
func (sm *StateManager) GetRandomness(ctx context.Context, personalization crypto.DomainSeparationTag, randEpoch abi.ChainEpoch, entropy []byte, ts *types.TipSet) ([]byte, error) {
	if ts == nil {
		ts = sm.cs.GetHeaviestTipSet()
	}

	return sm.cs.GetBeaconRandomness(ctx, ts.Cids(), personalization, randEpoch, entropy)
}

// GetReceipt looks up the execution receipt of a message by walking the chain
// behind the given tipset until the message's inclusion tipset is found. The
// cid may be either the signed or unsigned form of the message.
func (sm *StateManager) GetReceipt(ctx context.Context, mcid cid.Cid, ts *types.TipSet) (*types.MessageReceipt, error) {
	if ts == nil {
		ts = sm.cs.GetHeaviestTipSet()
	}

	cur := ts
	for {
		msgs, err := sm.cs.MessagesForTipset(ctx, cur)
		if err != nil {
			return nil, xerrors.Errorf("loading messages for tipset %s: %w", cur.Key(), err)
		}

		for i, m := range msgs {
			if m.Cid() == mcid || m.VMMessage().Cid() == mcid {
				return sm.tipsetReceipt(ctx, cur, uint64(i))
			}
		}

		if cur.Height() == 0 {
			return nil, xerrors.Errorf("message %s not found on chain", mcid)
		}

		cur, err = sm.cs.LoadTipSet(ctx, cur.Parents())
		if err != nil {
			return nil, xerrors.Errorf("loading parent tipset: %w", err)
		}
	}
}

func (sm *StateManager) tipsetReceipt(ctx context.Context, ts *types.TipSet, idx uint64) (*types.MessageReceipt, error) {
	_, rroot, err := sm.TipSetState(ctx, ts)
	if err != nil {
		return nil, xerrors.Errorf("computing tipset state: %w", err)
	}

	cst := cbor.NewCborStore(sm.cs.Blockstore())
	a, err := amt.LoadAMT(ctx, cst, rroot)
	if err != nil {
		return nil, xerrors.Errorf("loading receipts amt: %w", err)
	}

	var rcpt types.MessageReceipt
	if err := a.Get(ctx, idx, &rcpt); err != nil {
		return nil, xerrors.Errorf("loading receipt %d: %w", idx, err)
	}

	return &rcpt, nil
}
