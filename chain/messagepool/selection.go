package messagepool

import (
	"context"
	"sort"

	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/types"
)

// msgChain is a nonce-contiguous run of pending messages from a single sender,
// starting at the sender's on-chain nonce. Blocks may only include a prefix of
// a chain, so chains are the unit of selection and pruning.
type msgChain struct {
	msgs       []*types.SignedMessage
	gasLimit   int64
	gasPremium types.BigInt
}

func (mc *msgChain) Before(other *msgChain) bool {
	cmp := types.BigCmp(mc.gasPremium, other.gasPremium)
	if cmp != 0 {
		return cmp > 0
	}
	// break ties deterministically
	if len(mc.msgs) > 0 && len(other.msgs) > 0 {
		return mc.msgs[0].Cid().KeyString() < other.msgs[0].Cid().KeyString()
	}
	return len(mc.msgs) > len(other.msgs)
}

// SelectMessages picks pending messages for inclusion in the next block on top
// of ts, greedily by GasPremium, respecting nonce contiguity, sender balance,
// the block gas limit, and the block message limit. Messages from priority
// addresses are taken first.
func (mp *MessagePool) SelectMessages(ctx context.Context, ts *types.TipSet) ([]*types.SignedMessage, error) {
	mp.curTsLk.Lock()
	defer mp.curTsLk.Unlock()

	mp.lk.Lock()
	defer mp.lk.Unlock()

	if ts == nil {
		ts = mp.curTs
	}

	cfg := mp.cfg

	priority := make(map[address.Address]struct{})
	for _, a := range cfg.PriorityAddrs {
		priority[a] = struct{}{}
	}

	var prioChains, chains []*msgChain
	for actor, mset := range mp.pending {
		chain, err := mp.createMessageChain(ctx, actor, mset, ts)
		if err != nil {
			log.Warnf("error creating message chain for %s: %s", actor, err)
			continue
		}
		if chain == nil {
			continue
		}

		if _, ok := priority[actor]; ok {
			prioChains = append(prioChains, chain)
		} else {
			chains = append(chains, chain)
		}
	}

	sort.Slice(prioChains, func(i, j int) bool { return prioChains[i].Before(prioChains[j]) })
	sort.Slice(chains, func(i, j int) bool { return chains[i].Before(chains[j]) })

	gasLimit := build.BlockGasLimit
	msgLimit := build.BlockMessageLimit

	var result []*types.SignedMessage
	for _, chain := range append(prioChains, chains...) {
		if gasLimit <= 0 || msgLimit <= 0 {
			break
		}

		for _, m := range chain.msgs {
			if msgLimit <= 0 {
				break
			}
			if m.Message.GasLimit > gasLimit {
				// can't take any further message from this chain without
				// breaking nonce contiguity
				break
			}

			result = append(result, m)
			gasLimit -= m.Message.GasLimit
			msgLimit--
		}
	}

	return result, nil
}

// createMessageChain builds the contiguous run of mset's messages starting at
// the sender's state nonce, stopping at the first nonce gap, at the first
// message the sender can no longer fund, and at the block gas limit.
func (mp *MessagePool) createMessageChain(ctx context.Context, actor address.Address, mset *msgSet, ts *types.TipSet) (*msgChain, error) {
	act, err := mp.api.GetActorAfter(ctx, actor, ts)
	if err != nil {
		return nil, xerrors.Errorf("getting actor state: %w", err)
	}

	msgs := make([]*types.SignedMessage, 0, len(mset.msgs))
	for _, m := range mset.msgs {
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].Message.Nonce < msgs[j].Message.Nonce
	})

	curNonce := act.Nonce
	balance := act.Balance

	chain := &msgChain{gasPremium: types.EmptyInt}
	for _, m := range msgs {
		if m.Message.Nonce < curNonce {
			continue
		}
		if m.Message.Nonce != curNonce {
			break
		}

		required := types.BigAdd(m.Message.RequiredFunds(), m.Message.Value)
		if balance.LessThan(required) {
			break
		}
		if chain.gasLimit+m.Message.GasLimit > build.BlockGasLimit {
			break
		}

		balance = types.BigSub(balance, required)
		curNonce++

		chain.msgs = append(chain.msgs, m)
		chain.gasLimit += m.Message.GasLimit
		if chain.gasPremium == types.EmptyInt || m.Message.GasPremium.LessThan(chain.gasPremium) {
			chain.gasPremium = m.Message.GasPremium
		}
	}

	if len(chain.msgs) == 0 {
		return nil, nil
	}

	return chain, nil
}
