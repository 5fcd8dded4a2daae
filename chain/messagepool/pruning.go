package messagepool

import (
	"context"
	"sort"
	"time"

	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"

	"github.com/emberchain/ember/chain/types"
)

func (mp *MessagePool) pruneExcessMessages() error {
	mp.curTsLk.Lock()
	ts := mp.curTs
	mp.curTsLk.Unlock()

	mp.lk.Lock()
	defer mp.lk.Unlock()

	if mp.currentSize < mp.cfg.SizeLimitHigh {
		return nil
	}

	select {
	case <-mp.pruneCooldown:
		err := mp.pruneMessages(context.TODO(), ts)
		go func() {
			time.Sleep(mp.cfg.PruneCooldown)
			mp.pruneCooldown <- struct{}{}
		}()
		return err
	default:
		return xerrors.New("cannot prune before cooldown")
	}
}

// pruneMessages drops pending messages until the pool is at or below the low
// water mark. Nonce-gapped messages of non-local senders go first, then whole
// chains in ascending GasPremium order. Local and priority senders are never
// pruned. Callers must hold mp.lk.
func (mp *MessagePool) pruneMessages(ctx context.Context, ts *types.TipSet) error {
	start := time.Now()
	log.Infof("pruning excess messages; size: %d", mp.currentSize)
	defer func() {
		log.Infow("message pruning complete", "took", time.Since(start), "size", mp.currentSize)
	}()

	protected := make(map[address.Address]struct{})
	for actor := range mp.localAddrs {
		protected[actor] = struct{}{}
	}
	for _, actor := range mp.cfg.PriorityAddrs {
		protected[actor] = struct{}{}
	}

	if _, err := mp.pruneFutureMessages(ctx, ts, protected); err != nil {
		return xerrors.Errorf("failed to prune future messages: %w", err)
	}

	if mp.currentSize <= mp.cfg.SizeLimitLow {
		return nil
	}

	var chains []*msgChain
	for actor, mset := range mp.pending {
		if _, ok := protected[actor]; ok {
			continue
		}

		chain, err := mp.createMessageChain(ctx, actor, mset, ts)
		if err != nil {
			log.Warnf("error creating message chain for %s while pruning: %s", actor, err)
			continue
		}
		if chain == nil {
			continue
		}

		chains = append(chains, chain)
	}

	// drop whole chains, cheapest first, until we are under the low water mark
	sort.Slice(chains, func(i, j int) bool {
		return chains[j].Before(chains[i])
	})

	for _, chain := range chains {
		if mp.currentSize <= mp.cfg.SizeLimitLow {
			break
		}

		for _, m := range chain.msgs {
			mp.remove(m.Message.From, m.Message.Nonce)
		}
	}

	return nil
}

// pruneFutureMessages removes messages that cannot execute because a lower
// nonce is missing. Callers must hold mp.lk.
func (mp *MessagePool) pruneFutureMessages(ctx context.Context, ts *types.TipSet, protected map[address.Address]struct{}) (int, error) {
	var pruned int
	for actor, mset := range mp.pending {
		if _, ok := protected[actor]; ok {
			continue
		}

		nonce, err := mp.getStateNonce(ctx, actor, ts)
		if err != nil {
			return pruned, err
		}

		allmsgs := make([]*types.SignedMessage, 0, len(mset.msgs))
		for _, m := range mset.msgs {
			allmsgs = append(allmsgs, m)
		}

		sort.Slice(allmsgs, func(i, j int) bool {
			return allmsgs[i].Message.Nonce < allmsgs[j].Message.Nonce
		})

		for i := 0; i < len(allmsgs); i++ {
			if allmsgs[i].Message.Nonce < nonce {
				continue
			}
			if allmsgs[i].Message.Nonce == nonce {
				nonce++
				continue
			}

			for ; i < len(allmsgs); i++ {
				mp.remove(actor, allmsgs[i].Message.Nonce)
				pruned++
			}
		}
	}

	return pruned, nil
}
