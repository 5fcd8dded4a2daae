package messagepool

import (
	"sort"

	"github.com/ipfs/go-cid"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/types"
)

const repubMsgLimit = 30

func (mp *MessagePool) republishPendingMessages() error {
	mp.curTsLk.Lock()
	ts := mp.curTs
	mp.curTsLk.Unlock()

	mp.lk.Lock()
	pending := make(map[cid.Cid]*types.SignedMessage)
	for actor := range mp.localAddrs {
		mset, ok := mp.pending[actor]
		if !ok || len(mset.msgs) == 0 {
			continue
		}
		for _, m := range mset.msgs {
			pending[m.Cid()] = m
		}
	}
	mp.republished = nil // clear this to avoid races triggering an early republish
	mp.lk.Unlock()

	if len(pending) == 0 {
		return nil
	}

	msgs := make([]*types.SignedMessage, 0, len(pending))
	for _, m := range pending {
		msgs = append(msgs, m)
	}

	// sort by premium, breaking ties with sender and nonce so that nonce order is
	// preserved within a sender
	sort.Slice(msgs, func(i, j int) bool {
		cmp := types.BigCmp(msgs[i].Message.GasPremium, msgs[j].Message.GasPremium)
		if cmp != 0 {
			return cmp > 0
		}
		if msgs[i].Message.From != msgs[j].Message.From {
			return msgs[i].Message.From.String() < msgs[j].Message.From.String()
		}
		return msgs[i].Message.Nonce < msgs[j].Message.Nonce
	})

	gasLimit := build.BlockGasLimit
	count := 0

	log.Infow("republishing local messages", "n", len(msgs), "height", ts.Height())

	republished := make(map[cid.Cid]struct{})
	for _, m := range msgs {
		if count >= repubMsgLimit {
			break
		}

		if m.Message.GasLimit > gasLimit {
			break
		}

		msgb, err := m.Serialize()
		if err != nil {
			log.Errorf("could not serialize: %s", err)
			continue
		}

		if err := mp.api.PubSubPublish(msgb); err != nil {
			log.Errorf("could not publish: %s", err)
			continue
		}

		gasLimit -= m.Message.GasLimit
		republished[m.Cid()] = struct{}{}
		count++
	}

	if len(republished) > 0 {
		// track the republished messages so that we can trigger a republish earlier
		// if any of them is included in a block
		mp.lk.Lock()
		mp.republished = republished
		mp.lk.Unlock()
	}

	return nil
}
