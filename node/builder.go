package node

import (
	"context"
	"time"

	bstore "github.com/ipfs/go-ipfs-blockstore"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain"
	"github.com/emberchain/ember/chain/beacon"
	"github.com/emberchain/ember/chain/beacon/drand"
	"github.com/emberchain/ember/chain/messagepool"
	"github.com/emberchain/ember/chain/stmgr"
	"github.com/emberchain/ember/chain/store"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/chain/wallet"
	"github.com/emberchain/ember/node/config"
	"github.com/emberchain/ember/node/impl"
	"github.com/emberchain/ember/node/repo"
)

var log = logging.Logger("node")

// EmberNode holds the assembled subsystems of a running full node.
type EmberNode struct {
	Chain        *store.ChainStore
	StateManager *stmgr.StateManager
	Mpool        *messagepool.MessagePool
	Syncer       *chain.Syncer
	Wallet       *wallet.Wallet
	Beacon       beacon.RandomBeacon

	ShutdownChan chan struct{}

	api *impl.FullNodeAPI
}

// storeFetcher serves tipset fetch requests out of the local chain store. The
// node has no peer transport of its own; blocks arrive via SyncSubmitBlock
// with their ancestry already persisted, so local resolution suffices.
type storeFetcher struct {
	cs *store.ChainStore
}

func (sf *storeFetcher) AddPeer(p string) {}

func (sf *storeFetcher) GetBlocks(ctx context.Context, tsk types.TipSetKey, count int) ([]*types.TipSet, error) {
	var out []*types.TipSet
	cur, err := sf.cs.LoadTipSet(ctx, tsk)
	if err != nil {
		return nil, xerrors.Errorf("loading tipset %s: %w", tsk, err)
	}

	for len(out) < count {
		out = append(out, cur)
		if cur.Height() == 0 {
			break
		}

		cur, err = sf.cs.LoadTipSet(ctx, cur.Parents())
		if err != nil {
			return nil, xerrors.Errorf("loading parent tipset: %w", err)
		}
	}

	return out, nil
}

func (sf *storeFetcher) GetFullTipSet(ctx context.Context, p string, tsk types.TipSetKey) (*store.FullTipSet, error) {
	ts, err := sf.cs.LoadTipSet(ctx, tsk)
	if err != nil {
		return nil, err
	}
	return sf.cs.TryFillTipSet(ctx, ts)
}

func (sf *storeFetcher) GetChainMessages(ctx context.Context, h *types.TipSet, count uint64) ([]*chain.TipSetMessages, error) {
	var out []*chain.TipSetMessages

	cur := h
	for uint64(len(out)) < count {
		msgs := make([][]*types.SignedMessage, len(cur.Blocks()))
		for i, b := range cur.Blocks() {
			smsgs, err := sf.cs.MessagesForBlock(ctx, b)
			if err != nil {
				return nil, xerrors.Errorf("loading messages for %s: %w", b.Cid(), err)
			}
			msgs[i] = smsgs
		}

		out = append(out, &chain.TipSetMessages{Messages: msgs})

		if cur.Height() == 0 {
			break
		}

		var err error
		cur, err = sf.cs.LoadTipSet(ctx, cur.Parents())
		if err != nil {
			return nil, xerrors.Errorf("loading parent tipset: %w", err)
		}
	}

	return out, nil
}

var _ chain.TipSetFetcher = (*storeFetcher)(nil)

// New assembles a full node on top of a locked repo. The caller owns the repo
// and closes it after Stop.
func New(ctx context.Context, lr repo.LockedRepo) (*EmberNode, error) {
	cfg, err := lr.Config()
	if err != nil {
		return nil, xerrors.Errorf("loading config: %w", err)
	}

	cbs, err := lr.Datastore("/chain")
	if err != nil {
		return nil, xerrors.Errorf("opening chain datastore: %w", err)
	}

	mds, err := lr.Datastore("/metadata")
	if err != nil {
		return nil, xerrors.Errorf("opening metadata datastore: %w", err)
	}

	bs := bstore.NewBlockstore(cbs)
	cs := store.NewChainStore(bs, mds)

	if err := cs.Load(ctx); err != nil {
		return nil, xerrors.Errorf("loading chain state: %w", err)
	}

	sm := stmgr.NewStateManager(cs)

	gen, err := cs.GetGenesis(ctx)
	if err != nil {
		return nil, xerrors.Errorf("getting genesis block: %w", err)
	}

	b, err := buildBeacon(cfg, gen.Timestamp)
	if err != nil {
		return nil, err
	}

	ks, err := lr.KeyStore()
	if err != nil {
		return nil, xerrors.Errorf("opening keystore: %w", err)
	}

	w, err := wallet.NewWallet(ks)
	if err != nil {
		return nil, xerrors.Errorf("opening wallet: %w", err)
	}

	mp, err := messagepool.New(messagepool.NewProvider(sm, nil), mds, build.NetworkName)
	if err != nil {
		return nil, xerrors.Errorf("constructing mpool: %w", err)
	}

	if err := applyMpoolConfig(ctx, mp, cfg); err != nil {
		return nil, err
	}

	syncer, err := chain.NewSyncer(ctx, sm, &storeFetcher{cs: cs}, b, "local")
	if err != nil {
		return nil, xerrors.Errorf("constructing syncer: %w", err)
	}
	syncer.Start()

	shutdown := make(chan struct{})

	napi := &impl.FullNodeAPI{}
	napi.CommonAPI.ShutdownChan = shutdown
	napi.ChainAPI.Chain = cs
	napi.StateAPI.StateManager = sm
	napi.StateAPI.Chain = cs
	napi.MpoolAPI.Mpool = mp
	napi.MpoolAPI.Chain = &napi.ChainAPI
	napi.MpoolAPI.WalletAPI.StateManager = sm
	napi.MpoolAPI.WalletAPI.Wallet = w
	napi.SyncAPI.Syncer = syncer
	napi.BeaconAPI.Beacon = b

	return &EmberNode{
		Chain:        cs,
		StateManager: sm,
		Mpool:        mp,
		Syncer:       syncer,
		Wallet:       w,
		Beacon:       b,
		ShutdownChan: shutdown,
		api:          napi,
	}, nil
}

// API returns the node's FullNode implementation.
func (n *EmberNode) API() *impl.FullNodeAPI {
	return n.api
}

// Stop tears the node down in dependency order.
func (n *EmberNode) Stop(ctx context.Context) error {
	n.Syncer.Stop()
	if err := n.Mpool.Close(); err != nil {
		log.Warnf("closing mpool: %s", err)
	}
	return nil
}

func buildBeacon(cfg *config.FullNode, genTs uint64) (beacon.RandomBeacon, error) {
	if cfg.Drand.Mock {
		log.Warnf("using insecure mock beacon")
		return beacon.NewMockBeacon(time.Duration(build.BlockDelaySecs) * time.Second), nil
	}

	dcfg := drand.Config{
		Servers:       cfg.Drand.Servers,
		ChainInfoJSON: cfg.Drand.ChainInfoJSON,
	}
	if len(dcfg.Servers) == 0 {
		dcfg.Servers = build.DrandServers
	}
	if dcfg.ChainInfoJSON == "" {
		dcfg.ChainInfoJSON = build.DrandChainInfoJSON
	}

	return drand.NewDrandBeacon(genTs, build.BlockDelaySecs, dcfg)
}

func applyMpoolConfig(ctx context.Context, mp *messagepool.MessagePool, cfg *config.FullNode) error {
	mc := mp.GetConfig()

	if cfg.Mpool.SizeLimitHigh > 0 {
		mc.SizeLimitHigh = cfg.Mpool.SizeLimitHigh
	}
	if cfg.Mpool.SizeLimitLow > 0 {
		mc.SizeLimitLow = cfg.Mpool.SizeLimitLow
	}
	if cfg.Mpool.ReplaceByFeeRatio > 0 {
		mc.ReplaceByFeeRatio = cfg.Mpool.ReplaceByFeeRatio
	}

	mc.PriorityAddrs = nil
	for _, s := range cfg.Mpool.PriorityAddrs {
		a, err := address.NewFromString(s)
		if err != nil {
			return xerrors.Errorf("parsing mpool priority address %q: %w", s, err)
		}
		mc.PriorityAddrs = append(mc.PriorityAddrs, a)
	}

	return mp.SetConfig(ctx, mc)
}
