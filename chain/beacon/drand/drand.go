package drand

import (
	"bytes"
	"context"
	"time"

	dcommon "github.com/drand/drand/v2/common"
	dchain "github.com/drand/drand/v2/common/chain"
	dlog "github.com/drand/drand/v2/common/log"
	dcrypto "github.com/drand/drand/v2/crypto"
	dclient "github.com/drand/go-clients/client"
	hclient "github.com/drand/go-clients/client/http"
	drand "github.com/drand/go-clients/drand"
	"github.com/drand/kyber"
	"github.com/filecoin-project/go-state-types/abi"
	lru "github.com/hashicorp/golang-lru"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/beacon"
	"github.com/emberchain/ember/chain/types"
)

var log = logging.Logger("drand")

// Config captures the drand network this node trusts: the public HTTP
// endpoints used to fetch entries, and the serialized chain info anchoring
// the network's public key, period and genesis time.
type Config struct {
	Servers       []string
	ChainInfoJSON string
}

// DrandBeacon connects the node with a drand network in order to provide
// randomness to the system in a way that's aligned with chain rounds/epochs.
//
// We connect to drand peers via their public HTTP endpoints. The peers are
// enumerated in the Servers field of the config.
type DrandBeacon struct {
	client drand.Client

	pubkey kyber.Point

	// seconds
	interval time.Duration

	drandGenTime uint64
	chainGenTime uint64
	chainRound   uint64
	scheme       *dcrypto.Scheme

	localCache *lru.Cache
}

// DrandHTTPClient interface overrides the user agent used by drand
type DrandHTTPClient interface {
	SetUserAgent(string)
}

type logger struct {
	*zap.SugaredLogger
	name string
}

func (l *logger) With(args ...interface{}) dlog.Logger {
	return &logger{l.SugaredLogger.With(args...), l.name}
}

func (l *logger) Named(s string) dlog.Logger {
	newName := l.name
	if newName != "" {
		newName += "."
	}
	newName += s
	return &logger{l.SugaredLogger.Named(s), newName}
}

func (l *logger) AddCallerSkip(skip int) dlog.Logger {
	return &logger{l.SugaredLogger.With(zap.AddCallerSkip(skip)), l.name}
}

func (l *logger) Name() string {
	return l.name
}

func NewDrandBeacon(genesisTs, interval uint64, config Config) (*DrandBeacon, error) {
	if genesisTs == 0 {
		panic("what are you doing this can't be zero")
	}

	drandChain, err := dchain.InfoFromJSON(bytes.NewReader([]byte(config.ChainInfoJSON)))
	if err != nil {
		return nil, xerrors.Errorf("unable to unmarshal drand chain info: %w", err)
	}

	var clients []drand.Client
	for _, url := range config.Servers {
		hc, err := hclient.NewWithInfo(&logger{&log.SugaredLogger, "drand"}, url, drandChain, nil)
		if err != nil {
			return nil, xerrors.Errorf("could not create http drand client: %w", err)
		}
		hc.SetUserAgent("drand-client-ember/" + build.BuildVersion)
		clients = append(clients, hc)
	}

	if len(clients) == 0 {
		// no servers configured; we can still verify entries posted on chain,
		// we just can't fetch new ones.
		clients = append(clients, dclient.EmptyClientWithInfo(drandChain))
	}

	opts := []dclient.Option{
		dclient.WithChainInfo(drandChain),
		dclient.WithCacheSize(1024),
		dclient.WithLogger(&logger{&log.SugaredLogger, "drand"}),
	}

	client, err := dclient.Wrap(clients, opts...)
	if err != nil {
		return nil, xerrors.Errorf("creating drand client: %w", err)
	}

	lc, err := lru.New(1024)
	if err != nil {
		return nil, err
	}

	db := &DrandBeacon{
		client:     client,
		localCache: lc,
	}

	sch, err := dcrypto.GetSchemeByID(drandChain.Scheme)
	if err != nil {
		return nil, err
	}
	db.scheme = sch
	db.pubkey = drandChain.PublicKey
	db.interval = drandChain.Period
	db.drandGenTime = uint64(drandChain.GenesisTime)
	db.chainRound = interval
	db.chainGenTime = genesisTs

	return db, nil
}

func (db *DrandBeacon) Entry(ctx context.Context, round uint64) <-chan beacon.Response {
	out := make(chan beacon.Response, 1)
	if round != 0 {
		be := db.getCachedValue(round)
		if be != nil {
			out <- beacon.Response{Entry: *be}
			close(out)
			return out
		}
	}

	go func() {
		start := build.Clock.Now()
		log.Debugw("start fetching randomness", "round", round)
		resp, err := db.client.Get(ctx, round)

		var br beacon.Response
		if err != nil {
			br.Err = xerrors.Errorf("drand failed Get request: %w", err)
		} else {
			br.Entry.Round = resp.GetRound()
			br.Entry.Data = resp.GetSignature()
		}
		log.Debugw("done fetching randomness", "round", round, "took", build.Clock.Since(start))
		out <- br
		close(out)
	}()

	return out
}

func (db *DrandBeacon) cacheValue(e types.BeaconEntry) {
	db.localCache.Add(e.Round, &e)
}

func (db *DrandBeacon) getCachedValue(round uint64) *types.BeaconEntry {
	v, ok := db.localCache.Get(round)
	if !ok {
		return nil
	}
	return v.(*types.BeaconEntry)
}

func (db *DrandBeacon) VerifyEntry(entry types.BeaconEntry, prevEntrySig []byte) error {
	if be := db.getCachedValue(entry.Round); be != nil {
		if !bytes.Equal(entry.Data, be.Data) {
			return xerrors.New("invalid beacon value, does not match cached good value")
		}
		// return no error if the value is in the cache already
		return nil
	}
	b := &dcommon.Beacon{
		PreviousSig: prevEntrySig,
		Round:       entry.Round,
		Signature:   entry.Data,
	}

	err := db.scheme.VerifyBeacon(b, db.pubkey)
	if err != nil {
		return xerrors.Errorf("failed to verify beacon: %w", err)
	}

	db.cacheValue(entry)
	return nil
}

func (db *DrandBeacon) MaxBeaconRoundForEpoch(chainEpoch abi.ChainEpoch) uint64 {
	// lock the beacon round to the start of the previous chain epoch, so all
	// nodes agree on the entry a block must carry
	latestTs := ((uint64(chainEpoch) * db.chainRound) + db.chainGenTime) - db.chainRound
	if latestTs < db.drandGenTime {
		return 1
	}

	fromGenesis := latestTs - db.drandGenTime
	// we take the time from genesis divided by the periods in seconds, that
	// gives us the number of periods since genesis.  We also add +1 because
	// round 1 starts at genesis time.
	return fromGenesis/uint64(db.interval.Seconds()) + 1
}

var _ beacon.RandomBeacon = (*DrandBeacon)(nil)
