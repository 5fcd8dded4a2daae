package config

import (
	"encoding"
	"time"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/chain/messagepool"
)

// Common is config shared by every node flavour.
type Common struct {
	API API
}

// FullNode is a full node config
type FullNode struct {
	Common
	Drand   Drand
	Mpool   Mpool
	Metrics Metrics
}

// API contains configs for the JSON-RPC endpoint
type API struct {
	ListenAddress string
	Timeout       Duration
}

// Drand points the node at the beacon network the chain is anchored to.
// Leaving ChainInfoJSON empty uses the trust root compiled into the build
// package; setting Mock runs a local insecure beacon for devnets.
type Drand struct {
	Servers       []string
	ChainInfoJSON string
	Mock          bool
}

// Mpool configures the message pool limits
type Mpool struct {
	SizeLimitHigh     int
	SizeLimitLow      int
	ReplaceByFeeRatio float64
	PriorityAddrs     []string
}

type Metrics struct {
	Nickname   string
	HeadNotifs bool
}

func defCommon() Common {
	return Common{
		API: API{
			ListenAddress: "127.0.0.1:1234",
			Timeout:       Duration(30 * time.Second),
		},
	}
}

// DefaultFullNode returns the default config
func DefaultFullNode() *FullNode {
	return &FullNode{
		Common: defCommon(),
		Drand: Drand{
			Servers:       build.DrandServers,
			ChainInfoJSON: build.DrandChainInfoJSON,
		},
		Mpool: Mpool{
			SizeLimitHigh:     messagepool.MemPoolSizeLimitHiDefault,
			SizeLimitLow:      messagepool.MemPoolSizeLimitLoDefault,
			ReplaceByFeeRatio: messagepool.ReplaceByFeeRatioDefault,
		},
	}
}

var _ encoding.TextMarshaler = (*Duration)(nil)
var _ encoding.TextUnmarshaler = (*Duration)(nil)

// Duration is a wrapper type for time.Duration for decoding and encoding from/to TOML
type Duration time.Duration

// UnmarshalText implements interface for TOML decoding
func (dur *Duration) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*dur = Duration(d)
	return err
}

func (dur Duration) MarshalText() ([]byte, error) {
	d := time.Duration(dur)
	return []byte(d.String()), nil
}
