package actors

import (
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

var (
	SystemCodeCid   cid.Cid
	InitCodeCid     cid.Cid
	AccountCodeCid  cid.Cid
	RewardCodeCid   cid.Cid
	MultisigCodeCid cid.Cid
)

var BuiltInActors map[cid.Cid]bool

var (
	SystemAddress     = mustIDAddress(0)
	InitAddress       = mustIDAddress(1)
	RewardAddress     = mustIDAddress(2)
	BurntFundsAddress = mustIDAddress(99)
)

// FirstNonSingletonActorId is the first id the init actor hands out to a
// user-created actor.
const FirstNonSingletonActorId = uint64(100)

func mustIDAddress(i uint64) address.Address {
	a, err := address.NewIDAddress(i)
	if err != nil {
		panic(err) // ok
	}
	return a
}

func mustSum(name string) cid.Cid {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	c, err := builder.Sum([]byte(name))
	if err != nil {
		panic(err) // ok
	}
	return c
}

func init() {
	SystemCodeCid = mustSum("ember/1/system")
	InitCodeCid = mustSum("ember/1/init")
	AccountCodeCid = mustSum("ember/1/account")
	RewardCodeCid = mustSum("ember/1/reward")
	MultisigCodeCid = mustSum("ember/1/multisig")

	BuiltInActors = map[cid.Cid]bool{
		SystemCodeCid:   true,
		InitCodeCid:     true,
		AccountCodeCid:  true,
		RewardCodeCid:   true,
		MultisigCodeCid: true,
	}
}

func IsAccountActor(code cid.Cid) bool {
	return code == AccountCodeCid
}

func IsBuiltinActor(code cid.Cid) bool {
	return BuiltInActors[code]
}

// IsSingletonActor reports whether code belongs to an actor that only ever
// has the one instance set up in genesis.
func IsSingletonActor(code cid.Cid) bool {
	return code == SystemCodeCid || code == InitCodeCid || code == RewardCodeCid
}
