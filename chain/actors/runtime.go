package actors

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/emberchain/ember/chain/actors/aerrors"
)

// Message carries the calling convention of the invocation being handled:
// who called, who is being called, and how much value moved.
type Message interface {
	Caller() address.Address
	Receiver() address.Address
	ValueReceived() abi.TokenAmount
}

// Store gives actors gas-metered access to the state blockstore.
type Store interface {
	Context() context.Context
	cbor.IpldStore
}

type CBORer interface {
	cbg.CBORMarshaler
	cbg.CBORUnmarshaler
}

// Runtime is the interface the VM exposes to actor code. All methods abort
// (via panic, recovered by the VM) instead of returning errors, with the
// exception of Send, which surfaces the callee's failure to the caller.
type Runtime interface {
	Context() context.Context

	Message() Message
	CurrEpoch() abi.ChainEpoch

	// Exactly one of the caller validation methods must be invoked before
	// any state access or side effect.
	ValidateImmediateCallerAcceptAny()
	ValidateImmediateCallerIs(addrs ...address.Address)
	ValidateImmediateCallerType(types ...cid.Cid)

	CurrentBalance() abi.TokenAmount
	ResolveAddress(addr address.Address) (address.Address, bool)
	GetActorCodeCID(addr address.Address) (cid.Cid, bool)

	GetRandomness(personalization crypto.DomainSeparationTag, randEpoch abi.ChainEpoch, entropy []byte) abi.Randomness

	Store() Store

	Send(toAddr address.Address, methodNum abi.MethodNum, params cbg.CBORMarshaler, value abi.TokenAmount) ([]byte, aerrors.ActorError)

	NewActorAddress() address.Address
	CreateActor(codeID cid.Cid, addr address.Address)
	// DeleteActor removes the receiver, sending any remaining balance to
	// the beneficiary first.
	DeleteActor(beneficiary address.Address)

	StateCreate(obj cbg.CBORMarshaler)
	StateReadonly(obj cbg.CBORUnmarshaler)
	StateTransaction(obj CBORer, f func())

	Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{})

	ChargeGas(name string, gas int64)
}

// Invokee is implemented by every builtin actor. Slot i of the Exports
// slice handles method number i, nil slots reject the method number.
type Invokee interface {
	Exports() []interface{}
}
