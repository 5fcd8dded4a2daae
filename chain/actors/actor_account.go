package actors

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
)

// AccountActor backs every key-addressed account on chain. Its state pins
// the public key address the account was created for, so the original key
// can always be recovered from an id address.
type AccountActor struct{}

type AccountActorState struct {
	Address address.Address
}

type accountMethods struct {
	Constructor   abi.MethodNum
	PubkeyAddress abi.MethodNum
}

var AccountMethods = accountMethods{1, 2}

func (aa AccountActor) Exports() []interface{} {
	return []interface{}{
		nil,
		aa.Constructor,
		aa.PubkeyAddress,
	}
}

func (aa AccountActor) Constructor(rt Runtime, addr *address.Address) *abi.EmptyValue {
	// Account actors are created implicitly by sending a message to a
	// pubkey-style address, or by the system at genesis.
	rt.ValidateImmediateCallerIs(SystemAddress, InitAddress)

	if addr.Protocol() != address.SECP256K1 {
		rt.Abortf(exitcode.ErrIllegalArgument, "address must use SECP256K1 protocol, was: %s", addr.Protocol())
	}

	rt.StateCreate(&AccountActorState{Address: *addr})
	return nil
}

// PubkeyAddress returns the address this account was constructed for.
func (aa AccountActor) PubkeyAddress(rt Runtime, _ *abi.EmptyValue) *address.Address {
	rt.ValidateImmediateCallerAcceptAny()

	var st AccountActorState
	rt.StateReadonly(&st)
	return &st.Address
}
