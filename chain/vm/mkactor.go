package vm

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/emberchain/ember/chain/actors"
	"github.com/emberchain/ember/chain/actors/aerrors"
	"github.com/emberchain/ember/chain/types"
)

// TryCreateAccountActor instantiates an account actor for the key address a
// message was sent to. Only SECP256K1 key addresses can be implicitly
// instantiated this way; sends to any other unknown address fail.
func TryCreateAccountActor(rt *Runtime, addr address.Address) (*types.Actor, address.Address, aerrors.ActorError) {
	if err := rt.chargeGasSafe(rt.Pricelist().OnCreateActor()); err != nil {
		return nil, address.Undef, err
	}

	if addr.Protocol() != address.SECP256K1 {
		return nil, address.Undef, aerrors.Newf(exitcode.SysErrInvalidReceiver, "no code for address %s", addr)
	}

	addrID, err := rt.state.RegisterNewAddress(addr)
	if err != nil {
		return nil, address.Undef, aerrors.Escalate(err, "registering actor address")
	}

	act := &types.Actor{
		Code:    actors.AccountCodeCid,
		Head:    EmptyObjectCid,
		Balance: types.NewInt(0),
	}

	if err := rt.state.SetActor(addrID, act); err != nil {
		return nil, address.Undef, aerrors.Escalate(err, "creating new actor entry")
	}

	p, aerr := actors.SerializeParams(&addr)
	if aerr != nil {
		return nil, address.Undef, aerrors.Wrap(aerr, "couldn't serialize params for actor construction")
	}

	// call constructor on account
	if _, aerr := rt.internalSend(actors.SystemAddress, addrID, actors.AccountMethods.Constructor, types.NewInt(0), p); aerr != nil {
		return nil, address.Undef, aerrors.Wrap(aerr, "failed to invoke account constructor")
	}

	act, err = rt.state.GetActor(addrID)
	if err != nil {
		return nil, address.Undef, aerrors.Escalate(err, "loading newly created actor failed")
	}
	return act, addrID, nil
}
