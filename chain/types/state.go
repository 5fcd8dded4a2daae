package types

import "github.com/filecoin-project/go-address"

// StateTree is the view of the actor state tree the VM exposes to callers
// outside the state package.
type StateTree interface {
	SetActor(addr address.Address, act *Actor) error
	GetActor(addr address.Address) (*Actor, error)
	LookupID(addr address.Address) (address.Address, error)
}
