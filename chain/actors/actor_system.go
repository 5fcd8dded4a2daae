package actors

import (
	"github.com/filecoin-project/go-state-types/abi"
)

// SystemActor is the singleton at id address 0. It holds no state, it
// exists so implicit messages have a sender that is not a user account.
type SystemActor struct{}

type systemMethods struct {
	Constructor abi.MethodNum
}

var SystemMethods = systemMethods{1}

func (sa SystemActor) Exports() []interface{} {
	return []interface{}{
		nil,
		sa.Constructor,
	}
}

func (sa SystemActor) Constructor(rt Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(SystemAddress)
	return nil
}
