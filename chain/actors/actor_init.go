package actors

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	hamt "github.com/ipfs/go-hamt-ipld"
	cbor "github.com/ipfs/go-ipld-cbor"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"
)

// ErrAddressNotFound is returned when resolving an address with no entry
// in the init actor's address map.
var ErrAddressNotFound = xerrors.New("address not found")

// InitActor tracks the mapping from key addresses to id addresses and
// allocates fresh ids for newly created actors.
type InitActor struct{}

type InitActorState struct {
	AddressMap  cid.Cid
	NextID      uint64
	NetworkName string
}

type initMethods struct {
	Constructor abi.MethodNum
	Exec        abi.MethodNum
}

var InitMethods = initMethods{1, 2}

func (ia InitActor) Exports() []interface{} {
	return []interface{}{
		nil,
		ia.Constructor,
		ia.Exec,
	}
}

type InitConstructorParams struct {
	NetworkName string
}

func (ia InitActor) Constructor(rt Runtime, params *InitConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(SystemAddress)

	amap := hamt.NewNode(rt.Store())
	if err := amap.Flush(rt.Context()); err != nil {
		rt.Abortf(exitcode.ErrIllegalState, "failed to flush address map: %s", err)
	}
	amapcid, err := rt.Store().Put(rt.Context(), amap)
	if err != nil {
		rt.Abortf(exitcode.ErrIllegalState, "failed to store address map: %s", err)
	}

	rt.StateCreate(&InitActorState{
		AddressMap:  amapcid,
		NextID:      FirstNonSingletonActorId,
		NetworkName: params.NetworkName,
	})
	return nil
}

type ExecParams struct {
	CodeCID           cid.Cid
	ConstructorParams []byte
}

type ExecReturn struct {
	IDAddress     address.Address
	RobustAddress address.Address
}

func (ia InitActor) Exec(rt Runtime, params *ExecParams) *ExecReturn {
	rt.ValidateImmediateCallerAcceptAny()

	if !canExec(params.CodeCID) {
		rt.Abortf(exitcode.ErrForbidden, "cannot exec actor with code %s", params.CodeCID)
	}

	// Compute a reorg-safe address for the new actor before allocating an id.
	uniqueAddress := rt.NewActorAddress()

	var idAddr address.Address
	var st InitActorState
	rt.StateTransaction(&st, func() {
		var err error
		idAddr, err = st.MapAddressToNewID(rt.Context(), rt.Store(), uniqueAddress)
		if err != nil {
			rt.Abortf(exitcode.ErrIllegalState, "failed to allocate id address: %s", err)
		}
	})

	rt.CreateActor(params.CodeCID, idAddr)

	_, aerr := rt.Send(idAddr, InitMethods.Constructor, &cbg.Deferred{Raw: params.ConstructorParams}, rt.Message().ValueReceived())
	if aerr != nil {
		rt.Abortf(aerr.RetCode(), "constructor failed: %s", aerr)
	}

	return &ExecReturn{
		IDAddress:     idAddr,
		RobustAddress: uniqueAddress,
	}
}

func canExec(code cid.Cid) bool {
	return code == MultisigCodeCid
}

// ResolveAddress looks up the id address for any address. The bool return
// is false if the address has no mapping; id addresses resolve to
// themselves.
func (st *InitActorState) ResolveAddress(ctx context.Context, cst cbor.IpldStore, addr address.Address) (address.Address, bool, error) {
	if addr.Protocol() == address.ID {
		return addr, true, nil
	}

	amap, err := hamt.LoadNode(ctx, cst, st.AddressMap)
	if err != nil {
		return address.Undef, false, xerrors.Errorf("loading init actor address map: %w", err)
	}

	var actorID cbg.CborInt
	if err := amap.Find(ctx, string(addr.Bytes()), &actorID); err != nil {
		if err == hamt.ErrNotFound {
			return address.Undef, false, nil
		}
		return address.Undef, false, xerrors.Errorf("resolving address %s: %w", addr, err)
	}

	idAddr, err := address.NewIDAddress(uint64(actorID))
	if err != nil {
		return address.Undef, false, err
	}

	return idAddr, true, nil
}

// MapAddressToNewID allocates the next id for addr and records the mapping.
func (st *InitActorState) MapAddressToNewID(ctx context.Context, cst cbor.IpldStore, addr address.Address) (address.Address, error) {
	id := st.NextID
	st.NextID++

	amap, err := hamt.LoadNode(ctx, cst, st.AddressMap)
	if err != nil {
		return address.Undef, xerrors.Errorf("loading init actor address map: %w", err)
	}

	actorID := cbg.CborInt(id)
	if err := amap.Set(ctx, string(addr.Bytes()), &actorID); err != nil {
		return address.Undef, xerrors.Errorf("setting address map entry: %w", err)
	}

	if err := amap.Flush(ctx); err != nil {
		return address.Undef, err
	}

	amapcid, err := cst.Put(ctx, amap)
	if err != nil {
		return address.Undef, err
	}
	st.AddressMap = amapcid

	return address.NewIDAddress(id)
}
