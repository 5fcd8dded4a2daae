package actors

import (
	"strconv"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	hamt "github.com/ipfs/go-hamt-ipld"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/emberchain/ember/chain/types"
)

// MultisigActor is an n-of-m wallet. Transactions are proposed by one
// signer and executed once enough other signers approve, which exercises
// the nested send path of the VM.
type MultisigActor struct{}

type MultisigActorState struct {
	Signers               []address.Address
	NumApprovalsThreshold uint64
	NextTxnID             int64
	PendingTxns           cid.Cid
}

type MultisigTransaction struct {
	To     address.Address
	Value  types.BigInt
	Method abi.MethodNum
	Params []byte

	Approved []address.Address
}

type multisigMethods struct {
	Constructor abi.MethodNum
	Propose     abi.MethodNum
	Approve     abi.MethodNum
	Cancel      abi.MethodNum
}

var MultisigMethods = multisigMethods{1, 2, 3, 4}

func (msa MultisigActor) Exports() []interface{} {
	return []interface{}{
		nil,
		msa.Constructor,
		msa.Propose,
		msa.Approve,
		msa.Cancel,
	}
}

type MultisigConstructorParams struct {
	Signers               []address.Address
	NumApprovalsThreshold uint64
}

func (msa MultisigActor) Constructor(rt Runtime, params *MultisigConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(InitAddress)

	if len(params.Signers) == 0 {
		rt.Abortf(exitcode.ErrIllegalArgument, "must have at least one signer")
	}
	if params.NumApprovalsThreshold == 0 || params.NumApprovalsThreshold > uint64(len(params.Signers)) {
		rt.Abortf(exitcode.ErrIllegalArgument, "invalid approvals threshold %d for %d signers",
			params.NumApprovalsThreshold, len(params.Signers))
	}

	// Signers must be resolvable to id addresses at construction time.
	signers := make([]address.Address, 0, len(params.Signers))
	for _, s := range params.Signers {
		id, found := rt.ResolveAddress(s)
		if !found {
			rt.Abortf(exitcode.ErrNotFound, "signer %s has no id address", s)
		}
		for _, existing := range signers {
			if existing == id {
				rt.Abortf(exitcode.ErrIllegalArgument, "duplicate signer %s", s)
			}
		}
		signers = append(signers, id)
	}

	pending := hamt.NewNode(rt.Store())
	if err := pending.Flush(rt.Context()); err != nil {
		rt.Abortf(exitcode.ErrIllegalState, "failed to flush pending txns: %s", err)
	}
	pendingCid, err := rt.Store().Put(rt.Context(), pending)
	if err != nil {
		rt.Abortf(exitcode.ErrIllegalState, "failed to store pending txns: %s", err)
	}

	rt.StateCreate(&MultisigActorState{
		Signers:               signers,
		NumApprovalsThreshold: params.NumApprovalsThreshold,
		NextTxnID:             0,
		PendingTxns:           pendingCid,
	})
	return nil
}

type ProposeParams struct {
	To     address.Address
	Value  types.BigInt
	Method abi.MethodNum
	Params []byte
}

type ProposeReturn struct {
	TxnID   int64
	Applied bool
	Code    exitcode.ExitCode
}

func (msa MultisigActor) Propose(rt Runtime, params *ProposeParams) *ProposeReturn {
	rt.ValidateImmediateCallerType(AccountCodeCid, MultisigCodeCid)

	caller := msa.mustSigner(rt)

	var txnID int64
	var txn MultisigTransaction
	var st MultisigActorState
	rt.StateTransaction(&st, func() {
		txnID = st.NextTxnID
		st.NextTxnID++

		txn = MultisigTransaction{
			To:       params.To,
			Value:    params.Value,
			Method:   params.Method,
			Params:   params.Params,
			Approved: []address.Address{caller},
		}

		st.putTransaction(rt, txnID, &txn)
	})

	applied, code := msa.maybeExecute(rt, &st, txnID, &txn)

	return &ProposeReturn{
		TxnID:   txnID,
		Applied: applied,
		Code:    code,
	}
}

type TxnIDParams struct {
	ID int64
}

type ApproveReturn struct {
	Applied bool
	Code    exitcode.ExitCode
}

func (msa MultisigActor) Approve(rt Runtime, params *TxnIDParams) *ApproveReturn {
	rt.ValidateImmediateCallerType(AccountCodeCid, MultisigCodeCid)

	caller := msa.mustSigner(rt)

	var txn MultisigTransaction
	var st MultisigActorState
	rt.StateTransaction(&st, func() {
		found := st.getTransaction(rt, params.ID, &txn)
		if !found {
			rt.Abortf(exitcode.ErrNotFound, "no pending transaction %d", params.ID)
		}

		for _, a := range txn.Approved {
			if a == caller {
				rt.Abortf(exitcode.ErrForbidden, "%s already approved transaction %d", caller, params.ID)
			}
		}
		txn.Approved = append(txn.Approved, caller)

		st.putTransaction(rt, params.ID, &txn)
	})

	applied, code := msa.maybeExecute(rt, &st, params.ID, &txn)

	return &ApproveReturn{
		Applied: applied,
		Code:    code,
	}
}

func (msa MultisigActor) Cancel(rt Runtime, params *TxnIDParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerType(AccountCodeCid, MultisigCodeCid)

	caller := msa.mustSigner(rt)

	var st MultisigActorState
	rt.StateTransaction(&st, func() {
		var txn MultisigTransaction
		found := st.getTransaction(rt, params.ID, &txn)
		if !found {
			rt.Abortf(exitcode.ErrNotFound, "no pending transaction %d", params.ID)
		}

		// Only the proposer may cancel.
		if len(txn.Approved) == 0 || txn.Approved[0] != caller {
			rt.Abortf(exitcode.ErrForbidden, "%s cannot cancel transaction proposed by another signer", caller)
		}

		st.deleteTransaction(rt, params.ID)
	})

	return nil
}

// maybeExecute fires the transaction once the approval threshold is met.
// The nested send failing does not abort the approval itself; the exit
// code is reported back to the caller instead.
func (msa MultisigActor) maybeExecute(rt Runtime, st *MultisigActorState, txnID int64, txn *MultisigTransaction) (bool, exitcode.ExitCode) {
	if uint64(len(txn.Approved)) < st.NumApprovalsThreshold {
		return false, exitcode.Ok
	}

	if txn.Value.GreaterThan(rt.CurrentBalance()) {
		rt.Abortf(exitcode.ErrInsufficientFunds, "insufficient funds for transaction %d", txnID)
	}

	code := exitcode.Ok
	_, aerr := rt.Send(txn.To, txn.Method, &cbg.Deferred{Raw: txn.Params}, txn.Value)
	if aerr != nil {
		code = aerr.RetCode()
	}

	var st2 MultisigActorState
	rt.StateTransaction(&st2, func() {
		st2.deleteTransaction(rt, txnID)
	})
	*st = st2

	return true, code
}

func (msa MultisigActor) mustSigner(rt Runtime) address.Address {
	var st MultisigActorState
	rt.StateReadonly(&st)

	caller := rt.Message().Caller()
	for _, s := range st.Signers {
		if s == caller {
			return caller
		}
	}

	rt.Abortf(exitcode.ErrForbidden, "%s is not a signer", caller)
	return address.Undef // unreachable
}

func txnKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (st *MultisigActorState) loadPending(rt Runtime) *hamt.Node {
	nd, err := hamt.LoadNode(rt.Context(), rt.Store(), st.PendingTxns)
	if err != nil {
		rt.Abortf(exitcode.ErrIllegalState, "failed to load pending txns: %s", err)
	}
	return nd
}

func (st *MultisigActorState) flushPending(rt Runtime, nd *hamt.Node) {
	if err := nd.Flush(rt.Context()); err != nil {
		rt.Abortf(exitcode.ErrIllegalState, "failed to flush pending txns: %s", err)
	}
	c, err := rt.Store().Put(rt.Context(), nd)
	if err != nil {
		rt.Abortf(exitcode.ErrIllegalState, "failed to store pending txns: %s", err)
	}
	st.PendingTxns = c
}

func (st *MultisigActorState) getTransaction(rt Runtime, id int64, txn *MultisigTransaction) bool {
	nd := st.loadPending(rt)
	if err := nd.Find(rt.Context(), txnKey(id), txn); err != nil {
		if err == hamt.ErrNotFound {
			return false
		}
		rt.Abortf(exitcode.ErrIllegalState, "failed to read transaction %d: %s", id, err)
	}
	return true
}

func (st *MultisigActorState) putTransaction(rt Runtime, id int64, txn *MultisigTransaction) {
	nd := st.loadPending(rt)
	if err := nd.Set(rt.Context(), txnKey(id), txn); err != nil {
		rt.Abortf(exitcode.ErrIllegalState, "failed to store transaction %d: %s", id, err)
	}
	st.flushPending(rt, nd)
}

func (st *MultisigActorState) deleteTransaction(rt Runtime, id int64) {
	nd := st.loadPending(rt)
	if err := nd.Delete(rt.Context(), txnKey(id)); err != nil && err != hamt.ErrNotFound {
		rt.Abortf(exitcode.ErrIllegalState, "failed to delete transaction %d: %s", id, err)
	}
	st.flushPending(rt, nd)
}
