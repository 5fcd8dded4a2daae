package api

import (
	"context"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/ipfs/go-cid"

	"github.com/emberchain/ember/chain/types"
)

// FullNode API is a low-level interface to the Ember network full node.
type FullNode interface {
	Common

	// ChainNotify returns channel with chain head updates
	// First message is guaranteed to be of length == 1, and type == 'current'
	ChainNotify(context.Context) (<-chan []*HeadChange, error)

	// ChainHead returns the current head of the chain
	ChainHead(context.Context) (*types.TipSet, error)

	// ChainGetRandomness is used to sample the chain for randomness
	ChainGetRandomness(ctx context.Context, tsk types.TipSetKey, personalization crypto.DomainSeparationTag, randEpoch abi.ChainEpoch, entropy []byte) (abi.Randomness, error)

	// ChainGetBlock returns the block specified by the given CID
	ChainGetBlock(context.Context, cid.Cid) (*types.BlockHeader, error)

	ChainGetTipSet(context.Context, types.TipSetKey) (*types.TipSet, error)

	// ChainGetBlockMessages returns messages stored in the specified block
	ChainGetBlockMessages(ctx context.Context, blockCid cid.Cid) (*BlockMessages, error)

	// ChainGetParentReceipts returns receipts for messages in parent tipset of
	// the specified block
	ChainGetParentReceipts(ctx context.Context, blockCid cid.Cid) ([]*types.MessageReceipt, error)

	ChainGetTipSetByHeight(context.Context, abi.ChainEpoch, types.TipSetKey) (*types.TipSet, error)

	ChainGetMessage(context.Context, cid.Cid) (*types.Message, error)
	ChainGetGenesis(context.Context) (*types.TipSet, error)

	// ChainTipSetWeight computes weight for the specified tipset
	ChainTipSetWeight(context.Context, types.TipSetKey) (types.BigInt, error)

	// ChainGetPath returns a set of revert/apply operations needed to get from
	// one tipset to another
	ChainGetPath(ctx context.Context, from types.TipSetKey, to types.TipSetKey) ([]*HeadChange, error)

	// ChainSetHead forcefully sets current chain head. Use with caution.
	ChainSetHead(context.Context, types.TipSetKey) error

	// SyncState returns the current status of the chain sync system
	SyncState(context.Context) (*SyncState, error)
	// SyncSubmitBlock can be used to submit a newly created block to the
	// network through this node
	SyncSubmitBlock(ctx context.Context, blk *types.BlockMsg) error
	// SyncMarkBad marks a block as "bad"; meaning that it won't ever by synced.
	SyncMarkBad(ctx context.Context, bcid cid.Cid) error
	// SyncCheckBad checks if a block was marked as bad, and if it was, returns
	// the reason
	SyncCheckBad(ctx context.Context, bcid cid.Cid) (string, error)

	// MpoolPending returns pending mempool messages
	MpoolPending(context.Context, types.TipSetKey) ([]*types.SignedMessage, error)
	// MpoolSelect returns a list of pending messages for inclusion in the next
	// block
	MpoolSelect(context.Context, types.TipSetKey) ([]*types.SignedMessage, error)
	// MpoolPush pushes a signed message to mempool
	MpoolPush(context.Context, *types.SignedMessage) (cid.Cid, error)
	// MpoolPushMessage atomically assigns a nonce, signs, and pushes a message
	// to mempool.
	MpoolPushMessage(context.Context, *types.Message) (*types.SignedMessage, error)
	MpoolGetNonce(context.Context, address.Address) (uint64, error)
	MpoolSub(context.Context) (<-chan MpoolUpdate, error)

	WalletNew(context.Context) (address.Address, error)
	WalletHas(context.Context, address.Address) (bool, error)
	WalletList(context.Context) ([]address.Address, error)
	// WalletBalance returns the balance of the given address at the current
	// head of the chain
	WalletBalance(context.Context, address.Address) (types.BigInt, error)
	WalletSign(context.Context, address.Address, []byte) (*crypto.Signature, error)
	WalletSignMessage(context.Context, address.Address, *types.Message) (*types.SignedMessage, error)
	WalletDefaultAddress(context.Context) (address.Address, error)
	WalletSetDefault(context.Context, address.Address) error
	WalletExport(context.Context, address.Address) (*types.KeyInfo, error)
	WalletImport(context.Context, *types.KeyInfo) (address.Address, error)

	// StateCall runs the given message against the state of the given tipset
	// without persisting any changes
	StateCall(context.Context, *types.Message, types.TipSetKey) (*InvocResult, error)
	// StateGetActor returns the indicated actor's nonce and balance
	StateGetActor(ctx context.Context, actor address.Address, tsk types.TipSetKey) (*types.Actor, error)
	// StateLookupID retrieves the ID address of the given address
	StateLookupID(ctx context.Context, addr address.Address, tsk types.TipSetKey) (address.Address, error)
	// StateAccountKey returns the public key address of the given ID address
	StateAccountKey(context.Context, address.Address, types.TipSetKey) (address.Address, error)
	// StateGetReceipt returns the message receipt for the given message
	StateGetReceipt(context.Context, cid.Cid, types.TipSetKey) (*types.MessageReceipt, error)
	// StateGetRandomness samples beacon-backed randomness at the given epoch
	StateGetRandomness(ctx context.Context, personalization crypto.DomainSeparationTag, randEpoch abi.ChainEpoch, entropy []byte, tsk types.TipSetKey) (abi.Randomness, error)

	// BeaconGetEntry returns the beacon entry for the given epoch. If the
	// entry has not yet been produced, the call will block until it becomes
	// available
	BeaconGetEntry(ctx context.Context, epoch abi.ChainEpoch) (*types.BeaconEntry, error)

	// MinerCreateBlock assembles and signs a new block on top of the given
	// parent tipset
	MinerCreateBlock(context.Context, *BlockTemplate) (*types.BlockMsg, error)
}

type BlockMessages struct {
	Messages []*types.SignedMessage
	Cids     []cid.Cid
}

type HeadChange struct {
	Type string
	Val  *types.TipSet
}

type MpoolUpdate struct {
	Type    MpoolChange
	Message *types.SignedMessage
}

type MpoolChange int

const (
	MpoolAdd MpoolChange = iota
	MpoolRemove
)

type InvocResult struct {
	Msg      *types.Message
	MsgRct   *types.MessageReceipt
	Error    string
	Duration time.Duration
}

type BlockTemplate struct {
	Miner        address.Address
	Parents      types.TipSetKey
	Ticket       *types.Ticket
	Eproof       *types.ElectionProof
	BeaconValues []types.BeaconEntry
	Messages     []*types.SignedMessage
	Epoch        abi.ChainEpoch
	Timestamp    uint64
}

type SyncStateStage int

const (
	StageIdle = SyncStateStage(iota)
	StageHeaders
	StagePersistHeaders
	StageMessages
	StageSyncComplete
	StageSyncErrored
)

type ActiveSync struct {
	Base   *types.TipSet
	Target *types.TipSet

	Stage  SyncStateStage
	Height abi.ChainEpoch

	Start   time.Time
	End     time.Time
	Message string
}

type SyncState struct {
	ActiveSyncs []ActiveSync
}
