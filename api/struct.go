package api

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/ipfs/go-cid"

	"github.com/emberchain/ember/chain/types"
)

// CommonStruct is a wire-compatible proxy for the Common interface, for use
// with the JSONRPC client.
type CommonStruct struct {
	Internal struct {
		Version     func(context.Context) (APIVersion, error)               `perm:"read"`
		LogList     func(context.Context) ([]string, error)                 `perm:"write"`
		LogSetLevel func(context.Context, string, string) error             `perm:"write"`
		Shutdown    func(context.Context) error                             `perm:"admin"`
	}
}

type FullNodeStruct struct {
	CommonStruct

	Internal struct {
		ChainNotify            func(context.Context) (<-chan []*HeadChange, error)                                                                 `perm:"read"`
		ChainHead              func(context.Context) (*types.TipSet, error)                                                                        `perm:"read"`
		ChainGetRandomness     func(context.Context, types.TipSetKey, crypto.DomainSeparationTag, abi.ChainEpoch, []byte) (abi.Randomness, error)  `perm:"read"`
		ChainGetBlock          func(context.Context, cid.Cid) (*types.BlockHeader, error)                                                          `perm:"read"`
		ChainGetTipSet         func(context.Context, types.TipSetKey) (*types.TipSet, error)                                                       `perm:"read"`
		ChainGetBlockMessages  func(context.Context, cid.Cid) (*BlockMessages, error)                                                              `perm:"read"`
		ChainGetParentReceipts func(context.Context, cid.Cid) ([]*types.MessageReceipt, error)                                                     `perm:"read"`
		ChainGetTipSetByHeight func(context.Context, abi.ChainEpoch, types.TipSetKey) (*types.TipSet, error)                                       `perm:"read"`
		ChainGetMessage        func(context.Context, cid.Cid) (*types.Message, error)                                                              `perm:"read"`
		ChainGetGenesis        func(context.Context) (*types.TipSet, error)                                                                        `perm:"read"`
		ChainTipSetWeight      func(context.Context, types.TipSetKey) (types.BigInt, error)                                                        `perm:"read"`
		ChainGetPath           func(context.Context, types.TipSetKey, types.TipSetKey) ([]*HeadChange, error)                                      `perm:"read"`
		ChainSetHead           func(context.Context, types.TipSetKey) error                                                                        `perm:"admin"`

		SyncState       func(context.Context) (*SyncState, error)         `perm:"read"`
		SyncSubmitBlock func(context.Context, *types.BlockMsg) error      `perm:"write"`
		SyncMarkBad     func(context.Context, cid.Cid) error              `perm:"admin"`
		SyncCheckBad    func(context.Context, cid.Cid) (string, error)    `perm:"read"`

		MpoolPending     func(context.Context, types.TipSetKey) ([]*types.SignedMessage, error) `perm:"read"`
		MpoolSelect      func(context.Context, types.TipSetKey) ([]*types.SignedMessage, error) `perm:"read"`
		MpoolPush        func(context.Context, *types.SignedMessage) (cid.Cid, error)           `perm:"write"`
		MpoolPushMessage func(context.Context, *types.Message) (*types.SignedMessage, error)    `perm:"sign"`
		MpoolGetNonce    func(context.Context, address.Address) (uint64, error)                 `perm:"read"`
		MpoolSub         func(context.Context) (<-chan MpoolUpdate, error)                      `perm:"read"`

		WalletNew            func(context.Context) (address.Address, error)                                    `perm:"write"`
		WalletHas            func(context.Context, address.Address) (bool, error)                              `perm:"write"`
		WalletList           func(context.Context) ([]address.Address, error)                                  `perm:"write"`
		WalletBalance        func(context.Context, address.Address) (types.BigInt, error)                      `perm:"read"`
		WalletSign           func(context.Context, address.Address, []byte) (*crypto.Signature, error)         `perm:"sign"`
		WalletSignMessage    func(context.Context, address.Address, *types.Message) (*types.SignedMessage, error) `perm:"sign"`
		WalletDefaultAddress func(context.Context) (address.Address, error)                                    `perm:"write"`
		WalletSetDefault     func(context.Context, address.Address) error                                      `perm:"admin"`
		WalletExport         func(context.Context, address.Address) (*types.KeyInfo, error)                    `perm:"admin"`
		WalletImport         func(context.Context, *types.KeyInfo) (address.Address, error)                    `perm:"admin"`

		StateCall          func(context.Context, *types.Message, types.TipSetKey) (*InvocResult, error)                                                 `perm:"read"`
		StateGetActor      func(context.Context, address.Address, types.TipSetKey) (*types.Actor, error)                                                `perm:"read"`
		StateLookupID      func(context.Context, address.Address, types.TipSetKey) (address.Address, error)                                             `perm:"read"`
		StateAccountKey    func(context.Context, address.Address, types.TipSetKey) (address.Address, error)                                             `perm:"read"`
		StateGetReceipt    func(context.Context, cid.Cid, types.TipSetKey) (*types.MessageReceipt, error)                                               `perm:"read"`
		StateGetRandomness func(context.Context, crypto.DomainSeparationTag, abi.ChainEpoch, []byte, types.TipSetKey) (abi.Randomness, error)           `perm:"read"`

		BeaconGetEntry func(context.Context, abi.ChainEpoch) (*types.BeaconEntry, error) `perm:"read"`

		MinerCreateBlock func(context.Context, *BlockTemplate) (*types.BlockMsg, error) `perm:"write"`
	}
}

func (c *CommonStruct) Version(ctx context.Context) (APIVersion, error) {
	return c.Internal.Version(ctx)
}

func (c *CommonStruct) LogList(ctx context.Context) ([]string, error) {
	return c.Internal.LogList(ctx)
}

func (c *CommonStruct) LogSetLevel(ctx context.Context, subsystem, level string) error {
	return c.Internal.LogSetLevel(ctx, subsystem, level)
}

func (c *CommonStruct) Shutdown(ctx context.Context) error {
	return c.Internal.Shutdown(ctx)
}

func (c *FullNodeStruct) ChainNotify(ctx context.Context) (<-chan []*HeadChange, error) {
	return c.Internal.ChainNotify(ctx)
}

func (c *FullNodeStruct) ChainHead(ctx context.Context) (*types.TipSet, error) {
	return c.Internal.ChainHead(ctx)
}

func (c *FullNodeStruct) ChainGetRandomness(ctx context.Context, tsk types.TipSetKey, personalization crypto.DomainSeparationTag, randEpoch abi.ChainEpoch, entropy []byte) (abi.Randomness, error) {
	return c.Internal.ChainGetRandomness(ctx, tsk, personalization, randEpoch, entropy)
}

func (c *FullNodeStruct) ChainGetBlock(ctx context.Context, b cid.Cid) (*types.BlockHeader, error) {
	return c.Internal.ChainGetBlock(ctx, b)
}

func (c *FullNodeStruct) ChainGetTipSet(ctx context.Context, tsk types.TipSetKey) (*types.TipSet, error) {
	return c.Internal.ChainGetTipSet(ctx, tsk)
}

func (c *FullNodeStruct) ChainGetBlockMessages(ctx context.Context, b cid.Cid) (*BlockMessages, error) {
	return c.Internal.ChainGetBlockMessages(ctx, b)
}

func (c *FullNodeStruct) ChainGetParentReceipts(ctx context.Context, b cid.Cid) ([]*types.MessageReceipt, error) {
	return c.Internal.ChainGetParentReceipts(ctx, b)
}

func (c *FullNodeStruct) ChainGetTipSetByHeight(ctx context.Context, h abi.ChainEpoch, tsk types.TipSetKey) (*types.TipSet, error) {
	return c.Internal.ChainGetTipSetByHeight(ctx, h, tsk)
}

func (c *FullNodeStruct) ChainGetMessage(ctx context.Context, mc cid.Cid) (*types.Message, error) {
	return c.Internal.ChainGetMessage(ctx, mc)
}

func (c *FullNodeStruct) ChainGetGenesis(ctx context.Context) (*types.TipSet, error) {
	return c.Internal.ChainGetGenesis(ctx)
}

func (c *FullNodeStruct) ChainTipSetWeight(ctx context.Context, tsk types.TipSetKey) (types.BigInt, error) {
	return c.Internal.ChainTipSetWeight(ctx, tsk)
}

func (c *FullNodeStruct) ChainGetPath(ctx context.Context, from, to types.TipSetKey) ([]*HeadChange, error) {
	return c.Internal.ChainGetPath(ctx, from, to)
}

func (c *FullNodeStruct) ChainSetHead(ctx context.Context, tsk types.TipSetKey) error {
	return c.Internal.ChainSetHead(ctx, tsk)
}

func (c *FullNodeStruct) SyncState(ctx context.Context) (*SyncState, error) {
	return c.Internal.SyncState(ctx)
}

func (c *FullNodeStruct) SyncSubmitBlock(ctx context.Context, blk *types.BlockMsg) error {
	return c.Internal.SyncSubmitBlock(ctx, blk)
}

func (c *FullNodeStruct) SyncMarkBad(ctx context.Context, bcid cid.Cid) error {
	return c.Internal.SyncMarkBad(ctx, bcid)
}

func (c *FullNodeStruct) SyncCheckBad(ctx context.Context, bcid cid.Cid) (string, error) {
	return c.Internal.SyncCheckBad(ctx, bcid)
}

func (c *FullNodeStruct) MpoolPending(ctx context.Context, tsk types.TipSetKey) ([]*types.SignedMessage, error) {
	return c.Internal.MpoolPending(ctx, tsk)
}

func (c *FullNodeStruct) MpoolSelect(ctx context.Context, tsk types.TipSetKey) ([]*types.SignedMessage, error) {
	return c.Internal.MpoolSelect(ctx, tsk)
}

func (c *FullNodeStruct) MpoolPush(ctx context.Context, smsg *types.SignedMessage) (cid.Cid, error) {
	return c.Internal.MpoolPush(ctx, smsg)
}

func (c *FullNodeStruct) MpoolPushMessage(ctx context.Context, msg *types.Message) (*types.SignedMessage, error) {
	return c.Internal.MpoolPushMessage(ctx, msg)
}

func (c *FullNodeStruct) MpoolGetNonce(ctx context.Context, addr address.Address) (uint64, error) {
	return c.Internal.MpoolGetNonce(ctx, addr)
}

func (c *FullNodeStruct) MpoolSub(ctx context.Context) (<-chan MpoolUpdate, error) {
	return c.Internal.MpoolSub(ctx)
}

func (c *FullNodeStruct) WalletNew(ctx context.Context) (address.Address, error) {
	return c.Internal.WalletNew(ctx)
}

func (c *FullNodeStruct) WalletHas(ctx context.Context, addr address.Address) (bool, error) {
	return c.Internal.WalletHas(ctx, addr)
}

func (c *FullNodeStruct) WalletList(ctx context.Context) ([]address.Address, error) {
	return c.Internal.WalletList(ctx)
}

func (c *FullNodeStruct) WalletBalance(ctx context.Context, addr address.Address) (types.BigInt, error) {
	return c.Internal.WalletBalance(ctx, addr)
}

func (c *FullNodeStruct) WalletSign(ctx context.Context, addr address.Address, msg []byte) (*crypto.Signature, error) {
	return c.Internal.WalletSign(ctx, addr, msg)
}

func (c *FullNodeStruct) WalletSignMessage(ctx context.Context, addr address.Address, msg *types.Message) (*types.SignedMessage, error) {
	return c.Internal.WalletSignMessage(ctx, addr, msg)
}

func (c *FullNodeStruct) WalletDefaultAddress(ctx context.Context) (address.Address, error) {
	return c.Internal.WalletDefaultAddress(ctx)
}

func (c *FullNodeStruct) WalletSetDefault(ctx context.Context, addr address.Address) error {
	return c.Internal.WalletSetDefault(ctx, addr)
}

func (c *FullNodeStruct) WalletExport(ctx context.Context, addr address.Address) (*types.KeyInfo, error) {
	return c.Internal.WalletExport(ctx, addr)
}

func (c *FullNodeStruct) WalletImport(ctx context.Context, ki *types.KeyInfo) (address.Address, error) {
	return c.Internal.WalletImport(ctx, ki)
}

func (c *FullNodeStruct) StateCall(ctx context.Context, msg *types.Message, tsk types.TipSetKey) (*InvocResult, error) {
	return c.Internal.StateCall(ctx, msg, tsk)
}

func (c *FullNodeStruct) StateGetActor(ctx context.Context, actor address.Address, tsk types.TipSetKey) (*types.Actor, error) {
	return c.Internal.StateGetActor(ctx, actor, tsk)
}

func (c *FullNodeStruct) StateLookupID(ctx context.Context, addr address.Address, tsk types.TipSetKey) (address.Address, error) {
	return c.Internal.StateLookupID(ctx, addr, tsk)
}

func (c *FullNodeStruct) StateAccountKey(ctx context.Context, addr address.Address, tsk types.TipSetKey) (address.Address, error) {
	return c.Internal.StateAccountKey(ctx, addr, tsk)
}

func (c *FullNodeStruct) StateGetReceipt(ctx context.Context, msg cid.Cid, tsk types.TipSetKey) (*types.MessageReceipt, error) {
	return c.Internal.StateGetReceipt(ctx, msg, tsk)
}

func (c *FullNodeStruct) StateGetRandomness(ctx context.Context, personalization crypto.DomainSeparationTag, randEpoch abi.ChainEpoch, entropy []byte, tsk types.TipSetKey) (abi.Randomness, error) {
	return c.Internal.StateGetRandomness(ctx, personalization, randEpoch, entropy, tsk)
}

func (c *FullNodeStruct) BeaconGetEntry(ctx context.Context, epoch abi.ChainEpoch) (*types.BeaconEntry, error) {
	return c.Internal.BeaconGetEntry(ctx, epoch)
}

func (c *FullNodeStruct) MinerCreateBlock(ctx context.Context, bt *BlockTemplate) (*types.BlockMsg, error) {
	return c.Internal.MinerCreateBlock(ctx, bt)
}

var _ Common = &CommonStruct{}
var _ FullNode = &FullNodeStruct{}
