package node

import (
	"context"
	"encoding/json"
	"os"
	"time"

	bstore "github.com/ipfs/go-ipfs-blockstore"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"

	"github.com/emberchain/ember/chain/gen/genesis"
	"github.com/emberchain/ember/chain/store"
	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/node/repo"
)

// GenesisTemplate describes the chain to bootstrap: the accounts funded at
// height zero and the genesis timestamp. A zero timestamp means "now".
type GenesisTemplate struct {
	Accounts  []GenesisAccount `json:"accounts"`
	Timestamp uint64           `json:"timestamp"`
}

type GenesisAccount struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// LoadGenesisTemplate reads a genesis template from a JSON file.
func LoadGenesisTemplate(path string) (*GenesisTemplate, error) {
	fb, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("reading genesis template: %w", err)
	}

	var tmpl GenesisTemplate
	if err := json.Unmarshal(fb, &tmpl); err != nil {
		return nil, xerrors.Errorf("parsing genesis template: %w", err)
	}

	if len(tmpl.Accounts) == 0 {
		return nil, xerrors.New("genesis template has no accounts")
	}

	return &tmpl, nil
}

// InitGenesis creates and persists the genesis block in the repo's chain
// store from the given template. It is a no-op if the chain already has a
// genesis block.
func InitGenesis(ctx context.Context, lr repo.LockedRepo, tmpl *GenesisTemplate) error {
	cbs, err := lr.Datastore("/chain")
	if err != nil {
		return xerrors.Errorf("opening chain datastore: %w", err)
	}

	mds, err := lr.Datastore("/metadata")
	if err != nil {
		return xerrors.Errorf("opening metadata datastore: %w", err)
	}

	bs := bstore.NewBlockstore(cbs)
	cs := store.NewChainStore(bs, mds)

	if _, err := cs.GetGenesis(ctx); err == nil {
		return nil
	}

	balances := make(map[address.Address]types.BigInt, len(tmpl.Accounts))
	for _, acc := range tmpl.Accounts {
		a, err := address.NewFromString(acc.Address)
		if err != nil {
			return xerrors.Errorf("parsing genesis address %q: %w", acc.Address, err)
		}

		b, err := types.BigFromString(acc.Balance)
		if err != nil {
			return xerrors.Errorf("parsing genesis balance %q: %w", acc.Balance, err)
		}

		balances[a] = b
	}

	ts := tmpl.Timestamp
	if ts == 0 {
		ts = uint64(time.Now().Unix())
	}

	gb, err := genesis.MakeGenesisBlock(ctx, bs, balances, ts)
	if err != nil {
		return xerrors.Errorf("making genesis block: %w", err)
	}

	log.Infow("created genesis block", "cid", gb.Genesis.Cid(), "accounts", len(balances))

	return cs.SetGenesis(ctx, gb.Genesis)
}
