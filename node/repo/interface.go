package repo

import (
	"github.com/ipfs/go-datastore"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/node/config"
)

var (
	ErrNoAPIEndpoint     = xerrors.New("no API Endpoint set")
	ErrRepoAlreadyLocked = xerrors.New("repo is already locked")
	ErrClosedRepo        = xerrors.New("repo is no longer open")
)

type Repo interface {
	// APIEndpoint returns the address the node's JSON-RPC server listens on
	APIEndpoint() (string, error)

	// Lock locks the repo for exclusive use.
	Lock() (LockedRepo, error)
}

type LockedRepo interface {
	// Close closes repo and removes lock.
	Close() error

	// Returns datastore defined in this repo.
	Datastore(namespace string) (datastore.Batching, error)

	// Returns config in this repo
	Config() (*config.FullNode, error)

	// SetAPIEndpoint sets the address the daemon is listening on, for
	// clients to find
	SetAPIEndpoint(string) error

	// KeyStore returns store of private keys for the wallet
	KeyStore() (types.KeyStore, error)

	// Path returns the repo's filesystem path, or the empty string for
	// in-memory repos
	Path() string
}
