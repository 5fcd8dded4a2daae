package repo

import (
	"sync"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	dssync "github.com/ipfs/go-datastore/sync"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/chain/types"
	"github.com/emberchain/ember/node/config"
)

// MemRepo is a memory backed repo for testing
type MemRepo struct {
	api struct {
		sync.Mutex
		endpoint string
	}

	repoLock chan struct{}

	datastore datastore.Batching
	keystore  map[string]types.KeyInfo
	configF   func() *config.FullNode
}

type lockedMemRepo struct {
	mem *MemRepo
	sync.RWMutex

	token *struct{}
}

var _ Repo = &MemRepo{}

// NewMemory creates a new memory-backed repo with an optional config override.
func NewMemory(cfg *config.FullNode) *MemRepo {
	if cfg == nil {
		cfg = config.DefaultFullNode()
	}

	return &MemRepo{
		repoLock:  make(chan struct{}, 1),
		datastore: dssync.MutexWrap(datastore.NewMapDatastore()),
		keystore:  make(map[string]types.KeyInfo),
		configF:   func() *config.FullNode { return cfg },
	}
}

func (mem *MemRepo) APIEndpoint() (string, error) {
	mem.api.Lock()
	defer mem.api.Unlock()
	if mem.api.endpoint == "" {
		return "", ErrNoAPIEndpoint
	}
	return mem.api.endpoint, nil
}

func (mem *MemRepo) Lock() (LockedRepo, error) {
	select {
	case mem.repoLock <- struct{}{}:
	default:
		return nil, ErrRepoAlreadyLocked
	}

	return &lockedMemRepo{
		mem:   mem,
		token: &struct{}{},
	}, nil
}

func (lmem *lockedMemRepo) Path() string {
	return ""
}

func (lmem *lockedMemRepo) Close() error {
	if err := lmem.checkToken(); err != nil {
		return err
	}

	lmem.Lock()
	defer lmem.Unlock()

	lmem.token = nil
	lmem.mem.api.Lock()
	lmem.mem.api.endpoint = ""
	lmem.mem.api.Unlock()
	<-lmem.mem.repoLock // unlock
	return nil
}

func (lmem *lockedMemRepo) checkToken() error {
	lmem.RLock()
	defer lmem.RUnlock()
	if lmem.token == nil {
		return ErrClosedRepo
	}
	return nil
}

func (lmem *lockedMemRepo) Datastore(ns string) (datastore.Batching, error) {
	if err := lmem.checkToken(); err != nil {
		return nil, err
	}

	return namespace.Wrap(lmem.mem.datastore, datastore.NewKey(ns)), nil
}

func (lmem *lockedMemRepo) Config() (*config.FullNode, error) {
	if err := lmem.checkToken(); err != nil {
		return nil, err
	}
	return lmem.mem.configF(), nil
}

func (lmem *lockedMemRepo) SetAPIEndpoint(addr string) error {
	if err := lmem.checkToken(); err != nil {
		return err
	}
	lmem.mem.api.Lock()
	lmem.mem.api.endpoint = addr
	lmem.mem.api.Unlock()
	return nil
}

func (lmem *lockedMemRepo) KeyStore() (types.KeyStore, error) {
	if err := lmem.checkToken(); err != nil {
		return nil, err
	}
	return lmem, nil
}

// List lists all the keys stored in the KeyStore
func (lmem *lockedMemRepo) List() ([]string, error) {
	if err := lmem.checkToken(); err != nil {
		return nil, err
	}
	lmem.RLock()
	defer lmem.RUnlock()

	res := make([]string, 0, len(lmem.mem.keystore))
	for k := range lmem.mem.keystore {
		res = append(res, k)
	}
	return res, nil
}

// Get gets a key out of keystore and returns KeyInfo corresponding to named key
func (lmem *lockedMemRepo) Get(name string) (types.KeyInfo, error) {
	if err := lmem.checkToken(); err != nil {
		return types.KeyInfo{}, err
	}
	lmem.RLock()
	defer lmem.RUnlock()

	key, ok := lmem.mem.keystore[name]
	if !ok {
		return types.KeyInfo{}, xerrors.Errorf("getting key '%s': %w", name, types.ErrKeyInfoNotFound)
	}
	return key, nil
}

// Put saves key info under given name
func (lmem *lockedMemRepo) Put(name string, key types.KeyInfo) error {
	if err := lmem.checkToken(); err != nil {
		return err
	}
	lmem.Lock()
	defer lmem.Unlock()

	_, isThere := lmem.mem.keystore[name]
	if isThere {
		return xerrors.Errorf("saving key '%s': %w", name, types.ErrKeyExists)
	}

	lmem.mem.keystore[name] = key
	return nil
}

func (lmem *lockedMemRepo) Delete(name string) error {
	if err := lmem.checkToken(); err != nil {
		return err
	}
	lmem.Lock()
	defer lmem.Unlock()

	_, isThere := lmem.mem.keystore[name]
	if !isThere {
		return xerrors.Errorf("deleting key '%s': %w", name, types.ErrKeyInfoNotFound)
	}
	delete(lmem.mem.keystore, name)
	return nil
}
