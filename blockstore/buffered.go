package blockstore

import (
	"context"

	block "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	bstore "github.com/ipfs/go-ipfs-blockstore"
	ipld "github.com/ipfs/go-ipld-format"
)

// NewMemory returns a temporary, in-memory blockstore.
func NewMemory() bstore.Blockstore {
	return bstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
}

// BufferedBlockstore holds writes in a memory staging blockstore on top of
// a backing store. State computed by the VM lands in the buffer first; only
// the blocks reachable from a flushed state root get copied down.
type BufferedBlockstore struct {
	read  bstore.Blockstore
	write bstore.Blockstore
}

func NewBuffered(base bstore.Blockstore) *BufferedBlockstore {
	return &BufferedBlockstore{
		read:  base,
		write: NewMemory(),
	}
}

var _ bstore.Blockstore = (*BufferedBlockstore)(nil)

// Read returns the backing blockstore.
func (bs *BufferedBlockstore) Read() bstore.Blockstore {
	return bs.read
}

func (bs *BufferedBlockstore) Get(ctx context.Context, c cid.Cid) (block.Block, error) {
	if out, err := bs.write.Get(ctx, c); err == nil {
		return out, nil
	} else if !ipld.IsNotFound(err) {
		return nil, err
	}

	return bs.read.Get(ctx, c)
}

func (bs *BufferedBlockstore) GetSize(ctx context.Context, c cid.Cid) (int, error) {
	s, err := bs.read.GetSize(ctx, c)
	if ipld.IsNotFound(err) || s == 0 {
		return bs.write.GetSize(ctx, c)
	}

	return s, err
}

func (bs *BufferedBlockstore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	has, err := bs.write.Has(ctx, c)
	if err != nil {
		return false, err
	}
	if has {
		return true, nil
	}

	return bs.read.Has(ctx, c)
}

func (bs *BufferedBlockstore) Put(ctx context.Context, blk block.Block) error {
	has, err := bs.read.Has(ctx, blk.Cid())
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	return bs.write.Put(ctx, blk)
}

func (bs *BufferedBlockstore) PutMany(ctx context.Context, blks []block.Block) error {
	return bs.write.PutMany(ctx, blks)
}

func (bs *BufferedBlockstore) DeleteBlock(ctx context.Context, c cid.Cid) error {
	if err := bs.read.DeleteBlock(ctx, c); err != nil {
		return err
	}

	return bs.write.DeleteBlock(ctx, c)
}

func (bs *BufferedBlockstore) AllKeysChan(ctx context.Context) (<-chan cid.Cid, error) {
	a, err := bs.read.AllKeysChan(ctx)
	if err != nil {
		return nil, err
	}
	b, err := bs.write.AllKeysChan(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan cid.Cid)
	go func() {
		defer close(out)
		for a != nil || b != nil {
			select {
			case val, ok := <-a:
				if !ok {
					a = nil
				} else {
					select {
					case out <- val:
					case <-ctx.Done():
						return
					}
				}
			case val, ok := <-b:
				if !ok {
					b = nil
				} else {
					select {
					case out <- val:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}

func (bs *BufferedBlockstore) HashOnRead(hor bool) {
	bs.read.HashOnRead(hor)
	bs.write.HashOnRead(hor)
}
