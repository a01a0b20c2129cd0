package alloc

import "sync"

// cacheAlloc draws fixed-size blocks from a sync.Pool, one size class per
// device. Blocks are plain buffers with no page backing, so devices using
// this strategy can never be mapped.
type cacheAlloc struct {
	quantum int64
	pool    sync.Pool
	budget  budget
}

func newCacheAlloc(cfg Config) *cacheAlloc {
	a := &cacheAlloc{
		quantum: cfg.Quantum,
		budget:  budget{max: cfg.MaxBlocks},
	}
	a.pool.New = func() any { return make([]byte, a.quantum) }
	return a
}

func (a *cacheAlloc) Alloc() (Block, error) {
	if !a.budget.take() {
		return nil, ErrNoMem
	}
	buf := a.pool.Get().([]byte)
	clear(buf)
	return &cacheBlock{buf: buf}, nil
}

func (a *cacheAlloc) Free(b Block) {
	a.pool.Put(b.(*cacheBlock).buf)
	a.budget.put()
}

func (a *cacheAlloc) BlockSize() int64 { return a.quantum }
func (a *cacheAlloc) Mappable() bool   { return false }

type cacheBlock struct {
	buf []byte
}

func (b *cacheBlock) Size() int64 { return int64(len(b.buf)) }

func (b *cacheBlock) ReadAt(dst []byte, off int64) int {
	return copy(dst, b.buf[off:])
}

func (b *cacheBlock) WriteAt(src []byte, off int64) int {
	return copy(b.buf[off:], src)
}

func (b *cacheBlock) Page(int64) *Page { return nil }
