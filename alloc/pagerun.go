package alloc

import "github.com/dnr/segstore/common/shift"

// runAlloc hands out blocks of 2^order contiguous pages from one anonymous
// mapping per block. Pages alias subranges of the run, so the whole run is
// released at once. Mappable only at order 0: the resolver's refcounts are
// per page and releasing a multi-page run page by page would under-count.
type runAlloc struct {
	pageShift shift.Shift
	order     int
	budget    budget
}

func newRunAlloc(cfg Config) *runAlloc {
	return &runAlloc{
		pageShift: cfg.PageShift,
		order:     cfg.Order,
		budget:    budget{max: cfg.MaxBlocks},
	}
}

func (a *runAlloc) Alloc() (Block, error) {
	if !a.budget.take() {
		return nil, ErrNoMem
	}
	buf, err := mapPages(a.BlockSize())
	if err != nil {
		a.budget.put()
		return nil, ErrNoMem
	}
	pages := make([]*Page, 1<<a.order)
	ps := a.pageShift.Size()
	for i := range pages {
		pages[i] = &Page{buf: buf[int64(i)*ps : int64(i+1)*ps]}
	}
	return &runBlock{buf: buf, pages: pages}, nil
}

func (a *runAlloc) Free(b Block) {
	unmapPages(b.(*runBlock).buf)
	a.budget.put()
}

func (a *runAlloc) BlockSize() int64 { return a.pageShift.Size() << a.order }
func (a *runAlloc) Mappable() bool   { return a.order == 0 }

type runBlock struct {
	buf   []byte
	pages []*Page
}

func (b *runBlock) Size() int64 { return int64(len(b.buf)) }

func (b *runBlock) ReadAt(dst []byte, off int64) int {
	return copy(dst, b.buf[off:])
}

func (b *runBlock) WriteAt(src []byte, off int64) int {
	return copy(b.buf[off:], src)
}

func (b *runBlock) Page(i int64) *Page { return b.pages[i] }
