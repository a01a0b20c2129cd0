package alloc

import "github.com/dnr/segstore/common/shift"

// scatteredAlloc builds each block from 2^order individually-allocated
// pages. The block presents a contiguous byte range but every access has to
// look up the page backing that range; nothing about adjacent in-block
// offsets implies adjacent storage. Mappable only at order 0, like runAlloc.
type scatteredAlloc struct {
	pageShift shift.Shift
	order     int
	budget    budget
}

func newScatteredAlloc(cfg Config) *scatteredAlloc {
	return &scatteredAlloc{
		pageShift: cfg.PageShift,
		order:     cfg.Order,
		budget:    budget{max: cfg.MaxBlocks},
	}
}

func (a *scatteredAlloc) Alloc() (Block, error) {
	if !a.budget.take() {
		return nil, ErrNoMem
	}
	pages := make([]*Page, 1<<a.order)
	for i := range pages {
		buf, err := mapPages(a.pageShift.Size())
		if err != nil {
			for _, p := range pages[:i] {
				unmapPages(p.buf)
			}
			a.budget.put()
			return nil, ErrNoMem
		}
		pages[i] = &Page{buf: buf, owned: true}
	}
	return &scatteredBlock{pageShift: a.pageShift, pages: pages}, nil
}

func (a *scatteredAlloc) Free(b Block) {
	for _, p := range b.(*scatteredBlock).pages {
		unmapPages(p.buf)
	}
	a.budget.put()
}

func (a *scatteredAlloc) BlockSize() int64 { return a.pageShift.Size() << a.order }
func (a *scatteredAlloc) Mappable() bool   { return a.order == 0 }

type scatteredBlock struct {
	pageShift shift.Shift
	pages     []*Page
}

func (b *scatteredBlock) Size() int64 {
	return b.pageShift.Size() * int64(len(b.pages))
}

// ReadAt copies out of each page the range touches, resolving the backing
// page per iteration.
func (b *scatteredBlock) ReadAt(dst []byte, off int64) int {
	n := 0
	for n < len(dst) && off < b.Size() {
		pg := b.pages[off>>b.pageShift]
		n += copy(dst[n:], pg.buf[b.pageShift.Leftover(off):])
		off = b.pageShift.Roundup(off + 1)
	}
	return n
}

func (b *scatteredBlock) WriteAt(src []byte, off int64) int {
	n := 0
	for n < len(src) && off < b.Size() {
		pg := b.pages[off>>b.pageShift]
		n += copy(pg.buf[b.pageShift.Leftover(off):], src[n:])
		off = b.pageShift.Roundup(off + 1)
	}
	return n
}

func (b *scatteredBlock) Page(i int64) *Page { return b.pages[i] }
