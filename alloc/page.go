package alloc

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Page is one page of block storage. The fault resolver hands pages out
// with their reference count incremented; the mapping layer decrements on
// every unmap, so each successful fault must be paired with exactly one Put.
type Page struct {
	buf  []byte
	refs atomic.Int64
	// owned is set when buf is a whole anonymous mapping belonging to this
	// page (scattered blocks); run pages alias their block's mapping.
	owned bool
}

func (p *Page) Bytes() []byte { return p.buf }

func (p *Page) Get() { p.refs.Add(1) }

func (p *Page) Put() {
	if p.refs.Add(-1) < 0 {
		panic("page refcount went negative")
	}
}

func (p *Page) Refs() int64 { return p.refs.Load() }

// mapPages allocates n bytes of zeroed, page-aligned memory.
func mapPages(n int64) ([]byte, error) {
	buf, err := unix.Mmap(-1, 0, int(n),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func unmapPages(buf []byte) {
	// failure here means the address range is already gone; nothing to do
	_ = unix.Munmap(buf)
}
