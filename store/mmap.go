package store

import (
	"context"
	"sync"

	"github.com/dnr/segstore/alloc"
)

// Mapping is a live page-by-page view of a device's storage. Faults
// resolve pages straight out of the segment arena under the device lock,
// so a fault never observes a half-linked segment while a writer grows the
// arena. The mapping count itself lives outside the device lock: opening
// or closing a mapping never waits behind in-progress I/O, it only blocks
// trim.
type Mapping struct {
	dev *Device

	mu     sync.Mutex
	held   []*alloc.Page // pages handed out, released on Close
	closed bool
}

// OpenMapping opens a mapping over the device. Only allocators producing
// exactly one page per block can back a mapping; page reference counts are
// per page, so unmapping a multi-page block would under-count every page
// but the first. Anything else is rejected with ErrNotSupported and the
// mapping count is untouched. The mappability check and the count bump
// happen under mapLk, so a concurrent reconfigure either sees the mapping
// and refuses, or finishes its allocator swap before the check.
func (d *Device) OpenMapping() (*Mapping, error) {
	d.mapLk.Lock()
	defer d.mapLk.Unlock()
	if !d.shape.Load().al.Mappable() {
		return nil, ErrNotSupported
	}
	d.vmas.Add(1)
	return &Mapping{dev: d}, nil
}

// Close releases every page the mapping resolved, exactly once each, and
// drops the mapping count.
func (m *Mapping) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, pg := range m.held {
		pg.Put()
	}
	m.held = nil
	m.dev.vmas.Add(-1)
}

// Fault resolves the page backing byte offset off. Offsets at or past the
// device size fault with ErrOutOfRange, and so do holes: an unwritten page
// inside the size is a fatal access fault, not a zero-fill. On success the
// page's reference count has been incremented by exactly one; the matching
// release happens when the mapping closes.
func (m *Mapping) Fault(ctx context.Context, off int64) (*alloc.Page, error) {
	if off < 0 {
		return nil, ErrOutOfRange
	}
	d := m.dev
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.lk.Unlock()

	if off >= d.size.Load() {
		d.stats.faultErrs.Add(1)
		return nil, ErrOutOfRange
	}

	// Mappable devices hold one page per block, so the walk is in page
	// units: one slot per page.
	sh := d.shape.Load()
	pageIdx := off / sh.cfg.Quantum
	seg := d.lookup(pageIdx / sh.cfg.Qset)
	if seg == nil || seg.blocks == nil {
		d.stats.faultErrs.Add(1)
		return nil, ErrOutOfRange
	}
	blk := seg.blocks[pageIdx%sh.cfg.Qset]
	if blk == nil {
		d.stats.faultErrs.Add(1)
		return nil, ErrOutOfRange // hole
	}

	pg := blk.Page(0)
	pg.Get()

	// A concurrent Close may have torn the mapping down since this fault
	// started; a page recorded now would never be released. Resolving
	// into a dead mapping is an access fault.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		pg.Put()
		d.stats.faultErrs.Add(1)
		return nil, ErrOutOfRange
	}
	m.held = append(m.held, pg)
	m.mu.Unlock()
	d.stats.faults.Add(1)
	return pg, nil
}
