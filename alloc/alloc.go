// Package alloc provides the block allocation strategies backing a device:
// a pool-backed allocator for arbitrary block sizes, a page-run allocator
// handing out runs of 2^order whole pages, and a scattered allocator whose
// blocks are built from individually-allocated pages. Only allocators that
// yield exactly one page per block can back a memory mapping.
package alloc

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dnr/segstore/common/shift"
)

// ErrNoMem is returned by Alloc when the allocator's block budget is
// exhausted or the backing allocation fails.
var ErrNoMem = errors.New("block allocation failed")

type (
	// Allocator is one strategy for providing fixed-size storage blocks.
	// Alloc returns a zero-filled block of BlockSize bytes.
	Allocator interface {
		Alloc() (Block, error)
		Free(Block)
		BlockSize() int64
		// Mappable reports whether every block is backed by exactly one
		// page, the shape required by the page-fault resolver. Page
		// reference counts are tracked per page, so multi-page blocks
		// would be under-counted on unmap.
		Mappable() bool
	}

	// Block is one fixed-size storage block. ReadAt and WriteAt copy
	// within the block only; off and len must stay inside BlockSize,
	// which the device's address translation guarantees.
	Block interface {
		Size() int64
		ReadAt(dst []byte, off int64) int
		WriteAt(src []byte, off int64) int
		// Page returns the i'th backing page, or nil if the block is
		// not page-backed.
		Page(i int64) *Page
	}

	Kind string

	// Config selects and parameterizes a strategy. Zero fields take
	// defaults: Quantum defaults per kind, Qset and budget are owned by
	// the device, PageShift defaults to the host page size.
	Config struct {
		Kind      Kind
		Quantum   int64 // cache kind only; page kinds derive it from Order
		Order     int   // page kinds: block is 2^Order pages
		PageShift shift.Shift
		MaxBlocks int64 // 0 = unlimited
	}
)

const (
	KindCache     Kind = "cache"
	KindPageRun   Kind = "pages"
	KindScattered Kind = "scatter"

	DefaultQuantum = 4096
	MaxOrder       = 10
)

// New builds the allocator described by cfg, normalizing defaults.
func New(cfg Config) (Allocator, error) {
	if cfg.PageShift == 0 {
		cfg.PageShift = shift.Page()
	}
	if cfg.Order < 0 || cfg.Order > MaxOrder {
		return nil, fmt.Errorf("order %d out of range [0,%d]", cfg.Order, MaxOrder)
	}
	switch cfg.Kind {
	case KindCache, "":
		if cfg.Quantum == 0 {
			cfg.Quantum = DefaultQuantum
		}
		if cfg.Quantum < 0 {
			return nil, fmt.Errorf("quantum %d out of range", cfg.Quantum)
		}
		return newCacheAlloc(cfg), nil
	case KindPageRun:
		return newRunAlloc(cfg), nil
	case KindScattered:
		return newScatteredAlloc(cfg), nil
	default:
		return nil, fmt.Errorf("unknown allocator kind %q", cfg.Kind)
	}
}

// budget caps the number of live blocks an allocator may hold.
type budget struct {
	max  int64 // 0 = unlimited
	used atomic.Int64
}

func (b *budget) take() bool {
	if b.max <= 0 {
		b.used.Add(1)
		return true
	}
	if b.used.Add(1) > b.max {
		b.used.Add(-1)
		return false
	}
	return true
}

func (b *budget) put() {
	b.used.Add(-1)
}
