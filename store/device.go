// Package store implements a lazily-grown, segmented byte store. A device
// maps logical byte offsets onto fixed-size blocks held in an arena of
// segments, each segment owning up to qset block slots. Blocks are
// allocated on first write by a pluggable strategy (package alloc) and
// freed only by trim; devices whose allocator yields one block per page can
// additionally be memory-mapped and served page by page (mmap.go).
package store

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/dnr/segstore/alloc"
	"github.com/dnr/segstore/common/shift"
)

const DefaultQset = 500

type (
	// Config fixes a device's shape at construction. There are no
	// process-wide defaults; trim restores the device to this config.
	Config struct {
		Kind      alloc.Kind
		Quantum   int64 // cache allocator block size; page kinds derive it
		Qset      int64 // block slots per segment
		Order     int   // page allocators: block is 2^Order pages
		PageShift shift.Shift
		MaxBlocks int64 // allocator budget, 0 = unlimited
	}

	// devShape is the config and allocator as one immutable unit, so the
	// unlocked accessors never see a torn reconfigure.
	devShape struct {
		cfg Config
		al  alloc.Allocator
	}

	Device struct {
		lk       devLock
		shape    atomic.Pointer[devShape]
		defaults Config // guarded by lk
		segs     []*segment
		size     atomic.Int64

		// mapLk serializes the mapping count against trim's check of it
		// and reconfigure's allocator swap, without making mapping
		// open/close wait behind in-progress transfers on lk.
		mapLk sync.Mutex
		vmas  atomic.Int32

		stats deviceStats
	}
)

// NewDevice creates an empty device. The returned device holds no blocks;
// segments and blocks appear as writes land.
func NewDevice(cfg Config) (*Device, error) {
	al, cfg, err := buildAllocator(cfg)
	if err != nil {
		return nil, err
	}
	d := &Device{
		lk:       newDevLock(),
		defaults: cfg,
	}
	d.shape.Store(&devShape{cfg: cfg, al: al})
	return d, nil
}

func buildAllocator(cfg Config) (alloc.Allocator, Config, error) {
	if cfg.Kind == "" {
		cfg.Kind = alloc.KindCache
	}
	if cfg.Qset == 0 {
		cfg.Qset = DefaultQset
	}
	if cfg.Qset < 0 {
		return nil, cfg, ErrInvalidArgument
	}
	al, err := alloc.New(alloc.Config{
		Kind:      cfg.Kind,
		Quantum:   cfg.Quantum,
		Order:     cfg.Order,
		PageShift: cfg.PageShift,
		MaxBlocks: cfg.MaxBlocks,
	})
	if err != nil {
		return nil, cfg, err
	}
	cfg.Quantum = al.BlockSize()
	if cfg.Quantum > math.MaxInt64/cfg.Qset {
		return nil, cfg, ErrInvalidArgument
	}
	return al, cfg, nil
}

func (d *Device) Size() int64     { return d.size.Load() }
func (d *Device) Quantum() int64  { return d.shape.Load().cfg.Quantum }
func (d *Device) Qset() int64     { return d.shape.Load().cfg.Qset }
func (d *Device) Mappings() int32 { return d.vmas.Load() }
func (d *Device) Config() Config  { return d.shape.Load().cfg }
func (d *Device) Stats() Stats    { return d.stats.export() }

func (d *Device) acquire(ctx context.Context) error {
	if err := d.lk.Lock(ctx); err != nil {
		d.stats.interrupts.Add(1)
		return err
	}
	return nil
}

// ReadAt copies stored bytes at off into p and returns the count. It stops
// at the end of the current block, so callers loop for longer transfers. A
// zero count is end-of-data (off at or past size) or a hole: a range inside
// size whose block was never written yields no data, not zero-fill.
func (d *Device) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p)); err != nil {
		return 0, err
	}
	if err := d.acquire(ctx); err != nil {
		return 0, err
	}
	defer d.lk.Unlock()

	size := d.size.Load()
	if off >= size || len(p) == 0 {
		return 0, nil
	}
	count := min(int64(len(p)), size-off)

	sh := d.shape.Load()
	pos := locate(off, sh.cfg.Quantum, sh.cfg.Qset)
	seg := d.lookup(pos.seg)
	if seg == nil || seg.blocks == nil || seg.blocks[pos.slot] == nil {
		return 0, nil // hole
	}
	count = min(count, sh.cfg.Quantum-pos.pos)
	n := seg.blocks[pos.slot].ReadAt(p[:count], pos.pos)
	d.stats.reads.Add(1)
	d.stats.readBytes.Add(int64(n))
	return n, nil
}

// WriteAt stores p at off, growing the segment arena and allocating the
// slot array and block as needed, and returns the count. It stops at the
// end of the current block. On allocation failure the write returns
// ErrNoMem; structure created before the failure stays in place.
func (d *Device) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p)); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := d.acquire(ctx); err != nil {
		return 0, err
	}
	defer d.lk.Unlock()

	sh := d.shape.Load()
	pos := locate(off, sh.cfg.Quantum, sh.cfg.Qset)
	seg := d.follow(pos.seg)
	if seg.blocks == nil {
		seg.blocks = make([]alloc.Block, sh.cfg.Qset)
	}
	blk := seg.blocks[pos.slot]
	if blk == nil {
		var err error
		if blk, err = sh.al.Alloc(); err != nil {
			return 0, err
		}
		seg.blocks[pos.slot] = blk
		d.stats.blocksAlloc.Add(1)
	}

	count := min(int64(len(p)), sh.cfg.Quantum-pos.pos)
	n := blk.WriteAt(p[:count], pos.pos)
	if end := off + int64(n); end > d.size.Load() {
		d.size.Store(end)
	}
	d.stats.writes.Add(1)
	d.stats.writeBytes.Add(int64(n))
	return n, nil
}

// Trim resets the device to empty: every block is returned to the
// allocator and every segment dropped. Refused with ErrBusy while any
// mapping is open. Idempotent on an empty device.
func (d *Device) Trim(ctx context.Context) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.lk.Unlock()
	d.mapLk.Lock()
	defer d.mapLk.Unlock()
	return d.trimLocked()
}

// trimLocked needs both lk (it walks the arena) and mapLk (its mapping
// check must not race an OpenMapping that is about to bump the count).
func (d *Device) trimLocked() error {
	if d.vmas.Load() > 0 {
		return ErrBusy
	}
	sh := d.shape.Load()
	for _, seg := range d.segs {
		for i, blk := range seg.blocks {
			if blk != nil {
				sh.al.Free(blk)
				seg.blocks[i] = nil
				d.stats.blocksFreed.Add(1)
			}
		}
		seg.blocks = nil
	}
	d.segs = nil
	d.size.Store(0)
	d.shape.Store(&devShape{cfg: d.defaults, al: sh.al})
	d.stats.trims.Add(1)
	return nil
}

// Reconfigure trims the device and installs a new configuration, which
// becomes the default that later trims restore. Like Trim it is refused
// while mapped; holding mapLk across the trim and the allocator swap keeps
// a concurrent OpenMapping from observing the old allocator's mappability
// and then landing on the new one.
func (d *Device) Reconfigure(ctx context.Context, cfg Config) error {
	al, cfg, err := buildAllocator(cfg)
	if err != nil {
		return err
	}
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.lk.Unlock()
	d.mapLk.Lock()
	defer d.mapLk.Unlock()
	if err := d.trimLocked(); err != nil {
		return err
	}
	d.defaults = cfg
	d.shape.Store(&devShape{cfg: cfg, al: al})
	return nil
}

// SegmentFill reports how many slots are allocated in each live segment,
// for diagnostics.
func (d *Device) SegmentFill(ctx context.Context) ([]int, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.lk.Unlock()
	fill := make([]int, len(d.segs))
	for i, seg := range d.segs {
		for _, blk := range seg.blocks {
			if blk != nil {
				fill[i]++
			}
		}
	}
	return fill, nil
}
