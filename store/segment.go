package store

import "github.com/dnr/segstore/alloc"

// segment is one node of the storage sequence: a lazily-allocated array of
// qset block slots. Segments live in the device's arena indexed by segment
// number; they are created in increasing order and only trim removes them.
type segment struct {
	// blocks is nil until the first write lands in this segment; a nil
	// entry is a hole.
	blocks []alloc.Block
}

// follow returns segment n, growing the arena with empty segments as
// needed. Caller holds the device lock.
func (d *Device) follow(n int64) *segment {
	for int64(len(d.segs)) <= n {
		d.segs = append(d.segs, &segment{})
	}
	return d.segs[n]
}

// lookup returns segment n or nil, never growing the arena. Caller holds
// the device lock.
func (d *Device) lookup(n int64) *segment {
	if n < int64(len(d.segs)) {
		return d.segs[n]
	}
	return nil
}
