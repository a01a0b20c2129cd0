package store

import "math"

// blockPos is the physical position of one logical byte offset.
type blockPos struct {
	seg  int64 // segment index
	slot int64 // block slot within the segment
	pos  int64 // byte offset within the block
}

// locate translates a byte offset for a device with the given block size
// and slots per segment. Pure; quantum and qset are positive by
// construction.
func locate(off, quantum, qset int64) blockPos {
	itemsize := quantum * qset
	rest := off % itemsize
	return blockPos{
		seg:  off / itemsize,
		slot: rest / quantum,
		pos:  rest % quantum,
	}
}

// checkRange rejects offsets and lengths that are negative or would
// overflow when added.
func checkRange(off int64, n int) error {
	if off < 0 || n < 0 || off > math.MaxInt64-int64(n) {
		return ErrInvalidArgument
	}
	return nil
}
