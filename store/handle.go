package store

import (
	"context"
	"errors"
	"io"
)

// Handle is an open handle on a device carrying a seek position. Handles
// are cheap and independent; the device serializes the actual transfers.
type Handle struct {
	dev *Device
	pos int64
}

func (d *Device) Open() *Handle {
	return &Handle{dev: d}
}

// OpenTrunc opens a handle after trimming the device, for callers that
// want write-only-open-truncates semantics. A Busy trim (live mappings)
// is ignored; a cancelled lock wait is not.
func (d *Device) OpenTrunc(ctx context.Context) (*Handle, error) {
	if err := d.Trim(ctx); err != nil && !errors.Is(err, ErrBusy) {
		return nil, err
	}
	return &Handle{dev: d}, nil
}

// Read reads from the current position, advancing it. Reads are short at
// block boundaries. A zero-byte result (position at or past size, or a
// hole) is reported as io.EOF.
func (h *Handle) Read(ctx context.Context, p []byte) (int, error) {
	n, err := h.dev.ReadAt(ctx, p, h.pos)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	h.pos += int64(n)
	return n, nil
}

// Write writes all of p at the current position, advancing it, looping
// over block boundaries.
func (h *Handle) Write(ctx context.Context, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := h.dev.WriteAt(ctx, p[total:], h.pos)
		if err != nil {
			return total, err
		}
		h.pos += int64(n)
		total += n
	}
	return total, nil
}

// Seek repositions the handle. Bases are io.SeekStart, io.SeekCurrent and
// io.SeekEnd; a negative resulting position is rejected.
func (h *Handle) Seek(off int64, whence int) (int64, error) {
	var newpos int64
	switch whence {
	case io.SeekStart:
		newpos = off
	case io.SeekCurrent:
		newpos = h.pos + off
	case io.SeekEnd:
		newpos = h.dev.Size() + off
	default:
		return 0, ErrInvalidArgument
	}
	if newpos < 0 {
		return 0, ErrInvalidArgument
	}
	h.pos = newpos
	return newpos, nil
}

// Pos returns the current position without moving it.
func (h *Handle) Pos() int64 { return h.pos }
