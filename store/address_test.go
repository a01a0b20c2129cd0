package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocateInverse(t *testing.T) {
	r := require.New(t)
	configs := []struct{ quantum, qset int64 }{
		{4096, 4},
		{4096, 500},
		{4000, 1000},
		{1, 1},
		{7, 3},
	}
	offsets := []int64{0, 1, 4095, 4096, 5000, 16383, 16384, 20000, 1 << 40}
	for _, cfg := range configs {
		for _, off := range offsets {
			p := locate(off, cfg.quantum, cfg.qset)
			r.GreaterOrEqual(p.seg, int64(0))
			r.Less(p.slot, cfg.qset)
			r.Less(p.pos, cfg.quantum)
			// unique inverse of the construction
			back := p.seg*cfg.quantum*cfg.qset + p.slot*cfg.quantum + p.pos
			r.Equal(off, back, "offset %d with quantum %d qset %d", off, cfg.quantum, cfg.qset)
		}
	}
}

func TestLocateScenarioA(t *testing.T) {
	r := require.New(t)
	// quantum 4096, qset 4: offset 5000 is block 1, byte 904
	p := locate(5000, 4096, 4)
	r.Equal(int64(0), p.seg)
	r.Equal(int64(1), p.slot)
	r.Equal(int64(904), p.pos)

	// offset 20000 crosses into segment 1
	p = locate(20000, 4096, 4)
	r.Equal(int64(1), p.seg)
	r.Equal(int64(0), p.slot)
	r.Equal(int64(3616), p.pos)
}

func TestCheckRange(t *testing.T) {
	r := require.New(t)
	r.NoError(checkRange(0, 0))
	r.NoError(checkRange(1<<40, 1<<20))
	r.ErrorIs(checkRange(-1, 0), ErrInvalidArgument)
	r.ErrorIs(checkRange(math.MaxInt64, 1), ErrInvalidArgument)
	r.ErrorIs(checkRange(math.MaxInt64-10, 11), ErrInvalidArgument)
}
