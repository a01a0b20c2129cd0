package alloc

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	r := require.New(t)

	a, err := New(Config{Kind: KindCache, Quantum: 4000})
	r.NoError(err)
	r.EqualValues(4000, a.BlockSize())
	r.False(a.Mappable())

	a, err = New(Config{Kind: KindPageRun, PageShift: 12})
	r.NoError(err)
	r.EqualValues(4096, a.BlockSize())
	r.True(a.Mappable())

	a, err = New(Config{Kind: KindPageRun, Order: 3, PageShift: 12})
	r.NoError(err)
	r.EqualValues(8*4096, a.BlockSize())
	r.False(a.Mappable())

	a, err = New(Config{Kind: KindScattered, Order: 2, PageShift: 12})
	r.NoError(err)
	r.EqualValues(4*4096, a.BlockSize())
	r.False(a.Mappable())

	// defaults
	a, err = New(Config{})
	r.NoError(err)
	r.EqualValues(DefaultQuantum, a.BlockSize())

	_, err = New(Config{Kind: "bogus"})
	r.Error(err)
	_, err = New(Config{Kind: KindPageRun, Order: MaxOrder + 1})
	r.Error(err)
	_, err = New(Config{Kind: KindPageRun, Order: -1})
	r.Error(err)
}

func testRoundTrip(t *testing.T, a Allocator) {
	r := require.New(t)
	b, err := a.Alloc()
	r.NoError(err)
	defer a.Free(b)
	r.Equal(a.BlockSize(), b.Size())

	// fresh blocks are zero-filled
	buf := make([]byte, b.Size())
	r.Equal(int(b.Size()), b.ReadAt(buf, 0))
	r.Equal(make([]byte, b.Size()), buf)

	data := make([]byte, b.Size())
	rand.New(rand.NewSource(3)).Read(data)
	r.Equal(len(data), b.WriteAt(data, 0))
	r.Equal(int(b.Size()), b.ReadAt(buf, 0))
	r.Equal(data, buf)

	// offset transfers
	r.Equal(5, b.WriteAt([]byte("hello"), 7))
	small := make([]byte, 5)
	r.Equal(5, b.ReadAt(small, 7))
	r.Equal([]byte("hello"), small)
}

func TestBlockRoundTrip(t *testing.T) {
	for _, cfg := range []Config{
		{Kind: KindCache, Quantum: 1000},
		{Kind: KindPageRun, Order: 0, PageShift: 12},
		{Kind: KindPageRun, Order: 2, PageShift: 12},
		{Kind: KindScattered, Order: 0, PageShift: 12},
		{Kind: KindScattered, Order: 3, PageShift: 12},
	} {
		t.Run(string(cfg.Kind), func(t *testing.T) {
			a, err := New(cfg)
			require.NoError(t, err)
			testRoundTrip(t, a)
		})
	}
}

func TestCacheReuseZeroed(t *testing.T) {
	r := require.New(t)
	a, err := New(Config{Kind: KindCache, Quantum: 64})
	r.NoError(err)

	b, err := a.Alloc()
	r.NoError(err)
	b.WriteAt(bytes.Repeat([]byte{0xff}, 64), 0)
	a.Free(b)

	// a pooled buffer comes back zeroed
	b, err = a.Alloc()
	r.NoError(err)
	buf := make([]byte, 64)
	b.ReadAt(buf, 0)
	r.Equal(make([]byte, 64), buf)
	a.Free(b)
}

func TestBudget(t *testing.T) {
	for _, cfg := range []Config{
		{Kind: KindCache, Quantum: 64, MaxBlocks: 2},
		{Kind: KindPageRun, PageShift: 12, MaxBlocks: 2},
		{Kind: KindScattered, PageShift: 12, MaxBlocks: 2},
	} {
		t.Run(string(cfg.Kind), func(t *testing.T) {
			r := require.New(t)
			a, err := New(cfg)
			r.NoError(err)

			b1, err := a.Alloc()
			r.NoError(err)
			b2, err := a.Alloc()
			r.NoError(err)
			_, err = a.Alloc()
			r.ErrorIs(err, ErrNoMem)

			// freeing makes room again
			a.Free(b1)
			b3, err := a.Alloc()
			r.NoError(err)
			a.Free(b2)
			a.Free(b3)
		})
	}
}

func TestScatteredPageLookup(t *testing.T) {
	r := require.New(t)
	a, err := New(Config{Kind: KindScattered, Order: 2, PageShift: 12})
	r.NoError(err)
	b, err := a.Alloc()
	r.NoError(err)
	defer a.Free(b)

	// writes crossing page boundaries land in the right pages
	data := bytes.Repeat([]byte("wxyz"), 2048) // 8192 bytes, 2 pages
	r.Equal(len(data), b.WriteAt(data, 2048))

	r.Equal(data[:2048], b.Page(0).Bytes()[2048:])
	r.Equal(data[2048:2048+4096], b.Page(1).Bytes())
	r.Equal(data[2048+4096:], b.Page(2).Bytes()[:2048])

	// pages are distinct allocations
	r.NotSame(b.Page(0), b.Page(1))
}

func TestRunPagesAlias(t *testing.T) {
	r := require.New(t)
	a, err := New(Config{Kind: KindPageRun, Order: 1, PageShift: 12})
	r.NoError(err)
	b, err := a.Alloc()
	r.NoError(err)
	defer a.Free(b)

	b.WriteAt([]byte("second page"), 4096)
	r.Equal([]byte("second page"), b.Page(1).Bytes()[:11])
}

func TestPageRefs(t *testing.T) {
	r := require.New(t)
	a, err := New(Config{Kind: KindPageRun, PageShift: 12})
	r.NoError(err)
	b, err := a.Alloc()
	r.NoError(err)
	defer a.Free(b)

	pg := b.Page(0)
	r.EqualValues(0, pg.Refs())
	pg.Get()
	pg.Get()
	r.EqualValues(2, pg.Refs())
	pg.Put()
	pg.Put()
	r.EqualValues(0, pg.Refs())
	r.Panics(func() { pg.Put() })
}
