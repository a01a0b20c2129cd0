package shift

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShift(t *testing.T) {
	r := require.New(t)
	var s Shift = 12
	r.EqualValues(4096, s.Size())
	r.EqualValues(0, s.Roundup(0))
	r.EqualValues(4096, s.Roundup(1))
	r.EqualValues(4096, s.Roundup(4096))
	r.EqualValues(8192, s.Roundup(4097))
	r.EqualValues(100, s.Leftover(4196))
	r.EqualValues(0, s.Blocks(0))
	r.EqualValues(1, s.Blocks(4096))
	r.EqualValues(2, s.Blocks(4097))
}

func TestFor(t *testing.T) {
	r := require.New(t)
	s, err := For(4096)
	r.NoError(err)
	r.EqualValues(12, s)
	s, err = For(1)
	r.NoError(err)
	r.EqualValues(0, s)
	_, err = For(0)
	r.Error(err)
	_, err = For(-4)
	r.Error(err)
	_, err = For(1000)
	r.Error(err)

	r.Greater(int(Page()), 0)
}
