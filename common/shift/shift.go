package shift

import (
	"fmt"
	"math/bits"
	"os"
)

// Shift is a power-of-two size expressed as a bit shift.
type Shift int

func (b Shift) Size() int64 {
	return 1 << b
}

func (b Shift) Roundup(i int64) int64 {
	m1 := b.Size() - 1
	return (i + m1) &^ m1
}

func (b Shift) Leftover(i int64) int64 {
	return i & (b.Size() - 1)
}

func (b Shift) Blocks(i int64) int64 {
	m1 := b.Size() - 1
	return (i + m1) >> b
}

// For returns the shift for size, which must be a positive power of two.
func For(size int) (Shift, error) {
	if size <= 0 || size&(size-1) != 0 {
		return 0, fmt.Errorf("%d is not a positive power of two", size)
	}
	return Shift(bits.TrailingZeros(uint(size))), nil
}

// Page is the shift for the host page size.
func Page() Shift {
	s, err := For(os.Getpagesize())
	if err != nil {
		panic(err)
	}
	return s
}
