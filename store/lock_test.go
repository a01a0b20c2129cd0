package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockInterrupted(t *testing.T) {
	r := require.New(t)
	d := testDev(t, Config{Quantum: 64, Qset: 4})
	writeAll(t, d, 0, []byte("hello"))

	// hold the device lock so operations have to wait
	r.NoError(d.lk.Lock(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.ReadAt(ctx, make([]byte, 5), 0)
	r.ErrorIs(err, ErrInterrupted)
	_, err = d.WriteAt(ctx, []byte("x"), 0)
	r.ErrorIs(err, ErrInterrupted)
	r.ErrorIs(d.Trim(ctx), ErrInterrupted)

	// nothing changed while interrupted
	d.lk.Unlock()
	r.EqualValues(5, d.Size())
	r.Equal([]byte("hello"), readAll(t, d, 0, 5))
	r.EqualValues(3, d.Stats().Interrupts)
}

func TestLockUncontended(t *testing.T) {
	r := require.New(t)
	l := newDevLock()
	// an already-cancelled context still takes a free lock
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.NoError(l.Lock(ctx))
	l.Unlock()
}

func TestLockHandoff(t *testing.T) {
	r := require.New(t)
	l := newDevLock()
	r.NoError(l.Lock(context.Background()))

	done := make(chan error)
	go func() {
		done <- l.Lock(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	l.Unlock()
	r.NoError(<-done)
	l.Unlock()
}
