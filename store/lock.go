package store

import "context"

// devLock is a mutex whose acquisition can be abandoned while waiting.
// Every public device operation takes it for its full duration; a cancelled
// wait surfaces as ErrInterrupted with no state changed.
type devLock chan struct{}

func newDevLock() devLock {
	return make(devLock, 1)
}

func (l devLock) Lock(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	default:
	}
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ErrInterrupted
	}
}

func (l devLock) Unlock() {
	<-l
}
