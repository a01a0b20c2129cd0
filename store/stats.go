package store

import "sync/atomic"

type (
	deviceStats struct {
		reads       atomic.Int64 // read calls that took the lock
		readBytes   atomic.Int64 // bytes returned by reads
		writes      atomic.Int64 // write calls that took the lock
		writeBytes  atomic.Int64 // bytes stored by writes
		trims       atomic.Int64 // successful trims
		faults      atomic.Int64 // resolved page faults
		faultErrs   atomic.Int64 // faults past size or into holes
		interrupts  atomic.Int64 // lock waits that were cancelled
		blocksAlloc atomic.Int64 // blocks allocated
		blocksFreed atomic.Int64 // blocks freed by trim
	}

	Stats struct {
		Reads       int64
		ReadBytes   int64
		Writes      int64
		WriteBytes  int64
		Trims       int64
		Faults      int64
		FaultErrs   int64
		Interrupts  int64
		BlocksAlloc int64
		BlocksFreed int64
	}
)

func (s *deviceStats) export() Stats {
	return Stats{
		Reads:       s.reads.Load(),
		ReadBytes:   s.readBytes.Load(),
		Writes:      s.writes.Load(),
		WriteBytes:  s.writeBytes.Load(),
		Trims:       s.trims.Load(),
		Faults:      s.faults.Load(),
		FaultErrs:   s.faultErrs.Load(),
		Interrupts:  s.interrupts.Load(),
		BlocksAlloc: s.blocksAlloc.Load(),
		BlocksFreed: s.blocksFreed.Load(),
	}
}
