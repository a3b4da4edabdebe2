package trace

import (
	"runtime"
	"sync/atomic"

	"sparkrtc/sparkos/kernel"
)

// Snapshot is the kernel state shown by monitors.
type Snapshot struct {
	Nest      uint8
	Ceiling   kernel.Priority
	LockDepth uint8
	Stats     kernel.Stats
	Dropped   uint32
	Faulted   bool
}

// Capture reads a snapshot from k. ring may be nil.
func Capture(k *kernel.Kernel, ring *Ring) Snapshot {
	s := Snapshot{
		Nest:      k.NestingDepth(),
		Ceiling:   k.CurrentPriority(),
		LockDepth: k.LockDepth(),
		Stats:     k.Stats(),
		Faulted:   k.Faulted() != nil,
	}
	if ring != nil {
		s.Dropped = ring.Dropped()
	}
	return s
}

// Status publishes snapshots from one writer to any number of readers.
//
// The sequence number is odd while a write is in progress; readers retry until
// they see the same even sequence before and after copying.
type Status struct {
	seq  atomic.Uint32
	snap Snapshot
}

// Publish stores s and returns its sequence number.
func (st *Status) Publish(s Snapshot) uint32 {
	st.seq.Add(1)
	st.snap = s
	return st.seq.Add(1)
}

// Load returns the latest snapshot and its sequence number. A zero sequence
// means nothing was published yet.
func (st *Status) Load() (Snapshot, uint32) {
	for {
		seq := st.seq.Load()
		if seq&1 != 0 {
			runtime.Gosched()
			continue
		}
		s := st.snap
		if st.seq.Load() == seq {
			return s, seq
		}
	}
}
