// Package trace collects, publishes and serializes kernel trace records.
package trace

import (
	"sync/atomic"

	"sparkrtc/sparkos/kernel"
)

// RingSlots is the capacity of a Ring.
const RingSlots = 256

// Ring is a fixed-size single-producer, single-consumer queue of kernel records.
// It never allocates; when full, new records are dropped and counted.
//
// The producer is the kernel, which calls Trace with interrupts masked.
type Ring struct {
	_       [0]func() // prevent accidental copying.
	head    atomic.Uint32
	tail    atomic.Uint32
	dropped atomic.Uint32
	slots   [RingSlots]kernel.Record
}

var _ kernel.Tracer = (*Ring)(nil)

// Trace implements kernel.Tracer.
func (r *Ring) Trace(rec kernel.Record) {
	if !r.TryPut(rec) {
		r.dropped.Add(1)
	}
}

// TryPut enqueues rec, returning false if the ring is full.
func (r *Ring) TryPut(rec kernel.Record) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= RingSlots {
		return false
	}
	r.slots[head%RingSlots] = rec
	r.head.Store(head + 1)
	return true
}

// TryGet dequeues the oldest record.
func (r *Ring) TryGet() (kernel.Record, bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail == head {
		return kernel.Record{}, false
	}
	rec := r.slots[tail%RingSlots]
	r.tail.Store(tail + 1)
	return rec, true
}

// Drain appends every queued record to dst and returns the extended slice.
func (r *Ring) Drain(dst []kernel.Record) []kernel.Record {
	for {
		rec, ok := r.TryGet()
		if !ok {
			return dst
		}
		dst = append(dst, rec)
	}
}

// Len returns the number of queued records.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Dropped returns the number of records lost to a full ring.
func (r *Ring) Dropped() uint32 {
	return r.dropped.Load()
}
