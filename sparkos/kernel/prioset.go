package kernel

import "math/bits"

// PrioSet is a set of priorities 1..MaxActive; bit p stands for priority p.
type PrioSet uint64

func (s *PrioSet) Insert(p Priority) { *s |= 1 << p }
func (s *PrioSet) Remove(p Priority) { *s &^= 1 << p }

func (s PrioSet) Has(p Priority) bool { return s&(1<<p) != 0 }
func (s PrioSet) Empty() bool         { return s == 0 }
func (s PrioSet) Len() int            { return bits.OnesCount64(uint64(s)) }

// Max returns the highest priority in the set, or 0 if it is empty.
func (s PrioSet) Max() Priority {
	if s == 0 {
		return 0
	}
	return Priority(63 - bits.LeadingZeros64(uint64(s)))
}
