package kernel

type lockMode uint8

const (
	lockNone lockMode = iota
	lockSkipped
	lockApplied
)

// LockStatus is the result of Lock and the token Unlock consumes.
//
// It is Skipped when the lock was taken in interrupt context (the ceiling was
// left alone) or Applied with the ceiling in effect before the lock. The zero
// value, and any status already passed to Unlock, is neither.
type LockStatus struct {
	mode    lockMode
	prev    Priority
	ceiling Priority
	held    Priority
	depth   uint8
}

// Skipped reports whether the lock was a no-op taken in interrupt context.
func (s LockStatus) Skipped() bool { return s.mode == lockSkipped }

// Applied returns the ceiling that Unlock will restore.
func (s LockStatus) Applied() (prev Priority, ok bool) {
	if s.mode != lockApplied {
		return 0, false
	}
	return s.prev, true
}

// Ceiling returns the ceiling requested by Lock.
func (s LockStatus) Ceiling() Priority { return s.ceiling }

// Lock prevents preemption by any task at or below ceiling until the matching Unlock.
//
// In task context the current priority becomes max(current, ceiling); it never
// drops. In interrupt context the call is legal and inert, so code shared between
// handlers and tasks can lock unconditionally. A ceiling above MaxActive is fatal.
func (k *Kernel) Lock(ceiling Priority) LockStatus {
	k.critEnter()
	k.checkAlive()
	if ceiling > MaxActive {
		k.fatal(ErrCeilingRange)
	}
	if k.InterruptContext() {
		k.stats.LocksSkipped++
		k.critExit()
		return LockStatus{mode: lockSkipped, ceiling: ceiling}
	}
	if k.lockDepth == ^uint8(0) {
		k.fatal(ErrLockNest)
	}

	prev := k.currPrio
	if ceiling > k.currPrio {
		k.currPrio = ceiling
	}
	k.lockDepth++
	st := LockStatus{
		mode:    lockApplied,
		prev:    prev,
		ceiling: ceiling,
		held:    k.currPrio,
		depth:   k.lockDepth,
	}
	k.stats.LocksApplied++
	k.trace(Record{Kind: SchedLock, Nest: k.intNest, Prio: k.currPrio, Arg: uint8(prev)})
	k.critExit()
	return st
}

// Unlock releases the lock that produced st and consumes st.
//
// Locks must be released innermost first. If restoring the previous ceiling makes
// a ready task eligible, it is dispatched before Unlock returns. Releasing a
// consumed status, releasing out of order, or releasing a task lock from
// interrupt context is fatal.
func (k *Kernel) Unlock(st *LockStatus) {
	k.critEnter()
	k.checkAlive()
	switch st.mode {
	case lockSkipped:
		st.mode = lockNone
		k.critExit()
		return
	case lockApplied:
	default:
		k.fatal(ErrNotLocked)
	}
	if k.InterruptContext() {
		k.fatal(ErrLockContext)
	}
	if st.depth != k.lockDepth || st.held != k.currPrio {
		k.fatal(ErrLockOrder)
	}

	released := k.currPrio
	k.currPrio = st.prev
	k.lockDepth--
	st.mode = lockNone
	k.trace(Record{Kind: SchedUnlock, Nest: k.intNest, Prio: st.prev, Arg: uint8(released)})

	if st.prev < released {
		if p := k.eligible(); p != 0 {
			k.dispatch(p)
		}
	}
	k.critExit()
}
