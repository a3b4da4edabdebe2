package kernel

// EnterInterrupt must be the first call of every interrupt handler that may
// make a task ready.
func (k *Kernel) EnterInterrupt() {
	k.critEnter()
	k.checkAlive()
	if k.intNest == ^uint8(0) {
		k.fatal(ErrNestingOverflow)
	}
	k.intNest++
	k.stats.Interrupts++
	if k.intNest > k.stats.MaxNest {
		k.stats.MaxNest = k.intNest
	}
	k.trace(Record{Kind: ISREntry, Nest: k.intNest, Prio: k.currPrio})
	k.critExit()
}

// ExitInterrupt must be the last call of every handler that called EnterInterrupt.
//
// Leaving the outermost handler runs the scheduler: if a task above the current
// ceiling is ready it is dispatched before ExitInterrupt returns. Nested returns
// never schedule. Calling it with no handler active is fatal.
func (k *Kernel) ExitInterrupt() {
	k.critEnter()
	k.checkAlive()
	if k.intNest == 0 {
		k.fatal(ErrNestingUnderflow)
	}
	k.intNest--
	k.trace(Record{Kind: ISRExit, Nest: k.intNest, Prio: k.currPrio})
	if k.intNest == 0 {
		if p := k.eligible(); p != 0 {
			k.dispatch(p)
		}
	}
	k.critExit()
}
