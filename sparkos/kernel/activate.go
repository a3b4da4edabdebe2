package kernel

import "sparkrtc/hal"

func (t *taskTable) HighestReady() Priority {
	return t.ready.Max()
}

// Dispatch runs p now, unless the CPU is still in a handler and can pend the switch.
func (t *taskTable) Dispatch(p Priority) {
	k := t.k
	if k.InterruptContext() {
		if pender, ok := k.cpu.(hal.SwitchPender); ok {
			if !t.switchPending {
				t.switchPending = true
				pender.PendSwitch(t.pendedSwitch)
			}
			return
		}
	}
	t.activate(p)
}

// pendedSwitch runs in thread mode after the outermost handler returned.
func (t *taskTable) pendedSwitch() {
	k := t.k
	k.critEnter()
	t.switchPending = false
	if k.fault == nil {
		if p := k.eligible(); p != 0 {
			t.activate(p)
		}
	}
	k.critExit()
}

// activate runs every task above the current ceiling, most urgent first, then
// returns to the preempted level. Interrupts are masked on entry and exit and
// enabled while a task steps.
func (t *taskTable) activate(p Priority) {
	k := t.k
	pin := k.currPrio
	for p != 0 {
		st := &t.slots[p]
		st.pending--
		if st.pending == 0 {
			t.ready.Remove(p)
		}
		k.currPrio = p
		k.stats.Activations++
		k.trace(Record{Kind: Activate, Nest: k.intNest, Prio: p, Arg: uint8(pin)})

		depth := k.lockDepth
		ctx := Context{k: k, prio: p, name: st.name}
		handler := k.cpu.InterruptStatus() != 0
		if handler {
			k.handlerTasks++
		}

		crit := k.crit
		k.crit = 0
		k.cpu.RestoreInterrupts(k.outer)
		st.task.Step(&ctx)
		k.outer = k.cpu.DisableInterrupts()
		k.crit = crit
		if handler {
			k.handlerTasks--
		}

		if ctx.n != 0 || k.lockDepth != depth {
			k.fatal(ErrLockLeaked)
		}

		p = t.ready.Max()
		if p <= pin {
			p = 0
		}
	}
	k.currPrio = pin
	k.trace(Record{Kind: Resume, Nest: k.intNest, Prio: pin})
}
