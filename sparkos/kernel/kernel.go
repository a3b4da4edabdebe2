// Package kernel is the preemptive, priority-based, run-to-completion core: interrupt
// nesting, the priority-ceiling scheduler lock, and a reference ready table.
//
// All kernel state is owned by a Kernel value. Every read-modify-write of the nesting
// counter or the current priority happens with interrupts masked through hal.CPU; the
// interrupt mask is the only concurrency control, as on a single core.
package kernel

import "sparkrtc/hal"

// MaxActive is the highest task priority. Priority 0 is the idle level.
const MaxActive = 63

// Priority is a task priority or a scheduler ceiling. Larger is more urgent.
type Priority uint8

// Stats counts kernel activity since New.
type Stats struct {
	Interrupts   uint64
	MaxNest      uint8
	Dispatches   uint64
	Activations  uint64
	Posts        uint64
	LocksApplied uint64
	LocksSkipped uint64
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithScheduler replaces the built-in task table as the source of ready priorities
// and the dispatch target. AddTask and Post are unavailable afterwards.
func WithScheduler(s Scheduler) Option {
	return func(k *Kernel) {
		if s != nil {
			k.sched = s
		}
	}
}

// WithTracer installs a trace sink. It is called with interrupts masked.
func WithTracer(t Tracer) Option {
	return func(k *Kernel) { k.tracer = t }
}

// WithFaultHandler installs a handler run once, on the first fault of this kernel.
// It overrides the process-wide handler from SetFaultHandler.
func WithFaultHandler(fn func(FaultInfo)) Option {
	return func(k *Kernel) { k.onFault = fn }
}

// Kernel is one instance of the kernel core.
type Kernel struct {
	cpu    hal.CPU
	sched  Scheduler
	tasks  taskTable
	tracer Tracer

	intNest   uint8
	currPrio  Priority
	lockDepth uint8

	// handlerTasks counts task steps running in handler mode, activated by an
	// outermost ExitInterrupt on a CPU that cannot pend the switch.
	handlerTasks uint8

	// crit counts nested kernel critical sections; outer is the interrupt state
	// saved by the outermost one.
	crit  int
	outer hal.IRQState

	stats Stats

	onFault func(FaultInfo)
	fault   *Fault
}

// New creates a kernel on cpu in the idle state: nesting 0, ceiling 0.
func New(cpu hal.CPU, opts ...Option) *Kernel {
	k := &Kernel{cpu: cpu}
	k.tasks.k = k
	k.sched = &k.tasks
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// NestingDepth returns the number of active interrupt handlers.
func (k *Kernel) NestingDepth() uint8 {
	k.critEnter()
	n := k.intNest
	k.critExit()
	return n
}

// CurrentPriority returns the ceiling in effect: the running task's priority,
// raised by any scheduler lock it holds.
func (k *Kernel) CurrentPriority() Priority {
	k.critEnter()
	p := k.currPrio
	k.critExit()
	return p
}

// LockDepth returns the number of applied scheduler locks not yet released.
func (k *Kernel) LockDepth() uint8 {
	k.critEnter()
	n := k.lockDepth
	k.critExit()
	return n
}

// InterruptContext reports whether the caller runs in an interrupt handler.
//
// While a task activated in handler mode is stepping, the hardware status still
// reads as a handler; the task counts as task context until a nested handler
// calls EnterInterrupt.
func (k *Kernel) InterruptContext() bool {
	if k.handlerTasks > 0 {
		return k.intNest > 0
	}
	return k.cpu.InterruptStatus() != 0
}

// Stats returns a copy of the activity counters.
func (k *Kernel) Stats() Stats {
	k.critEnter()
	s := k.stats
	k.critExit()
	return s
}

// Faulted returns the first fault of this kernel, or nil.
func (k *Kernel) Faulted() *Fault {
	k.critEnter()
	f := k.fault
	k.critExit()
	return f
}

func (k *Kernel) critEnter() {
	s := k.cpu.DisableInterrupts()
	if k.crit == 0 {
		k.outer = s
	}
	k.crit++
}

func (k *Kernel) critExit() {
	k.crit--
	if k.crit == 0 {
		k.cpu.RestoreInterrupts(k.outer)
	}
}

// eligible returns the highest ready priority above the current ceiling, or 0.
// Interrupts must be masked.
func (k *Kernel) eligible() Priority {
	p := k.sched.HighestReady()
	if p <= k.currPrio {
		return 0
	}
	return p
}

// dispatch hands p to the scheduler. Interrupts must be masked.
func (k *Kernel) dispatch(p Priority) {
	k.stats.Dispatches++
	k.trace(Record{Kind: Dispatch, Nest: k.intNest, Prio: p, Arg: uint8(k.currPrio)})
	k.sched.Dispatch(p)
}

func (k *Kernel) trace(r Record) {
	if k.tracer != nil {
		k.tracer.Trace(r)
	}
}
