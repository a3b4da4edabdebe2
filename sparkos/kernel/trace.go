package kernel

// Kind identifies a trace record.
type Kind uint8

const (
	ISREntry    Kind = iota + 1 // Nest: depth after entry, Prio: ceiling
	ISRExit                     // Nest: depth after exit, Prio: ceiling
	SchedLock                   // Prio: new ceiling, Arg: previous ceiling
	SchedUnlock                 // Prio: restored ceiling, Arg: released ceiling
	Dispatch                    // Prio: task handed to the scheduler, Arg: ceiling
	Activate                    // Prio: task starting a step, Arg: preempted level
	Resume                      // Prio: level resumed after activations
	Post                        // Prio: task made ready, Arg: pending activations (saturating)
)

func (k Kind) String() string {
	switch k {
	case ISREntry:
		return "isr-entry"
	case ISRExit:
		return "isr-exit"
	case SchedLock:
		return "sched-lock"
	case SchedUnlock:
		return "sched-unlock"
	case Dispatch:
		return "dispatch"
	case Activate:
		return "activate"
	case Resume:
		return "resume"
	case Post:
		return "post"
	default:
		return "unknown"
	}
}

// Record is one kernel trace event.
type Record struct {
	Kind Kind
	Nest uint8
	Prio Priority
	Arg  uint8
}

// Tracer receives kernel trace records. Trace runs with interrupts masked and
// must not block or call back into the kernel.
type Tracer interface {
	Trace(r Record)
}
