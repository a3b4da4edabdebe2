package kernel

const maxPending = ^uint16(0)

// Task is a run-to-completion unit of execution. Step runs once per activation,
// with interrupts enabled, and must return without blocking.
type Task interface {
	Step(*Context)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(*Context)

func (f TaskFunc) Step(ctx *Context) { f(ctx) }

type taskState struct {
	task    Task
	name    string
	pending uint16
}

// taskTable is the built-in Scheduler: one task per priority, each with a count
// of pending activations.
type taskTable struct {
	k     *Kernel
	slots [MaxActive + 1]taskState
	ready PrioSet

	switchPending bool
}

// AddTask registers t at priority p.
func (k *Kernel) AddTask(p Priority, name string, t Task) error {
	if k.sched != Scheduler(&k.tasks) {
		return ErrExternalScheduler
	}
	if t == nil {
		return ErrNilTask
	}
	if p == 0 || p > MaxActive {
		return ErrBadPriority
	}

	k.critEnter()
	defer k.critExit()
	if k.tasks.slots[p].task != nil {
		return ErrPriorityTaken
	}
	k.tasks.slots[p] = taskState{task: t, name: name}
	return nil
}

// TaskName returns the name registered at p, or "" if none.
func (k *Kernel) TaskName(p Priority) string {
	if p > MaxActive {
		return ""
	}
	k.critEnter()
	defer k.critExit()
	return k.tasks.slots[p].name
}

// Pending returns the number of activations queued for the task at p.
func (k *Kernel) Pending(p Priority) int {
	if p > MaxActive {
		return 0
	}
	k.critEnter()
	defer k.critExit()
	return int(k.tasks.slots[p].pending)
}

// Post queues one activation of the task at p. It is safe from handlers and tasks.
//
// From a task, a newly eligible task preempts the caller before Post returns. From
// a handler, the switch waits for the outermost ExitInterrupt.
func (k *Kernel) Post(p Priority) {
	k.critEnter()
	k.checkAlive()
	if p == 0 || p > MaxActive || k.tasks.slots[p].task == nil {
		k.fatal(ErrNoTask)
	}
	st := &k.tasks.slots[p]
	if st.pending == maxPending {
		k.fatal(ErrPostOverflow)
	}
	st.pending++
	k.tasks.ready.Insert(p)
	k.stats.Posts++

	arg := uint8(0xFF)
	if st.pending < 0xFF {
		arg = uint8(st.pending)
	}
	k.trace(Record{Kind: Post, Nest: k.intNest, Prio: p, Arg: arg})

	if k.intNest == 0 && !k.InterruptContext() {
		if q := k.eligible(); q != 0 {
			k.dispatch(q)
		}
	}
	k.critExit()
}
