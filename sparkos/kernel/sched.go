package kernel

// Scheduler is the ready queue and dispatcher the kernel core drives.
//
// Both methods are called with interrupts masked.
type Scheduler interface {
	// HighestReady returns the priority of the most urgent ready task, or 0 when
	// nothing above idle is ready.
	HighestReady() Priority
	// Dispatch switches to the task at priority p, or arranges for the switch to
	// happen as soon as the CPU leaves interrupt context.
	Dispatch(p Priority)
}
