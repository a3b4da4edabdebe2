package kernel

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Contract violations. The kernel state can no longer be trusted after any of
// these, so they halt the kernel instead of being returned.
var (
	ErrNestingUnderflow = errors.New("interrupt exit without matching entry")
	ErrNestingOverflow  = errors.New("interrupt nesting overflow")
	ErrCeilingRange     = errors.New("lock ceiling out of range")
	ErrNotLocked        = errors.New("unlock without matching lock")
	ErrLockOrder        = errors.New("scheduler locks released out of order")
	ErrLockContext      = errors.New("task lock released in interrupt context")
	ErrLockNest         = errors.New("scheduler lock nesting too deep")
	ErrLockLeaked       = errors.New("task returned holding a scheduler lock")
	ErrNoTask           = errors.New("no task at priority")
	ErrPostOverflow     = errors.New("too many pending activations")
	ErrFaulted          = errors.New("kernel halted by an earlier fault")
)

// Setup errors returned by AddTask.
var (
	ErrBadPriority       = errors.New("priority out of range")
	ErrPriorityTaken     = errors.New("priority already in use")
	ErrNilTask           = errors.New("nil task")
	ErrExternalScheduler = errors.New("kernel uses an external scheduler")
)

// Fault is the panic value of a halted kernel.
type Fault struct {
	Err       error
	Nest      uint8
	Ceiling   Priority
	LockDepth uint8
}

func (f *Fault) Error() string {
	return fmt.Sprintf("kernel fault: %v (nest=%d ceiling=%d locks=%d)", f.Err, f.Nest, f.Ceiling, f.LockDepth)
}

func (f *Fault) Unwrap() error { return f.Err }

// FaultInfo is passed to fault handlers.
type FaultInfo struct {
	Fault *Fault
	Stack []byte
}

var faultHandler atomic.Value // func(FaultInfo)

// SetFaultHandler installs the process-wide fault handler used by kernels
// without WithFaultHandler. It must not panic.
func SetFaultHandler(fn func(FaultInfo)) {
	faultHandler.Store(fn)
}

// fatal halts the kernel. Interrupts stay masked: nothing may run on top of a
// corrupted nesting counter or ceiling.
func (k *Kernel) fatal(err error) {
	k.cpu.DisableInterrupts()
	f := &Fault{Err: err, Nest: k.intNest, Ceiling: k.currPrio, LockDepth: k.lockDepth}
	if k.fault == nil {
		k.fault = f
		info := FaultInfo{Fault: f, Stack: captureStack()}
		if k.onFault != nil {
			k.onFault(info)
		} else if v := faultHandler.Load(); v != nil {
			if fn, ok := v.(func(FaultInfo)); ok && fn != nil {
				fn(info)
			}
		}
	}
	panic(f)
}

func (k *Kernel) checkAlive() {
	if k.fault != nil {
		k.fatal(ErrFaulted)
	}
}
