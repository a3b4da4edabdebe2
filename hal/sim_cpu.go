package hal

import "errors"

const maxExceptionNest = 32

var (
	ErrInterruptsMasked = errors.New("interrupts masked")
	ErrBadException     = errors.New("invalid exception number")
	ErrExceptionNest    = errors.New("exception nesting too deep")
	ErrNoException      = errors.New("no active exception")
)

// SimCPU models a single-core Cortex-M style processor for the host.
//
// PRIMASK gates Raise; IPSR reports the innermost active exception. Everything runs on
// the caller's goroutine: an "interrupt" is the synchronous execution of its handler
// between Raise and Return, exactly where a real core would preempt. SimCPU is not safe
// for concurrent use.
type SimCPU struct {
	primask bool

	active [maxExceptionNest]uint32
	depth  int

	pended []func()

	masks    uint64
	restores uint64
	raised   uint64
}

// NewSimCPU returns a CPU in thread mode with interrupts enabled.
func NewSimCPU() *SimCPU {
	return &SimCPU{}
}

func (c *SimCPU) DisableInterrupts() IRQState {
	prev := c.primask
	c.primask = true
	c.masks++
	if prev {
		return 1
	}
	return 0
}

func (c *SimCPU) RestoreInterrupts(state IRQState) {
	c.primask = state != 0
	c.restores++
}

func (c *SimCPU) InterruptStatus() uint32 {
	if c.depth == 0 {
		return 0
	}
	return c.active[c.depth-1]
}

// Masked reports whether PRIMASK is set.
func (c *SimCPU) Masked() bool { return c.primask }

// Depth returns the number of active exceptions.
func (c *SimCPU) Depth() int { return c.depth }

// MaskCount returns how many times interrupts were disabled.
func (c *SimCPU) MaskCount() uint64 { return c.masks }

// Raised returns how many exceptions were taken.
func (c *SimCPU) Raised() uint64 { return c.raised }

// Raise enters exception exc (>= 16 for external interrupts, as on Cortex-M).
//
// An exception cannot be taken while PRIMASK is set.
func (c *SimCPU) Raise(exc uint32) error {
	if exc == 0 {
		return ErrBadException
	}
	if c.primask {
		return ErrInterruptsMasked
	}
	if c.depth >= maxExceptionNest {
		return ErrExceptionNest
	}
	c.active[c.depth] = exc
	c.depth++
	c.raised++
	return nil
}

// Return leaves the innermost exception. When the last one returns, pended
// switches run in thread mode in the order they were pended.
func (c *SimCPU) Return() error {
	if c.depth == 0 {
		return ErrNoException
	}
	c.depth--
	c.active[c.depth] = 0
	if c.depth == 0 {
		c.runPended()
	}
	return nil
}

// PendSwitch defers fn to the outermost exception return. In thread mode it runs now.
func (c *SimCPU) PendSwitch(fn func()) {
	if fn == nil {
		return
	}
	if c.depth == 0 {
		fn()
		return
	}
	c.pended = append(c.pended, fn)
}

func (c *SimCPU) runPended() {
	for len(c.pended) > 0 {
		fn := c.pended[0]
		c.pended = c.pended[1:]
		fn()
	}
	c.pended = nil
}
