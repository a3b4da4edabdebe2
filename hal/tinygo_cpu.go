//go:build tinygo

package hal

import "runtime/interrupt"

// tinyGoCPU maps the kernel's interrupt control onto TinyGo's runtime/interrupt.
type tinyGoCPU struct{}

func (tinyGoCPU) DisableInterrupts() IRQState {
	return IRQState(interrupt.Disable())
}

func (tinyGoCPU) RestoreInterrupts(state IRQState) {
	interrupt.Restore(interrupt.State(state))
}

func (tinyGoCPU) InterruptStatus() uint32 {
	return readIPSR()
}
