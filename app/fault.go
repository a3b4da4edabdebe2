package app

import (
	"fmt"
	"strings"

	"sparkrtc/hal"
	"sparkrtc/sparkos/kernel"
	"sparkrtc/sparkos/monitor"
)

// faultHandler logs a kernel fault with its stack and puts the fault screen up.
// It runs with interrupts masked and must not block: the firmware loop halts
// once the fault reaches it.
func faultHandler(h hal.HAL) func(kernel.FaultInfo) {
	return func(info kernel.FaultInfo) {
		if l := h.Logger(); l != nil {
			l.WriteLineString(fmt.Sprintf("spark: %v (nest=%d ceiling=%d locks=%d)",
				info.Fault.Err, info.Fault.Nest, info.Fault.Ceiling, info.Fault.LockDepth))
			for _, line := range strings.Split(string(info.Stack), "\n") {
				if line != "" {
					l.WriteLineString(line)
				}
			}
		}
		if fb := framebuffer(h); fb != nil {
			_ = monitor.DrawFault(fb, info)
		}
	}
}
