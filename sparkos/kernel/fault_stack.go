//go:build !tinygo

package kernel

import "runtime"

const faultStackBytes = 4096

// captureStack returns the faulting goroutine's stack, truncated to faultStackBytes.
func captureStack() []byte {
	buf := make([]byte, faultStackBytes)
	n := runtime.Stack(buf, false)
	return buf[:n]
}
