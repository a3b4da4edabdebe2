//go:build tinygo

package kernel

// TinyGo cannot walk goroutine stacks; the fault record carries no trace.
func captureStack() []byte {
	return nil
}
