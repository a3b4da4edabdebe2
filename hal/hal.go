package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

var ErrNotImplemented = errors.New("not implemented")

// IRQState is the interrupt-enable state saved by CPU.DisableInterrupts.
type IRQState uintptr

// CPU is the processor-level interrupt control the kernel core depends on.
//
// DisableInterrupts masks all maskable interrupts and returns the previous state.
// RestoreInterrupts puts back a state returned by DisableInterrupts; pairs nest.
// InterruptStatus returns the active exception number (IPSR on Cortex-M), 0 in thread mode.
type CPU interface {
	DisableInterrupts() IRQState
	RestoreInterrupts(state IRQState)
	InterruptStatus() uint32
}

// SwitchPender is implemented by CPUs that can defer a context switch until the
// outermost exception returns (PendSV on Cortex-M).
//
// fn runs in thread mode with interrupts enabled.
type SwitchPender interface {
	PendSwitch(fn func())
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides a base tick stream.
//
// The tick duration is platform-defined (1ms on every current target).
type Time interface {
	Ticks() <-chan uint64
}

// Serial is a raw byte port used for binary trace output.
type Serial interface {
	Write(p []byte) (int, error)
}

// HAL provides the only contact point between the kernel and the outside world.
type HAL interface {
	Logger() Logger
	LED() LED
	CPU() CPU
	Display() Display
	Time() Time
	Serial() Serial
}
