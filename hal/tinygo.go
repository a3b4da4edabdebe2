//go:build tinygo && baremetal

package hal

import (
	"machine"
)

type tinyGoHAL struct {
	logger *consoleLogger
	led    *pinLED
	cpu    tinyGoCPU
	fb     Framebuffer
	t      *tickSource
	serial Serial
}

// New returns the bare-metal HAL: log lines on the board console, trace frames at
// 115200 8N1 on UART0 when it is not the console, the board LED, and the panel
// from newDisplay (a RAM-only framebuffer when none is wired).
func New() HAL {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	fb, err := newDisplay()
	if err != nil {
		fb = NewFramebuffer(320, 240)
	}

	return &tinyGoHAL{
		logger: &consoleLogger{port: machine.Serial},
		led:    &pinLED{pin: ledPin},
		fb:     fb,
		t:      newTickSource(),
		serial: newTracePort(machine.UART0),
	}
}

func (h *tinyGoHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHAL) LED() LED         { return h.led }
func (h *tinyGoHAL) CPU() CPU         { return h.cpu }
func (h *tinyGoHAL) Display() Display { return tinyGoDisplay{fb: h.fb} }
func (h *tinyGoHAL) Time() Time       { return h.t }
func (h *tinyGoHAL) Serial() Serial   { return h.serial }
