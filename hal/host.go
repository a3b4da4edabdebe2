//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type hostHAL struct {
	logger *hostLogger
	led    *hostLED
	cpu    *SimCPU
	fb     *MemFramebuffer
	t      *hostTime
	serial Serial
}

// HostConfig selects optional host devices.
type HostConfig struct {
	// Log receives log lines; defaults to stdout.
	Log io.Writer
	// Trace receives binary trace frames; nil disables the trace port.
	Trace io.Writer
}

// New returns a host HAL implementation backed by a simulated CPU.
func New() HAL {
	return NewHost(HostConfig{})
}

// NewHost returns a host HAL with explicit device wiring.
func NewHost(cfg HostConfig) HAL {
	w := cfg.Log
	if w == nil {
		w = os.Stdout
	}
	logger := &hostLogger{w: w}
	h := &hostHAL{
		logger: logger,
		led:    &hostLED{logger: logger},
		cpu:    NewSimCPU(),
		fb:     NewFramebuffer(320, 240),
		t:      newHostTime(),
	}
	if cfg.Trace != nil {
		h.serial = cfg.Trace
	}
	return h
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) LED() LED         { return h.led }
func (h *hostHAL) CPU() CPU         { return h.cpu }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }
func (h *hostHAL) Serial() Serial   { return h.serial }

// SimCPUOf returns the simulated CPU behind a host HAL, or nil for other HALs.
func SimCPUOf(h HAL) *SimCPU {
	if hh, ok := h.(*hostHAL); ok {
		return hh.cpu
	}
	return nil
}

type hostDisplay struct {
	fb *MemFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type hostLED struct {
	mu     sync.Mutex
	on     bool
	logger *hostLogger
}

func (l *hostLED) High() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on {
		return
	}
	l.on = true
	l.logger.WriteLineString("led: HIGH")
}

func (l *hostLED) Low() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.on {
		return
	}
	l.on = false
	l.logger.WriteLineString("led: LOW")
}
