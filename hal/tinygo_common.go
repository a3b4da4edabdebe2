//go:build tinygo && baremetal

package hal

import (
	"machine"
	"time"
)

type tinyGoDisplay struct {
	fb Framebuffer
}

func (d tinyGoDisplay) Framebuffer() Framebuffer { return d.fb }

// tickSource turns elapsed time into 1ms ticks. Ticks missed while the consumer
// is busy are caught up on the next wakeup, as long as the channel has room.
type tickSource struct {
	ch    chan uint64
	start time.Time
	seq   uint64
}

func newTickSource() *tickSource {
	t := &tickSource{ch: make(chan uint64, 64), start: time.Now()}
	go t.run()
	return t
}

func (t *tickSource) run() {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for now := range ticker.C {
		due := uint64(now.Sub(t.start) / time.Millisecond)
		for t.seq < due {
			select {
			case t.ch <- t.seq + 1:
				t.seq++
			default:
				t.seq = due
			}
		}
	}
}

func (t *tickSource) Ticks() <-chan uint64 { return t.ch }

// consoleLogger writes CRLF-terminated lines to the board console.
type consoleLogger struct {
	port machine.Serialer
}

func (l *consoleLogger) WriteLineString(s string) {
	l.port.Write([]byte(s))
	l.port.Write([]byte("\r\n"))
}

func (l *consoleLogger) WriteLineBytes(b []byte) {
	l.port.Write(b)
	l.port.Write([]byte("\r\n"))
}

type pinLED struct {
	pin machine.Pin
}

func (l *pinLED) High() { l.pin.High() }
func (l *pinLED) Low()  { l.pin.Low() }

// tracePort carries binary trace frames on a UART of its own.
type tracePort struct {
	uart *machine.UART
}

// newTracePort returns nil when uart is also the console: log text between
// frames would read as damaged frames on the host.
func newTracePort(uart *machine.UART) Serial {
	if uart == nil || machine.Serial == machine.Serialer(uart) {
		return nil
	}
	uart.Configure(machine.UARTConfig{BaudRate: 115200})
	return &tracePort{uart: uart}
}

func (p *tracePort) Write(b []byte) (int, error) {
	return p.uart.Write(b)
}
