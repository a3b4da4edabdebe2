package monitor

import (
	"fmt"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"sparkrtc/hal"
	"sparkrtc/sparkos/kernel"
	"sparkrtc/sparkos/trace"
)

const (
	headerHeight   = 12
	timelineHeight = 72
)

// Monitor lays out a status header, a ceiling timeline and a trace console
// on one framebuffer.
type Monitor struct {
	fb       hal.Framebuffer
	header   *fbDisplay
	plot     *fbDisplay
	console  *Console
	timeline *Timeline

	// names labels console lines; it may be nil.
	names func(kernel.Priority) string
}

// New creates a monitor covering all of fb.
func New(fb hal.Framebuffer) *Monitor {
	d := newFBDisplay(fb)
	m := &Monitor{
		fb:     fb,
		header: d.region(0, 0, d.width, headerHeight),
		plot:   d.region(0, headerHeight, d.width, timelineHeight),
	}
	m.timeline = NewTimeline(m.plot.width)
	m.console = newConsole(d.region(0, headerHeight+timelineHeight, d.width, d.hgt-headerHeight-timelineHeight))
	return m
}

// SetTaskNames installs the function used to name tasks in console lines.
func (m *Monitor) SetTaskNames(fn func(kernel.Priority) string) { m.names = fn }

// Timeline returns the monitor's timeline.
func (m *Monitor) Timeline() *Timeline { return m.timeline }

// Console returns the monitor's trace console.
func (m *Monitor) Console() *Console { return m.console }

// Observe feeds trace records to the timeline. Activations are also logged to
// the console.
func (m *Monitor) Observe(recs []kernel.Record) {
	for _, r := range recs {
		m.timeline.Observe(r)
		if r.Kind != kernel.Activate {
			continue
		}
		line := trace.Format(r)
		if m.names != nil {
			if name := m.names(r.Prio); name != "" {
				line += " " + name
			}
		}
		m.console.Println(line)
	}
}

// Render samples snap into the timeline, redraws the header and the timeline,
// and presents the framebuffer.
func (m *Monitor) Render(snap trace.Snapshot) error {
	m.timeline.Sample(snap.Ceiling, snap.Nest, snap.LockDepth)

	bg := colorBackground
	if snap.Faulted {
		bg = colorFault
	}
	_ = m.header.FillRectangle(0, 0, int16(m.header.width), int16(m.header.hgt), bg)
	tinyfont.WriteLine(m.header, &proggy.TinySZ8pt7b, 2, 9, fmt.Sprintf(
		"ceil %2d nest %d locks %d irq %d act %d drop %d",
		snap.Ceiling, snap.Nest, snap.LockDepth, snap.Stats.Interrupts, snap.Stats.Activations, snap.Dropped,
	), colorText)

	m.timeline.draw(m.plot)
	return m.fb.Present()
}
