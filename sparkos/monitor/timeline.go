package monitor

import (
	"image/color"

	"sparkrtc/sparkos/kernel"
)

var (
	colorBackground = color.RGBA{A: 255}
	colorCeiling    = color.RGBA{R: 40, G: 160, B: 255, A: 255}
	colorLocked     = color.RGBA{R: 255, G: 190, B: 0, A: 255}
	colorNest       = color.RGBA{R: 255, G: 60, B: 60, A: 255}
	colorText       = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	colorFault      = color.RGBA{R: 200, G: 0, B: 0, A: 255}
)

type column struct {
	ceiling kernel.Priority
	nest    uint8
	locked  bool
}

// Timeline keeps the recent history of the ceiling and the interrupt nesting
// depth, one column per Sample.
type Timeline struct {
	cols []column
	head int
	n    int

	cur column
}

// NewTimeline returns a timeline holding width columns.
func NewTimeline(width int) *Timeline {
	if width < 1 {
		width = 1
	}
	return &Timeline{cols: make([]column, width)}
}

// Observe updates the current state from one trace record. Within a sample
// period the column keeps the highest values seen.
func (t *Timeline) Observe(r kernel.Record) {
	switch r.Kind {
	case kernel.ISREntry:
		if r.Nest > t.cur.nest {
			t.cur.nest = r.Nest
		}
	case kernel.SchedLock:
		t.cur.locked = true
		t.raise(r.Prio)
	case kernel.Activate, kernel.Resume, kernel.SchedUnlock:
		t.raise(r.Prio)
	}
}

func (t *Timeline) raise(p kernel.Priority) {
	if p > t.cur.ceiling {
		t.cur.ceiling = p
	}
}

// Sample closes the current column; the next one starts from the given state.
func (t *Timeline) Sample(ceiling kernel.Priority, nest, lockDepth uint8) {
	t.raise(ceiling)
	if nest > t.cur.nest {
		t.cur.nest = nest
	}
	if lockDepth > 0 {
		t.cur.locked = true
	}
	t.cols[t.head] = t.cur
	t.head = (t.head + 1) % len(t.cols)
	if t.n < len(t.cols) {
		t.n++
	}
	t.cur = column{ceiling: ceiling, nest: nest, locked: lockDepth > 0}
}

// Len returns the number of columns recorded.
func (t *Timeline) Len() int { return t.n }

// draw renders the columns oldest-first, right-aligned, into d.
func (t *Timeline) draw(d *fbDisplay) {
	w, h := d.width, d.hgt
	_ = d.FillRectangle(0, 0, int16(w), int16(h), colorBackground)
	if h < 4 {
		return
	}
	plot := h - 3
	start := (t.head - t.n + len(t.cols)) % len(t.cols)
	x := w - t.n
	for i := 0; i < t.n; i++ {
		c := t.cols[(start+i)%len(t.cols)]
		if x+i < 0 {
			continue
		}
		bar := int(c.ceiling) * plot / kernel.MaxActive
		fill := colorCeiling
		if c.locked {
			fill = colorLocked
		}
		_ = d.FillRectangle(int16(x+i), int16(plot-bar), 1, int16(bar), fill)
		if c.nest > 0 {
			_ = d.FillRectangle(int16(x+i), int16(h-2), 1, 2, colorNest)
		}
	}
}
