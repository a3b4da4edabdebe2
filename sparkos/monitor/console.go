package monitor

import (
	"image/color"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const (
	consoleFontHeight = 10
	consoleFontOffset = 7
)

// Console is a scrolling text log on part of the screen. When it fills up it
// starts again from a blank area.
type Console struct {
	d     *fbDisplay
	t     *tinyterm.Terminal
	rows  int
	lines int
}

func newConsole(d *fbDisplay) *Console {
	c := &Console{d: d, rows: d.hgt / consoleFontHeight}
	c.reset()
	return c
}

func (c *Console) reset() {
	_ = c.d.FillRectangle(0, 0, int16(c.d.width), int16(c.d.hgt), color.RGBA{A: 255})
	c.t = tinyterm.NewTerminal(c.d)
	c.t.Configure(&tinyterm.Config{
		Font:       &proggy.TinySZ8pt7b,
		FontHeight: consoleFontHeight,
		FontOffset: consoleFontOffset,
	})
	c.lines = 0
}

// Println writes one line.
func (c *Console) Println(s string) {
	if c.rows <= 0 {
		return
	}
	if c.lines >= c.rows-1 {
		c.reset()
	}
	_, _ = c.t.Write([]byte(s + "\r\n"))
	c.lines++
}

// Lines returns the number of lines written since the console was last cleared.
func (c *Console) Lines() int { return c.lines }
