// Package monitor draws kernel state on a framebuffer.
package monitor

import (
	"image/color"

	"tinygo.org/x/drivers"

	"sparkrtc/hal"
)

// fbDisplay adapts a hal.Framebuffer to the tinygo drivers Displayer, restricted
// to a rectangle. Coordinates are relative to the rectangle.
type fbDisplay struct {
	fb         hal.Framebuffer
	x0, y0     int
	width, hgt int
}

var _ drivers.Displayer = (*fbDisplay)(nil)

func newFBDisplay(fb hal.Framebuffer) *fbDisplay {
	return &fbDisplay{fb: fb, width: fb.Width(), hgt: fb.Height()}
}

// region returns a display for the rectangle (x, y, w, h) of d, clipped to d.
func (d *fbDisplay) region(x, y, w, h int) *fbDisplay {
	x1 := clampInt(x+w, 0, d.width)
	y1 := clampInt(y+h, 0, d.hgt)
	x = clampInt(x, 0, d.width)
	y = clampInt(y, 0, d.hgt)
	return &fbDisplay{fb: d.fb, x0: d.x0 + x, y0: d.y0 + y, width: x1 - x, hgt: y1 - y}
}

func (d *fbDisplay) Size() (x, y int16) {
	return int16(d.width), int16(d.hgt)
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.width || iy < 0 || iy >= d.hgt {
		return
	}
	d.put(d.x0+ix, d.y0+iy, hal.RGB565(c))
}

func (d *fbDisplay) put(x, y int, pixel uint16) {
	if d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	off := y*d.fb.StrideBytes() + x*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *fbDisplay) Display() error {
	return d.fb.Present()
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	x0 := clampInt(int(x), 0, d.width)
	y0 := clampInt(int(y), 0, d.hgt)
	x1 := clampInt(int(x)+int(width), 0, d.width)
	y1 := clampInt(int(y)+int(height), 0, d.hgt)
	pixel := hal.RGB565(c)
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			d.put(d.x0+px, d.y0+py, pixel)
		}
	}
	return nil
}

// SetScroll is a no-op: the console clears instead of scrolling.
func (d *fbDisplay) SetScroll(line int16) {}

func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error {
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
