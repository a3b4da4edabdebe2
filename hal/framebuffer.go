package hal

import (
	"image/color"
	"sync"
)

// MemFramebuffer is an RGB565 little-endian framebuffer in RAM.
//
// Present calls the optional flush hook (the panel driver on hardware, nothing on the host).
type MemFramebuffer struct {
	mu     sync.Mutex
	width  int
	height int
	stride int
	buf    []byte
	flush  func(buf []byte, w, h, stride int) error
}

// NewFramebuffer allocates a width x height RGB565 framebuffer.
func NewFramebuffer(width, height int) *MemFramebuffer {
	return newFramebuffer(width, height, nil)
}

func newFramebuffer(width, height int, flush func(buf []byte, w, h, stride int) error) *MemFramebuffer {
	stride := width * 2
	return &MemFramebuffer{
		width:  width,
		height: height,
		stride: stride,
		buf:    make([]byte, stride*height),
		flush:  flush,
	}
}

func (f *MemFramebuffer) Width() int          { return f.width }
func (f *MemFramebuffer) Height() int         { return f.height }
func (f *MemFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *MemFramebuffer) StrideBytes() int    { return f.stride }
func (f *MemFramebuffer) Buffer() []byte      { return f.buf }

func (f *MemFramebuffer) Present() error {
	if f.flush == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flush(f.buf, f.width, f.height, f.stride)
}

func (f *MemFramebuffer) ClearRGB(r, g, b uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pixel := rgb565(r, g, b)
	lo := byte(pixel)
	hi := byte(pixel >> 8)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i] = lo
		f.buf[i+1] = hi
	}
}

// At returns the pixel at x, y expanded to 8-bit channels.
func (f *MemFramebuffer) At(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return color.RGBA{}
	}
	off := y*f.stride + x*2
	r, g, b := rgb888From565(uint16(f.buf[off]) | uint16(f.buf[off+1])<<8)
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

func (f *MemFramebuffer) snapshotRGB565(dst []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(dst, f.buf)
}
