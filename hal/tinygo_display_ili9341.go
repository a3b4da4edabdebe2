//go:build tinygo && baremetal && (rp2040 || rp2350)

package hal

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ili9341"
)

const (
	panelWidth  = 320
	panelHeight = 240
)

// newDisplay wires an ILI9341 panel on SPI1: SCK GP10, SDO GP11, SDI GP12,
// CS GP13, DC GP14, RST GP15.
func newDisplay() (Framebuffer, error) {
	if machine.SPI1 == nil {
		return nil, errors.New("SPI1 unavailable")
	}
	if err := machine.SPI1.Configure(machine.SPIConfig{
		SCK:       machine.GP10,
		SDO:       machine.GP11,
		SDI:       machine.GP12,
		Frequency: 40_000_000,
	}); err != nil {
		return nil, err
	}

	lcd := ili9341.NewSPI(machine.SPI1, machine.GP14, machine.GP13, machine.GP15)
	lcd.Configure(ili9341.Config{
		Width:    panelWidth,
		Height:   panelHeight,
		Rotation: drivers.Rotation90,
	})

	p := &panel{lcd: lcd, row: make([]byte, panelWidth*2)}
	return newFramebuffer(panelWidth, panelHeight, p.flush), nil
}

type panel struct {
	lcd *ili9341.Device
	row []byte
}

// flush sends the framebuffer row by row; the framebuffer is little-endian RGB565,
// the controller wants big-endian.
func (p *panel) flush(buf []byte, w, h, stride int) error {
	if w*2 > len(p.row) {
		return errors.New("panel row buffer too small")
	}
	row := p.row[:w*2]
	for y := 0; y < h; y++ {
		src := buf[y*stride : y*stride+w*2]
		for i := 0; i+1 < len(src); i += 2 {
			row[i] = src[i+1]
			row[i+1] = src[i]
		}
		if err := p.lcd.DrawRGBBitmap8(0, int16(y), row, int16(w), 1); err != nil {
			return err
		}
	}
	return nil
}
