package monitor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"sparkrtc/hal"
	"sparkrtc/sparkos/kernel"
)

const (
	faultLineHeight = 10
	faultFontOffset = 8
)

// FaultLines returns the text of the fault screen.
func FaultLines(info kernel.FaultInfo) []string {
	lines := []string{"Kernel fault:"}
	if f := info.Fault; f != nil {
		lines = append(lines,
			fmt.Sprintf("error: %v", f.Err),
			fmt.Sprintf("nest: %d  ceiling: %d  locks: %d", f.Nest, f.Ceiling, f.LockDepth),
		)
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// DrawFault fills fb with the fault screen and presents it. Lines that do not
// fit are wrapped; text past the bottom is dropped.
func DrawFault(fb hal.Framebuffer, info kernel.FaultInfo) error {
	d := newFBDisplay(fb)
	_ = d.FillRectangle(0, 0, int16(d.width), int16(d.hgt), colorFault)

	font := &proggy.TinySZ8pt7b
	_, charWidth := tinyfont.LineWidth(font, "0")
	cols := 1
	if charWidth > 0 {
		cols = d.width / int(charWidth)
	}

	y := 0
	for _, line := range FaultLines(info) {
		for len(line) > 0 {
			if y+faultLineHeight > d.hgt {
				return fb.Present()
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 2, int16(y+faultFontOffset), chunk, colorText)
			y += faultLineHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	return fb.Present()
}

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || len(s) <= n {
		return s, ""
	}
	i, count := 0, 0
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
