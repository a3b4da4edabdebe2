package monitor

import (
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkrtc/hal"
	"sparkrtc/sparkos/kernel"
	"sparkrtc/sparkos/trace"
)

func isBlack(c color.RGBA) bool { return c.R == 0 && c.G == 0 && c.B == 0 }

func TestRegionOffsetsAndClips(t *testing.T) {
	fb := hal.NewFramebuffer(40, 30)
	r := newFBDisplay(fb).region(10, 5, 8, 4)

	w, h := r.Size()
	assert.Equal(t, int16(8), w)
	assert.Equal(t, int16(4), h)

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	r.SetPixel(0, 0, white)
	r.SetPixel(8, 0, white)
	r.SetPixel(-1, 2, white)
	assert.Equal(t, white, fb.At(10, 5))
	assert.True(t, isBlack(fb.At(18, 5)), "pixel outside the region must be clipped")
	assert.True(t, isBlack(fb.At(9, 7)))

	require.NoError(t, r.FillRectangle(-5, -5, 100, 100, white))
	assert.Equal(t, white, fb.At(17, 8))
	assert.True(t, isBlack(fb.At(17, 9)))
	assert.True(t, isBlack(fb.At(9, 5)))
}

func TestRegionClampsToParent(t *testing.T) {
	fb := hal.NewFramebuffer(20, 20)
	r := newFBDisplay(fb).region(15, 15, 10, 10)
	w, h := r.Size()
	assert.Equal(t, int16(5), w)
	assert.Equal(t, int16(5), h)
}

func TestTimelineSamples(t *testing.T) {
	tl := NewTimeline(3)
	tl.Observe(kernel.Record{Kind: kernel.ISREntry, Nest: 2})
	tl.Observe(kernel.Record{Kind: kernel.Activate, Prio: 7})
	tl.Observe(kernel.Record{Kind: kernel.Resume, Prio: 0})
	tl.Sample(0, 0, 0)

	require.Equal(t, 1, tl.Len())
	assert.Equal(t, column{ceiling: 7, nest: 2}, tl.cols[0])

	tl.Observe(kernel.Record{Kind: kernel.SchedLock, Prio: 5, Arg: 0})
	tl.Sample(5, 0, 1)
	assert.Equal(t, column{ceiling: 5, locked: true}, tl.cols[1])
	assert.Equal(t, column{ceiling: 5, locked: true}, tl.cur, "the lock carries into the next column")

	tl.Sample(0, 0, 0)
	tl.Sample(0, 0, 0)
	assert.Equal(t, 3, tl.Len())
	assert.Equal(t, 1, tl.head)
}

func TestMonitorRender(t *testing.T) {
	fb := hal.NewFramebuffer(320, 240)
	m := New(fb)
	m.SetTaskNames(func(p kernel.Priority) string {
		if p == 3 {
			return "sampler"
		}
		return ""
	})

	m.Observe([]kernel.Record{
		{Kind: kernel.Post, Nest: 1, Prio: 3, Arg: 1},
		{Kind: kernel.Activate, Prio: 3},
		{Kind: kernel.Resume},
	})
	assert.Equal(t, 1, m.Console().Lines())

	require.NoError(t, m.Render(trace.Snapshot{Ceiling: 63}))
	assert.Equal(t, 1, m.Timeline().Len())

	// The newest column is the rightmost one and spans the plot at ceiling 63.
	x := fb.Width() - 1
	assert.False(t, isBlack(fb.At(x, headerHeight+1)))
	assert.True(t, isBlack(fb.At(x-1, headerHeight+1)))

	var lit bool
	for px := 0; px < 200 && !lit; px++ {
		for py := 0; py < headerHeight; py++ {
			if !isBlack(fb.At(px, py)) {
				lit = true
				break
			}
		}
	}
	assert.True(t, lit, "header text was not drawn")

	require.NoError(t, m.Render(trace.Snapshot{Faulted: true}))
	assert.Greater(t, fb.At(0, 0).R, uint8(150))
}

func TestConsoleClearsWhenFull(t *testing.T) {
	fb := hal.NewFramebuffer(100, 40)
	c := newConsole(newFBDisplay(fb))
	require.Equal(t, 4, c.rows)
	for i := 0; i < 3; i++ {
		c.Println("line")
	}
	assert.Equal(t, 3, c.Lines())
	c.Println("again")
	assert.Equal(t, 1, c.Lines())
}

func TestFaultScreen(t *testing.T) {
	info := kernel.FaultInfo{
		Fault: &kernel.Fault{Err: kernel.ErrLockOrder, Nest: 0, Ceiling: 6, LockDepth: 2},
		Stack: []byte("goroutine 1 [running]:\n\nmain.main()\n"),
	}
	lines := FaultLines(info)
	assert.Equal(t, []string{
		"Kernel fault:",
		"error: scheduler locks released out of order",
		"nest: 0  ceiling: 6  locks: 2",
		"stack:",
		"goroutine 1 [running]:",
		"main.main()",
	}, lines)

	assert.Equal(t, "stack: unavailable", FaultLines(kernel.FaultInfo{})[1])

	fb := hal.NewFramebuffer(160, 40)
	require.NoError(t, DrawFault(fb, info))
	corner := fb.At(0, fb.Height()-1)
	assert.Greater(t, corner.R, uint8(150))
	assert.Zero(t, corner.G)
}

func TestTakeRunes(t *testing.T) {
	p, r := takeRunes("héllo wörld", 5)
	assert.Equal(t, "héllo", p)
	assert.Equal(t, " wörld", r)

	p, r = takeRunes("abc", 5)
	assert.Equal(t, "abc", p)
	assert.Empty(t, r)
	assert.True(t, strings.HasPrefix(p, "a"))
}
