package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkrtc/hal"
	"sparkrtc/sparkos/kernel"
	"sparkrtc/sparkos/trace"
)

func decodeAll(t *testing.T, r io.Reader) []kernel.Record {
	t.Helper()
	dec := trace.NewDecoder(r)
	var recs []kernel.Record
	for {
		rec, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return recs
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
}

func TestHeadlessRunActivatesEveryTask(t *testing.T) {
	var logs, frames bytes.Buffer
	h := hal.NewHost(hal.HostConfig{Log: &logs, Trace: &frames})
	cfg := Config{SampleEvery: 1, ReportEvery: 1, BlinkEvery: 1}

	err := hal.RunHeadless(context.Background(), h, func(h hal.HAL) func() error {
		return NewWithConfig(h, cfg)
	}, hal.HeadlessConfig{Enabled: true, Hz: 500, Frames: 3})
	require.NoError(t, err)

	active := map[kernel.Priority]bool{}
	var entries int
	for _, r := range decodeAll(t, &frames) {
		switch r.Kind {
		case kernel.Activate:
			active[r.Prio] = true
		case kernel.ISREntry:
			entries++
			assert.Equal(t, uint8(1), r.Nest)
		}
	}
	assert.Positive(t, entries)
	assert.True(t, active[prioSampler], "sampler")
	assert.True(t, active[prioReporter], "reporter")
	assert.True(t, active[prioBlinker], "blinker")

	assert.Contains(t, logs.String(), "spark: sampler every 1 ticks")
	assert.Contains(t, logs.String(), "led: HIGH")
	assert.False(t, hal.SimCPUOf(h).Masked())
}

func TestReporterPublishesUnderLock(t *testing.T) {
	var logs bytes.Buffer
	h := hal.NewHost(hal.HostConfig{Log: &logs})
	s, err := newSystem(h, Config{})
	require.NoError(t, err)

	var ceilings []kernel.Priority
	s.k.Post(prioReporter)
	for _, r := range s.ring.Drain(nil) {
		if r.Kind == kernel.SchedLock {
			ceilings = append(ceilings, r.Prio)
		}
	}

	snap, seq := s.status.Load()
	assert.Equal(t, uint32(2), seq)
	assert.Equal(t, prioSampler, snap.Ceiling, "the snapshot is taken inside the lock")
	assert.Equal(t, uint8(1), snap.LockDepth)
	assert.Equal(t, []kernel.Priority{prioSampler}, ceilings)
	assert.Zero(t, s.k.CurrentPriority())
}

func TestFaultShowsScreenAndStopsStep(t *testing.T) {
	var logs bytes.Buffer
	h := hal.NewHost(hal.HostConfig{Log: &logs})
	s, err := newSystem(h, Config{})
	require.NoError(t, err)

	fb := h.Display().Framebuffer().(*hal.MemFramebuffer)
	before := fb.At(0, fb.Height()-1)

	func() {
		defer func() {
			f, ok := recover().(*kernel.Fault)
			require.True(t, ok)
			assert.ErrorIs(t, f, kernel.ErrNestingUnderflow)
		}()
		s.k.ExitInterrupt()
	}()

	assert.Contains(t, logs.String(), "spark: interrupt exit without matching entry (nest=0 ceiling=0 locks=0)")
	faultScreen := fb.At(0, fb.Height()-1)
	assert.NotEqual(t, before, faultScreen)

	assert.ErrorIs(t, s.step(), kernel.ErrNestingUnderflow)
	assert.Equal(t, faultScreen, fb.At(0, fb.Height()-1), "a halted system keeps the fault screen")
}
