package kernel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkrtc/hal"
)

// bareCPU has no way to pend a context switch, like a port without PendSV.
type bareCPU struct {
	masked bool
	ipsr   uint32
}

func (c *bareCPU) DisableInterrupts() hal.IRQState {
	prev := c.masked
	c.masked = true
	if prev {
		return 1
	}
	return 0
}

func (c *bareCPU) RestoreInterrupts(s hal.IRQState) { c.masked = s != 0 }
func (c *bareCPU) InterruptStatus() uint32          { return c.ipsr }

func logTask(log *[]string, name string) TaskFunc {
	return func(ctx *Context) {
		*log = append(*log, fmt.Sprintf("%s@%d", name, ctx.Kernel().CurrentPriority()))
	}
}

func TestAddTaskValidation(t *testing.T) {
	k, _, _ := newTestKernel(t)
	noop := TaskFunc(func(*Context) {})

	assert.ErrorIs(t, k.AddTask(3, "x", nil), ErrNilTask)
	assert.ErrorIs(t, k.AddTask(0, "idle", noop), ErrBadPriority)
	assert.ErrorIs(t, k.AddTask(MaxActive+1, "high", noop), ErrBadPriority)
	require.NoError(t, k.AddTask(3, "a", noop))
	assert.ErrorIs(t, k.AddTask(3, "b", noop), ErrPriorityTaken)
	require.NoError(t, k.AddTask(MaxActive, "top", noop))

	assert.Equal(t, "a", k.TaskName(3))
	assert.Equal(t, "top", k.TaskName(MaxActive))
	assert.Equal(t, "", k.TaskName(4))
	assert.Equal(t, "", k.TaskName(200))

	ext, _, _ := newTestKernel(t, WithScheduler(&fakeSched{}))
	assert.ErrorIs(t, ext.AddTask(3, "a", noop), ErrExternalScheduler)
}

func TestPostFromTaskPreemptsImmediately(t *testing.T) {
	k, _, rec := newTestKernel(t)
	var log []string
	require.NoError(t, k.AddTask(2, "low", TaskFunc(func(ctx *Context) {
		log = append(log, "low:start")
		ctx.Post(5)
		log = append(log, "low:end")
	})))
	require.NoError(t, k.AddTask(5, "high", logTask(&log, "high")))

	k.Post(2)

	assert.Equal(t, []string{"low:start", "high@5", "low:end"}, log)
	assert.Equal(t, []Kind{Post, Dispatch, Activate, Post, Dispatch, Activate, Resume, Resume}, rec.kinds())
	assert.Equal(t, Record{Kind: Activate, Prio: 5, Arg: 2}, rec.records[5])
	assert.Equal(t, Record{Kind: Resume, Prio: 2}, rec.records[6])
	assert.Zero(t, k.CurrentPriority())

	s := k.Stats()
	assert.Equal(t, uint64(2), s.Posts)
	assert.Equal(t, uint64(2), s.Dispatches)
	assert.Equal(t, uint64(2), s.Activations)
}

func TestPostOfLowerTaskRunsAfterCaller(t *testing.T) {
	k, _, _ := newTestKernel(t)
	var log []string
	require.NoError(t, k.AddTask(6, "high", TaskFunc(func(ctx *Context) {
		log = append(log, "high:start")
		ctx.Post(1)
		log = append(log, "high:end")
	})))
	require.NoError(t, k.AddTask(1, "low", logTask(&log, "low")))

	k.Post(6)
	assert.Equal(t, []string{"high:start", "high:end", "low@1"}, log)
}

func TestPostFromHandlerWaitsForOutermostReturn(t *testing.T) {
	k, cpu, _ := newTestKernel(t)
	var log []string
	var inTask []bool
	for _, p := range []Priority{3, 4} {
		name := fmt.Sprintf("t%d", p)
		require.NoError(t, k.AddTask(p, name, TaskFunc(func(ctx *Context) {
			inTask = append(inTask, ctx.Kernel().InterruptContext())
			logTask(&log, ctx.Name())(ctx)
		})))
	}

	require.NoError(t, cpu.Raise(16))
	k.EnterInterrupt()
	k.Post(3)
	irq(t, k, cpu, 17, func() { k.Post(4) })
	assert.Empty(t, log, "nested exit must not run tasks")

	k.ExitInterrupt()
	assert.Empty(t, log, "the switch is pended until the handler returns")
	require.NoError(t, cpu.Return())

	assert.Equal(t, []string{"t4@4", "t3@3"}, log)
	assert.Equal(t, []bool{false, false}, inTask, "tasks run in thread mode")
	assert.Zero(t, k.CurrentPriority())
}

func TestHandlerWithoutPenderActivatesInExit(t *testing.T) {
	cpu := &bareCPU{}
	k := New(cpu, WithFaultHandler(func(FaultInfo) {}))
	var ipsr []uint32
	require.NoError(t, k.AddTask(3, "t", TaskFunc(func(ctx *Context) {
		ipsr = append(ipsr, cpu.InterruptStatus())
	})))

	cpu.ipsr = 16
	k.EnterInterrupt()
	k.Post(3)
	assert.Empty(t, ipsr)
	k.ExitInterrupt()
	cpu.ipsr = 0

	assert.Equal(t, []uint32{16}, ipsr)
	assert.False(t, cpu.masked)
}

func TestLockHoldsInTaskActivatedFromHandler(t *testing.T) {
	cpu := &bareCPU{}
	k := New(cpu, WithFaultHandler(func(FaultInfo) {}))
	var log []string
	require.NoError(t, k.AddTask(2, "worker", TaskFunc(func(ctx *Context) {
		ctx.Lock(8)
		assert.False(t, ctx.Kernel().InterruptContext())
		log = append(log, fmt.Sprintf("locked@%d", ctx.Kernel().CurrentPriority()))

		cpu.ipsr = 17
		k.EnterInterrupt()
		assert.True(t, k.InterruptContext(), "a nested handler is interrupt context")
		k.Post(7)
		k.ExitInterrupt()
		cpu.ipsr = 16

		log = append(log, "unlocking")
		ctx.Unlock()
		log = append(log, "unlocked")
	})))
	require.NoError(t, k.AddTask(7, "urgent", logTask(&log, "urgent")))

	cpu.ipsr = 16
	k.EnterInterrupt()
	k.Post(2)
	k.ExitInterrupt()
	cpu.ipsr = 0

	assert.Equal(t, []string{"locked@8", "unlocking", "urgent@7", "unlocked"}, log)
	assert.Equal(t, uint64(1), k.Stats().LocksApplied)
	assert.Zero(t, k.Stats().LocksSkipped)
	assert.Zero(t, k.CurrentPriority())
	assert.False(t, k.InterruptContext())
}

func TestRepeatedPostsQueueActivations(t *testing.T) {
	k, cpu, rec := newTestKernel(t)
	var log []string
	require.NoError(t, k.AddTask(3, "t", logTask(&log, "t")))

	irq(t, k, cpu, 16, func() {
		k.Post(3)
		k.Post(3)
		assert.Equal(t, 2, k.Pending(3))
	})

	assert.Equal(t, []string{"t@3", "t@3"}, log)
	assert.Zero(t, k.Pending(3))
	assert.Equal(t, uint8(1), rec.records[1].Arg)
	assert.Equal(t, uint8(2), rec.records[2].Arg)
}

func TestTaskLockDefersPreemptionUntilUnlock(t *testing.T) {
	k, cpu, _ := newTestKernel(t)
	var log []string
	require.NoError(t, k.AddTask(2, "low", TaskFunc(func(ctx *Context) {
		ctx.Lock(6)
		log = append(log, "low:locked")
		ctx.Post(5)
		irq(t, k, cpu, 16, func() { k.Post(4) })
		log = append(log, "low:posted")
		ctx.Unlock()
		log = append(log, "low:unlocked")
	})))
	require.NoError(t, k.AddTask(5, "mid", logTask(&log, "mid")))
	require.NoError(t, k.AddTask(4, "four", logTask(&log, "four")))

	k.Post(2)

	assert.Equal(t, []string{"low:locked", "low:posted", "mid@5", "four@4", "low:unlocked"}, log)
	assert.Zero(t, k.CurrentPriority())
}

func TestHandlerPreemptsTaskAboveItsCeiling(t *testing.T) {
	k, cpu, _ := newTestKernel(t)
	var log []string
	require.NoError(t, k.AddTask(2, "low", TaskFunc(func(ctx *Context) {
		ctx.Lock(6)
		irq(t, k, cpu, 16, func() { k.Post(7) })
		log = append(log, fmt.Sprintf("low@%d", ctx.Kernel().CurrentPriority()))
		ctx.Unlock()
	})))
	require.NoError(t, k.AddTask(7, "urgent", logTask(&log, "urgent")))

	k.Post(2)
	assert.Equal(t, []string{"urgent@7", "low@6"}, log)
}

func TestTaskLeakingLockFaults(t *testing.T) {
	k, _, _ := newTestKernel(t)
	require.NoError(t, k.AddTask(2, "leaky", TaskFunc(func(ctx *Context) {
		ctx.Lock(5)
	})))

	f := faultOf(t, func() { k.Post(2) })
	assert.ErrorIs(t, f, ErrLockLeaked)
	assert.Equal(t, Priority(5), f.Ceiling)
}

func TestContextUnlockWithoutLockFaults(t *testing.T) {
	k, _, _ := newTestKernel(t)
	require.NoError(t, k.AddTask(2, "t", TaskFunc(func(ctx *Context) {
		ctx.Unlock()
	})))
	f := faultOf(t, func() { k.Post(2) })
	assert.ErrorIs(t, f, ErrNotLocked)
}

func TestContextLockNestingLimit(t *testing.T) {
	k, _, _ := newTestKernel(t)
	require.NoError(t, k.AddTask(2, "t", TaskFunc(func(ctx *Context) {
		for i := 0; i <= maxLockNest; i++ {
			ctx.Lock(Priority(3 + i))
		}
	})))
	f := faultOf(t, func() { k.Post(2) })
	assert.ErrorIs(t, f, ErrLockNest)
	assert.Equal(t, uint8(maxLockNest), f.LockDepth)
}

func TestPostWithoutTaskFaults(t *testing.T) {
	k, _, _ := newTestKernel(t)
	for _, p := range []Priority{0, 9, MaxActive + 1} {
		f := faultOf(t, func() { New(hal.NewSimCPU(), WithFaultHandler(func(FaultInfo) {})).Post(p) })
		assert.ErrorIs(t, f, ErrNoTask)
	}
	assert.Nil(t, k.Faulted())
}

func TestProcessFaultHandler(t *testing.T) {
	var got []error
	SetFaultHandler(func(fi FaultInfo) { got = append(got, fi.Fault.Err) })
	t.Cleanup(func() { SetFaultHandler(nil) })

	k := New(hal.NewSimCPU())
	faultOf(t, k.ExitInterrupt)
	faultOf(t, func() { k.Lock(1) })

	assert.Equal(t, []error{ErrNestingUnderflow}, got)
}
