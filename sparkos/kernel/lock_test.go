package kernel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockRaisesAndRestoresCeiling(t *testing.T) {
	sched := &fakeSched{}
	k, _, _ := newTestKernel(t, WithScheduler(sched))
	k.currPrio = 2

	st := k.Lock(5)
	prev, ok := st.Applied()
	require.True(t, ok)
	assert.Equal(t, Priority(2), prev)
	assert.False(t, st.Skipped())
	assert.Equal(t, Priority(5), st.Ceiling())
	assert.Equal(t, Priority(5), k.CurrentPriority())
	assert.Equal(t, uint8(1), k.LockDepth())

	k.Unlock(&st)
	assert.Equal(t, Priority(2), k.CurrentPriority())
	assert.Zero(t, k.LockDepth())
	_, ok = st.Applied()
	assert.False(t, ok, "Unlock consumes the status")
}

func TestLockNeverLowersCeiling(t *testing.T) {
	k, _, _ := newTestKernel(t, WithScheduler(&fakeSched{}))
	k.currPrio = 6

	st := k.Lock(3)
	prev, ok := st.Applied()
	require.True(t, ok)
	assert.Equal(t, Priority(6), prev)
	assert.Equal(t, Priority(6), k.CurrentPriority())

	k.Unlock(&st)
	assert.Equal(t, Priority(6), k.CurrentPriority())
}

func TestNestedEqualCeilingsDoNotDispatch(t *testing.T) {
	sched := &fakeSched{}
	k, _, rec := newTestKernel(t, WithScheduler(sched))
	k.currPrio = 2

	outer := k.Lock(5)
	inner := k.Lock(5)
	prev, _ := inner.Applied()
	assert.Equal(t, Priority(5), prev)

	k.Unlock(&inner)
	assert.Equal(t, Priority(5), k.CurrentPriority())
	k.Unlock(&outer)
	assert.Equal(t, Priority(2), k.CurrentPriority())

	assert.Empty(t, sched.dispatched)
	assert.Equal(t, 1, sched.queries, "only the release that lowers the ceiling checks for work")
	assert.Equal(t, []Kind{SchedLock, SchedLock, SchedUnlock, SchedUnlock}, rec.kinds())
}

func TestUnlockDispatchesTaskReadiedDuringLock(t *testing.T) {
	sched := &fakeSched{}
	k, _, rec := newTestKernel(t, WithScheduler(sched))
	k.currPrio = 2

	st := k.Lock(8)
	sched.ready.Insert(7)
	k.Unlock(&st)

	assert.Equal(t, []Priority{7}, sched.dispatched)
	last := rec.records[len(rec.records)-1]
	assert.Equal(t, Record{Kind: Dispatch, Prio: 7, Arg: 2}, last)
}

func TestUnlockIgnoresTaskStillBelowCeiling(t *testing.T) {
	sched := &fakeSched{}
	k, _, _ := newTestKernel(t, WithScheduler(sched))
	k.currPrio = 4

	st := k.Lock(8)
	sched.ready.Insert(3)
	k.Unlock(&st)

	assert.Empty(t, sched.dispatched)
}

func TestLockInInterruptContextIsInert(t *testing.T) {
	sched := &fakeSched{}
	k, cpu, rec := newTestKernel(t, WithScheduler(sched))
	k.currPrio = 3

	irq(t, k, cpu, 20, func() {
		st := k.Lock(9)
		assert.True(t, st.Skipped())
		_, ok := st.Applied()
		assert.False(t, ok)
		assert.Equal(t, Priority(3), k.CurrentPriority())
		assert.Zero(t, k.LockDepth())

		k.Unlock(&st)
		assert.Equal(t, Priority(3), k.CurrentPriority())
		assert.False(t, st.Skipped(), "Unlock consumes a skipped status too")
	})

	assert.Equal(t, uint64(1), k.Stats().LocksSkipped)
	assert.Zero(t, k.Stats().LocksApplied)
	assert.Equal(t, []Kind{ISREntry, ISRExit}, rec.kinds())
}

func TestInterruptContextLockIgnoresSentinelCeiling(t *testing.T) {
	k, cpu, _ := newTestKernel(t, WithScheduler(&fakeSched{}))
	irq(t, k, cpu, 16, func() {
		st := k.Lock(MaxActive)
		assert.True(t, st.Skipped())
		k.Unlock(&st)
	})
	assert.Zero(t, k.CurrentPriority())
}

func TestLockFaults(t *testing.T) {
	cases := []struct {
		name string
		run  func(k *Kernel)
		want error
	}{
		{
			name: "ceiling out of range",
			run:  func(k *Kernel) { k.Lock(MaxActive + 1) },
			want: ErrCeilingRange,
		},
		{
			name: "double unlock",
			run: func(k *Kernel) {
				st := k.Lock(4)
				k.Unlock(&st)
				k.Unlock(&st)
			},
			want: ErrNotLocked,
		},
		{
			name: "zero status",
			run: func(k *Kernel) {
				var st LockStatus
				k.Unlock(&st)
			},
			want: ErrNotLocked,
		},
		{
			name: "out of order",
			run: func(k *Kernel) {
				a := k.Lock(4)
				b := k.Lock(6)
				_ = b
				k.Unlock(&a)
			},
			want: ErrLockOrder,
		},
		{
			name: "out of order with equal ceilings",
			run: func(k *Kernel) {
				a := k.Lock(4)
				b := k.Lock(4)
				_ = b
				k.Unlock(&a)
			},
			want: ErrLockOrder,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sched := &fakeSched{}
			k, _, _ := newTestKernel(t, WithScheduler(sched))
			f := faultOf(t, func() { tc.run(k) })
			assert.ErrorIs(t, f, tc.want)
			assert.Empty(t, sched.dispatched)
		})
	}
}

func TestUnlockTaskLockFromHandlerFaults(t *testing.T) {
	k, cpu, _ := newTestKernel(t, WithScheduler(&fakeSched{}))

	st := k.Lock(4)
	require.NoError(t, cpu.Raise(16))
	k.EnterInterrupt()
	f := faultOf(t, func() { k.Unlock(&st) })
	assert.ErrorIs(t, f, ErrLockContext)
	assert.Equal(t, uint8(1), f.Nest)
	assert.Equal(t, Priority(4), f.Ceiling)
	assert.Equal(t, uint8(1), f.LockDepth)
}

func TestFaultMessageNamesKernelState(t *testing.T) {
	k, _, _ := newTestKernel(t, WithScheduler(&fakeSched{}))
	k.Lock(3)
	f := faultOf(t, func() { k.Lock(200) })
	assert.EqualError(t, f, "kernel fault: lock ceiling out of range (nest=0 ceiling=3 locks=1)")
}

// Random well-nested lock sequences must always leave the ceiling where they
// found it, and each lock must produce max(previous, requested).
func TestLockSequencesRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		sched := &fakeSched{}
		k, _, _ := newTestKernel(t, WithScheduler(sched))
		start := Priority(rng.Intn(MaxActive + 1))
		k.currPrio = start

		var stack []LockStatus
		for step := 0; step < 24; step++ {
			if len(stack) > 0 && (len(stack) == 6 || rng.Intn(2) == 0) {
				top := &stack[len(stack)-1]
				want, _ := top.Applied()
				k.Unlock(top)
				stack = stack[:len(stack)-1]
				require.Equal(t, want, k.CurrentPriority())
				continue
			}
			before := k.CurrentPriority()
			c := Priority(rng.Intn(MaxActive + 1))
			st := k.Lock(c)
			prev, ok := st.Applied()
			require.True(t, ok)
			require.Equal(t, before, prev)
			want := before
			if c > want {
				want = c
			}
			require.Equal(t, want, k.CurrentPriority())
			stack = append(stack, st)
		}
		for len(stack) > 0 {
			k.Unlock(&stack[len(stack)-1])
			stack = stack[:len(stack)-1]
		}
		require.Equal(t, start, k.CurrentPriority(), "trial %d", trial)
		require.Zero(t, k.LockDepth())
		require.Empty(t, sched.dispatched)
	}
}
