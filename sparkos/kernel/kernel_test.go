package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sparkrtc/hal"
)

// fakeSched is an external scheduler that records what the kernel asks of it.
type fakeSched struct {
	ready      PrioSet
	queries    int
	dispatched []Priority
}

func (s *fakeSched) HighestReady() Priority {
	s.queries++
	return s.ready.Max()
}

func (s *fakeSched) Dispatch(p Priority) {
	s.dispatched = append(s.dispatched, p)
}

// recorder is a Tracer that also checks the mask discipline of every record.
type recorder struct {
	t       *testing.T
	cpu     *hal.SimCPU
	records []Record
}

func (r *recorder) Trace(rec Record) {
	if r.cpu != nil && !r.cpu.Masked() {
		r.t.Errorf("%s traced with interrupts enabled", rec.Kind)
	}
	r.records = append(r.records, rec)
}

func (r *recorder) kinds() []Kind {
	out := make([]Kind, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Kind)
	}
	return out
}

func newTestKernel(t *testing.T, opts ...Option) (*Kernel, *hal.SimCPU, *recorder) {
	t.Helper()
	cpu := hal.NewSimCPU()
	rec := &recorder{t: t, cpu: cpu}
	opts = append([]Option{WithTracer(rec), WithFaultHandler(func(FaultInfo) {})}, opts...)
	return New(cpu, opts...), cpu, rec
}

// irq runs body as the handler of exception exc, bracketed the way every
// kernel-aware handler must be.
func irq(t *testing.T, k *Kernel, cpu *hal.SimCPU, exc uint32, body func()) {
	t.Helper()
	require.NoError(t, cpu.Raise(exc))
	k.EnterInterrupt()
	if body != nil {
		body()
	}
	k.ExitInterrupt()
	require.NoError(t, cpu.Return())
}

// faultOf runs fn and returns the kernel fault it panicked with.
func faultOf(t *testing.T, fn func()) (f *Fault) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a kernel fault")
		var ok bool
		f, ok = r.(*Fault)
		require.Truef(t, ok, "panic value %T is not *Fault", r)
	}()
	fn()
	return nil
}
