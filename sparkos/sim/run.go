package sim

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/exp/slices"

	"sparkrtc/hal"
	"sparkrtc/sparkos/kernel"
	"sparkrtc/sparkos/trace"
)

var ErrTraceOverflow = errors.New("trace ring overflowed")

// Event is one line of a run's trace: a kernel record or a note.
type Event struct {
	Record kernel.Record
	Task   string
	Note   string
}

func (e Event) String() string {
	if e.Record.Kind == 0 {
		return "note " + e.Note
	}
	s := trace.Format(e.Record)
	if e.Task != "" {
		s += " task=" + e.Task
	}
	return s
}

// Result is the outcome of one run.
type Result struct {
	Scenario string
	Events   []Event
	Order    []string
	Final    trace.Snapshot
	Fault    *kernel.Fault
	Failures []string

	names map[kernel.Priority]string
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

// Records returns the kernel records of the run, without notes.
func (r *Result) Records() []kernel.Record {
	out := make([]kernel.Record, 0, len(r.Events))
	for _, e := range r.Events {
		if e.Record.Kind != 0 {
			out = append(out, e.Record)
		}
	}
	return out
}

// WriteTrace writes one event per line.
func (r *Result) WriteTrace(w io.Writer) error {
	for _, e := range r.Events {
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			return err
		}
	}
	return nil
}

// TaskName returns the name of the task declared at p.
func (r *Result) TaskName(p kernel.Priority) string { return r.names[p] }

// Option configures Run.
type Option func(*runner)

// WithLogger logs each op at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) { r.log = l }
}

type runner struct {
	s   *Scenario
	cpu *hal.SimCPU
	k   *kernel.Kernel
	log *slog.Logger

	ring  trace.Ring
	prios map[string]kernel.Priority
	res   *Result

	// frames holds the lock statuses of each running body, innermost last.
	frames [][]kernel.LockStatus
	err    error
}

// Run executes s on a fresh simulated CPU and kernel. Kernel faults end the run
// and are reported in Result.Fault; the error is for scenarios that cannot run.
func Run(s *Scenario, opts ...Option) (*Result, error) {
	r := &runner{
		s:     s,
		cpu:   hal.NewSimCPU(),
		prios: make(map[string]kernel.Priority, len(s.Tasks)),
		res:   &Result{Scenario: s.Name, names: make(map[kernel.Priority]string, len(s.Tasks))},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.New(discardHandler{})
	}

	r.k = kernel.New(r.cpu, kernel.WithTracer(&r.ring), kernel.WithFaultHandler(func(fi kernel.FaultInfo) {
		r.log.Debug("kernel fault", "scenario", s.Name, "err", fi.Fault)
	}))

	for _, t := range s.Tasks {
		p := kernel.Priority(t.Priority)
		body := t.Body
		if err := r.k.AddTask(p, t.Name, kernel.TaskFunc(func(ctx *kernel.Context) {
			r.res.Order = append(r.res.Order, ctx.Name())
			r.frames = append(r.frames, nil)
			r.exec(body)
			r.frames = r.frames[:len(r.frames)-1]
		})); err != nil {
			return nil, fmt.Errorf("task %s: %w", t.Name, err)
		}
		r.prios[t.Name] = p
		r.res.names[p] = t.Name
	}

	r.frames = append(r.frames, nil)
	fault := r.guard(func() { r.exec(s.Run) })
	r.drain()

	r.res.Fault = fault
	r.res.Final = trace.Capture(r.k, &r.ring)
	if r.err != nil {
		return r.res, r.err
	}
	if r.ring.Dropped() != 0 {
		return r.res, ErrTraceOverflow
	}
	r.check()
	return r.res, nil
}

// guard runs fn and recovers a kernel fault. Other panics propagate.
func (r *runner) guard(fn func()) (f *kernel.Fault) {
	defer func() {
		if v := recover(); v != nil {
			kf, ok := v.(*kernel.Fault)
			if !ok {
				panic(v)
			}
			f = kf
		}
	}()
	fn()
	return nil
}

func (r *runner) exec(ops []Op) {
	for _, op := range ops {
		if r.err != nil {
			return
		}
		r.drain()
		r.log.Debug("op", "scenario", r.s.Name, "op", op.String(), "nest", r.cpu.Depth())
		if err := r.step(op); err != nil {
			r.err = fmt.Errorf("%s: %w", op, err)
			return
		}
		r.drain()
	}
}

func (r *runner) step(op Op) error {
	top := len(r.frames) - 1
	switch op.Kind {
	case OpPost:
		r.k.Post(r.prios[op.Task])

	case OpLock:
		r.frames[top] = append(r.frames[top], r.k.Lock(op.Ceiling))

	case OpUnlock:
		locks := r.frames[top]
		i := len(locks) - 1 - op.Skip
		if i < 0 {
			var none kernel.LockStatus
			r.k.Unlock(&none)
			return nil
		}
		r.k.Unlock(&locks[i])
		r.frames[top] = slices.Delete(locks, i, i+1)

	case OpIRQ:
		if err := r.cpu.Raise(op.Vector); err != nil {
			return err
		}
		r.k.EnterInterrupt()
		r.drain()
		r.frames = append(r.frames, nil)
		r.exec(op.Body)
		r.frames = r.frames[:len(r.frames)-1]
		if r.err != nil {
			return nil
		}
		r.k.ExitInterrupt()
		return r.cpu.Return()

	case OpEnter:
		if err := r.cpu.Raise(op.Vector); err != nil {
			return err
		}
		r.k.EnterInterrupt()

	case OpExit:
		r.k.ExitInterrupt()
		if r.cpu.Depth() > 0 {
			return r.cpu.Return()
		}

	case OpNote:
		r.res.Events = append(r.res.Events, Event{Note: op.Text})

	default:
		return ErrUnknownOp
	}
	return nil
}

func (r *runner) drain() {
	for {
		rec, ok := r.ring.TryGet()
		if !ok {
			return
		}
		e := Event{Record: rec}
		switch rec.Kind {
		case kernel.Post, kernel.Dispatch, kernel.Activate:
			e.Task = r.res.names[rec.Prio]
		}
		r.res.Events = append(r.res.Events, e)
	}
}

func (r *runner) check() {
	res := r.res
	exp := r.s.Expect
	fail := func(format string, a ...any) {
		res.Failures = append(res.Failures, fmt.Sprintf(format, a...))
	}

	if got := FaultName(res.Fault); got != exp.Fault {
		switch {
		case exp.Fault == "":
			fail("unexpected fault: %v", res.Fault)
		case got == "":
			fail("fault: got none, want %s", exp.Fault)
		default:
			fail("fault: got %s, want %s", got, exp.Fault)
		}
	}
	if exp.Ceiling != nil && int(res.Final.Ceiling) != *exp.Ceiling {
		fail("ceiling: got %d, want %d", res.Final.Ceiling, *exp.Ceiling)
	}
	if exp.Nest != nil && int(res.Final.Nest) != *exp.Nest {
		fail("nest: got %d, want %d", res.Final.Nest, *exp.Nest)
	}
	if exp.Order != nil && !slices.Equal(res.Order, exp.Order) {
		fail("order: got %v, want %v", res.Order, exp.Order)
	}
}
