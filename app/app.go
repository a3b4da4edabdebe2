package app

import (
	"fmt"

	"sparkrtc/hal"
	"sparkrtc/sparkos/kernel"
	"sparkrtc/sparkos/monitor"
	"sparkrtc/sparkos/trace"
)

// Task priorities of the demo system.
const (
	prioBlinker  kernel.Priority = 1
	prioReporter kernel.Priority = 2
	prioSampler  kernel.Priority = 5
)

// tickVector is the exception number the host raises for a tick (SysTick).
const tickVector = 15

// Config sets the demo's task periods in ticks. Zero fields take defaults.
type Config struct {
	SampleEvery uint64
	ReportEvery uint64
	BlinkEvery  uint64
}

func (c *Config) defaults() {
	if c.SampleEvery == 0 {
		c.SampleEvery = 10
	}
	if c.ReportEvery == 0 {
		c.ReportEvery = 50
	}
	if c.BlinkEvery == 0 {
		c.BlinkEvery = 500
	}
}

type system struct {
	h   hal.HAL
	cfg Config

	k      *kernel.Kernel
	sim    *hal.SimCPU
	ring   trace.Ring
	status trace.Status
	mon    *monitor.Monitor
	enc    *trace.Encoder
	recs   []kernel.Record

	ticks   uint64
	samples uint64
	reports uint64
	led     bool
}

// New initializes the demo system with default config and returns its frame step.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, Config{})
}

// NewWithConfig initializes the demo system and returns its frame step. Each
// step delivers pending ticks, forwards the trace, and redraws the monitor.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	s, err := newSystem(h, cfg)
	if err != nil {
		if l := h.Logger(); l != nil {
			l.WriteLineString("spark: " + err.Error())
		}
		return func() error { return err }
	}
	return s.step
}

// Run starts the demo and steps it forever (TinyGo entrypoint). After a fault
// the fault screen stays up.
func Run(h hal.HAL) {
	step := New(h)
	for {
		if err := step(); err != nil {
			select {}
		}
	}
}

func newSystem(h hal.HAL, cfg Config) (*system, error) {
	cfg.defaults()
	s := &system{h: h, cfg: cfg, sim: hal.SimCPUOf(h)}

	s.k = kernel.New(h.CPU(),
		kernel.WithTracer(&s.ring),
		kernel.WithFaultHandler(faultHandler(h)),
	)
	for _, t := range []struct {
		prio kernel.Priority
		name string
		fn   kernel.TaskFunc
	}{
		{prioSampler, "sampler", s.sample},
		{prioReporter, "reporter", s.report},
		{prioBlinker, "blinker", s.blink},
	} {
		if err := s.k.AddTask(t.prio, t.name, t.fn); err != nil {
			return nil, fmt.Errorf("add task %s: %w", t.name, err)
		}
	}

	if fb := framebuffer(h); fb != nil {
		s.mon = monitor.New(fb)
		s.mon.SetTaskNames(s.k.TaskName)
	}
	if port := h.Serial(); port != nil {
		s.enc = trace.NewEncoder(port)
	}
	if l := h.Logger(); l != nil {
		l.WriteLineString(fmt.Sprintf("spark: sampler every %d ticks, reporter every %d, blinker every %d",
			cfg.SampleEvery, cfg.ReportEvery, cfg.BlinkEvery))
	}
	return s, nil
}

func framebuffer(h hal.HAL) hal.Framebuffer {
	if d := h.Display(); d != nil {
		return d.Framebuffer()
	}
	return nil
}

func (s *system) step() (err error) {
	defer func() {
		if v := recover(); v != nil {
			f, ok := v.(*kernel.Fault)
			if !ok {
				panic(v)
			}
			err = f
		}
	}()
	if f := s.k.Faulted(); f != nil {
		return f
	}

	if t := s.h.Time(); t != nil {
		ch := t.Ticks()
	drain:
		for ch != nil {
			select {
			case <-ch:
				if err := s.tick(); err != nil {
					return err
				}
			default:
				break drain
			}
		}
	}

	s.recs = s.ring.Drain(s.recs[:0])
	if s.enc != nil {
		for _, r := range s.recs {
			if err := s.enc.Encode(r); err != nil {
				return fmt.Errorf("trace port: %w", err)
			}
		}
	}
	if s.mon == nil {
		return nil
	}
	s.mon.Observe(s.recs)
	snap, _ := s.status.Load()
	snap.Nest = s.k.NestingDepth()
	snap.Ceiling = s.k.CurrentPriority()
	snap.LockDepth = s.k.LockDepth()
	return s.mon.Render(snap)
}

// tick delivers one tick interrupt. On the host it is raised on the simulated
// CPU so posted tasks run when the handler returns; on TinyGo ticks arrive on a
// goroutine and the kernel activates tasks directly from ExitInterrupt.
func (s *system) tick() error {
	if s.sim != nil {
		if err := s.sim.Raise(tickVector); err != nil {
			return fmt.Errorf("raise tick: %w", err)
		}
	}
	s.k.EnterInterrupt()
	s.onTick()
	s.k.ExitInterrupt()
	if s.sim != nil {
		if err := s.sim.Return(); err != nil {
			return fmt.Errorf("return from tick: %w", err)
		}
	}
	return nil
}

func (s *system) onTick() {
	s.ticks++
	if s.ticks%s.cfg.SampleEvery == 0 {
		s.k.Post(prioSampler)
	}
	if s.ticks%s.cfg.ReportEvery == 0 {
		s.k.Post(prioReporter)
	}
	if s.ticks%s.cfg.BlinkEvery == 0 {
		s.k.Post(prioBlinker)
	}
}

func (s *system) sample(ctx *kernel.Context) {
	s.samples++
}

// report publishes a snapshot under the sampler's ceiling so a sample cannot
// land between reading the counters and publishing them.
func (s *system) report(ctx *kernel.Context) {
	ctx.Lock(prioSampler)
	snap := trace.Capture(s.k, &s.ring)
	seq := s.status.Publish(snap)
	s.reports++
	ctx.Unlock()

	if s.reports%10 == 0 {
		if l := s.h.Logger(); l != nil {
			l.WriteLineString(fmt.Sprintf("spark: report %d seq=%d samples=%d irq=%d dropped=%d",
				s.reports, seq, s.samples, snap.Stats.Interrupts, snap.Dropped))
		}
	}
}

func (s *system) blink(ctx *kernel.Context) {
	led := s.h.LED()
	if led == nil {
		return
	}
	s.led = !s.led
	if s.led {
		led.High()
	} else {
		led.Low()
	}
}
