package main

import (
	"context"

	"github.com/spf13/cobra"

	"sparkrtc/hal"
	"sparkrtc/sparkos/kernel"
	"sparkrtc/sparkos/monitor"
	"sparkrtc/sparkos/sim"
	"sparkrtc/sparkos/trace"
)

type viewOptions struct {
	Headless bool
	Frames   uint64
	PerFrame int
}

func newViewCommand(root *rootOptions) *cobra.Command {
	opts := &viewOptions{}
	cmd := &cobra.Command{
		Use:   "view <scenario.yaml>",
		Short: "Replay a scenario's trace on the monitor display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sim.Load(args[0])
			if err != nil {
				return commandError("load scenario", err)
			}
			res, err := sim.Run(s)
			if err != nil {
				return commandError("run "+s.Name, err)
			}

			if opts.PerFrame < 1 {
				opts.PerFrame = 1
			}
			h := hal.NewHost(hal.HostConfig{Log: cmd.ErrOrStderr()})
			newApp := func(h hal.HAL) func() error {
				return newReplay(h.Display().Framebuffer(), res, opts.PerFrame).step
			}
			if !opts.Headless {
				return hal.RunWindow("rtcsim "+s.Name, h, newApp)
			}

			frames := opts.Frames
			if frames == 0 {
				frames = uint64(len(res.Events)/opts.PerFrame) + 2
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return hal.RunHeadless(ctx, h, newApp, hal.HeadlessConfig{Enabled: true, Hz: 60, Frames: frames})
		},
	}
	cmd.Flags().BoolVar(&opts.Headless, "headless", false, "render without opening a window")
	cmd.Flags().Uint64Var(&opts.Frames, "frames", 0, "headless frame count (0: until the replay ends)")
	cmd.Flags().IntVar(&opts.PerFrame, "per-frame", 1, "trace events replayed per frame")
	return cmd
}

// replay feeds a finished run's events to a monitor a few at a time and
// reconstructs the kernel snapshot from them.
type replay struct {
	mon      *monitor.Monitor
	res      *sim.Result
	next     int
	perFrame int
	snap     trace.Snapshot
}

func newReplay(fb hal.Framebuffer, res *sim.Result, perFrame int) *replay {
	m := monitor.New(fb)
	m.SetTaskNames(res.TaskName)
	return &replay{mon: m, res: res, perFrame: perFrame}
}

func (r *replay) step() error {
	for i := 0; i < r.perFrame && r.next < len(r.res.Events); i++ {
		e := r.res.Events[r.next]
		r.next++
		if e.Record.Kind == 0 {
			r.mon.Console().Println("note " + e.Note)
			continue
		}
		r.apply(e.Record)
		r.mon.Observe([]kernel.Record{e.Record})
	}
	if r.next == len(r.res.Events) && r.res.Fault != nil {
		r.snap.Faulted = true
	}
	return r.mon.Render(r.snap)
}

func (r *replay) apply(rec kernel.Record) {
	s := &r.snap
	switch rec.Kind {
	case kernel.ISREntry:
		s.Nest = rec.Nest
		s.Stats.Interrupts++
		if rec.Nest > s.Stats.MaxNest {
			s.Stats.MaxNest = rec.Nest
		}
	case kernel.ISRExit:
		s.Nest = rec.Nest
	case kernel.SchedLock:
		s.Ceiling = rec.Prio
		s.LockDepth++
		s.Stats.LocksApplied++
	case kernel.SchedUnlock:
		s.Ceiling = rec.Prio
		if s.LockDepth > 0 {
			s.LockDepth--
		}
	case kernel.Dispatch:
		s.Stats.Dispatches++
	case kernel.Activate:
		s.Ceiling = rec.Prio
		s.Stats.Activations++
	case kernel.Resume:
		s.Ceiling = rec.Prio
	case kernel.Post:
		s.Stats.Posts++
	}
}
