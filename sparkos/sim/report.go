package sim

import (
	"fmt"
	"io"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"sparkrtc/sparkos/kernel"
)

// TaskReport summarizes one task's activations.
type TaskReport struct {
	Name        string
	Priority    kernel.Priority
	Posts       int
	Activations int
	// Preemptions counts activations that started on top of another task
	// or a raised ceiling.
	Preemptions int
}

// Report summarizes a run. Lock spans are measured in trace records between a
// lock and its release.
type Report struct {
	Scenario        string
	Tasks           []TaskReport
	MaxNest         uint8
	MaxPreemptDepth int
	LockSpans       []float64
	LockMean        float64
	LockMax         float64
	Fault           string
}

// NewReport computes a Report from res.
func NewReport(res *Result) Report {
	rep := Report{Scenario: res.Scenario, Fault: FaultName(res.Fault)}
	tasks := make(map[kernel.Priority]*TaskReport)
	task := func(p kernel.Priority) *TaskReport {
		t, ok := tasks[p]
		if !ok {
			t = &TaskReport{Name: res.TaskName(p), Priority: p}
			tasks[p] = t
		}
		return t
	}

	var running []kernel.Priority
	var lockStart []int
	popAbove := func(level kernel.Priority) {
		for len(running) > 0 && running[len(running)-1] > level {
			running = running[:len(running)-1]
		}
	}

	for i, rec := range res.Records() {
		switch rec.Kind {
		case kernel.ISREntry:
			if rec.Nest > rep.MaxNest {
				rep.MaxNest = rec.Nest
			}
		case kernel.Post:
			task(rec.Prio).Posts++
		case kernel.Activate:
			t := task(rec.Prio)
			t.Activations++
			if rec.Arg != 0 {
				t.Preemptions++
			}
			popAbove(kernel.Priority(rec.Arg))
			running = append(running, rec.Prio)
			if len(running) > rep.MaxPreemptDepth {
				rep.MaxPreemptDepth = len(running)
			}
		case kernel.Resume:
			popAbove(rec.Prio)
		case kernel.SchedLock:
			lockStart = append(lockStart, i)
		case kernel.SchedUnlock:
			if n := len(lockStart); n > 0 {
				rep.LockSpans = append(rep.LockSpans, float64(i-lockStart[n-1]))
				lockStart = lockStart[:n-1]
			}
		}
	}

	prios := maps.Keys(tasks)
	slices.Sort(prios)
	for i := len(prios) - 1; i >= 0; i-- {
		rep.Tasks = append(rep.Tasks, *tasks[prios[i]])
	}
	if len(rep.LockSpans) > 0 {
		rep.LockMean = stat.Mean(rep.LockSpans, nil)
		rep.LockMax = floats.Max(rep.LockSpans)
	}
	return rep
}

// WriteText writes the report in a fixed-width text layout.
func (r Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "scenario %s\n", r.Scenario); err != nil {
		return err
	}
	for _, t := range r.Tasks {
		if _, err := fmt.Fprintf(w, "  task %-10s prio=%-2d posts=%d activations=%d preempted=%d\n",
			t.Name, t.Priority, t.Posts, t.Activations, t.Preemptions); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "  max-nest=%d max-preempt-depth=%d locks=%d lock-mean=%.2f lock-max=%.0f\n",
		r.MaxNest, r.MaxPreemptDepth, len(r.LockSpans), r.LockMean, r.LockMax); err != nil {
		return err
	}
	if r.Fault != "" {
		if _, err := fmt.Fprintf(w, "  fault %s\n", r.Fault); err != nil {
			return err
		}
	}
	return nil
}
