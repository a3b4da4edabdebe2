package trace

import (
	"fmt"

	"sparkrtc/sparkos/kernel"
)

// Format returns the one-line text form of r.
func Format(r kernel.Record) string {
	switch r.Kind {
	case kernel.ISREntry, kernel.ISRExit:
		return fmt.Sprintf("%s nest=%d ceiling=%d", r.Kind, r.Nest, r.Prio)
	case kernel.SchedLock:
		return fmt.Sprintf("%s nest=%d ceiling=%d prev=%d", r.Kind, r.Nest, r.Prio, r.Arg)
	case kernel.SchedUnlock:
		return fmt.Sprintf("%s nest=%d ceiling=%d released=%d", r.Kind, r.Nest, r.Prio, r.Arg)
	case kernel.Dispatch:
		return fmt.Sprintf("%s nest=%d prio=%d ceiling=%d", r.Kind, r.Nest, r.Prio, r.Arg)
	case kernel.Activate:
		return fmt.Sprintf("%s nest=%d prio=%d preempted=%d", r.Kind, r.Nest, r.Prio, r.Arg)
	case kernel.Resume:
		return fmt.Sprintf("%s nest=%d ceiling=%d", r.Kind, r.Nest, r.Prio)
	case kernel.Post:
		return fmt.Sprintf("%s nest=%d prio=%d pending=%d", r.Kind, r.Nest, r.Prio, r.Arg)
	default:
		return fmt.Sprintf("kind(%d) nest=%d prio=%d arg=%d", uint8(r.Kind), r.Nest, r.Prio, r.Arg)
	}
}
