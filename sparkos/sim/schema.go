package sim

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"sparkrtc/sparkos/kernel"
)

//go:embed schema.cue
var schemaSource string

var ErrSchema = errors.New("scenario does not match schema")

type compiledSchema struct {
	mu       sync.Mutex
	ctx      *cue.Context
	scenario cue.Value
}

var loadSchema = sync.OnceValues(func() (*compiledSchema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling scenario schema: %w", err)
	}
	return &compiledSchema{ctx: ctx, scenario: v.LookupPath(cue.ParsePath("#Scenario"))}, nil
})

// Validate checks a YAML scenario document against the embedded CUE schema.
func Validate(name string, data []byte) error {
	var doc any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	schema, err := loadSchema()
	if err != nil {
		return err
	}
	schema.mu.Lock()
	defer schema.mu.Unlock()
	v := schema.scenario.Unify(schema.ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s: %w: %v", name, ErrSchema, err)
	}
	return nil
}

var faultNames = map[string]error{
	"nesting-underflow": kernel.ErrNestingUnderflow,
	"nesting-overflow":  kernel.ErrNestingOverflow,
	"ceiling-range":     kernel.ErrCeilingRange,
	"not-locked":        kernel.ErrNotLocked,
	"lock-order":        kernel.ErrLockOrder,
	"lock-context":      kernel.ErrLockContext,
	"lock-nest":         kernel.ErrLockNest,
	"lock-leaked":       kernel.ErrLockLeaked,
	"no-task":           kernel.ErrNoTask,
	"post-overflow":     kernel.ErrPostOverflow,
}

// FaultName returns the scenario name of a kernel fault, or "" for nil.
func FaultName(f *kernel.Fault) string {
	if f == nil {
		return ""
	}
	for name, err := range faultNames {
		if errors.Is(f, err) {
			return name
		}
	}
	return f.Err.Error()
}
