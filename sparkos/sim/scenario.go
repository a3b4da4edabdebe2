// Package sim runs kernel scenarios on the simulated CPU.
//
// A scenario declares tasks and a run script of ops. Ops are short shell-like
// strings:
//
//	post <task>          queue an activation of a task
//	lock <ceiling>       take the scheduler lock
//	unlock [skip]        release the innermost lock, or the one skip entries below it
//	irq <vector> [op]... take an interrupt whose handler runs the quoted ops
//	enter [vector]       take an interrupt and call EnterInterrupt only
//	exit                 call ExitInterrupt and return from the innermost exception
//	note <text>          add a marker to the trace
//
// A handler body may also be written in block form, {irq: <vector>, do: [ops]}.
package sim

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/buildkite/shellwords"
	"gopkg.in/yaml.v3"

	"sparkrtc/sparkos/kernel"
)

const defaultVector = 16

var (
	ErrUnknownOp   = errors.New("unknown op")
	ErrOpArgs      = errors.New("bad op arguments")
	ErrUnknownTask = errors.New("unknown task")
)

// OpKind identifies an op.
type OpKind int

const (
	OpPost OpKind = iota + 1
	OpLock
	OpUnlock
	OpIRQ
	OpEnter
	OpExit
	OpNote
)

// Op is one step of a run script or body.
type Op struct {
	Kind    OpKind
	Task    string
	Ceiling kernel.Priority
	Skip    int
	Vector  uint32
	Body    []Op
	Text    string
}

func (o Op) String() string {
	switch o.Kind {
	case OpPost:
		return "post " + o.Task
	case OpLock:
		return fmt.Sprintf("lock %d", o.Ceiling)
	case OpUnlock:
		if o.Skip > 0 {
			return fmt.Sprintf("unlock %d", o.Skip)
		}
		return "unlock"
	case OpIRQ:
		parts := []string{fmt.Sprintf("irq %d", o.Vector)}
		for _, b := range o.Body {
			parts = append(parts, shellwords.Quote(b.String()))
		}
		return strings.Join(parts, " ")
	case OpEnter:
		return fmt.Sprintf("enter %d", o.Vector)
	case OpExit:
		return "exit"
	case OpNote:
		return "note " + o.Text
	default:
		return fmt.Sprintf("op(%d)", int(o.Kind))
	}
}

// ParseOp parses the string form of an op.
func ParseOp(line string) (Op, error) {
	words, err := shellwords.Split(line)
	if err != nil {
		return Op{}, fmt.Errorf("%q: %w", line, err)
	}
	if len(words) == 0 {
		return Op{}, fmt.Errorf("%w: empty op", ErrUnknownOp)
	}

	args := words[1:]
	bad := func(format string, a ...any) (Op, error) {
		return Op{}, fmt.Errorf("%w: %q: %s", ErrOpArgs, line, fmt.Sprintf(format, a...))
	}

	switch words[0] {
	case "post":
		if len(args) != 1 {
			return bad("want post <task>")
		}
		return Op{Kind: OpPost, Task: args[0]}, nil

	case "lock":
		if len(args) != 1 {
			return bad("want lock <ceiling>")
		}
		c, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return bad("ceiling: %v", err)
		}
		return Op{Kind: OpLock, Ceiling: kernel.Priority(c)}, nil

	case "unlock":
		switch len(args) {
		case 0:
			return Op{Kind: OpUnlock}, nil
		case 1:
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return bad("skip must be a non-negative integer")
			}
			return Op{Kind: OpUnlock, Skip: n}, nil
		default:
			return bad("want unlock [skip]")
		}

	case "irq":
		if len(args) == 0 {
			return bad("want irq <vector> [op]...")
		}
		v, err := parseVector(args[0])
		if err != nil {
			return bad("%v", err)
		}
		op := Op{Kind: OpIRQ, Vector: v}
		for _, sub := range args[1:] {
			b, err := ParseOp(sub)
			if err != nil {
				return Op{}, err
			}
			op.Body = append(op.Body, b)
		}
		return op, nil

	case "enter":
		op := Op{Kind: OpEnter, Vector: defaultVector}
		if len(args) > 1 {
			return bad("want enter [vector]")
		}
		if len(args) == 1 {
			v, err := parseVector(args[0])
			if err != nil {
				return bad("%v", err)
			}
			op.Vector = v
		}
		return op, nil

	case "exit":
		if len(args) != 0 {
			return bad("exit takes no arguments")
		}
		return Op{Kind: OpExit}, nil

	case "note":
		return Op{Kind: OpNote, Text: strings.Join(args, " ")}, nil
	}
	return Op{}, fmt.Errorf("%w: %q", ErrUnknownOp, words[0])
}

func parseVector(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("vector: %w", err)
	}
	if v < 16 || v > 255 {
		return 0, fmt.Errorf("vector %d outside 16..255", v)
	}
	return uint32(v), nil
}

type irqBlock struct {
	IRQ uint32 `yaml:"irq"`
	Do  []Op   `yaml:"do"`
}

// UnmarshalYAML accepts the string form or the {irq, do} block form.
func (o *Op) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		op, err := ParseOp(n.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*o = op
		return nil
	case yaml.MappingNode:
		var b irqBlock
		if err := n.Decode(&b); err != nil {
			return err
		}
		if _, err := parseVector(strconv.FormatUint(uint64(b.IRQ), 10)); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*o = Op{Kind: OpIRQ, Vector: b.IRQ, Body: b.Do}
		return nil
	}
	return fmt.Errorf("line %d: op must be a string or an irq block", n.Line)
}

// TaskSpec declares one task.
type TaskSpec struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
	Body     []Op   `yaml:"body"`
}

// Expect lists the checks made after a run. Unset fields are not checked.
type Expect struct {
	Ceiling *int     `yaml:"ceiling"`
	Nest    *int     `yaml:"nest"`
	Order   []string `yaml:"order"`
	Fault   string   `yaml:"fault"`
}

// Scenario is a decoded scenario file.
type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Tasks       []TaskSpec `yaml:"tasks"`
	Run         []Op       `yaml:"run"`
	Expect      Expect     `yaml:"expect"`
}

// Parse validates data against the scenario schema and decodes it.
func Parse(name string, data []byte) (*Scenario, error) {
	if err := Validate(name, data); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := s.check(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &s, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// check resolves task references, which the schema cannot see.
func (s *Scenario) check() error {
	names := make(map[string]bool, len(s.Tasks))
	prios := make(map[int]string, len(s.Tasks))
	for _, t := range s.Tasks {
		if names[t.Name] {
			return fmt.Errorf("task %q declared twice", t.Name)
		}
		if other, ok := prios[t.Priority]; ok {
			return fmt.Errorf("tasks %q and %q share priority %d", other, t.Name, t.Priority)
		}
		names[t.Name] = true
		prios[t.Priority] = t.Name
	}

	var walk func(ops []Op) error
	walk = func(ops []Op) error {
		for _, op := range ops {
			if op.Kind == OpPost && !names[op.Task] {
				return fmt.Errorf("%w: %q", ErrUnknownTask, op.Task)
			}
			if err := walk(op.Body); err != nil {
				return err
			}
		}
		return nil
	}
	for _, t := range s.Tasks {
		if err := walk(t.Body); err != nil {
			return fmt.Errorf("task %s: %w", t.Name, err)
		}
	}
	if err := walk(s.Run); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	for _, name := range s.Expect.Order {
		if !names[name] {
			return fmt.Errorf("expect.order: %w: %q", ErrUnknownTask, name)
		}
	}
	if s.Expect.Fault != "" {
		if _, ok := faultNames[s.Expect.Fault]; !ok {
			return fmt.Errorf("expect.fault: unknown fault %q", s.Expect.Fault)
		}
	}
	return nil
}
