// Package compute lowers a tensor-operation graph onto the kernel library in
// internal/dnn.
//
// A Computation owns a value arena and an execution plan. Each lowering
// method validates its operands, resolves memory formats, and appends one or
// more primitive steps to the plan, returning a Value for the result. A
// Context binds caller buffers to argument and output Values and replays the
// plan on a stream. In immediate mode every lowering runs its steps at once.
package compute

import (
	"fmt"
	"time"

	"github.com/born-ml/lower/internal/config"
	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/metrics"
	"github.com/born-ml/lower/internal/parallel"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Mode selects when plan steps run.
type Mode int

// Execution modes.
const (
	// Compiled builds the whole plan first; Context.Execute replays it.
	Compiled Mode = iota
	// Immediate runs each lowering's steps as soon as it is appended.
	Immediate
)

func (m Mode) String() string {
	switch m {
	case Compiled:
		return "compiled"
	case Immediate:
		return "immediate"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// TargetOptions tune code generation for a Computation.
type TargetOptions struct {
	// EnableBF16 runs convolution primitives in bfloat16.
	EnableBF16 bool
}

type options struct {
	mode   Mode
	target TargetOptions
	par    parallel.Config
	log    zerolog.Logger
}

// Option configures New.
type Option func(*options)

// WithMode selects compiled or immediate execution.
func WithMode(m Mode) Option {
	return func(o *options) { o.mode = m }
}

// WithTargetOptions sets the initial target options.
func WithTargetOptions(t TargetOptions) Option {
	return func(o *options) { o.target = t }
}

// WithParallel sets the kernel worker pool configuration.
func WithParallel(cfg parallel.Config) Option {
	return func(o *options) { o.par = cfg }
}

// WithLogger sets the logger for lowering and execution events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithConfig applies a loaded configuration: mode, target options and worker
// pool. Logging is configured separately with WithLogger.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.mode = Compiled
		if cfg.Immediate() {
			o.mode = Immediate
		}
		o.target.EnableBF16 = cfg.EnableBF16
		o.par = cfg.Parallel()
	}
}

// planEntry is one primitive execution with its argument memories.
type planEntry struct {
	op   string
	prim dnn.Primitive
	args dnn.Args
}

// repackKey identifies a constant kernel repacked into one format.
type repackKey struct {
	value int32
	desc  string
}

// checkpoint records the sizes of the append-only state before a lowering.
type checkpoint struct {
	values int
	plan   int
	undo   int
}

// Computation is a graph under construction together with its plan.
//
// A Computation is not safe for concurrent use. Distinct Computations may be
// built on different goroutines.
type Computation struct {
	id     uint64
	mode   Mode
	target TargetOptions
	engine *dnn.Engine
	log    zerolog.Logger

	values  []*valueRecord
	plan    []planEntry
	inputs  map[string]Value
	outputs map[string]Value
	// outputOrder keeps the order in which outputs were marked.
	outputOrder []string
	repacked    map[repackKey]*dnn.Memory
	undo        []func()

	implicit *Context
	// contexts are the live Contexts created by NewContext.
	contexts  map[*Context]struct{}
	destroyed bool
}

// New creates a Computation on the CPU engine and registers it.
func New(opts ...Option) (*Computation, error) {
	o := options{mode: Compiled, par: parallel.DefaultConfig(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mode != Compiled && o.mode != Immediate {
		return nil, errors.Wrapf(ErrUnsupported, "mode %s", o.mode)
	}
	eng, err := dnn.NewEngine(dnn.CPU, 0, dnn.WithParallel(o.par), dnn.WithLogger(o.log))
	if err != nil {
		return nil, native(err, "create engine")
	}
	c := &Computation{
		mode:     o.mode,
		target:   o.target,
		engine:   eng,
		inputs:   make(map[string]Value),
		outputs:  make(map[string]Value),
		repacked: make(map[repackKey]*dnn.Memory),
		contexts: make(map[*Context]struct{}),
	}
	c.id = register(c)
	c.log = o.log.With().Uint64("computation", c.id).Logger()
	c.log.Debug().Str("mode", c.mode.String()).Bool("bf16", c.target.EnableBF16).Msg("computation created")
	return c, nil
}

// ID returns the registry identifier of the Computation.
func (c *Computation) ID() uint64 { return c.id }

// Mode returns the execution mode chosen at construction.
func (c *Computation) Mode() Mode { return c.mode }

// TargetOptions returns the current target options.
func (c *Computation) TargetOptions() TargetOptions { return c.target }

// ConfigTargetOptions replaces the target options. It affects lowerings
// appended afterwards.
func (c *Computation) ConfigTargetOptions(t TargetOptions) error {
	if c.destroyed {
		return errors.Wrap(ErrInvalidValue, "computation destroyed")
	}
	c.target = t
	return nil
}

// PlanLen returns the number of plan entries.
func (c *Computation) PlanLen() int { return len(c.plan) }

// Outputs returns the names of the marked outputs in marking order.
func (c *Computation) Outputs() []string {
	out := make([]string, len(c.outputOrder))
	copy(out, c.outputOrder)
	return out
}

// Destroy releases the plan and the value arena and removes the Computation
// from the registry. Values and Contexts of a destroyed Computation are
// invalid.
func (c *Computation) Destroy() {
	if c.destroyed {
		return
	}
	if c.implicit != nil {
		c.implicit.Destroy()
		c.implicit = nil
	}
	for ctx := range c.contexts {
		ctx.Destroy()
	}
	c.contexts = nil
	unregister(c.id)
	c.values = nil
	c.plan = nil
	c.inputs = nil
	c.outputs = nil
	c.outputOrder = nil
	c.repacked = nil
	c.undo = nil
	c.destroyed = true
	c.log.Debug().Msg("computation destroyed")
}

// lower runs build as one atomic lowering. On failure every change build made
// is undone. In immediate mode the appended steps are executed before lower
// returns.
func (c *Computation) lower(op string, build func() (Value, error)) (Value, error) {
	if c.destroyed {
		return Value{}, errors.Wrapf(ErrInvalidValue, "%s on destroyed computation", op)
	}
	cp := c.checkpoint()
	v, err := build()
	if err == nil {
		err = c.interpretIfNeeded()
	}
	if err != nil {
		c.rollback(cp)
		class := StatusOf(err)
		metrics.RecordLoweringError(op, class.String())
		c.log.Warn().Err(err).Str("op", op).Str("class", class.String()).Msg("lowering rolled back")
		return Value{}, errors.WithMessage(err, op)
	}
	c.undo = c.undo[:0]
	return v, nil
}

func (c *Computation) checkpoint() checkpoint {
	return checkpoint{values: len(c.values), plan: len(c.plan), undo: len(c.undo)}
}

func (c *Computation) rollback(cp checkpoint) {
	for i := len(c.undo) - 1; i >= cp.undo; i-- {
		c.undo[i]()
	}
	c.undo = c.undo[:cp.undo]
	clear(c.values[cp.values:])
	c.values = c.values[:cp.values]
	clear(c.plan[cp.plan:])
	c.plan = c.plan[:cp.plan]
}

// onRollback registers fn to run if the current lowering fails.
func (c *Computation) onRollback(fn func()) {
	c.undo = append(c.undo, fn)
}

// interpretIfNeeded executes and clears the plan in immediate mode.
func (c *Computation) interpretIfNeeded() error {
	if c.mode != Immediate || len(c.plan) == 0 {
		return nil
	}
	if c.implicit == nil {
		c.implicit = &Context{comp: c}
	}
	err := c.implicit.run()
	clear(c.plan)
	c.plan = c.plan[:0]
	return err
}

// appendStep builds the argument map and appends one plan entry.
func (c *Computation) appendStep(op string, prim dnn.Primitive, args dnn.Args) {
	c.plan = append(c.plan, planEntry{op: op, prim: prim, args: args})
	c.log.Debug().
		Str("op", op).
		Stringer("primitive", prim.Kind()).
		Int("entry", len(c.plan)-1).
		Msg("plan append")
}

// newMemory allocates engine-owned memory for d.
func (c *Computation) newMemory(d dnn.Desc) (*dnn.Memory, error) {
	m, err := dnn.NewMemory(d, c.engine)
	return m, native(err, "allocate %s", d)
}

// reorderStep appends a repack of from into a new memory described by to and
// returns the new memory.
func (c *Computation) reorderStep(op, operand string, from dnn.Desc, src *dnn.Memory, to dnn.Desc) (*dnn.Memory, error) {
	r, err := dnn.NewReorder(from, to)
	if err != nil {
		return nil, native(err, "%s: repack %s", op, operand)
	}
	dst, err := c.newMemory(to)
	if err != nil {
		return nil, err
	}
	c.appendStep(op, r, dnn.Args{dnn.ArgFrom: src, dnn.ArgTo: dst})
	metrics.RecordRepack(operand, "plan")
	c.log.Debug().Str("op", op).Str("operand", operand).Stringer("from", from).Stringer("to", to).Msg("repack queued")
	return dst, nil
}

// reorderNow repacks src into a new memory synchronously, at build time.
func (c *Computation) reorderNow(op, operand string, from dnn.Desc, src *dnn.Memory, to dnn.Desc) (*dnn.Memory, error) {
	r, err := dnn.NewReorder(from, to)
	if err != nil {
		return nil, native(err, "%s: repack %s", op, operand)
	}
	dst, err := c.newMemory(to)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := dnn.Run(c.engine, r, dnn.Args{dnn.ArgFrom: src, dnn.ArgTo: dst}); err != nil {
		return nil, native(err, "%s: repack %s", op, operand)
	}
	metrics.RecordRepack(operand, "build")
	c.log.Debug().
		Str("op", op).
		Str("operand", operand).
		Stringer("from", from).
		Stringer("to", to).
		Dur("took", time.Since(start)).
		Msg("repacked at build time")
	return dst, nil
}

// requireFloat rejects integer element types for float-only primitives.
func requireFloat(op string, dt tensor.DataType) error {
	if !dt.IsFloat() {
		return errors.Wrapf(ErrUnsupported, "%s on %s elements", op, dt)
	}
	return nil
}
