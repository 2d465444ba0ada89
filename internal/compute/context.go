package compute

import (
	"fmt"
	"time"

	"github.com/born-ml/lower/internal/dnn"
	"github.com/born-ml/lower/internal/metrics"
	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// ComputeMode selects the pass Execute runs.
type ComputeMode int

// Compute modes.
const (
	Inference ComputeMode = iota
	Training
)

func (m ComputeMode) String() string {
	switch m {
	case Inference:
		return "inference"
	case Training:
		return "training"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Context binds caller buffers to a Computation and executes its plan. It
// owns one stream, created on first use.
//
// Executing two Contexts of the same Computation concurrently is unsafe:
// bindings repoint memories shared by both.
type Context struct {
	comp      *Computation
	stream    *dnn.Stream
	destroyed bool
}

// NewContext creates an execution context for c. Its stream goroutine lives
// until Context.Destroy or Computation.Destroy, whichever comes first.
func (c *Computation) NewContext() (*Context, error) {
	if c.destroyed {
		return nil, errors.Wrap(ErrInvalidValue, "computation destroyed")
	}
	ctx := &Context{comp: c}
	c.contexts[ctx] = struct{}{}
	return ctx, nil
}

// Computation returns the Computation the context executes.
func (ctx *Context) Computation() *Computation { return ctx.comp }

// Destroy closes the stream. The Computation is unaffected.
func (ctx *Context) Destroy() {
	if ctx.destroyed {
		return
	}
	if ctx.stream != nil {
		ctx.stream.Close()
		ctx.stream = nil
	}
	delete(ctx.comp.contexts, ctx)
	ctx.destroyed = true
}

func (ctx *Context) check() error {
	switch {
	case ctx.destroyed:
		return errors.Wrap(ErrInvalidValue, "context destroyed")
	case ctx.comp.destroyed:
		return errors.Wrap(ErrInvalidValue, "computation destroyed")
	}
	return nil
}

// BindArgument points an argument value at data without copying. data must
// hold the value densely packed and stay valid while the context executes.
func (ctx *Context) BindArgument(v Value, data []byte) error {
	if err := ctx.check(); err != nil {
		return err
	}
	r, err := ctx.comp.record(v)
	if err != nil {
		return err
	}
	if r.isConst {
		return errors.Wrap(ErrInvalidValue, "cannot bind a constant as an argument")
	}
	return bindMemory(r, data)
}

// BindArgumentByName binds the argument registered under name.
func (ctx *Context) BindArgumentByName(name string, data []byte) error {
	if err := ctx.check(); err != nil {
		return err
	}
	v, ok := ctx.comp.inputs[name]
	if !ok {
		return errors.Wrapf(ErrLookup, "argument %q", name)
	}
	return ctx.BindArgument(v, data)
}

// BindOutput points an output value at data so that execution writes into
// it. A constant output has nothing to compute, so its contents are copied
// into data instead.
func (ctx *Context) BindOutput(v Value, data []byte) error {
	if err := ctx.check(); err != nil {
		return err
	}
	r, err := ctx.comp.record(v)
	if err != nil {
		return err
	}
	if r.isConst {
		n := r.typ.ByteSize()
		if len(data) < n {
			return errors.Wrapf(ErrInvalidValue, "output %s needs %d bytes, got %d", r.typ, n, len(data))
		}
		copy(data, r.mem.Data()[:n])
		return nil
	}
	return bindMemory(r, data)
}

// BindOutputByName binds the output marked under name.
func (ctx *Context) BindOutputByName(name string, data []byte) error {
	if err := ctx.check(); err != nil {
		return err
	}
	v, ok := ctx.comp.outputs[name]
	if !ok {
		return errors.Wrapf(ErrLookup, "output %q", name)
	}
	return ctx.BindOutput(v, data)
}

// Execute replays the plan in order and blocks until it completes.
func (ctx *Context) Execute(mode ComputeMode, device tensor.Device) error {
	if err := ctx.check(); err != nil {
		return err
	}
	if mode != Inference {
		return errors.Wrapf(ErrUnsupported, "compute mode %s", mode)
	}
	if device != tensor.CPU {
		return errors.Wrapf(ErrUnsupported, "device %s", device)
	}
	return ctx.run()
}

func (ctx *Context) run() error {
	c := ctx.comp
	if ctx.stream == nil {
		ctx.stream = dnn.NewStream(c.engine)
	}
	start := time.Now()
	for i, e := range c.plan {
		if err := ctx.stream.Submit(e.prim, e.args); err != nil {
			return native(err, "submit entry %d (%s)", i, e.op)
		}
	}
	if err := ctx.stream.Wait(); err != nil {
		return native(err, "execute")
	}
	metrics.RecordExecution(c.mode.String(), len(c.plan))
	c.log.Debug().Int("entries", len(c.plan)).Dur("took", time.Since(start)).Msg("plan executed")
	return nil
}
