// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package compute builds tensor computations and lowers them onto CPU kernel
// primitives.
//
// A Computation is built op by op. Each op lowering validates its operands,
// appends one or more primitive steps to the execution plan and returns a
// Value for its result. A failed lowering leaves the Computation exactly as
// it was before the call.
//
//	c, _ := compute.New()
//	defer c.Destroy()
//
//	x, _ := c.CreateArgument(tensor.NewValueType(tensor.Float32, 1, 4), "x")
//	y, _ := c.Relu(x, "y")
//	_ = c.SetOutput(y)
//
//	ctx, _ := c.NewContext()
//	defer ctx.Destroy()
//	_ = ctx.BindArgumentByName("x", tensor.Bytes(in))
//	_ = ctx.BindOutputByName("y", tensor.Bytes(out))
//	_ = ctx.Execute(compute.Inference, tensor.CPU)
//
// # Modes
//
// In Compiled mode the plan is replayed by every Context.Execute. In
// Immediate mode each lowering runs its steps at once, so values can be read
// back with GetValueData while the graph is still being built.
//
// # Errors
//
// Every error wraps one of the Err* classes; StatusOf maps it to a Status.
package compute

import (
	"github.com/born-ml/lower/internal/compute"
	"github.com/born-ml/lower/internal/config"
	"github.com/born-ml/lower/internal/parallel"
	"github.com/rs/zerolog"
)

// Core types

// Computation owns the values and execution plan of one graph.
type Computation = compute.Computation

// Context binds caller buffers to a Computation and executes its plan.
type Context = compute.Context

// Builder creates Computations and tracks the active one.
type Builder = compute.Builder

// Value is a handle to a value of a Computation. The zero Value is absent.
type Value = compute.Value

// ConstantSource is typed storage a constant value can be created from.
type ConstantSource = compute.ConstantSource

// ConvParams holds the spatial parameters of Conv and DeConv.
type ConvParams = compute.ConvParams

// PoolParams holds the window geometry of MaxPool and AveragePool.
type PoolParams = compute.PoolParams

// TargetOptions tune code generation for a Computation.
type TargetOptions = compute.TargetOptions

// Mode selects when plan steps run.
type Mode = compute.Mode

// ComputeMode selects the pass Execute runs.
type ComputeMode = compute.ComputeMode

// Status is the coarse result class of an API call.
type Status = compute.Status

// Option configures New.
type Option = compute.Option

// Config holds the settings loaded from LOWER_* environment variables.
type Config = config.Config

// ParallelConfig controls how kernels split work across goroutines.
type ParallelConfig = parallel.Config

// Modes
const (
	Compiled  = compute.Compiled
	Immediate = compute.Immediate
)

// Compute modes
const (
	Inference = compute.Inference
	Training  = compute.Training
)

// Statuses
const (
	Success       = compute.Success
	InvalidShape  = compute.InvalidShape
	Unsupported   = compute.Unsupported
	NativeFailure = compute.NativeFailure
	LookupFailure = compute.LookupFailure
	InvalidValue  = compute.InvalidValue
)

// Error classes
var (
	ErrInvalidShape  = compute.ErrInvalidShape
	ErrUnsupported   = compute.ErrUnsupported
	ErrNativeFailure = compute.ErrNativeFailure
	ErrLookup        = compute.ErrLookup
	ErrInvalidValue  = compute.ErrInvalidValue
)

// New creates a Computation.
func New(opts ...Option) (*Computation, error) {
	return compute.New(opts...)
}

// NewBuilder returns a Builder whose Computations get opts by default.
func NewBuilder(opts ...Option) *Builder {
	return compute.NewBuilder(opts...)
}

// Lookup returns the live Computation with the given id.
func Lookup(id uint64) (*Computation, error) {
	return compute.Lookup(id)
}

// Owner returns the live Computation a Value belongs to.
func Owner(v Value) (*Computation, error) {
	return compute.Owner(v)
}

// StatusOf maps an error to its Status.
func StatusOf(err error) Status {
	return compute.StatusOf(err)
}

// Options

// WithMode selects Compiled or Immediate execution.
func WithMode(m Mode) Option { return compute.WithMode(m) }

// WithTargetOptions sets the initial target options.
func WithTargetOptions(t TargetOptions) Option { return compute.WithTargetOptions(t) }

// WithParallel sets the kernel worker configuration.
func WithParallel(cfg ParallelConfig) Option { return compute.WithParallel(cfg) }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option { return compute.WithLogger(l) }

// WithConfig applies mode, target options and workers from cfg.
func WithConfig(cfg Config) Option { return compute.WithConfig(cfg) }

// LoadConfig reads and validates the LOWER_* environment variables.
func LoadConfig() (Config, error) {
	return config.Load()
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return config.Default()
}
