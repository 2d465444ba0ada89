package dnn

import (
	"github.com/born-ml/lower/internal/parallel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// EngineKind selects the device an engine runs on.
type EngineKind int

// Engine kinds. Only CPU engines can be created.
const (
	CPU EngineKind = iota
	GPU
)

func (k EngineKind) String() string {
	if k == CPU {
		return "cpu"
	}
	return "gpu"
}

// Engine owns the settings shared by every primitive and memory created for
// it.
type Engine struct {
	kind  EngineKind
	index int
	par   parallel.Config
	log   zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithParallel sets the worker configuration used by kernels.
func WithParallel(cfg parallel.Config) EngineOption {
	return func(e *Engine) { e.par = cfg }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine of the given kind and device index.
func NewEngine(kind EngineKind, index int, opts ...EngineOption) (*Engine, error) {
	if kind != CPU {
		return nil, errors.Wrapf(ErrInvalidDesc, "engine kind %s not available", kind)
	}
	if index != 0 {
		return nil, errors.Wrapf(ErrInvalidDesc, "cpu engine index %d", index)
	}
	e := &Engine{kind: kind, par: parallel.DefaultConfig(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Kind returns the engine kind.
func (e *Engine) Kind() EngineKind { return e.kind }

// Parallel returns the kernel worker configuration.
func (e *Engine) Parallel() parallel.Config { return e.par }
