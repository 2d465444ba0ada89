package dnn

import (
	"sync"
	"time"

	"github.com/born-ml/lower/internal/metrics"
	"github.com/pkg/errors"
)

// Stream executes submitted primitives in order on a background goroutine.
// After a primitive fails, the remaining submissions up to the next Wait are
// skipped and Wait reports the failure.
type Stream struct {
	engine *Engine
	queue  chan task
	done   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

type task struct {
	prim  Primitive
	args  Args
	fence chan struct{}
}

// NewStream starts a stream on eng.
func NewStream(eng *Engine) *Stream {
	s := &Stream{
		engine: eng,
		queue:  make(chan task, 64),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Stream) run() {
	defer close(s.done)
	for t := range s.queue {
		if t.fence != nil {
			close(t.fence)
			continue
		}
		s.mu.Lock()
		failed := s.err != nil
		s.mu.Unlock()
		if failed {
			continue
		}
		if err := s.execute(t); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}
}

func (s *Stream) execute(t task) (err error) {
	kind := t.prim.Kind().String()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrExecution, "%s: %v", kind, r)
		}
		metrics.RecordPrimitive(kind, time.Since(start), err)
		if err != nil {
			s.engine.log.Warn().Err(err).Str("kind", kind).Msg("primitive failed")
		}
	}()
	if err := t.prim.Execute(t.args); err != nil {
		return errors.Wrap(err, kind)
	}
	return nil
}

// Submit queues p for execution with args. Memories in args are read when the
// primitive runs, so rebinding them before Wait affects queued work.
func (s *Stream) Submit(p Primitive, args Args) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.Wrap(ErrExecution, "submit on closed stream")
	}
	s.queue <- task{prim: p, args: args}
	return nil
}

// Wait blocks until every submitted primitive has run and returns the first
// failure since the previous Wait.
func (s *Stream) Wait() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.Wrap(ErrExecution, "wait on closed stream")
	}
	fence := make(chan struct{})
	s.queue <- task{fence: fence}
	<-fence

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// Close stops the stream after draining queued work. It is safe to call more
// than once.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.queue)
	<-s.done
}

// Run executes p once on a temporary stream and waits for it.
func Run(eng *Engine, p Primitive, args Args) error {
	s := NewStream(eng)
	defer s.Close()
	if err := s.Submit(p, args); err != nil {
		return err
	}
	return s.Wait()
}
