package compute

import (
	"sync"

	"github.com/pkg/errors"
)

// registry holds every live Computation so that handles stay resolvable from
// any goroutine until Destroy.
var registry = struct {
	sync.Mutex
	next  uint64
	comps map[uint64]*Computation
}{comps: make(map[uint64]*Computation)}

func register(c *Computation) uint64 {
	registry.Lock()
	defer registry.Unlock()
	registry.next++
	registry.comps[registry.next] = c
	return registry.next
}

func unregister(id uint64) {
	registry.Lock()
	defer registry.Unlock()
	delete(registry.comps, id)
}

// Lookup returns the live Computation with the given id.
func Lookup(id uint64) (*Computation, error) {
	registry.Lock()
	defer registry.Unlock()
	c, ok := registry.comps[id]
	if !ok {
		return nil, errors.Wrapf(ErrLookup, "computation %d", id)
	}
	return c, nil
}

// Owner returns the Computation a value belongs to.
func Owner(v Value) (*Computation, error) {
	if !v.IsValid() {
		return nil, errors.Wrap(ErrInvalidValue, "absent value")
	}
	return Lookup(v.comp)
}

// Builder tracks the Computation that graph construction currently targets.
// Each goroutine building graphs should use its own Builder.
type Builder struct {
	opts   []Option
	active *Computation
}

// NewBuilder returns a Builder whose New calls apply opts before their own.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{opts: opts}
}

// New creates a Computation and makes it active.
func (b *Builder) New(opts ...Option) (*Computation, error) {
	all := make([]Option, 0, len(b.opts)+len(opts))
	all = append(all, b.opts...)
	all = append(all, opts...)
	c, err := New(all...)
	if err != nil {
		return nil, err
	}
	b.active = c
	return c, nil
}

// SetActive makes a live Computation the target of construction.
func (b *Builder) SetActive(c *Computation) error {
	if c == nil {
		return errors.Wrap(ErrInvalidValue, "nil computation")
	}
	if _, err := Lookup(c.id); err != nil {
		return err
	}
	b.active = c
	return nil
}

// Active returns the active Computation.
func (b *Builder) Active() (*Computation, error) {
	if b.active == nil || b.active.destroyed {
		return nil, errors.Wrap(ErrInvalidValue, "no active computation")
	}
	return b.active, nil
}

// NewContext creates an execution context for the active Computation.
func (b *Builder) NewContext() (*Context, error) {
	c, err := b.Active()
	if err != nil {
		return nil, err
	}
	return c.NewContext()
}
