package dnn

import (
	"github.com/pkg/errors"
)

// Memory pairs a descriptor with a byte buffer. The buffer is either allocated
// by the engine or supplied by the caller, in which case it is aliased.
type Memory struct {
	desc   Desc
	data   []byte
	engine *Engine
}

// NewMemory allocates a zeroed buffer large enough for desc.
func NewMemory(desc Desc, eng *Engine) (*Memory, error) {
	if desc.IsAny() || desc.IsZero() {
		return nil, errors.Wrapf(ErrInvalidDesc, "cannot allocate memory for %s", desc)
	}
	return &Memory{desc: desc, data: make([]byte, desc.Size()), engine: eng}, nil
}

// NewMemoryWithData wraps data without copying. A nil data leaves the memory
// unbound until SetData is called.
func NewMemoryWithData(desc Desc, eng *Engine, data []byte) (*Memory, error) {
	if desc.IsAny() || desc.IsZero() {
		return nil, errors.Wrapf(ErrInvalidDesc, "cannot wrap memory for %s", desc)
	}
	m := &Memory{desc: desc, engine: eng}
	if data != nil {
		if err := m.SetData(data); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Desc returns the memory descriptor.
func (m *Memory) Desc() Desc { return m.desc }

// Engine returns the engine the memory belongs to.
func (m *Memory) Engine() *Engine { return m.engine }

// Data returns the backing buffer, nil when unbound.
func (m *Memory) Data() []byte { return m.data }

// SetData repoints the memory at data without copying.
func (m *Memory) SetData(data []byte) error {
	if len(data) < m.desc.Size() {
		return errors.Wrapf(ErrExecution, "buffer of %d bytes for %s needs %d", len(data), m.desc, m.desc.Size())
	}
	m.data = data
	return nil
}

// Args maps argument slots to memories for one primitive execution.
type Args map[int]*Memory

// Argument slots.
const (
	ArgSrc = iota + 1
	ArgSrc1
	ArgDst
	ArgWeights
	ArgMean
	ArgVariance
	ArgScaleShift

	// ArgMultipleSrc is the first slot of a variadic source list.
	ArgMultipleSrc = 1024
)

// Reorder slots alias the source and destination slots.
const (
	ArgFrom = ArgSrc
	ArgTo   = ArgDst
)

// argData returns the bytes bound to slot, checked against the descriptor the
// primitive reads them through.
func (a Args) argData(slot int, d Desc) ([]byte, error) {
	m, ok := a[slot]
	if !ok || m == nil {
		return nil, errors.Wrapf(ErrExecution, "argument %d missing", slot)
	}
	if m.data == nil {
		return nil, errors.Wrapf(ErrExecution, "argument %d not bound", slot)
	}
	if len(m.data) < d.Size() {
		return nil, errors.Wrapf(ErrExecution, "argument %d holds %d bytes, %s needs %d", slot, len(m.data), d, d.Size())
	}
	return m.data, nil
}
