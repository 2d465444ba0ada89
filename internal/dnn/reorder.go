package dnn

import (
	"slices"

	"github.com/born-ml/lower/internal/tensor"
	"github.com/pkg/errors"
)

// Reorder copies a memory from one layout and element type to another with
// the same logical dims.
type Reorder struct {
	from, to Desc
}

// NewReorder builds a reorder between two concrete descriptors.
func NewReorder(from, to Desc) (*Reorder, error) {
	if from.IsAny() || to.IsAny() || from.IsZero() || to.IsZero() {
		return nil, errors.Wrapf(ErrInvalidDesc, "reorder %s -> %s needs concrete formats", from, to)
	}
	if !slices.Equal(from.dims, to.dims) {
		return nil, errors.Wrapf(ErrInvalidDesc, "reorder dims %v -> %v", from.dims, to.dims)
	}
	return &Reorder{from: from, to: to}, nil
}

// Kind implements Primitive.
func (r *Reorder) Kind() Kind { return KindReorder }

// From returns the source descriptor.
func (r *Reorder) From() Desc { return r.from }

// To returns the destination descriptor.
func (r *Reorder) To() Desc { return r.to }

// Execute implements Primitive.
func (r *Reorder) Execute(args Args) error {
	src, err := args.argData(ArgFrom, r.from)
	if err != nil {
		return err
	}
	dst, err := args.argData(ArgTo, r.to)
	if err != nil {
		return err
	}

	dense := pack(r.from, src)
	fromType, toType := r.from.dtype, r.to.dtype
	switch {
	case fromType == toType:
	case !fromType.IsFloat() && !toType.IsFloat():
		vals, err := tensor.DecodeInt64(dense, fromType)
		if err != nil {
			return err
		}
		dense = make([]byte, len(vals)*toType.Size())
		if err := tensor.EncodeInt64(dense, vals, toType); err != nil {
			return errors.Wrap(ErrExecution, err.Error())
		}
	default:
		vals, err := tensor.DecodeFloat32(dense, fromType)
		if err != nil {
			return err
		}
		dense = make([]byte, len(vals)*toType.Size())
		if err := tensor.EncodeFloat32(dense, vals, toType); err != nil {
			return err
		}
	}
	unpack(r.to, dense, dst)
	return nil
}
