package tensor

import "fmt"

// Layout is the declared dimension ordering of an activation or a kernel.
type Layout int

// Supported layouts.
const (
	// LayoutDefault is plain row-major with no dimension semantics.
	LayoutDefault Layout = iota
	// ChannelsFirst is NCHW for activations.
	ChannelsFirst
	// ChannelsLast is NHWC for activations.
	ChannelsLast
	// SIO is a kernel stored as spatial, input, output (HWIO).
	SIO
	// OIS is a kernel stored as output, input, spatial (OIHW).
	OIS
	// IOS is a kernel stored as input, output, spatial (IOHW).
	IOS

	numLayouts
)

type layoutTraits struct {
	name     string
	isKernel bool
}

var layouts = [...]layoutTraits{
	LayoutDefault: {name: "default"},
	ChannelsFirst: {name: "channels_first"},
	ChannelsLast:  {name: "channels_last"},
	SIO:           {name: "sio", isKernel: true},
	OIS:           {name: "ois", isKernel: true},
	IOS:           {name: "ios", isKernel: true},
}

var _ = [1]struct{}{}[len(layouts)-int(numLayouts)]

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return l >= 0 && l < numLayouts
}

// IsKernel reports whether l describes a convolution kernel.
func (l Layout) IsKernel() bool {
	return l.Valid() && layouts[l].isKernel
}

// String returns the layout name.
func (l Layout) String() string {
	if !l.Valid() {
		return fmt.Sprintf("unknown(%d)", int(l))
	}
	return layouts[l].name
}

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}
