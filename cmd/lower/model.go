package main

import (
	"math/rand/v2"

	"github.com/born-ml/lower/compute"
	"github.com/born-ml/lower/constant"
	"github.com/born-ml/lower/tensor"
	"github.com/pkg/errors"
)

const (
	inChannels = 3
	c1, c2     = 8, 16
	classes    = 10
)

// network holds the weights of a two-block channels-last CNN:
//
//	conv3x3(3->8) relu maxpool2 conv3x3(8->16) relu mean(HW) fc(16->10) softmax
type network struct {
	size         int
	conv1, bias1 *constant.Constant
	conv2, bias2 *constant.Constant
	fc, fcBias   *constant.Constant
}

func newNetwork(size int, seed uint64) (*network, error) {
	if size < 2 || size%2 != 0 {
		return nil, errors.Errorf("input size %d must be even and at least 2", size)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := &network{size: size}
	var err error
	if n.conv1, err = constant.FromFloat32("conv1", []int{3, 3, inChannels, c1}, randomVals(rng, 9*inChannels*c1, 0.3)); err != nil {
		return nil, err
	}
	if n.bias1, err = constant.FromFloat32("bias1", []int{c1}, randomVals(rng, c1, 0.1)); err != nil {
		return nil, err
	}
	if n.conv2, err = constant.FromFloat32("conv2", []int{3, 3, c1, c2}, randomVals(rng, 9*c1*c2, 0.15)); err != nil {
		return nil, err
	}
	if n.bias2, err = constant.FromFloat32("bias2", []int{c2}, randomVals(rng, c2, 0.1)); err != nil {
		return nil, err
	}
	if n.fc, err = constant.FromFloat32("fc", []int{c2, classes}, randomVals(rng, c2*classes, 0.5)); err != nil {
		return nil, err
	}
	if n.fcBias, err = constant.SplatFloat32("fc_bias", tensor.NewValueType(tensor.Float32, classes), 0.01); err != nil {
		return nil, err
	}
	return n, nil
}

func randomVals(rng *rand.Rand, n int, scale float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = (rng.Float32()*2 - 1) * scale
	}
	return out
}

// inputType is the NHWC type of the network input.
func (n *network) inputType() tensor.ValueType {
	return tensor.NewValueType(tensor.Float32, 1, n.size, n.size, inChannels)
}

// build lowers the network onto c, reading from x, and returns the class
// probabilities.
func (n *network) build(c *compute.Computation, x compute.Value) (compute.Value, error) {
	same := compute.ConvParams{Strides: [2]int{1, 1}, PadFront: [2]int{1, 1}, PadBack: [2]int{1, 1}}
	s, half := n.size, n.size/2

	block := func(in compute.Value, k, b *constant.Constant, out tensor.Shape, name string) (compute.Value, error) {
		kv, err := c.CreateConstantFrom(k, k.Name())
		if err != nil {
			return compute.Value{}, err
		}
		bv, err := c.CreateConstantFrom(b, b.Name())
		if err != nil {
			return compute.Value{}, err
		}
		conv, err := c.Conv(in, tensor.ChannelsLast, 1, kv, tensor.SIO, same, bv, out, name)
		if err != nil {
			return compute.Value{}, err
		}
		return c.Relu(conv, name+"_relu")
	}

	h, err := block(x, n.conv1, n.bias1, tensor.Shape{1, s, s, c1}, "conv1")
	if err != nil {
		return compute.Value{}, err
	}
	h, err = c.MaxPool(h, tensor.ChannelsLast,
		compute.PoolParams{Window: [2]int{2, 2}, Strides: [2]int{2, 2}}, tensor.Shape{1, half, half, c1}, "pool1")
	if err != nil {
		return compute.Value{}, err
	}
	h, err = block(h, n.conv2, n.bias2, tensor.Shape{1, half, half, c2}, "conv2")
	if err != nil {
		return compute.Value{}, err
	}
	h, err = c.ReduceMean(h, []int{1, 2}, false, tensor.Shape{1, c2}, "gap")
	if err != nil {
		return compute.Value{}, err
	}

	fc, err := c.CreateConstantFrom(n.fc, n.fc.Name())
	if err != nil {
		return compute.Value{}, err
	}
	fcBias, err := c.CreateConstantFrom(n.fcBias, n.fcBias.Name())
	if err != nil {
		return compute.Value{}, err
	}
	logits, err := c.Gemm(h, false, fc, false, 1, 1, fcBias, tensor.Shape{1, classes}, "logits")
	if err != nil {
		return compute.Value{}, err
	}
	return c.Softmax(logits, -1, "probs")
}
