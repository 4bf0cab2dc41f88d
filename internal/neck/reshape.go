package neck

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// ReshapeAdapter flattens the spatial grid into the time axis without any
// parameters.
//
//	[B, C, H, W] -> [B, H*W, C], timestep t = h*W + w
//
// Restore is its exact inverse.
type ReshapeAdapter[B tensor.Backend] struct {
	inChannels int
}

// NewReshapeAdapter creates a reshape adapter for inChannels channels.
func NewReshapeAdapter[B tensor.Backend](inChannels int) *ReshapeAdapter[B] {
	if inChannels <= 0 {
		panic(fmt.Sprintf("Reshape: invalid channels %d", inChannels))
	}
	return &ReshapeAdapter[B]{inChannels: inChannels}
}

// Kind returns KindReshape.
func (d *ReshapeAdapter[B]) Kind() Kind {
	return KindReshape
}

// InChannels returns the expected input channel count.
func (d *ReshapeAdapter[B]) InChannels() int {
	return d.inChannels
}

// OutChannels equals InChannels.
func (d *ReshapeAdapter[B]) OutChannels() int {
	return d.inChannels
}

// Decode maps [B, C, H, W] to [B, H*W, C].
func (d *ReshapeAdapter[B]) Decode(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	const op = "Reshape"
	shape := x.Shape()
	if err := checkRank(op, shape, 4); err != nil {
		return nil, err
	}
	if err := checkAxis(op, shape, 1, AxisChannel, d.inChannels); err != nil {
		return nil, err
	}

	b, c, h, w := shape[0], shape[1], shape[2], shape[3]
	return x.Reshape(b, c, h*w).Transpose(0, 2, 1), nil
}

// Restore maps a [B, height*width, C] sequence back to [B, C, height, width].
func (d *ReshapeAdapter[B]) Restore(seq *tensor.Tensor[float32, B], height, width int) (*tensor.Tensor[float32, B], error) {
	const op = "Reshape.Restore"
	shape := seq.Shape()
	if err := checkRank(op, shape, 3); err != nil {
		return nil, err
	}
	if err := checkAxis(op, shape, 1, AxisTime, height*width); err != nil {
		return nil, err
	}
	if err := checkAxis(op, shape, 2, AxisChannel, d.inChannels); err != nil {
		return nil, err
	}

	return seq.Transpose(0, 2, 1).Reshape(shape[0], shape[2], height, width), nil
}

// Forward is Decode for the nn.Module interface; it panics on shape errors.
func (d *ReshapeAdapter[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return forward[B](d, x)
}

// Parameters returns nil.
func (d *ReshapeAdapter[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// StateDict returns an empty state dict.
func (d *ReshapeAdapter[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict accepts any state dict; there is nothing to load.
func (d *ReshapeAdapter[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}

// String returns a PyTorch-like description.
func (d *ReshapeAdapter[B]) String() string {
	return fmt.Sprintf("Reshape(in_channels=%d)", d.inChannels)
}
