package nn

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// ConvBlockConfig configures a ConvBlock.
type ConvBlockConfig struct {
	InChannels  int
	OutChannels int
	KernelH     int
	KernelW     int
	StrideH     int // defaults to 1 when zero
	StrideW     int // defaults to 1 when zero
	Padding     int // applied on all four sides
	Bias        bool
}

// ConvBlock is Conv2D -> BatchNorm2D -> ReLU with independent vertical and
// horizontal strides.
//
// Output spatial size:
//
//	H_out = (H + 2*padding - KernelH) / StrideH + 1
//	W_out = (W + 2*padding - KernelW) / StrideW + 1
//
// The Conv2D kernel takes a single stride. Equal strides are passed through;
// otherwise the kernel runs at stride 1 and rows and columns are subsampled,
// which selects the same output positions.
//
// State dict keys: conv.weight, conv.bias (when Bias), bn.weight, bn.bias,
// bn.running_mean, bn.running_var.
type ConvBlock[B tensor.Backend] struct {
	config ConvBlockConfig
	conv   *nn.Conv2D[B]
	bn     *BatchNorm2D[B]
}

// NewConvBlock creates a conv block.
func NewConvBlock[B tensor.Backend](config ConvBlockConfig, backend B) *ConvBlock[B] {
	if config.StrideH == 0 {
		config.StrideH = 1
	}
	if config.StrideW == 0 {
		config.StrideW = 1
	}
	if config.StrideH < 0 || config.StrideW < 0 {
		panic(fmt.Sprintf("convblock: invalid stride (%d, %d)", config.StrideH, config.StrideW))
	}

	kernelStride := 1
	if config.StrideH == config.StrideW {
		kernelStride = config.StrideH
	}

	conv := nn.NewConv2D(
		config.InChannels, config.OutChannels,
		config.KernelH, config.KernelW,
		kernelStride, config.Padding,
		config.Bias, backend,
	)

	return &ConvBlock[B]{
		config: config,
		conv:   conv,
		bn:     NewBatchNorm2D(config.OutChannels, backend),
	}
}

// Config returns the block configuration (with defaults applied).
func (b *ConvBlock[B]) Config() ConvBlockConfig {
	return b.config
}

// Conv returns the convolution layer.
func (b *ConvBlock[B]) Conv() *nn.Conv2D[B] {
	return b.conv
}

// BatchNorm returns the normalization layer.
func (b *ConvBlock[B]) BatchNorm() *BatchNorm2D[B] {
	return b.bn
}

// SetTraining switches the batch norm between batch and running statistics.
func (b *ConvBlock[B]) SetTraining(training bool) {
	b.bn.SetTraining(training)
}

// OutputSize returns the spatial output size for an input of height x width.
func (b *ConvBlock[B]) OutputSize(height, width int) (int, int) {
	c := b.config
	outH := (height+2*c.Padding-c.KernelH)/c.StrideH + 1
	outW := (width+2*c.Padding-c.KernelW)/c.StrideW + 1
	return outH, outW
}

// Forward maps [N, InChannels, H, W] to [N, OutChannels, H_out, W_out].
func (b *ConvBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("convblock: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[2]+2*b.config.Padding < b.config.KernelH || shape[3]+2*b.config.Padding < b.config.KernelW {
		panic(fmt.Sprintf("convblock: input %dx%d smaller than kernel %dx%d with padding %d",
			shape[2], shape[3], b.config.KernelH, b.config.KernelW, b.config.Padding))
	}

	y := b.conv.Forward(x)
	if b.config.StrideH != b.config.StrideW {
		y = subsampleRows(y, b.config.StrideH)
		y = subsampleCols(y, b.config.StrideW)
	}

	return ReLU(b.bn.Forward(y))
}

// subsampleRows keeps rows 0, stride, 2*stride, ... of x [N, C, H, W].
func subsampleRows[B tensor.Backend](x *tensor.Tensor[float32, B], stride int) *tensor.Tensor[float32, B] {
	if stride == 1 {
		return x
	}

	shape := x.Shape()
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]

	if pad := (stride - h%stride) % stride; pad > 0 {
		zeros := tensor.Zeros[float32](tensor.Shape{n, c, pad, w}, x.Backend())
		x = tensor.Cat([]*tensor.Tensor[float32, B]{x, zeros}, 2)
		h += pad
	}

	// Row r*stride+k lands in column block k of the merged row r.
	return x.Reshape(n, c, h/stride, stride*w).Chunk(stride, 3)[0]
}

// subsampleCols keeps columns 0, stride, 2*stride, ... of x [N, C, H, W].
func subsampleCols[B tensor.Backend](x *tensor.Tensor[float32, B], stride int) *tensor.Tensor[float32, B] {
	if stride == 1 {
		return x
	}

	shape := x.Shape()
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]

	if pad := (stride - w%stride) % stride; pad > 0 {
		zeros := tensor.Zeros[float32](tensor.Shape{n, c, h, pad}, x.Backend())
		x = tensor.Cat([]*tensor.Tensor[float32, B]{x, zeros}, 3)
		w += pad
	}

	return x.Reshape(n, c, h, w/stride, stride).Chunk(stride, 4)[0].Reshape(n, c, h, w/stride)
}

// Parameters returns the conv weights followed by the batch norm affine terms.
func (b *ConvBlock[B]) Parameters() []*nn.Parameter[B] {
	return append(b.conv.Parameters(), b.bn.Parameters()...)
}

// StateDict returns conv.* and bn.* entries.
func (b *ConvBlock[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(StateDict)
	mergeState(state, "conv", b.convState())
	mergeState(state, "bn", b.bn.StateDict())
	return state
}

// LoadStateDict loads conv.* and bn.* entries.
func (b *ConvBlock[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	convState := subState(state, "conv")
	params := b.conv.Parameters()
	if err := loadParameter(convState, "weight", params[0]); err != nil {
		return fmt.Errorf("conv: %w", err)
	}
	if b.config.Bias {
		if err := loadParameter(convState, "bias", params[1]); err != nil {
			return fmt.Errorf("conv: %w", err)
		}
	}

	if err := b.bn.LoadStateDict(subState(state, "bn")); err != nil {
		return fmt.Errorf("bn: %w", err)
	}
	return nil
}

// convState exposes the Conv2D parameters under PyTorch names.
func (b *ConvBlock[B]) convState() StateDict {
	params := b.conv.Parameters()
	state := StateDict{"weight": params[0].Tensor().Raw()}
	if b.config.Bias {
		state["bias"] = params[1].Tensor().Raw()
	}
	return state
}

// String returns a PyTorch-like description.
func (b *ConvBlock[B]) String() string {
	c := b.config
	return fmt.Sprintf("ConvBlock(%d, %d, kernel_size=(%d, %d), stride=(%d, %d), padding=%d, bias=%v)",
		c.InChannels, c.OutChannels, c.KernelH, c.KernelW, c.StrideH, c.StrideW, c.Padding, c.Bias)
}
