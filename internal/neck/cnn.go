package neck

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	seqnn "github.com/born-ml/seqneck/internal/nn"
)

const (
	// ConvDecoderHeight is the only input height a ConvolutionalDecoder
	// accepts: four stride-2 blocks reduce it to 1.
	ConvDecoderHeight = 16

	convDecoderBlocks = 4
)

// ConvolutionalDecoder collapses a height-16 feature map to height 1 with
// four conv blocks (3x3 kernel, padding 1, stride 2 vertically and 1
// horizontally, no conv bias), then reads it column by column.
//
//	[B, C, 16, W] -> 4 x ConvBlock -> [B, H, 1, W] -> [B, W, H]
//
// State dict keys live under "cnn_decoder." (cnn_decoder.0.conv.weight,
// cnn_decoder.3.bn.running_var, ...).
type ConvolutionalDecoder[B tensor.Backend] struct {
	inChannels int
	hiddenSize int
	cnnDecoder *nn.Sequential[B]
}

// NewConvolutionalDecoder creates a convolutional decoder for inChannels
// input channels. WithCell is ignored.
func NewConvolutionalDecoder[B tensor.Backend](inChannels int, backend B, opts ...Option) *ConvolutionalDecoder[B] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if inChannels <= 0 || o.hiddenSize <= 0 {
		panic(fmt.Sprintf("CNNDecoder: invalid sizes in=%d, hidden=%d", inChannels, o.hiddenSize))
	}

	blocks := make([]nn.Module[B], convDecoderBlocks)
	in := inChannels
	for i := range blocks {
		blocks[i] = seqnn.NewConvBlock(seqnn.ConvBlockConfig{
			InChannels:  in,
			OutChannels: o.hiddenSize,
			KernelH:     3,
			KernelW:     3,
			StrideH:     2,
			StrideW:     1,
			Padding:     1,
		}, backend)
		in = o.hiddenSize
	}

	return &ConvolutionalDecoder[B]{
		inChannels: inChannels,
		hiddenSize: o.hiddenSize,
		cnnDecoder: nn.NewSequential(blocks...),
	}
}

// Kind returns KindConvolutional.
func (d *ConvolutionalDecoder[B]) Kind() Kind {
	return KindConvolutional
}

// InChannels returns the expected input channel count.
func (d *ConvolutionalDecoder[B]) InChannels() int {
	return d.inChannels
}

// OutChannels returns the hidden width.
func (d *ConvolutionalDecoder[B]) OutChannels() int {
	return d.hiddenSize
}

// Blocks returns the four conv blocks.
func (d *ConvolutionalDecoder[B]) Blocks() []*seqnn.ConvBlock[B] {
	blocks := make([]*seqnn.ConvBlock[B], d.cnnDecoder.Len())
	for i := range blocks {
		blocks[i] = d.cnnDecoder.Module(i).(*seqnn.ConvBlock[B])
	}
	return blocks
}

// SetTraining switches every batch norm between batch statistics (true) and
// running statistics (false, the default).
func (d *ConvolutionalDecoder[B]) SetTraining(training bool) {
	for _, b := range d.Blocks() {
		b.SetTraining(training)
	}
}

// Decode maps [B, inChannels, 16, W] to [B, W, hidden].
func (d *ConvolutionalDecoder[B]) Decode(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	const op = "CNNDecoder"
	shape := x.Shape()
	if err := checkRank(op, shape, 4); err != nil {
		return nil, err
	}
	if err := checkAxis(op, shape, 1, AxisChannel, d.inChannels); err != nil {
		return nil, err
	}
	if err := checkAxis(op, shape, 2, AxisHeight, ConvDecoderHeight); err != nil {
		return nil, err
	}

	return toSequence(d.cnnDecoder.Forward(x)), nil
}

// Forward is Decode for the nn.Module interface; it panics on shape errors.
func (d *ConvolutionalDecoder[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return forward[B](d, x)
}

// Parameters returns conv weights and batch norm affine terms of every block.
func (d *ConvolutionalDecoder[B]) Parameters() []*nn.Parameter[B] {
	return d.cnnDecoder.Parameters()
}

// StateDict returns all weights and running statistics under "cnn_decoder.".
func (d *ConvolutionalDecoder[B]) StateDict() map[string]*tensor.RawTensor {
	return prefixed("cnn_decoder", d.cnnDecoder.StateDict())
}

// LoadStateDict loads weights and running statistics stored under "cnn_decoder.".
func (d *ConvolutionalDecoder[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := checkState(d.StateDict(), state); err != nil {
		return fmt.Errorf("CNNDecoder: %w", err)
	}
	if err := d.cnnDecoder.LoadStateDict(unprefixed("cnn_decoder", state)); err != nil {
		return fmt.Errorf("CNNDecoder: %w", err)
	}
	return nil
}

// String returns a PyTorch-like description.
func (d *ConvolutionalDecoder[B]) String() string {
	return fmt.Sprintf("CNNDecoder(in_channels=%d, hidden_size=%d)", d.inChannels, d.hiddenSize)
}
