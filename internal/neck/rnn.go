package neck

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	seqnn "github.com/born-ml/seqneck/internal/nn"
)

// DefaultHiddenSize is the hidden width used when no option overrides it.
const DefaultHiddenSize = 256

// Option configures a decoder constructor.
type Option func(*options)

type options struct {
	hiddenSize int
	cell       seqnn.CellKind
}

func defaultOptions() options {
	return options{
		hiddenSize: DefaultHiddenSize,
		cell:       seqnn.LSTM,
	}
}

// WithHiddenSize sets the hidden width (default 256).
func WithHiddenSize(hidden int) Option {
	return func(o *options) {
		o.hiddenSize = hidden
	}
}

// WithCell selects the recurrent cell of a RecurrentDecoder (default LSTM).
// Other decoders ignore it.
func WithCell(cell seqnn.CellKind) Option {
	return func(o *options) {
		o.cell = cell
	}
}

// RecurrentDecoder reads a height-1 feature map column by column with two
// stacked bidirectional recurrent blocks.
//
//	[B, C, 1, W] -> squeeze -> [B, W, C] -> block(C -> H) -> block(H -> H) -> [B, W, H]
//
// Both blocks project their 2H bidirectional features back to H.
// State dict keys live under "lstm." (lstm.0.rnn.weight_ih_l0, lstm.1.fc.bias, ...)
// regardless of the cell, matching the checkpoints this decoder loads.
type RecurrentDecoder[B tensor.Backend] struct {
	inChannels int
	hiddenSize int
	cell       seqnn.CellKind
	lstm       *nn.Sequential[B]
}

// NewRecurrentDecoder creates a recurrent decoder for inChannels input channels.
func NewRecurrentDecoder[B tensor.Backend](inChannels int, backend B, opts ...Option) *RecurrentDecoder[B] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if inChannels <= 0 || o.hiddenSize <= 0 {
		panic(fmt.Sprintf("RNNDecoder: invalid sizes in=%d, hidden=%d", inChannels, o.hiddenSize))
	}

	block := func(in int) *seqnn.Block[B] {
		return seqnn.NewBlock(seqnn.BlockConfig{
			Cell:       o.cell,
			InputSize:  in,
			HiddenSize: o.hiddenSize,
			Project:    true,
		}, backend)
	}

	return &RecurrentDecoder[B]{
		inChannels: inChannels,
		hiddenSize: o.hiddenSize,
		cell:       o.cell,
		lstm:       nn.NewSequential[B](block(inChannels), block(o.hiddenSize)),
	}
}

// Kind returns KindRecurrent.
func (d *RecurrentDecoder[B]) Kind() Kind {
	return KindRecurrent
}

// InChannels returns the expected input channel count.
func (d *RecurrentDecoder[B]) InChannels() int {
	return d.inChannels
}

// OutChannels returns the hidden width.
func (d *RecurrentDecoder[B]) OutChannels() int {
	return d.hiddenSize
}

// Cell returns the recurrent cell kind.
func (d *RecurrentDecoder[B]) Cell() seqnn.CellKind {
	return d.cell
}

// Blocks returns the two recurrent blocks.
func (d *RecurrentDecoder[B]) Blocks() []*seqnn.Block[B] {
	blocks := make([]*seqnn.Block[B], d.lstm.Len())
	for i := range blocks {
		blocks[i] = d.lstm.Module(i).(*seqnn.Block[B])
	}
	return blocks
}

// Decode maps [B, inChannels, 1, W] to [B, W, hidden].
func (d *RecurrentDecoder[B]) Decode(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	const op = "RNNDecoder"
	shape := x.Shape()
	if err := checkRank(op, shape, 4); err != nil {
		return nil, err
	}
	if err := checkAxis(op, shape, 1, AxisChannel, d.inChannels); err != nil {
		return nil, err
	}
	if err := checkAxis(op, shape, 2, AxisHeight, 1); err != nil {
		return nil, err
	}

	return d.lstm.Forward(toSequence(x)), nil
}

// Forward is Decode for the nn.Module interface; it panics on shape errors.
func (d *RecurrentDecoder[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return forward[B](d, x)
}

// Parameters returns the weights of both blocks.
func (d *RecurrentDecoder[B]) Parameters() []*nn.Parameter[B] {
	return d.lstm.Parameters()
}

// StateDict returns all weights under "lstm.".
func (d *RecurrentDecoder[B]) StateDict() map[string]*tensor.RawTensor {
	return prefixed("lstm", d.lstm.StateDict())
}

// LoadStateDict loads weights stored under "lstm.".
func (d *RecurrentDecoder[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := checkState(d.StateDict(), state); err != nil {
		return fmt.Errorf("RNNDecoder: %w", err)
	}
	if err := d.lstm.LoadStateDict(unprefixed("lstm", state)); err != nil {
		return fmt.Errorf("RNNDecoder: %w", err)
	}
	return nil
}

// String returns a PyTorch-like description.
func (d *RecurrentDecoder[B]) String() string {
	return fmt.Sprintf("RNNDecoder(in_channels=%d, hidden_size=%d, cell=%s)", d.inChannels, d.hiddenSize, d.cell)
}
