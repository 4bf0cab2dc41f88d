package nn

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// BlockConfig configures a bidirectional recurrent block.
type BlockConfig struct {
	Cell       CellKind
	InputSize  int
	HiddenSize int
	NumLayers  int // defaults to 1 when zero

	// Project enables the per-timestep linear map 2*HiddenSize -> OutSize.
	Project bool
	// OutSize is the projection width; defaults to HiddenSize when zero.
	OutSize int
}

// Block is a bidirectional RNN followed by an optional linear projection
// applied independently at every timestep.
//
// Input [batch, time, InputSize] yields [batch, time, OutSize] when
// projecting and [batch, time, 2*HiddenSize] otherwise.
//
// State dict keys: rnn.weight_ih_l0, rnn.weight_hh_l0_reverse, ..., fc.weight, fc.bias.
type Block[B tensor.Backend] struct {
	config BlockConfig
	rnn    *RNN[B]
	fc     *nn.Linear[B] // nil when not projecting
}

// NewBlock creates a bidirectional block.
func NewBlock[B tensor.Backend](config BlockConfig, backend B) *Block[B] {
	if config.OutSize == 0 {
		config.OutSize = config.HiddenSize
	}

	rnn := NewRNN(RNNConfig{
		Cell:          config.Cell,
		InputSize:     config.InputSize,
		HiddenSize:    config.HiddenSize,
		NumLayers:     config.NumLayers,
		Bidirectional: true,
	}, backend)
	config.NumLayers = rnn.Config().NumLayers

	var fc *nn.Linear[B]
	if config.Project {
		fc = nn.NewLinear(2*config.HiddenSize, config.OutSize, backend)
	}

	return &Block[B]{config: config, rnn: rnn, fc: fc}
}

// NewBidirectionalLSTM creates a single-layer bidirectional LSTM block.
// With useFC the 2*hidden features are projected back to hidden.
func NewBidirectionalLSTM[B tensor.Backend](inputSize, hiddenSize int, useFC bool, backend B) *Block[B] {
	return NewBlock(BlockConfig{
		Cell:       LSTM,
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		Project:    useFC,
	}, backend)
}

// NewBidirectionalGRU creates a stacked bidirectional GRU block whose
// 2*hidden features are always projected to nOut.
func NewBidirectionalGRU[B tensor.Backend](inputSize, hiddenSize, numLayers, nOut int, backend B) *Block[B] {
	return NewBlock(BlockConfig{
		Cell:       GRU,
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		NumLayers:  numLayers,
		Project:    true,
		OutSize:    nOut,
	}, backend)
}

// Config returns the block configuration (with defaults applied).
func (b *Block[B]) Config() BlockConfig {
	return b.config
}

// OutputSize returns the feature size of Forward's output.
func (b *Block[B]) OutputSize() int {
	if b.fc != nil {
		return b.config.OutSize
	}
	return b.rnn.OutputSize()
}

// RNN returns the underlying recurrent stack.
func (b *Block[B]) RNN() *RNN[B] {
	return b.rnn
}

// Projection returns the output projection, or nil.
func (b *Block[B]) Projection() *nn.Linear[B] {
	return b.fc
}

// Forward maps [batch, time, InputSize] to [batch, time, OutputSize()].
func (b *Block[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	recurrent := b.rnn.Forward(x)
	if b.fc == nil {
		return recurrent
	}

	shape := recurrent.Shape()
	batch, steps := shape[0], shape[1]

	// Linear only accepts 2D input.
	flat := recurrent.Reshape(batch*steps, shape[2])
	return b.fc.Forward(flat).Reshape(batch, steps, b.config.OutSize)
}

// Parameters returns the recurrent weights followed by the projection.
func (b *Block[B]) Parameters() []*nn.Parameter[B] {
	params := b.rnn.Parameters()
	if b.fc != nil {
		params = append(params, b.fc.Parameters()...)
	}
	return params
}

// StateDict returns rnn.* and fc.* entries.
func (b *Block[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(StateDict)
	mergeState(state, "rnn", b.rnn.StateDict())
	if b.fc != nil {
		mergeState(state, "fc", b.fc.StateDict())
	}
	return state
}

// LoadStateDict loads rnn.* and fc.* entries.
func (b *Block[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := b.rnn.LoadStateDict(subState(state, "rnn")); err != nil {
		return err
	}
	if b.fc != nil {
		if err := b.fc.LoadStateDict(subState(state, "fc")); err != nil {
			return fmt.Errorf("fc: %w", err)
		}
	}
	return nil
}

// String returns a PyTorch-like description.
func (b *Block[B]) String() string {
	if b.fc == nil {
		return fmt.Sprintf("Bidirectional(%s)", b.rnn)
	}
	return fmt.Sprintf("Bidirectional(%s, fc=Linear(%d, %d))", b.rnn, 2*b.config.HiddenSize, b.config.OutSize)
}
