// Package nn implements the recurrent, normalization and convolution blocks
// the sequence necks are assembled from, on top of Born tensors and layers.
package nn

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// RNNConfig configures a (possibly stacked, possibly bidirectional) RNN.
type RNNConfig struct {
	Cell          CellKind
	InputSize     int
	HiddenSize    int
	NumLayers     int // defaults to 1 when zero
	Bidirectional bool
}

// Directions returns 2 for a bidirectional RNN and 1 otherwise.
func (c RNNConfig) Directions() int {
	if c.Bidirectional {
		return 2
	}
	return 1
}

// rnnDirection holds the weights of one direction of one layer.
type rnnDirection[B tensor.Backend] struct {
	weightIH *nn.Parameter[B] // [gates*hidden, in]
	weightHH *nn.Parameter[B] // [gates*hidden, hidden]
	biasIH   *nn.Parameter[B] // [gates*hidden]
	biasHH   *nn.Parameter[B] // [gates*hidden]
}

// RNN is a batch-first recurrent layer stack operating on [batch, time, features].
//
// Weights follow the PyTorch layout and naming (weight_ih_l0,
// weight_hh_l0_reverse, ...), so state dicts exported from torch.nn.LSTM and
// torch.nn.GRU load without renaming.
//
// The hidden and cell states start at zero on every Forward call and are
// discarded afterwards; an RNN carries no state between calls.
//
// Example:
//
//	backend := cpu.New()
//	rnn := nn.NewRNN(nn.RNNConfig{
//	    Cell: nn.LSTM, InputSize: 64, HiddenSize: 32, Bidirectional: true,
//	}, backend)
//	y := rnn.Forward(x) // [batch, time, 64] -> [batch, time, 64]
type RNN[B tensor.Backend] struct {
	config  RNNConfig
	layers  [][]*rnnDirection[B] // [layer][direction]
	backend B
}

// NewRNN creates an RNN with weights drawn from U(-1/sqrt(H), 1/sqrt(H)).
func NewRNN[B tensor.Backend](config RNNConfig, backend B) *RNN[B] {
	if config.NumLayers == 0 {
		config.NumLayers = 1
	}
	if config.InputSize <= 0 || config.HiddenSize <= 0 || config.NumLayers < 0 {
		panic(fmt.Sprintf("rnn: invalid config input=%d, hidden=%d, layers=%d",
			config.InputSize, config.HiddenSize, config.NumLayers))
	}

	gateRows := config.Cell.Gates() * config.HiddenSize
	bound := RecurrentBound(config.HiddenSize)
	dirs := config.Directions()

	layers := make([][]*rnnDirection[B], config.NumLayers)
	for l := range layers {
		in := config.InputSize
		if l > 0 {
			in = config.HiddenSize * dirs
		}

		layers[l] = make([]*rnnDirection[B], dirs)
		for d := range dirs {
			suffix := ""
			if d == 1 {
				suffix = "_reverse"
			}
			name := func(kind string) string {
				return fmt.Sprintf("%s_l%d%s", kind, l, suffix)
			}

			layers[l][d] = &rnnDirection[B]{
				weightIH: nn.NewParameter(name("weight_ih"), Uniform(tensor.Shape{gateRows, in}, bound, backend)),
				weightHH: nn.NewParameter(name("weight_hh"), Uniform(tensor.Shape{gateRows, config.HiddenSize}, bound, backend)),
				biasIH:   nn.NewParameter(name("bias_ih"), Uniform(tensor.Shape{gateRows}, bound, backend)),
				biasHH:   nn.NewParameter(name("bias_hh"), Uniform(tensor.Shape{gateRows}, bound, backend)),
			}
		}
	}

	return &RNN[B]{
		config:  config,
		layers:  layers,
		backend: backend,
	}
}

// Config returns the configuration (with defaults applied).
func (r *RNN[B]) Config() RNNConfig {
	return r.config
}

// OutputSize returns the feature size of Forward's output: directions * hidden.
func (r *RNN[B]) OutputSize() int {
	return r.config.Directions() * r.config.HiddenSize
}

// Forward runs the stack over x of shape [batch, time, input] and returns
// [batch, time, directions*hidden].
//
// The reverse direction consumes timesteps last-to-first; its outputs are
// put back in input order before being concatenated after the forward
// direction's features.
func (r *RNN[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("rnn: expected 3D input [batch, time, features], got %dD", len(shape)))
	}
	if shape[2] != r.config.InputSize {
		panic(fmt.Sprintf("rnn: input features %d != expected %d", shape[2], r.config.InputSize))
	}
	if shape[1] == 0 {
		panic("rnn: empty sequence")
	}

	out := x
	for _, layer := range r.layers {
		outputs := make([]*tensor.Tensor[float32, B], len(layer))
		for d, dir := range layer {
			outputs[d] = r.runDirection(out, dir, d == 1)
		}
		out = tensor.Cat(outputs, 2)
	}
	return out
}

// runDirection runs one direction of one layer over x [batch, time, in].
func (r *RNN[B]) runDirection(x *tensor.Tensor[float32, B], dir *rnnDirection[B], reverse bool) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	batch, steps, in := shape[0], shape[1], shape[2]
	hidden := r.config.HiddenSize
	gateRows := r.config.Cell.Gates() * hidden

	// Input projection for every timestep in one matmul.
	xp := x.Reshape(batch*steps, in).
		MatMul(dir.weightIH.Tensor().Transpose()).
		Add(dir.biasIH.Tensor().Reshape(1, gateRows)).
		Reshape(batch, steps, gateRows)

	stepInputs := xp.Chunk(steps, 1)

	whhT := dir.weightHH.Tensor().Transpose()
	bhh := dir.biasHH.Tensor().Reshape(1, gateRows)

	state := cellState[B]{h: tensor.Zeros[float32](tensor.Shape{batch, hidden}, r.backend)}
	if r.config.Cell == LSTM {
		state.c = tensor.Zeros[float32](tensor.Shape{batch, hidden}, r.backend)
	}

	outputs := make([]*tensor.Tensor[float32, B], steps)
	for s := range steps {
		t := s
		if reverse {
			t = steps - 1 - s
		}

		step := stepInputs[t].Reshape(batch, gateRows)
		hp := state.h.MatMul(whhT).Add(bhh)

		switch r.config.Cell {
		case LSTM:
			state = lstmStep(step, hp, state)
		case GRU:
			state = gruStep(step, hp, state)
		}

		outputs[t] = state.h.Reshape(batch, 1, hidden)
	}

	return tensor.Cat(outputs, 1)
}

// Parameters returns all weights, layer by layer, forward direction first.
func (r *RNN[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, len(r.layers)*r.config.Directions()*4)
	for _, layer := range r.layers {
		for _, dir := range layer {
			params = append(params, dir.weightIH, dir.weightHH, dir.biasIH, dir.biasHH)
		}
	}
	return params
}

// StateDict returns the weights under their PyTorch names.
func (r *RNN[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(StateDict)
	for _, p := range r.Parameters() {
		state[p.Name()] = p.Tensor().Raw()
	}
	return state
}

// LoadStateDict copies weights from state, validating every shape.
func (r *RNN[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	for _, p := range r.Parameters() {
		if err := loadParameter(state, p.Name(), p); err != nil {
			return fmt.Errorf("rnn: %w", err)
		}
	}
	return nil
}

// String returns a PyTorch-like description.
func (r *RNN[B]) String() string {
	return fmt.Sprintf("%s(%d, %d, num_layers=%d, batch_first=True, bidirectional=%v)",
		r.config.Cell, r.config.InputSize, r.config.HiddenSize, r.config.NumLayers, r.config.Bidirectional)
}
