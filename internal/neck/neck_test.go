package neck

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seqnn "github.com/born-ml/seqneck/internal/nn"
)

type cpuBackend = *cpu.Backend

var (
	_ Decoder[cpuBackend] = (*RecurrentDecoder[cpuBackend])(nil)
	_ Decoder[cpuBackend] = (*ConvolutionalDecoder[cpuBackend])(nil)
	_ Decoder[cpuBackend] = (*ReshapeAdapter[cpuBackend])(nil)
)

func randn(shape ...int) *tensor.Tensor[float32, cpuBackend] {
	return tensor.Randn[float32](tensor.Shape(shape), cpu.New())
}

func keys(state map[string]*tensor.RawTensor) []string {
	out := make([]string, 0, len(state))
	for k := range state {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func requireShapeError(t *testing.T, err error, axis string, expected, actual int) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch), "error %v must match ErrShapeMismatch", err)

	var se *ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, axis, se.Axis)
	assert.Equal(t, expected, se.Expected)
	assert.Equal(t, actual, se.Actual)
}

// TestDecoders_RankThreeBatchPreserved tests every decoder emits
// [batch, time, OutChannels()].
func TestDecoders_RankThreeBatchPreserved(t *testing.T) {
	backend := cpu.New()
	tests := []struct {
		name  string
		dec   Decoder[cpuBackend]
		input tensor.Shape
		want  tensor.Shape
	}{
		{"rnn", NewRecurrentDecoder(4, backend, WithHiddenSize(3)), tensor.Shape{2, 4, 1, 5}, tensor.Shape{2, 5, 3}},
		{"rnn gru", NewRecurrentDecoder(4, backend, WithHiddenSize(3), WithCell(seqnn.GRU)), tensor.Shape{3, 4, 1, 2}, tensor.Shape{3, 2, 3}},
		{"cnn", NewConvolutionalDecoder(2, backend, WithHiddenSize(4)), tensor.Shape{2, 2, 16, 3}, tensor.Shape{2, 3, 4}},
		{"reshape", NewReshapeAdapter[cpuBackend](3), tensor.Shape{2, 3, 4, 5}, tensor.Shape{2, 20, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, err := tt.dec.Decode(randn(tt.input...))
			require.NoError(t, err)

			assert.Equal(t, tt.want, y.Shape())
			assert.Equal(t, tt.input[0], y.Shape()[0])
			assert.Equal(t, tt.dec.OutChannels(), y.Shape()[2])

			assert.Equal(t, tt.want, tt.dec.Forward(randn(tt.input...)).Shape())
		})
	}
}

// TestRecurrentDecoder_Defaults tests the default hidden size and cell.
func TestRecurrentDecoder_Defaults(t *testing.T) {
	dec := NewRecurrentDecoder(8, cpu.New())

	assert.Equal(t, DefaultHiddenSize, dec.OutChannels())
	assert.Equal(t, seqnn.LSTM, dec.Cell())
	assert.Equal(t, KindRecurrent, dec.Kind())
	assert.Equal(t, 8, dec.InChannels())
}

// TestRecurrentDecoder_MatchesBlocks tests Decode is squeeze, permute and the
// two blocks in order.
func TestRecurrentDecoder_MatchesBlocks(t *testing.T) {
	dec := NewRecurrentDecoder(3, cpu.New(), WithHiddenSize(2))
	x := randn(2, 3, 1, 4)

	seq := x.Reshape(2, 3, 4).Transpose(0, 2, 1)
	blocks := dec.Blocks()
	require.Len(t, blocks, 2)
	want := blocks[1].Forward(blocks[0].Forward(seq))

	got, err := dec.Decode(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-6)

	assert.Equal(t, 3, blocks[0].Config().InputSize)
	assert.Equal(t, 2, blocks[1].Config().InputSize)
	assert.True(t, blocks[0].Config().Project)
	assert.True(t, blocks[1].Config().Project)
}

// TestRecurrentDecoder_Stateless tests identical inputs give identical outputs
// across calls.
func TestRecurrentDecoder_Stateless(t *testing.T) {
	dec := NewRecurrentDecoder(3, cpu.New(), WithHiddenSize(4))
	x := randn(1, 3, 1, 6)

	first, err := dec.Decode(x)
	require.NoError(t, err)
	want := append([]float32(nil), first.Data()...)

	_, err = dec.Decode(randn(2, 3, 1, 3))
	require.NoError(t, err)

	second, err := dec.Decode(x)
	require.NoError(t, err)
	assert.Equal(t, want, second.Data())
}

// TestRecurrentDecoder_ShapeErrors tests precondition failures.
func TestRecurrentDecoder_ShapeErrors(t *testing.T) {
	dec := NewRecurrentDecoder(3, cpu.New(), WithHiddenSize(2))

	_, err := dec.Decode(randn(2, 3, 4))
	requireShapeError(t, err, AxisRank, 4, 3)

	_, err = dec.Decode(randn(2, 5, 1, 4))
	requireShapeError(t, err, AxisChannel, 3, 5)

	_, err = dec.Decode(randn(2, 3, 2, 4))
	requireShapeError(t, err, AxisHeight, 1, 2)
	assert.Contains(t, err.Error(), "RNNDecoder")
	assert.Contains(t, err.Error(), "height")

	assert.Panics(t, func() { dec.Forward(randn(2, 3, 2, 4)) })
}

// TestRecurrentDecoder_StateDict tests keys live under lstm. and reload.
func TestRecurrentDecoder_StateDict(t *testing.T) {
	backend := cpu.New()
	src := NewRecurrentDecoder(3, backend, WithHiddenSize(2))

	state := src.StateDict()
	assert.Len(t, state, 20)
	assert.Equal(t, tensor.Shape{8, 3}, state["lstm.0.rnn.weight_ih_l0"].Shape())
	assert.Equal(t, tensor.Shape{8, 2}, state["lstm.1.rnn.weight_ih_l0_reverse"].Shape())
	assert.Equal(t, tensor.Shape{2, 4}, state["lstm.1.fc.weight"].Shape())
	assert.Len(t, src.Parameters(), 20)

	dst := NewRecurrentDecoder(3, backend, WithHiddenSize(2))
	require.NoError(t, dst.LoadStateDict(state))

	x := randn(1, 3, 1, 5)
	want, err := src.Decode(x)
	require.NoError(t, err)
	got, err := dst.Decode(x)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())
}

// TestRecurrentDecoder_LoadStateDictMissingBlock tests a checkpoint missing
// a whole block is rejected.
func TestRecurrentDecoder_LoadStateDictMissingBlock(t *testing.T) {
	dec := NewRecurrentDecoder(3, cpu.New(), WithHiddenSize(2))

	state := dec.StateDict()
	for k := range state {
		if strings.HasPrefix(k, "lstm.1.") {
			delete(state, k)
		}
	}

	err := dec.LoadStateDict(state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing 10 state dict entries")
}

// TestDecoders_LoadStateDictShapeMismatchIsAtomic tests a checkpoint whose
// last block has the wrong shape is rejected before any block is copied.
func TestDecoders_LoadStateDictShapeMismatchIsAtomic(t *testing.T) {
	backend := cpu.New()

	tests := []struct {
		name     string
		src, dst Decoder[cpuBackend]
		badKey   string
		badShape tensor.Shape
		firstKey string
	}{
		{
			name:     "rnn",
			src:      NewRecurrentDecoder(3, backend, WithHiddenSize(2)),
			dst:      NewRecurrentDecoder(3, backend, WithHiddenSize(2)),
			badKey:   "lstm.1.fc.weight",
			badShape: tensor.Shape{3, 3},
			firstKey: "lstm.0.rnn.weight_ih_l0",
		},
		{
			name:     "cnn",
			src:      NewConvolutionalDecoder(2, backend, WithHiddenSize(4)),
			dst:      NewConvolutionalDecoder(2, backend, WithHiddenSize(4)),
			badKey:   "cnn_decoder.3.bn.running_var",
			badShape: tensor.Shape{5},
			firstKey: "cnn_decoder.0.conv.weight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.src.StateDict()
			state[tt.badKey] = tensor.Zeros[float32](tt.badShape, backend).Raw()

			before := append([]float32(nil), tt.dst.StateDict()[tt.firstKey].AsFloat32()...)

			err := tt.dst.LoadStateDict(state)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.badKey+" shape mismatch")
			assert.Equal(t, before, tt.dst.StateDict()[tt.firstKey].AsFloat32())
		})
	}
}

// TestRecurrentDecoder_AutodiffBackend tests the decoder on a backend with
// native sigmoid and tanh.
func TestRecurrentDecoder_AutodiffBackend(t *testing.T) {
	backend := autodiff.New(cpu.New())
	dec := NewRecurrentDecoder(2, backend, WithHiddenSize(3), WithCell(seqnn.GRU))

	x := tensor.Randn[float32](tensor.Shape{2, 2, 1, 4}, backend)
	y, err := dec.Decode(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4, 3}, y.Shape())
}

// TestConvolutionalDecoder_Shape tests [B, C, 16, W] -> [B, W, hidden] and the
// per-block channel layout.
func TestConvolutionalDecoder_Shape(t *testing.T) {
	dec := NewConvolutionalDecoder(2, cpu.New(), WithHiddenSize(4))

	y, err := dec.Decode(randn(1, 2, 16, 7))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 7, 4}, y.Shape())

	blocks := dec.Blocks()
	require.Len(t, blocks, 4)
	assert.Equal(t, 2, blocks[0].Config().InChannels)
	for _, b := range blocks {
		cfg := b.Config()
		assert.Equal(t, 4, cfg.OutChannels)
		assert.Equal(t, 2, cfg.StrideH)
		assert.Equal(t, 1, cfg.StrideW)
		assert.False(t, cfg.Bias)
	}
	assert.Equal(t, KindConvolutional, dec.Kind())
}

// TestConvolutionalDecoder_Height8 tests height 8 is rejected before any
// computation.
func TestConvolutionalDecoder_Height8(t *testing.T) {
	dec := NewConvolutionalDecoder(2, cpu.New(), WithHiddenSize(4))

	_, err := dec.Decode(randn(1, 2, 8, 7))
	requireShapeError(t, err, AxisHeight, ConvDecoderHeight, 8)
	assert.Contains(t, err.Error(), "CNNDecoder")

	_, err = dec.Decode(randn(1, 3, 16, 7))
	requireShapeError(t, err, AxisChannel, 2, 3)

	_, err = dec.Decode(randn(2, 16, 7))
	requireShapeError(t, err, AxisRank, 4, 3)
}

// TestConvolutionalDecoder_StateDict tests cnn_decoder. keys.
func TestConvolutionalDecoder_StateDict(t *testing.T) {
	backend := cpu.New()
	src := NewConvolutionalDecoder(2, backend, WithHiddenSize(4))

	state := src.StateDict()
	assert.Len(t, state, 20)
	assert.Equal(t, tensor.Shape{4, 2, 3, 3}, state["cnn_decoder.0.conv.weight"].Shape())
	assert.Equal(t, tensor.Shape{4, 4, 3, 3}, state["cnn_decoder.3.conv.weight"].Shape())
	assert.Equal(t, tensor.Shape{4}, state["cnn_decoder.3.bn.running_var"].Shape())
	assert.NotContains(t, state, "cnn_decoder.0.conv.bias")
	assert.Len(t, src.Parameters(), 12)

	dst := NewConvolutionalDecoder(2, backend, WithHiddenSize(4))
	require.NoError(t, dst.LoadStateDict(state))

	x := randn(2, 2, 16, 3)
	want, err := src.Decode(x)
	require.NoError(t, err)
	got, err := dst.Decode(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-6)
}

// TestConvolutionalDecoder_SetTraining tests the mode reaches every batch norm.
func TestConvolutionalDecoder_SetTraining(t *testing.T) {
	dec := NewConvolutionalDecoder(1, cpu.New(), WithHiddenSize(2))

	dec.SetTraining(true)
	for _, b := range dec.Blocks() {
		assert.True(t, b.BatchNorm().Training())
	}

	_, err := dec.Decode(randn(2, 1, 16, 3))
	require.NoError(t, err)
	assert.NotEqual(t, []float32{0, 0}, dec.Blocks()[0].BatchNorm().RunningMean().Data())

	dec.SetTraining(false)
	for _, b := range dec.Blocks() {
		assert.False(t, b.BatchNorm().Training())
	}
}

// TestReshapeAdapter_TimeIndex tests output[b, h*W+w, c] == input[b, c, h, w].
func TestReshapeAdapter_TimeIndex(t *testing.T) {
	const batch, channels, height, width = 2, 3, 4, 5
	backend := cpu.New()

	data := make([]float32, batch*channels*height*width)
	x, err := tensor.FromSlice(data, tensor.Shape{batch, channels, height, width}, backend)
	require.NoError(t, err)
	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			for h := 0; h < height; h++ {
				for w := 0; w < width; w++ {
					x.Set(float32(b*1000+c*100+h*10+w), b, c, h, w)
				}
			}
		}
	}

	dec := NewReshapeAdapter[cpuBackend](channels)
	y, err := dec.Decode(x)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{batch, height * width, channels}, y.Shape())

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			for h := 0; h < height; h++ {
				for w := 0; w < width; w++ {
					assert.Equal(t, x.At(b, c, h, w), y.At(b, h*width+w, c))
				}
			}
		}
	}
}

// TestReshapeAdapter_Restore tests Restore inverts Decode exactly.
func TestReshapeAdapter_Restore(t *testing.T) {
	dec := NewReshapeAdapter[cpuBackend](3)
	x := randn(2, 3, 4, 6)

	seq, err := dec.Decode(x)
	require.NoError(t, err)

	back, err := dec.Restore(seq, 4, 6)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), back.Shape())
	assert.Equal(t, x.Data(), back.Data())

	_, err = dec.Restore(seq, 3, 6)
	requireShapeError(t, err, AxisTime, 18, 24)
}

// TestReshapeAdapter_NoParameters tests the adapter is parameter free.
func TestReshapeAdapter_NoParameters(t *testing.T) {
	dec := NewReshapeAdapter[cpuBackend](7)

	assert.Empty(t, dec.Parameters())
	assert.Empty(t, dec.StateDict())
	assert.NoError(t, dec.LoadStateDict(nil))
	assert.Equal(t, 7, dec.OutChannels())

	_, err := dec.Decode(randn(1, 6, 2, 2))
	requireShapeError(t, err, AxisChannel, 7, 6)
}

// TestParseKind tests short and class names.
func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"rnn", KindRecurrent},
		{"RNNDecoder", KindRecurrent},
		{"cnn", KindConvolutional},
		{"cnndecoder", KindConvolutional},
		{"Reshape", KindReshape},
		{" reshape ", KindReshape},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseKind("transformer")
	assert.Error(t, err)
}

// TestNew tests the factory.
func TestNew(t *testing.T) {
	backend := cpu.New()

	for _, kind := range Kinds() {
		dec, err := New(Config{Kind: kind, InChannels: 4, HiddenSize: 2}, backend)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, dec.Kind())
	}

	dec, err := New(Config{Kind: KindReshape, InChannels: 4, HiddenSize: 2}, backend)
	require.NoError(t, err)
	assert.Equal(t, 4, dec.OutChannels())

	dec, err = New(Config{Kind: KindRecurrent, InChannels: 4, Cell: seqnn.GRU}, backend)
	require.NoError(t, err)
	assert.Equal(t, DefaultHiddenSize, dec.OutChannels())
	assert.Equal(t, seqnn.GRU, dec.(*RecurrentDecoder[cpuBackend]).Cell())

	_, err = New(Config{Kind: "transformer", InChannels: 4}, backend)
	assert.Error(t, err)

	_, err = New(Config{Kind: KindRecurrent}, backend)
	assert.ErrorContains(t, err, "in_channels")

	_, err = New(Config{Kind: KindRecurrent, InChannels: 4, HiddenSize: -1}, backend)
	assert.ErrorContains(t, err, "hidden_size must not be negative")
}
