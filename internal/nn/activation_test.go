package nn

import (
	"math"
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sigmoid64(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// TestSigmoid_CPUFallback tests the composed sigmoid on a backend without a
// native kernel.
func TestSigmoid_CPUFallback(t *testing.T) {
	backend := cpu.New()
	data := []float32{-6, -1, -0.5, 0, 0.5, 1, 6}

	x, err := tensor.FromSlice(data, tensor.Shape{len(data)}, backend)
	require.NoError(t, err)

	y := Sigmoid(x)

	got := y.Data()
	for i, v := range data {
		assert.InDelta(t, sigmoid64(float64(v)), got[i], 1e-5, "sigmoid mismatch at %d", i)
	}
	assert.Equal(t, data, x.Data(), "input must not be modified")
}

// TestTanh_CPUFallback tests tanh(x) = 2σ(2x) - 1.
func TestTanh_CPUFallback(t *testing.T) {
	backend := cpu.New()
	data := []float32{-3, -1, -0.25, 0, 0.25, 1, 3}

	x, err := tensor.FromSlice(data, tensor.Shape{len(data)}, backend)
	require.NoError(t, err)

	got := Tanh(x).Data()
	for i, v := range data {
		assert.InDelta(t, math.Tanh(float64(v)), got[i], 1e-5, "tanh mismatch at %d", i)
	}
	assert.Equal(t, data, x.Data(), "input must not be modified")
}

// TestActivations_NativeBackend tests that backends with native kernels
// produce the same values as the composed fallback.
func TestActivations_NativeBackend(t *testing.T) {
	data := []float32{-2, -0.5, 0, 0.5, 2, 4}

	xCPU, err := tensor.FromSlice(data, tensor.Shape{2, 3}, cpu.New())
	require.NoError(t, err)

	ad := autodiff.New(cpu.New())
	xAD, err := tensor.FromSlice(data, tensor.Shape{2, 3}, ad)
	require.NoError(t, err)

	assert.InDeltaSlice(t, Sigmoid(xCPU).Data(), Sigmoid(xAD).Data(), 1e-5)
	assert.InDeltaSlice(t, Tanh(xCPU).Data(), Tanh(xAD).Data(), 1e-5)
}

// TestReLU tests max(0, x).
func TestReLU(t *testing.T) {
	x, err := tensor.FromSlice([]float32{-1, 0, 2}, tensor.Shape{3}, cpu.New())
	require.NoError(t, err)

	assert.Equal(t, []float32{0, 0, 2}, ReLU(x).Data())
}
