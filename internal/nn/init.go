package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/born/tensor"
)

// Uniform creates a tensor with values drawn from U(-bound, bound).
//
// Parameters:
//   - shape: Shape of the tensor
//   - bound: Half-width of the sampling interval (must be positive)
//   - backend: Backend to use for tensor creation
func Uniform[B tensor.Backend](shape tensor.Shape, bound float64, backend B) *tensor.Tensor[float32, B] {
	t, err := tensor.NewRaw(shape, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}

	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}

	return tensor.New[float32, B](t, backend)
}

// RecurrentBound returns the init bound 1/sqrt(hiddenSize) used for every
// recurrent weight and bias.
func RecurrentBound(hiddenSize int) float64 {
	return 1.0 / math.Sqrt(float64(hiddenSize))
}
