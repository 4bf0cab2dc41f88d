package neck

import (
	"context"
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqneck/internal/parallel"
)

// TestDecoders_ConcurrentDecode tests one decoder serves concurrent Decode
// calls with the same results as sequential ones.
func TestDecoders_ConcurrentDecode(t *testing.T) {
	backend := cpu.New()

	tests := []struct {
		name  string
		dec   Decoder[cpuBackend]
		shape tensor.Shape
	}{
		{"rnn", NewRecurrentDecoder(3, backend, WithHiddenSize(4)), tensor.Shape{2, 3, 1, 6}},
		{"cnn", NewConvolutionalDecoder(2, backend, WithHiddenSize(3)), tensor.Shape{1, 2, 16, 4}},
		{"reshape", NewReshapeAdapter[cpuBackend](3), tensor.Shape{2, 3, 2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := randn(tt.shape...).Data()

			want, err := tt.dec.Decode(fromSlice(t, data, tt.shape))
			require.NoError(t, err)

			const calls = 16
			got := make([][]float32, calls)
			err = parallel.For(context.Background(), calls, func(_ context.Context, i int) error {
				x, err := tensor.FromSlice(data, tt.shape, backend)
				if err != nil {
					return err
				}
				y, err := tt.dec.Decode(x)
				if err != nil {
					return err
				}
				got[i] = y.Data()
				return nil
			}, parallel.Config{Workers: 4})
			require.NoError(t, err)

			for i := range got {
				assert.Equal(t, want.Data(), got[i], "call %d", i)
			}
		})
	}
}

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor[float32, cpuBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, cpu.New())
	require.NoError(t, err)
	return x
}
