package nn

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Batch normalization defaults (PyTorch BatchNorm2d).
const (
	DefaultBatchNormEpsilon  float32 = 1e-5
	DefaultBatchNormMomentum float32 = 0.1
)

// Trainable is implemented by modules whose forward pass differs between
// training and evaluation.
type Trainable interface {
	SetTraining(training bool)
}

// BatchNorm2D normalizes [N, C, H, W] input per channel.
//
//	y = (x - mean) / sqrt(var + eps) * gamma + beta
//
// In evaluation mode (the default) mean and var are the running statistics.
// In training mode they are the biased batch statistics over N, H and W, and
// the running statistics are updated with
//
//	running = (1 - momentum) * running + momentum * batch
//
// using the unbiased batch variance. Training mode mutates the running
// buffers, so a BatchNorm2D in training mode is not safe for concurrent use.
//
// State dict keys: weight, bias, running_mean, running_var.
type BatchNorm2D[B tensor.Backend] struct {
	Gamma    *nn.Parameter[B] // [C], state key "weight"
	Beta     *nn.Parameter[B] // [C], state key "bias"
	Epsilon  float32
	Momentum float32

	runningMean *tensor.Tensor[float32, B]
	runningVar  *tensor.Tensor[float32, B]

	channels int
	training bool
	backend  B
}

// NewBatchNorm2D creates a batch norm with gamma=1, beta=0, running mean 0
// and running variance 1.
func NewBatchNorm2D[B tensor.Backend](channels int, backend B) *BatchNorm2D[B] {
	if channels <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid channels %d", channels))
	}

	shape := tensor.Shape{channels}
	return &BatchNorm2D[B]{
		Gamma:       nn.NewParameter("weight", tensor.Ones[float32](shape, backend)),
		Beta:        nn.NewParameter("bias", tensor.Zeros[float32](shape, backend)),
		Epsilon:     DefaultBatchNormEpsilon,
		Momentum:    DefaultBatchNormMomentum,
		runningMean: tensor.Zeros[float32](shape, backend),
		runningVar:  tensor.Ones[float32](shape, backend),
		channels:    channels,
		backend:     backend,
	}
}

// SetTraining switches between batch statistics (true) and running
// statistics (false).
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether batch statistics are used.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// RunningMean returns the running mean buffer [C].
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the running variance buffer [C].
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// Forward normalizes x [N, C, H, W].
func (bn *BatchNorm2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != bn.channels {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], bn.channels))
	}

	gamma := bn.Gamma.Tensor().Reshape(1, bn.channels, 1, 1)
	beta := bn.Beta.Tensor().Reshape(1, bn.channels, 1, 1)

	if bn.training {
		return bn.forwardTraining(x, gamma, beta)
	}

	scale := bn.runningVar.Reshape(1, bn.channels, 1, 1).AddScalar(bn.Epsilon).Rsqrt().Mul(gamma)
	shift := bn.runningMean.Reshape(1, bn.channels, 1, 1).MulScalar(-1).Mul(scale).Add(beta)

	return scale.Mul(x).Add(shift)
}

func (bn *BatchNorm2D[B]) forwardTraining(x, gamma, beta *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	count := shape[0] * shape[2] * shape[3]

	mean := x.MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)
	centered := mean.MulScalar(-1).Add(x)
	variance := centered.Mul(centered.Clone()).MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)

	bn.updateRunningStats(mean.Data(), variance.Data(), count)

	scale := variance.AddScalar(bn.Epsilon).Rsqrt().Mul(gamma)
	return centered.Mul(scale).Add(beta)
}

func (bn *BatchNorm2D[B]) updateRunningStats(mean, variance []float32, count int) {
	correction := float32(1)
	if count > 1 {
		correction = float32(count) / float32(count-1)
	}

	m := bn.Momentum
	runMean := bn.runningMean.Data()
	runVar := bn.runningVar.Data()
	for c := range bn.channels {
		runMean[c] = (1-m)*runMean[c] + m*mean[c]
		runVar[c] = (1-m)*runVar[c] + m*variance[c]*correction
	}
}

// Parameters returns gamma and beta. Running statistics are buffers, not
// parameters.
func (bn *BatchNorm2D[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{bn.Gamma, bn.Beta}
}

// StateDict returns weight, bias, running_mean and running_var.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return StateDict{
		"weight":       bn.Gamma.Tensor().Raw(),
		"bias":         bn.Beta.Tensor().Raw(),
		"running_mean": bn.runningMean.Raw(),
		"running_var":  bn.runningVar.Raw(),
	}
}

// LoadStateDict loads weight, bias, running_mean and running_var.
// Extra keys such as num_batches_tracked are ignored.
func (bn *BatchNorm2D[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := loadParameter(state, "weight", bn.Gamma); err != nil {
		return fmt.Errorf("batchnorm2d: %w", err)
	}
	if err := loadParameter(state, "bias", bn.Beta); err != nil {
		return fmt.Errorf("batchnorm2d: %w", err)
	}
	if err := loadTensor(state, "running_mean", bn.runningMean); err != nil {
		return fmt.Errorf("batchnorm2d: %w", err)
	}
	if err := loadTensor(state, "running_var", bn.runningVar); err != nil {
		return fmt.Errorf("batchnorm2d: %w", err)
	}
	return nil
}

// String returns a PyTorch-like description.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2d(%d, eps=%g, momentum=%g)", bn.channels, bn.Epsilon, bn.Momentum)
}
