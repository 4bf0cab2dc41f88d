package nn

import (
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// sigmoidBackend is implemented by backends with a native sigmoid
// (autodiff.Backend records it on the tape).
type sigmoidBackend interface {
	Sigmoid(*tensor.RawTensor) *tensor.RawTensor
}

// tanhBackend is implemented by backends with a native tanh.
type tanhBackend interface {
	Tanh(*tensor.RawTensor) *tensor.RawTensor
}

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)) element-wise.
//
// Backends that implement Sigmoid natively are used directly. Otherwise the
// function is composed from Exp, scalar ops and Div, which every
// tensor.Backend provides (the CPU backend has no native sigmoid).
//
// The input tensor is never modified.
func Sigmoid[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	if sb, ok := any(backend).(sigmoidBackend); ok {
		return tensor.New[float32, B](sb.Sigmoid(x.Raw()), backend)
	}

	denom := x.MulScalar(-1).Exp().AddScalar(1)
	return tensor.Ones[float32](denom.Shape(), backend).Div(denom)
}

// Tanh applies the hyperbolic tangent element-wise.
//
// Falls back to tanh(x) = 2σ(2x) - 1 when the backend has no native Tanh.
func Tanh[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	if tb, ok := any(backend).(tanhBackend); ok {
		return tensor.New[float32, B](tb.Tanh(x.Raw()), backend)
	}

	return Sigmoid(x.MulScalar(2)).MulScalar(2).AddScalar(-1)
}

// ReLU applies max(0, x) element-wise.
func ReLU[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.ReLUFunc(x)
}
