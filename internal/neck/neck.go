// Package neck implements the sequence necks that turn a [batch, channel,
// height, width] feature map into a [batch, time, channel] sequence for a
// recognition head.
package neck

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Kind identifies a decoder variant.
type Kind string

// Decoder kinds. The string value is also the checkpoint model type.
const (
	KindRecurrent     Kind = "rnn"
	KindConvolutional Kind = "cnn"
	KindReshape       Kind = "reshape"
)

// Kinds lists every decoder kind.
func Kinds() []Kind {
	return []Kind{KindRecurrent, KindConvolutional, KindReshape}
}

// ParseKind accepts a short kind name (rnn, cnn, reshape) or a decoder class
// name (RNNDecoder, CNNDecoder, Reshape), case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rnn", "rnndecoder":
		return KindRecurrent, nil
	case "cnn", "cnndecoder":
		return KindConvolutional, nil
	case "reshape":
		return KindReshape, nil
	default:
		return "", fmt.Errorf("unknown neck type %q (want one of rnn, cnn, reshape)", s)
	}
}

// String returns the short kind name.
func (k Kind) String() string {
	return string(k)
}

// Decoder converts a rank-4 feature map into a rank-3 sequence.
//
// Decode validates the input shape and returns a *ShapeError (matching
// ErrShapeMismatch) before any computation when a precondition fails.
// Forward is the nn.Module entry point; it panics with the same error.
//
// Every decoder preserves the batch dimension and emits OutChannels()
// features per timestep.
type Decoder[B tensor.Backend] interface {
	nn.Module[B]

	// Decode maps [batch, channel, height, width] to [batch, time, OutChannels()].
	Decode(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error)

	// OutChannels returns the feature size of every output timestep.
	OutChannels() int

	// Kind returns the decoder variant.
	Kind() Kind
}

// forward adapts Decode to the panicking nn.Module contract.
func forward[B tensor.Backend](d Decoder[B], x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	y, err := d.Decode(x)
	if err != nil {
		panic(err)
	}
	return y
}

// toSequence maps [batch, channel, 1, width] to [batch, width, channel].
func toSequence[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.Squeeze(2).Transpose(0, 2, 1)
}
