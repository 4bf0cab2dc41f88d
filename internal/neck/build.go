package neck

import (
	"fmt"

	"github.com/born-ml/born/tensor"

	seqnn "github.com/born-ml/seqneck/internal/nn"
)

// Config describes a decoder to build.
type Config struct {
	Kind       Kind
	InChannels int
	HiddenSize int            // 0 selects DefaultHiddenSize; ignored by KindReshape
	Cell       seqnn.CellKind // KindRecurrent only
}

// Validate reports configuration errors without building anything.
func (c Config) Validate() error {
	switch c.Kind {
	case KindRecurrent, KindConvolutional, KindReshape:
	default:
		return fmt.Errorf("unknown neck type %q", c.Kind)
	}
	if c.InChannels <= 0 {
		return fmt.Errorf("in_channels must be positive, got %d", c.InChannels)
	}
	if c.HiddenSize < 0 {
		return fmt.Errorf("hidden_size must not be negative, got %d", c.HiddenSize)
	}
	if c.Cell != seqnn.LSTM && c.Cell != seqnn.GRU {
		return fmt.Errorf("unknown cell %v", c.Cell)
	}
	return nil
}

func (c Config) options() []Option {
	opts := []Option{WithCell(c.Cell)}
	if c.HiddenSize > 0 {
		opts = append(opts, WithHiddenSize(c.HiddenSize))
	}
	return opts
}

// New builds the decoder described by cfg.
//
// Example:
//
//	dec, err := neck.New(neck.Config{Kind: neck.KindRecurrent, InChannels: 512}, cpu.New())
//	seq, err := dec.Decode(features) // [B, 512, 1, W] -> [B, W, 256]
func New[B tensor.Backend](cfg Config, backend B) (Decoder[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("neck: %w", err)
	}

	switch cfg.Kind {
	case KindRecurrent:
		return NewRecurrentDecoder(cfg.InChannels, backend, cfg.options()...), nil
	case KindConvolutional:
		return NewConvolutionalDecoder(cfg.InChannels, backend, cfg.options()...), nil
	default:
		return NewReshapeAdapter[B](cfg.InChannels), nil
	}
}
