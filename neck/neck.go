// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package neck provides the sequence necks that sit between a text
// recognition backbone and its prediction head.
//
// A neck turns a backbone feature map [B, C, H, W] into a sequence
// [B, T, D] indexed by horizontal position:
//   - RecurrentDecoder: H must be 1, two bidirectional LSTM blocks, T = W
//   - ConvolutionalDecoder: H must be 16, four stride-(2,1) conv blocks, T = W
//   - ReshapeAdapter: no parameters, T = H*W in row-major order, D = C
//
// Example:
//
//	backend := cpu.New()
//	dec, err := neck.New(neck.Config{Kind: neck.KindRecurrent, InChannels: 512}, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	seq, err := dec.Decode(features) // [B, 512, 1, W] -> [B, W, 256]
package neck

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqneck/internal/neck"
	"github.com/born-ml/seqneck/nn"
)

// Decoder converts a rank-4 feature map into a rank-3 sequence.
type Decoder[B tensor.Backend] = neck.Decoder[B]

// Kind names a decoder variant.
type Kind = neck.Kind

// Decoder kinds.
const (
	KindRecurrent     = neck.KindRecurrent
	KindConvolutional = neck.KindConvolutional
	KindReshape       = neck.KindReshape
)

// Sizes fixed by the decoders.
const (
	DefaultHiddenSize = neck.DefaultHiddenSize
	ConvDecoderHeight = neck.ConvDecoderHeight
)

// ParseKind parses a kind name ("rnn", "cnn", "reshape" or the class names
// RNNDecoder and CNNDecoder).
func ParseKind(s string) (Kind, error) {
	return neck.ParseKind(s)
}

// Kinds lists every decoder kind.
func Kinds() []Kind {
	return neck.Kinds()
}

// Errors

// ErrShapeMismatch is matched by every *ShapeError.
var ErrShapeMismatch = neck.ErrShapeMismatch

// ErrKindMismatch is returned when a checkpoint holds another decoder kind.
var ErrKindMismatch = neck.ErrKindMismatch

// ShapeError describes an input that does not satisfy a decoder's shape
// contract.
type ShapeError = neck.ShapeError

// ShapeError axes.
const (
	AxisRank    = neck.AxisRank
	AxisBatch   = neck.AxisBatch
	AxisChannel = neck.AxisChannel
	AxisHeight  = neck.AxisHeight
	AxisWidth   = neck.AxisWidth
	AxisTime    = neck.AxisTime
)

// Options

// Option configures a decoder.
type Option = neck.Option

// WithHiddenSize sets the output feature size.
func WithHiddenSize(hidden int) Option {
	return neck.WithHiddenSize(hidden)
}

// WithCell selects the recurrent cell of a RecurrentDecoder.
func WithCell(cell nn.CellKind) Option {
	return neck.WithCell(cell)
}

// Decoders

// RecurrentDecoder squeezes the height axis and runs two projected
// bidirectional recurrent blocks.
type RecurrentDecoder[B tensor.Backend] = neck.RecurrentDecoder[B]

// NewRecurrentDecoder creates a recurrent decoder.
//
// Example:
//
//	dec := neck.NewRecurrentDecoder(512, cpu.New(), neck.WithHiddenSize(256))
func NewRecurrentDecoder[B tensor.Backend](inChannels int, backend B, opts ...Option) *RecurrentDecoder[B] {
	return neck.NewRecurrentDecoder(inChannels, backend, opts...)
}

// ConvolutionalDecoder collapses a height-16 feature map with four
// stride-(2,1) conv blocks.
type ConvolutionalDecoder[B tensor.Backend] = neck.ConvolutionalDecoder[B]

// NewConvolutionalDecoder creates a convolutional decoder.
func NewConvolutionalDecoder[B tensor.Backend](inChannels int, backend B, opts ...Option) *ConvolutionalDecoder[B] {
	return neck.NewConvolutionalDecoder(inChannels, backend, opts...)
}

// ReshapeAdapter flattens the spatial axes into a sequence.
type ReshapeAdapter[B tensor.Backend] = neck.ReshapeAdapter[B]

// NewReshapeAdapter creates a reshape adapter.
func NewReshapeAdapter[B tensor.Backend](inChannels int) *ReshapeAdapter[B] {
	return neck.NewReshapeAdapter[B](inChannels)
}

// Factory

// Config describes a decoder to build.
type Config = neck.Config

// New builds the decoder described by cfg.
func New[B tensor.Backend](cfg Config, backend B) (Decoder[B], error) {
	return neck.New(cfg, backend)
}

// Checkpoints

// SaveCheckpoint writes the decoder state to a .born file.
func SaveCheckpoint[B tensor.Backend](dec Decoder[B], path string) error {
	return neck.SaveCheckpoint(dec, path)
}

// LoadCheckpoint reads a .born file written by SaveCheckpoint into dec.
func LoadCheckpoint[B tensor.Backend](dec Decoder[B], path string, backend B) error {
	return neck.LoadCheckpoint(dec, path, backend)
}
