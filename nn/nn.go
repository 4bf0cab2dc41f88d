// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/seqneck/internal/nn"
)

// StateDict maps parameter and buffer names to raw tensors.
type StateDict = nn.StateDict

// Trainable is implemented by modules that behave differently in training.
type Trainable = nn.Trainable

// Recurrence

// CellKind selects the recurrent cell.
type CellKind = nn.CellKind

// Recurrent cells.
const (
	LSTM = nn.LSTM
	GRU  = nn.GRU
)

// ParseCellKind parses "lstm" or "gru" (case-insensitive).
func ParseCellKind(s string) (CellKind, error) {
	return nn.ParseCellKind(s)
}

// RNNConfig configures a stacked recurrent layer.
type RNNConfig = nn.RNNConfig

// RNN is a stacked, optionally bidirectional LSTM or GRU over
// [batch, time, features] inputs.
type RNN[B tensor.Backend] = nn.RNN[B]

// NewRNN creates a recurrent layer with uniform(-1/sqrt(hidden), 1/sqrt(hidden))
// initialization.
//
// Example:
//
//	backend := cpu.New()
//	rnn := nn.NewRNN(nn.RNNConfig{Cell: nn.GRU, InputSize: 64, HiddenSize: 32, Bidirectional: true}, backend)
func NewRNN[B tensor.Backend](config RNNConfig, backend B) *RNN[B] {
	return nn.NewRNN(config, backend)
}

// BlockConfig configures a bidirectional recurrent block.
type BlockConfig = nn.BlockConfig

// Block is a bidirectional RNN with an optional linear projection.
type Block[B tensor.Backend] = nn.Block[B]

// NewBlock creates a bidirectional recurrent block.
func NewBlock[B tensor.Backend](config BlockConfig, backend B) *Block[B] {
	return nn.NewBlock(config, backend)
}

// NewBidirectionalLSTM creates a single-layer bidirectional LSTM. With useFC
// the 2*hiddenSize output is projected back to hiddenSize.
//
// Example:
//
//	backend := cpu.New()
//	lstm := nn.NewBidirectionalLSTM(512, 256, true, backend) // [B, T, 512] -> [B, T, 256]
func NewBidirectionalLSTM[B tensor.Backend](inputSize, hiddenSize int, useFC bool, backend B) *Block[B] {
	return nn.NewBidirectionalLSTM(inputSize, hiddenSize, useFC, backend)
}

// NewBidirectionalGRU creates a stacked bidirectional GRU projected to nOut.
func NewBidirectionalGRU[B tensor.Backend](inputSize, hiddenSize, numLayers, nOut int, backend B) *Block[B] {
	return nn.NewBidirectionalGRU(inputSize, hiddenSize, numLayers, nOut, backend)
}

// Convolution

// ConvBlockConfig configures a convolution block.
type ConvBlockConfig = nn.ConvBlockConfig

// ConvBlock is Conv2D followed by BatchNorm2D and ReLU, with independent
// height and width strides.
type ConvBlock[B tensor.Backend] = nn.ConvBlock[B]

// NewConvBlock creates a convolution block.
//
// Example:
//
//	backend := cpu.New()
//	block := nn.NewConvBlock(nn.ConvBlockConfig{
//	    InChannels: 512, OutChannels: 128,
//	    KernelH: 3, KernelW: 3, StrideH: 2, StrideW: 1, Padding: 1,
//	}, backend)
func NewConvBlock[B tensor.Backend](config ConvBlockConfig, backend B) *ConvBlock[B] {
	return nn.NewConvBlock(config, backend)
}

// Normalization

// BatchNorm2D normalizes [N, C, H, W] inputs per channel.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch norm layer in evaluation mode.
func NewBatchNorm2D[B tensor.Backend](channels int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(channels, backend)
}

// Activations

// Sigmoid applies 1/(1+exp(-x)) element-wise.
func Sigmoid[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.Sigmoid(x)
}

// Tanh applies the hyperbolic tangent element-wise.
func Tanh[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.Tanh(x)
}

// ReLU applies max(0, x) element-wise.
func ReLU[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.ReLU(x)
}
