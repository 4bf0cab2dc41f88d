// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the recurrent, normalization and convolution blocks
// used by sequence necks.
//
// # Overview
//
// This package contains:
//   - Recurrence: RNN (LSTM or GRU cells, stacked, optionally bidirectional)
//   - Wrappers: BidirectionalLSTM, BidirectionalGRU (with linear projection)
//   - Convolution: ConvBlock (Conv2D, BatchNorm2D, ReLU with per-axis stride)
//   - Normalization: BatchNorm2D with running statistics
//   - Activations: Sigmoid, Tanh, ReLU on any Born backend
//
// All blocks implement Born's nn.Module and expose a PyTorch-style state dict.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/born/backend/cpu"
//	    "github.com/born-ml/seqneck/nn"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    // [batch, time, 512] -> [batch, time, 256]
//	    lstm := nn.NewBidirectionalLSTM(512, 256, true, backend)
//	    output := lstm.Forward(input)
//	}
//
// # Recurrence
//
// Gate order follows PyTorch: LSTM uses (i, f, g, o) and GRU uses (r, z, n).
// Weights are named weight_ih_l{k}, weight_hh_l{k}, bias_ih_l{k} and
// bias_hh_l{k}, with a _reverse suffix for the backward direction, so state
// dicts exported from PyTorch load directly.
//
// Every Forward call starts from a zero state; nothing is carried between
// calls.
package nn
