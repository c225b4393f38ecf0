// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train drives mini-batch training of a chain.
//
// Example:
//
//	trainer, err := train.New(model, nn.NewSoftmaxCrossEntropy(), train.Config{})
//	loss, err := trainer.TrainBatch(inputs, targets, 0.01)
package train

import (
	"github.com/born-ml/chain/internal/nn"
	"github.com/born-ml/chain/internal/train"
)

// Trainer runs batches through a chain and applies updates.
type Trainer = train.Trainer

// Config configures a Trainer.
type Config = train.Config

// Metrics summarizes an evaluation pass.
type Metrics = train.Metrics

// Batch is one mini-batch of inputs and class targets.
type Batch = train.Batch

// BatchSource yields batches for Fit.
type BatchSource = train.BatchSource

// FitOptions controls a multi-epoch Fit run.
type FitOptions = train.FitOptions

// EpochResult reports one finished epoch.
type EpochResult = train.EpochResult

// New creates a Trainer for chain and loss.
//
// Returns train.ErrLossMismatch when a Softmax-terminated chain is not paired
// with SoftmaxCrossEntropy, or the other way around.
func New(chain *nn.Chain, loss nn.Loss, cfg Config) (*Trainer, error) {
	return train.New(chain, loss, cfg)
}

// Errors returned before any parameter is touched.
var (
	ErrLossMismatch      = train.ErrLossMismatch
	ErrOptimizerMismatch = train.ErrOptimizerMismatch
	ErrEmptyBatch        = train.ErrEmptyBatch
	ErrBatchMismatch     = train.ErrBatchMismatch
	ErrLearningRate      = train.ErrLearningRate
	ErrInvalidSample     = train.ErrInvalidSample
)
