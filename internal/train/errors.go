package train

import "errors"

// Sentinel errors returned by the trainer.
var (
	// ErrLossMismatch means the loss does not fit the chain's final stage.
	ErrLossMismatch = errors.New("loss does not match the chain output")

	// ErrOptimizerMismatch means the optimizer does not update the chain's parameters.
	ErrOptimizerMismatch = errors.New("optimizer parameters do not match the chain")

	// ErrEmptyBatch is returned for a batch with no samples.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrBatchMismatch means inputs and targets differ in length.
	ErrBatchMismatch = errors.New("inputs and targets differ in length")

	// ErrLearningRate is returned for a non-positive or non-finite learning rate.
	ErrLearningRate = errors.New("learning rate must be positive and finite")

	// ErrInvalidSample is returned for an input or target the chain cannot take.
	ErrInvalidSample = errors.New("invalid sample")
)
