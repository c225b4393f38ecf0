// Package train drives a Chain through mini-batch gradient descent.
//
// A Trainer owns the pairing of a Chain with its Loss and the scratch
// buffers used per sample. TrainBatch runs forward, loss and backward for
// every sample of a batch in order, letting each parametric layer sum its
// gradients, and then applies a single update scaled by lr/B. Fit repeats
// that over every batch of a BatchSource for a number of epochs.
//
// Example:
//
//	chain, _ := nn.Build(specs, nn.NewUniform(seed, nn.DefaultInitScale))
//	trainer, err := train.New(chain, nn.NewSoftmaxCrossEntropy(), train.Config{})
//	if err != nil {
//	    return err
//	}
//	loss, err := trainer.TrainBatch(inputs, targets, 0.01)
package train
