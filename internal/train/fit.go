package train

import (
	"context"
	"errors"
	"io"

	"github.com/born-ml/chain/internal/nn"
	"gonum.org/v1/gonum/floats"
)

// Batch is a group of samples trained together.
type Batch struct {
	Inputs  []nn.Buffer
	Targets []int
}

// Len returns the number of samples.
func (b Batch) Len() int {
	return len(b.Inputs)
}

// BatchSource yields the batches of one epoch.
type BatchSource interface {
	// Next returns the next batch, or io.EOF when the epoch is exhausted.
	Next() (Batch, error)

	// Reset rewinds the source for a new epoch, reshuffling with seed.
	Reset(seed uint64)
}

// FitOptions controls the epoch loop.
type FitOptions struct {
	Epochs       int
	LearningRate float32
	Seed         uint64 // epoch e reshuffles with Seed+e

	// Validation is evaluated after every epoch when non-empty.
	Validation Batch
}

// EpochResult reports one finished epoch.
type EpochResult struct {
	Epoch      int
	Batches    int
	Samples    int
	TrainLoss  float64 // sample-weighted mean of the batch losses
	Validation *Metrics
}

// Fit trains for opts.Epochs epochs over src.
//
// The context is checked between batches. When it is cancelled Fit returns
// the epochs completed so far together with ctx.Err().
func (t *Trainer) Fit(ctx context.Context, src BatchSource, opts FitOptions) ([]EpochResult, error) {
	if opts.Epochs <= 0 {
		return nil, nil
	}

	results := make([]EpochResult, 0, opts.Epochs)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		src.Reset(opts.Seed + uint64(epoch))

		var losses, sizes []float64
		for {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			batch, err := src.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return results, err
			}

			loss, err := t.TrainBatch(batch.Inputs, batch.Targets, opts.LearningRate)
			if err != nil {
				return results, err
			}
			losses = append(losses, float64(loss))
			sizes = append(sizes, float64(batch.Len()))

			if t.cfg.LogEvery > 0 && len(losses)%t.cfg.LogEvery == 0 {
				t.logger.Printf("epoch %d batch %d: loss=%.4f", epoch+1, len(losses), loss)
			}
		}

		res := EpochResult{Epoch: epoch + 1, Batches: len(losses)}
		if len(losses) > 0 {
			n := floats.Sum(sizes)
			res.Samples = int(n)
			res.TrainLoss = floats.Dot(losses, sizes) / n
		}

		if opts.Validation.Len() > 0 {
			m, err := t.Evaluate(opts.Validation.Inputs, opts.Validation.Targets)
			if err != nil {
				return results, err
			}
			res.Validation = &m
			t.logger.Printf("epoch %d/%d: train_loss=%.4f val %s", res.Epoch, opts.Epochs, res.TrainLoss, m)
		} else {
			t.logger.Printf("epoch %d/%d: train_loss=%.4f (%d samples)", res.Epoch, opts.Epochs, res.TrainLoss, res.Samples)
		}
		results = append(results, res)
	}
	return results, nil
}
