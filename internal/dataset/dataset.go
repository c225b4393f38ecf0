// Package dataset reads labeled bag-of-words samples and serves them in
// shuffled batches.
//
// Two sources are supported: the aclImdb feature files ("labeledBow.feat"),
// read lazily through a line-offset index, and directories of raw review
// text ("pos/" and "neg/"), vectorized in memory.
package dataset

import "github.com/born-ml/chain/internal/nn"

// DefaultPositiveThreshold is the rating above which a review is positive.
const DefaultPositiveThreshold = 5

// Sample is one review as a sparse feature vector.
type Sample struct {
	Input  nn.Sparse
	Rating int // raw star rating; 0 when unknown
	Label  int // 1 positive, 0 negative
}

// Dataset is a random-access collection of samples.
type Dataset interface {
	// Len returns the number of samples.
	Len() int

	// Get returns sample idx.
	Get(idx int) (Sample, error)
}

// Label maps a rating to a class: 1 if rating > threshold, else 0.
func Label(rating, threshold int) int {
	if rating > threshold {
		return 1
	}
	return 0
}

// Samples is an in-memory Dataset.
type Samples []Sample

// Len returns the number of samples.
func (s Samples) Len() int { return len(s) }

// Get returns sample idx.
func (s Samples) Get(idx int) (Sample, error) {
	if idx < 0 || idx >= len(s) {
		return Sample{}, errIndex(idx, len(s))
	}
	return s[idx], nil
}

// Collect reads every sample of ds into inputs and targets, ready for
// train.Trainer.Evaluate.
func Collect(ds Dataset) ([]nn.Buffer, []int, error) {
	inputs := make([]nn.Buffer, 0, ds.Len())
	targets := make([]int, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		s, err := ds.Get(i)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, s.Input)
		targets = append(targets, s.Label)
	}
	return inputs, targets, nil
}
