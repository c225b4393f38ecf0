package dataset

import (
	"io"
	"math/rand/v2"
	"sort"

	"github.com/born-ml/chain/internal/nn"
	"github.com/born-ml/chain/internal/train"
	"github.com/pkg/errors"
)

// Loader serves a Dataset in shuffled batches.
//
// Each epoch visits every sample exactly once in an order fixed by the seed.
// The indices inside one batch are sorted before reading, so a file-backed
// dataset is read front to back within the batch. The final batch may be
// smaller than the batch size.
//
// Loader implements train.BatchSource.
type Loader struct {
	ds        Dataset
	batchSize int
	indices   []int
	position  int
	served    int

	// MaxBatches stops an epoch after this many batches (0 = no limit).
	MaxBatches int
}

// NewLoader creates a Loader and shuffles it with seed.
func NewLoader(ds Dataset, batchSize int, seed uint64) (*Loader, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}

	l := &Loader{
		ds:        ds,
		batchSize: batchSize,
		indices:   make([]int, ds.Len()),
	}
	l.Reset(seed)
	return l, nil
}

// Len returns the number of batches in an epoch.
func (l *Loader) Len() int {
	n := (len(l.indices) + l.batchSize - 1) / l.batchSize
	if l.MaxBatches > 0 && l.MaxBatches < n {
		return l.MaxBatches
	}
	return n
}

// Reset rewinds the loader and reshuffles with seed.
//
// The shuffle depends only on seed and the dataset length.
func (l *Loader) Reset(seed uint64) {
	for i := range l.indices {
		l.indices[i] = i
	}
	shuffle(l.indices, seed)
	l.position = 0
	l.served = 0
}

// shuffle is a Fisher-Yates shuffle driven by its own seeded generator.
func shuffle(indices []int, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	for i := len(indices) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}
}

// Next returns the next batch, or io.EOF when the epoch is complete.
func (l *Loader) Next() (train.Batch, error) {
	if l.position >= len(l.indices) || (l.MaxBatches > 0 && l.served >= l.MaxBatches) {
		return train.Batch{}, io.EOF
	}

	end := min(l.position+l.batchSize, len(l.indices))
	batchIndices := append([]int(nil), l.indices[l.position:end]...)
	l.position = end
	l.served++

	sort.Ints(batchIndices)

	batch := train.Batch{
		Inputs:  make([]nn.Buffer, 0, len(batchIndices)),
		Targets: make([]int, 0, len(batchIndices)),
	}
	for _, idx := range batchIndices {
		s, err := l.ds.Get(idx)
		if err != nil {
			return train.Batch{}, errors.Wrap(err, "failed to load batch")
		}
		batch.Inputs = append(batch.Inputs, s.Input)
		batch.Targets = append(batch.Targets, s.Label)
	}
	return batch, nil
}
