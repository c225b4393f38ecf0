package train

import (
	"fmt"
	"io"
	"log"

	"github.com/born-ml/chain/internal/nn"
	"github.com/born-ml/chain/internal/optim"
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/floats"
)

// Config holds optional trainer settings.
type Config struct {
	// Logger receives progress lines. Nil discards them.
	Logger *log.Logger

	// Optimizer replaces the layers' own Step when set. Its learning rate
	// is overwritten by the lr passed to TrainBatch.
	Optimizer optim.Optimizer

	// LogEvery logs the running loss every N batches during Fit (0 = per epoch only).
	LogEvery int
}

// Trainer couples a Chain with its Loss.
//
// A Trainer is not safe for concurrent use.
type Trainer struct {
	chain  *nn.Chain
	loss   nn.Loss
	cfg    Config
	logger *log.Logger

	out  nn.Dense // prediction scratch
	seed nn.Dense // dLoss/dPrediction scratch
}

// New creates a Trainer.
//
// A chain that ends in Softmax must be trained with SoftmaxCrossEntropy, and
// SoftmaxCrossEntropy may only follow a Softmax. Any other combination returns
// ErrLossMismatch. An optimizer in cfg must update exactly the chain's
// parameters, or New returns ErrOptimizerMismatch.
func New(chain *nn.Chain, loss nn.Loss, cfg Config) (*Trainer, error) {
	if chain == nil {
		return nil, fmt.Errorf("train.New: nil chain")
	}
	if loss == nil {
		return nil, fmt.Errorf("train.New: nil loss")
	}

	_, probLoss := loss.(*nn.SoftmaxCrossEntropy)
	switch {
	case chain.EndsWithSoftmax() && !probLoss:
		return nil, fmt.Errorf("%w: chain ends in softmax, loss must be SoftmaxCrossEntropy, got %T", ErrLossMismatch, loss)
	case !chain.EndsWithSoftmax() && probLoss:
		return nil, fmt.Errorf("%w: SoftmaxCrossEntropy needs a chain that ends in softmax", ErrLossMismatch)
	}

	if cfg.Optimizer != nil {
		if err := checkOptimizer(chain, cfg.Optimizer); err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Trainer{
		chain:  chain,
		loss:   loss,
		cfg:    cfg,
		logger: logger,
		out:    chain.NewOutput(),
		seed:   chain.NewOutput(),
	}, nil
}

// checkOptimizer verifies that opt updates exactly the parameters of chain.
func checkOptimizer(chain *nn.Chain, opt optim.Optimizer) error {
	owned := make(map[*nn.Parameter]bool)
	for _, p := range chain.Parameters() {
		owned[p] = false
	}
	for _, p := range opt.Parameters() {
		seen, ok := owned[p]
		if !ok {
			return fmt.Errorf("%w: optimizer updates %q, which the chain does not own", ErrOptimizerMismatch, p.Name())
		}
		if seen {
			return fmt.Errorf("%w: optimizer lists %q twice", ErrOptimizerMismatch, p.Name())
		}
		owned[p] = true
	}
	for _, p := range chain.Parameters() {
		if !owned[p] {
			return fmt.Errorf("%w: chain parameter %q is not optimized", ErrOptimizerMismatch, p.Name())
		}
	}
	return nil
}

// Chain returns the chain being trained.
func (t *Trainer) Chain() *nn.Chain {
	return t.chain
}

// TrainBatch performs one gradient step over a batch.
//
// For every sample, in order: forward, loss, seed gradient, backward into
// the layers' accumulators. Then one update with learning rate lr is applied
// to the summed gradients divided by the batch size.
//
// The whole batch is validated before anything is touched: an empty batch,
// mismatched lengths, a bad learning rate, or any input or target the chain
// cannot take returns an error and leaves every parameter unchanged.
//
// Returns the mean loss over the batch, computed before the update.
func (t *Trainer) TrainBatch(inputs []nn.Buffer, targets []int, lr float32) (float32, error) {
	if err := t.validate(inputs, targets); err != nil {
		return 0, err
	}
	if !(lr > 0) || math32.IsInf(lr, 0) {
		return 0, fmt.Errorf("%w: %v", ErrLearningRate, lr)
	}

	var total float32
	for i, x := range inputs {
		t.chain.Forward(x, t.out)
		total += t.loss.Forward(t.out, targets[i])
		t.loss.Backward(t.out, targets[i], t.seed)
		t.chain.Backward(t.seed, x, nil)
	}

	batchSize := len(inputs)
	if t.cfg.Optimizer != nil {
		t.cfg.Optimizer.SetLR(lr)
		t.cfg.Optimizer.Step(batchSize)
	} else {
		t.chain.Step(lr, batchSize)
	}
	return total / float32(batchSize), nil
}

// Predict returns the chain output for input without changing any state.
//
// Panics if input does not match the chain's input kind and width.
func (t *Trainer) Predict(input nn.Buffer) nn.Dense {
	out := t.chain.NewOutput()
	t.chain.Infer(input, out)
	return out
}

// Metrics summarizes predictions over a set of samples.
type Metrics struct {
	Loss     float64 // mean loss
	Accuracy float64 // fraction of argmax hits
	Samples  int
}

// String formats metrics for logging.
func (m Metrics) String() string {
	return fmt.Sprintf("loss=%.4f acc=%.2f%% (n=%d)", m.Loss, m.Accuracy*100, m.Samples)
}

// Evaluate computes mean loss and accuracy over inputs without training.
func (t *Trainer) Evaluate(inputs []nn.Buffer, targets []int) (Metrics, error) {
	if err := t.validate(inputs, targets); err != nil {
		return Metrics{}, err
	}

	losses := make([]float64, len(inputs))
	hits := make([]float64, len(inputs))
	for i, x := range inputs {
		t.chain.Infer(x, t.out)
		losses[i] = float64(t.loss.Forward(t.out, targets[i]))
		if nn.Argmax(t.out) == targets[i] {
			hits[i] = 1
		}
	}

	n := float64(len(inputs))
	return Metrics{
		Loss:     floats.Sum(losses) / n,
		Accuracy: floats.Sum(hits) / n,
		Samples:  len(inputs),
	}, nil
}

// validate checks a batch against the chain without mutating anything.
func (t *Trainer) validate(inputs []nn.Buffer, targets []int) error {
	if len(inputs) == 0 {
		return ErrEmptyBatch
	}
	if len(inputs) != len(targets) {
		return fmt.Errorf("%w: %d inputs, %d targets", ErrBatchMismatch, len(inputs), len(targets))
	}

	kind, width, classes := t.chain.InputKind(), t.chain.InSize(), t.chain.OutSize()
	for i, x := range inputs {
		if x == nil {
			return fmt.Errorf("%w: sample %d: nil input", ErrInvalidSample, i)
		}
		if x.Kind() != kind {
			return fmt.Errorf("%w: sample %d: expected %v input, got %v", ErrInvalidSample, i, kind, x.Kind())
		}
		switch v := x.(type) {
		case nn.Dense:
			if len(v) != width {
				return fmt.Errorf("%w: sample %d: expected width %d, got %d", ErrInvalidSample, i, width, len(v))
			}
		case nn.Sparse:
			if err := v.Validate(width); err != nil {
				return fmt.Errorf("%w: sample %d: %v", ErrInvalidSample, i, err)
			}
		}
		if targets[i] < 0 || targets[i] >= classes {
			return fmt.Errorf("%w: sample %d: target %d out of range [0, %d)", ErrInvalidSample, i, targets[i], classes)
		}
	}
	return nil
}
