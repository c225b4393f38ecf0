package nn

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Loss turns a network prediction and a target class into a scalar loss and
// the gradient that seeds backpropagation.
type Loss interface {
	// Forward returns the loss value (for evaluation).
	Forward(prediction Dense, target int) float32

	// Backward writes dLoss/dPrediction into grad, which must have the
	// same length as prediction.
	Backward(prediction Dense, target int, grad Dense)
}

// CrossEntropyLoss computes cross-entropy for multi-class classification.
//
// The prediction is a vector of raw, unnormalized class scores (logits).
// The log-sum-exp trick keeps it stable for any finite input:
//
//	m    = max(logits)
//	Loss = log(Σ_j exp(logits[j] - m)) + m - logits[target]
//
// Gradient (Backward):
//
//	∂L/∂logits = Softmax(logits) - y_one_hot
//
// Use it with chains that end in a linear layer.
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss()
//	loss := criterion.Forward(logits, target)
type CrossEntropyLoss struct {
	probs Dense // scratch for Backward
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

// Forward computes the cross-entropy of logits against target.
func (c *CrossEntropyLoss) Forward(logits Dense, target int) float32 {
	checkTarget("CrossEntropyLoss.Forward", logits, target)

	m := maxOf(logits)
	var sum float32
	for _, v := range logits {
		sum += math32.Exp(v - m)
	}
	return math32.Log(sum) + m - logits[target]
}

// Backward writes softmax(logits) - onehot(target) into grad.
func (c *CrossEntropyLoss) Backward(logits Dense, target int, grad Dense) {
	checkTarget("CrossEntropyLoss.Backward", logits, target)
	checkWidth("CrossEntropyLoss.Backward", grad, len(logits))

	if len(c.probs) != len(logits) {
		c.probs = NewDense(len(logits))
	}
	softmaxInto(logits, c.probs)
	copy(grad, c.probs)
	grad[target] -= 1.0
}

// minProb bounds probabilities away from zero before taking a log.
const minProb = 1e-30

// SoftmaxCrossEntropy is cross-entropy for chains that end in Softmax.
//
// The prediction is already a probability vector p = softmax(z). The loss is
// -log p[target] and the seed gradient is p - onehot(target). Because that
// is exactly ∂L/∂z, Softmax.Backward can pass it through unchanged. Pairing
// any other loss with a trailing Softmax would give wrong gradients, which is
// why the trainer checks the pairing.
type SoftmaxCrossEntropy struct{}

// NewSoftmaxCrossEntropy creates the combined softmax/cross-entropy loss.
func NewSoftmaxCrossEntropy() *SoftmaxCrossEntropy {
	return &SoftmaxCrossEntropy{}
}

// Forward returns -log(probs[target]).
func (s *SoftmaxCrossEntropy) Forward(probs Dense, target int) float32 {
	checkTarget("SoftmaxCrossEntropy.Forward", probs, target)
	return -math32.Log(math32.Max(probs[target], minProb))
}

// Backward writes probs - onehot(target) into grad.
func (s *SoftmaxCrossEntropy) Backward(probs Dense, target int, grad Dense) {
	checkTarget("SoftmaxCrossEntropy.Backward", probs, target)
	checkWidth("SoftmaxCrossEntropy.Backward", grad, len(probs))
	copy(grad, probs)
	grad[target] -= 1.0
}

func checkTarget(where string, prediction Dense, target int) {
	if len(prediction) == 0 {
		panic(where + ": empty prediction")
	}
	if target < 0 || target >= len(prediction) {
		panic(fmt.Sprintf("%s: target index %d out of range [0, %d)", where, target, len(prediction)))
	}
}

// Argmax returns the index of the maximum value. Ties go to the lowest index.
func Argmax(z Dense) int {
	maxIdx := 0
	maxVal := z[0]
	for i := 1; i < len(z); i++ {
		if z[i] > maxVal {
			maxVal = z[i]
			maxIdx = i
		}
	}
	return maxIdx
}

// Accuracy returns the fraction of predictions whose argmax equals the target.
//
// Parameters:
//   - predictions: One output vector per sample
//   - targets: Ground truth class indices
//
// Returns 0 for an empty batch.
func Accuracy(predictions []Dense, targets []int) float32 {
	if len(predictions) != len(targets) {
		panic(fmt.Sprintf("Accuracy: %d predictions for %d targets", len(predictions), len(targets)))
	}
	if len(predictions) == 0 {
		return 0
	}

	correct := 0
	for i, p := range predictions {
		if Argmax(p) == targets[i] {
			correct++
		}
	}
	return float32(correct) / float32(len(predictions))
}
