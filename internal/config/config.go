// Package config loads training configuration from YAML.
//
// A file only needs the fields it wants to change; everything else keeps the
// value from Default:
//
//	model:
//	  - {kind: sparse_linear, in: 89527, out: 128}
//	  - {kind: relu, in: 128}
//	  - {kind: linear, in: 128, out: 2}
//	  - {kind: softmax, in: 2}
//	train:
//	  learning_rate: 0.01
//	  batch_size: 250
//	  epochs: 5
//	data:
//	  train_path: aclImdb/train/labeledBow.feat
//	  test_path: aclImdb/test/labeledBow.feat
//	  vocab_size: 89527
package config

import (
	"bytes"
	"os"

	"github.com/born-ml/chain/internal/nn"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Defaults used by Default.
const (
	DefaultVocabSize    = 89527
	DefaultHidden       = 128
	DefaultClasses      = 2
	DefaultBatchSize    = 250
	DefaultEpochs       = 5
	DefaultLearningRate = 0.01
	DefaultSeed         = 42
	DefaultThreshold    = 5
	DefaultEncoding     = "cl100k_base"
)

// Optimizer names accepted in Train.Optimizer.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Config is the full training configuration.
type Config struct {
	Model []nn.LayerSpec `yaml:"model"`
	Train Train          `yaml:"train"`
	Data  Data           `yaml:"data"`
}

// Train holds optimization settings.
type Train struct {
	LearningRate float32 `yaml:"learning_rate"`
	BatchSize    int     `yaml:"batch_size"`
	Epochs       int     `yaml:"epochs"`
	MaxBatches   int     `yaml:"max_batches"` // per epoch, 0 = all
	Seed         uint64  `yaml:"seed"`
	InitScale    float32 `yaml:"init_scale"`
	Optimizer    string  `yaml:"optimizer"` // "sgd" (default) or "adam"
	Momentum     float32 `yaml:"momentum"`
	Parallel     bool    `yaml:"parallel"`
}

// Data locates the datasets.
type Data struct {
	TrainPath         string `yaml:"train_path"`
	TestPath          string `yaml:"test_path"`
	TextDir           string `yaml:"text_dir"` // raw text corpus with pos/ and neg/
	VocabSize         int    `yaml:"vocab_size"`
	PositiveThreshold int    `yaml:"positive_threshold"`
	Encoding          string `yaml:"encoding"` // tiktoken encoding for TextDir
}

// Default returns the configuration of the two-layer bag-of-words classifier.
func Default() Config {
	return Config{
		Model: []nn.LayerSpec{
			{Kind: nn.LayerSparseLinear, In: DefaultVocabSize, Out: DefaultHidden},
			{Kind: nn.LayerReLU, In: DefaultHidden},
			{Kind: nn.LayerLinear, In: DefaultHidden, Out: DefaultClasses},
			{Kind: nn.LayerSoftmax, In: DefaultClasses},
		},
		Train: Train{
			LearningRate: DefaultLearningRate,
			BatchSize:    DefaultBatchSize,
			Epochs:       DefaultEpochs,
			Seed:         DefaultSeed,
			InitScale:    nn.DefaultInitScale,
			Optimizer:    OptimizerSGD,
			Parallel:     true,
		},
		Data: Data{
			VocabSize:         DefaultVocabSize,
			PositiveThreshold: DefaultThreshold,
			Encoding:          DefaultEncoding,
		},
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: config path comes from the command line
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config")
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// fields are rejected.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)

		model := cfg.Model
		cfg.Model = nil
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(err, "failed to parse YAML")
		}
		if cfg.Model == nil {
			cfg.Model = model
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and that the model fits the data.
//
// Layer shapes themselves are checked when the chain is built.
func (c Config) Validate() error {
	switch {
	case len(c.Model) == 0:
		return errors.New("model: at least one layer required")
	case !(c.Train.LearningRate > 0):
		return errors.Errorf("train.learning_rate must be positive, got %v", c.Train.LearningRate)
	case c.Train.BatchSize <= 0:
		return errors.Errorf("train.batch_size must be positive, got %d", c.Train.BatchSize)
	case c.Train.Epochs < 0:
		return errors.Errorf("train.epochs must not be negative, got %d", c.Train.Epochs)
	case c.Train.MaxBatches < 0:
		return errors.Errorf("train.max_batches must not be negative, got %d", c.Train.MaxBatches)
	case c.Train.InitScale < 0:
		return errors.Errorf("train.init_scale must not be negative, got %v", c.Train.InitScale)
	case c.Train.Momentum < 0 || c.Train.Momentum >= 1:
		return errors.Errorf("train.momentum must be in [0, 1), got %v", c.Train.Momentum)
	case c.Data.VocabSize <= 0:
		return errors.Errorf("data.vocab_size must be positive, got %d", c.Data.VocabSize)
	}

	switch c.Train.Optimizer {
	case OptimizerSGD, OptimizerAdam:
	default:
		return errors.Errorf("train.optimizer must be %q or %q, got %q", OptimizerSGD, OptimizerAdam, c.Train.Optimizer)
	}

	if first := c.Model[0]; first.In != c.Data.VocabSize {
		return errors.Errorf("model input width %d does not match data.vocab_size %d", first.In, c.Data.VocabSize)
	}
	return nil
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	return out, nil
}
