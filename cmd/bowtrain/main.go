// Command bowtrain trains and evaluates a feed-forward sentiment classifier
// over bag-of-words features.
//
// Usage:
//
//	bowtrain -train aclImdb/train/labeledBow.feat -test aclImdb/test/labeledBow.feat
//	bowtrain -config train.yaml -epochs 10 -save model.safetensors
//	bowtrain -load model.safetensors -epochs 0 -test aclImdb/test/labeledBow.feat
//	bowtrain -text aclImdb -epochs 3
//	bowtrain -load model.safetensors -epochs 0 -onnx model.onnx
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/born-ml/chain/internal/config"
	"github.com/born-ml/chain/internal/dataset"
	"github.com/born-ml/chain/internal/nn"
	"github.com/born-ml/chain/internal/onnx"
	"github.com/born-ml/chain/internal/optim"
	"github.com/born-ml/chain/internal/parallel"
	"github.com/born-ml/chain/internal/serialization"
	"github.com/born-ml/chain/internal/tokenizer"
	"github.com/born-ml/chain/internal/train"
)

const version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := log.New(os.Stderr, "bowtrain: ", log.LstdFlags)
	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

// options are the command-line flags.
type options struct {
	configPath string
	save       string
	load       string
	onnx       string
	version    bool
}

// parseFlags parses args into cfg (flags override the config file) and opts.
func parseFlags(args []string, stderr io.Writer) (config.Config, options, error) {
	fs := flag.NewFlagSet("bowtrain", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	trainPath := fs.String("train", "", "Training feature file (labeledBow.feat format)")
	testPath := fs.String("test", "", "Test feature file")
	textDir := fs.String("text", "", "aclImdb root with train/ and test/ raw text splits")
	epochs := fs.Int("epochs", config.DefaultEpochs, "Number of training epochs")
	batchSize := fs.Int("batch", config.DefaultBatchSize, "Batch size for training")
	lr := fs.Float64("lr", config.DefaultLearningRate, "Learning rate")
	seed := fs.Uint64("seed", config.DefaultSeed, "Seed for initialization and shuffling")
	maxBatches := fs.Int("max-batches", 0, "Stop each epoch after N batches (0 = all)")
	fs.StringVar(&opts.save, "save", "", "Write a checkpoint here after training")
	fs.StringVar(&opts.load, "load", "", "Start from this checkpoint")
	fs.StringVar(&opts.onnx, "onnx", "", "Export the trained model to this ONNX file")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, options{}, err
	}

	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, options{}, err
		}
	}

	// Only flags given explicitly override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "train":
			cfg.Data.TrainPath = *trainPath
		case "test":
			cfg.Data.TestPath = *testPath
		case "text":
			cfg.Data.TextDir = *textDir
		case "epochs":
			cfg.Train.Epochs = *epochs
		case "batch":
			cfg.Train.BatchSize = *batchSize
		case "lr":
			cfg.Train.LearningRate = float32(*lr)
		case "seed":
			cfg.Train.Seed = *seed
		case "max-batches":
			cfg.Train.MaxBatches = *maxBatches
		}
	})

	if err := cfg.Validate(); err != nil {
		return config.Config{}, options{}, err
	}
	return cfg, opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) error {
	cfg, opts, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "bowtrain %s\n", version)
		return nil
	}

	chain, start, err := buildChain(cfg, opts, logger)
	if err != nil {
		return err
	}
	if !cfg.Train.Parallel {
		chain.SetParallel(parallel.Sequential())
	}
	logger.Printf("model: %v (%d parameters)", chain.Specs(), countParameters(chain))

	trainSet, testSet, closeData, err := openData(cfg)
	if err != nil {
		return err
	}
	defer closeData()

	var loss nn.Loss = nn.NewCrossEntropyLoss()
	if chain.EndsWithSoftmax() {
		loss = nn.NewSoftmaxCrossEntropy()
	}

	optimizer := newOptimizer(cfg.Train, chain)
	if err := restoreOptimizer(optimizer, start.optState, logger); err != nil {
		return err
	}
	trainer, err := train.New(chain, loss, train.Config{
		Logger:    logger,
		Optimizer: optimizer,
		LogEvery:  20,
	})
	if err != nil {
		return err
	}

	epochsDone := start.epoch
	if trainSet != nil && cfg.Train.Epochs > 0 {
		loader, err := dataset.NewLoader(trainSet, cfg.Train.BatchSize, cfg.Train.Seed)
		if err != nil {
			return err
		}
		loader.MaxBatches = cfg.Train.MaxBatches

		logger.Printf("training on %d samples, %d batches/epoch, lr=%g", trainSet.Len(), loader.Len(), cfg.Train.LearningRate)
		start := time.Now()
		results, err := trainer.Fit(ctx, loader, train.FitOptions{
			Epochs:       cfg.Train.Epochs,
			LearningRate: cfg.Train.LearningRate,
			Seed:         cfg.Train.Seed,
		})
		epochsDone += len(results)
		if err != nil {
			return err
		}
		logger.Printf("training finished in %s", time.Since(start).Round(time.Millisecond))
	}

	if opts.save != "" {
		ckpt := serialization.NewCheckpoint(chain, epochsDone)
		if start.runID != "" {
			ckpt.RunID = start.runID
		}
		ckpt.Metadata["vocab_size"] = strconv.Itoa(cfg.Data.VocabSize)
		ckpt.Metadata["positive_threshold"] = strconv.Itoa(cfg.Data.PositiveThreshold)
		if s, ok := optimizer.(serialization.OptimizerState); ok {
			ckpt.Optimizer = s
		}
		if err := ckpt.Save(opts.save); err != nil {
			return err
		}
		logger.Printf("saved checkpoint %s (run %s, epoch %d)", opts.save, ckpt.RunID, epochsDone)
	}

	if opts.onnx != "" {
		if err := onnx.Save(opts.onnx, chain); err != nil {
			return err
		}
		logger.Printf("exported ONNX model %s", opts.onnx)
	}

	if testSet != nil {
		inputs, targets, err := dataset.Collect(testSet)
		if err != nil {
			return err
		}
		m, err := trainer.Evaluate(inputs, targets)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Test Accuracy: %.2f%% (loss %.4f, %d samples)\n", m.Accuracy*100, m.Loss, m.Samples)
	}
	return nil
}

// resumePoint is where a run loaded with -load picks up.
type resumePoint struct {
	runID    string
	epoch    int
	optState map[string]nn.Tensor
}

// buildChain loads the checkpoint named by -load, or builds a fresh chain
// from the configured layers.
func buildChain(cfg config.Config, opts options, logger *log.Logger) (*nn.Chain, resumePoint, error) {
	if opts.load == "" {
		chain, err := nn.Build(cfg.Model, nn.NewUniform(cfg.Train.Seed, cfg.Train.InitScale))
		return chain, resumePoint{}, err
	}

	ckpt, optState, err := serialization.LoadCheckpoint(opts.load)
	if err != nil {
		return nil, resumePoint{}, err
	}
	if ckpt.Chain.InSize() != cfg.Data.VocabSize {
		return nil, resumePoint{}, fmt.Errorf("checkpoint input width %d does not match vocab_size %d", ckpt.Chain.InSize(), cfg.Data.VocabSize)
	}
	logger.Printf("loaded checkpoint %s (run %s, epoch %d)", opts.load, ckpt.RunID, ckpt.Epoch)
	return ckpt.Chain, resumePoint{runID: ckpt.RunID, epoch: ckpt.Epoch, optState: optState}, nil
}

// restoreOptimizer loads checkpointed optimizer buffers into optimizer.
func restoreOptimizer(optimizer optim.Optimizer, state map[string]nn.Tensor, logger *log.Logger) error {
	if len(state) == 0 {
		return nil
	}
	s, ok := optimizer.(serialization.OptimizerState)
	if !ok {
		logger.Printf("checkpoint optimizer state ignored: plain SGD keeps no state")
		return nil
	}
	if err := s.LoadStateDict(state); err != nil {
		return fmt.Errorf("failed to restore optimizer state: %w", err)
	}
	return nil
}

// openData opens the training and test sets. Either may be nil.
func openData(cfg config.Config) (trainSet, testSet dataset.Dataset, closeFn func(), err error) {
	var closers []io.Closer
	closeFn = func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	if cfg.Data.TextDir != "" {
		tok, err := tokenizer.NewTikToken(cfg.Data.Encoding)
		if err != nil {
			return nil, nil, closeFn, err
		}
		vec := tokenizer.NewVectorizer(tok, cfg.Data.VocabSize)
		trainSamples, err := dataset.LoadTextDir(filepath.Join(cfg.Data.TextDir, "train"), vec)
		if err != nil {
			return nil, nil, closeFn, err
		}
		testSamples, err := dataset.LoadTextDir(filepath.Join(cfg.Data.TextDir, "test"), vec)
		if err != nil {
			return nil, nil, closeFn, err
		}
		return trainSamples, testSamples, closeFn, nil
	}

	open := func(path string) (dataset.Dataset, error) {
		if path == "" {
			return nil, nil
		}
		f, err := dataset.OpenBoW(path, cfg.Data.VocabSize)
		if err != nil {
			return nil, err
		}
		f.Threshold = cfg.Data.PositiveThreshold
		closers = append(closers, f)
		return f, nil
	}

	if trainSet, err = open(cfg.Data.TrainPath); err != nil {
		closeFn()
		return nil, nil, func() {}, err
	}
	if testSet, err = open(cfg.Data.TestPath); err != nil {
		closeFn()
		return nil, nil, func() {}, err
	}
	return trainSet, testSet, closeFn, nil
}

// newOptimizer returns nil for plain SGD, which the layers apply themselves.
func newOptimizer(cfg config.Train, chain *nn.Chain) optim.Optimizer {
	switch {
	case cfg.Optimizer == config.OptimizerAdam:
		return optim.NewAdam(chain.Parameters(), optim.AdamConfig{LR: cfg.LearningRate})
	case cfg.Momentum > 0:
		return optim.NewSGD(chain.Parameters(), optim.SGDConfig{LR: cfg.LearningRate, Momentum: cfg.Momentum})
	default:
		return nil
	}
}

func countParameters(chain *nn.Chain) int {
	n := 0
	for _, p := range chain.Parameters() {
		n += len(p.Data())
	}
	return n
}
