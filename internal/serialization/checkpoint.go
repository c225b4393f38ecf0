package serialization

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/born-ml/chain/internal/nn"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Metadata keys written by Checkpoint.Save.
const (
	MetaFormat    = "format"
	MetaRunID     = "run_id"
	MetaEpoch     = "epoch"
	MetaSpecs     = "layers"
	MetaCreatedAt = "created_at"

	checkpointFormat = "chain-checkpoint/v1"
	optimizerPrefix  = "optimizer."
)

// OptimizerState is an optimizer that can save and restore its state.
type OptimizerState interface {
	StateDict() map[string]nn.Tensor
	LoadStateDict(stateDict map[string]nn.Tensor) error
}

// Checkpoint is a training snapshot: the chain, where training stood, and
// optionally the optimizer buffers.
//
// Example:
//
//	ckpt := serialization.NewCheckpoint(chain, epoch)
//	ckpt.Optimizer = sgd
//	err := ckpt.Save("epoch_3.safetensors")
type Checkpoint struct {
	RunID     string
	Epoch     int
	CreatedAt time.Time
	Chain     *nn.Chain
	Optimizer OptimizerState    // optional
	Metadata  map[string]string // extra string metadata
}

// NewCheckpoint creates a checkpoint for chain with a fresh run identifier.
func NewCheckpoint(chain *nn.Chain, epoch int) *Checkpoint {
	return &Checkpoint{
		RunID:     uuid.NewString(),
		Epoch:     epoch,
		CreatedAt: time.Now().UTC(),
		Chain:     chain,
		Metadata:  map[string]string{},
	}
}

// Save writes the checkpoint to path in SafeTensors format.
//
// The layer specs travel in the metadata, so LoadCheckpoint can rebuild the
// chain without any other input.
func (c *Checkpoint) Save(path string) error {
	if c.Chain == nil {
		return errors.New("checkpoint has no chain")
	}

	specs, err := json.Marshal(c.Chain.Specs())
	if err != nil {
		return errors.Wrap(err, "failed to encode layer specs")
	}

	meta := make(map[string]string, len(c.Metadata)+5)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	meta[MetaFormat] = checkpointFormat
	meta[MetaRunID] = c.RunID
	meta[MetaEpoch] = strconv.Itoa(c.Epoch)
	meta[MetaSpecs] = string(specs)
	meta[MetaCreatedAt] = c.CreatedAt.Format(time.RFC3339)

	tensors := c.Chain.StateDict()
	if c.Optimizer != nil {
		for name, t := range c.Optimizer.StateDict() {
			tensors[optimizerPrefix+name] = t
		}
	}

	return WriteSafeTensors(path, tensors, meta)
}

// LoadCheckpoint reads a checkpoint written by Save and rebuilds its chain.
//
// Optimizer buffers, if any, are returned separately, keyed as the optimizer
// produced them, for the caller to load into an optimizer over the rebuilt
// chain's parameters.
func LoadCheckpoint(path string) (*Checkpoint, map[string]nn.Tensor, error) {
	tensors, meta, err := ReadSafeTensors(path)
	if err != nil {
		return nil, nil, err
	}
	if meta[MetaFormat] != checkpointFormat {
		return nil, nil, errors.Wrapf(ErrNotCheckpoint, "%s: format %q", path, meta[MetaFormat])
	}

	var specs []nn.LayerSpec
	if err := json.Unmarshal([]byte(meta[MetaSpecs]), &specs); err != nil {
		return nil, nil, errors.Wrap(err, "failed to decode layer specs")
	}
	epoch, err := strconv.Atoi(meta[MetaEpoch])
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid epoch")
	}
	created, err := time.Parse(time.RFC3339, meta[MetaCreatedAt])
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid creation time")
	}

	chain, err := nn.Build(specs, nn.Constant(0))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to rebuild chain")
	}

	model := make(map[string]nn.Tensor, len(tensors))
	optState := make(map[string]nn.Tensor)
	for name, t := range tensors {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optState[rest] = t
			continue
		}
		model[name] = t
	}
	if err := chain.LoadStateDict(model); err != nil {
		return nil, nil, errors.Wrap(err, "failed to load parameters")
	}

	extra := make(map[string]string)
	for k, v := range meta {
		switch k {
		case MetaFormat, MetaRunID, MetaEpoch, MetaSpecs, MetaCreatedAt, ChecksumKey:
		default:
			extra[k] = v
		}
	}

	return &Checkpoint{
		RunID:     meta[MetaRunID],
		Epoch:     epoch,
		CreatedAt: created,
		Chain:     chain,
		Metadata:  extra,
	}, optState, nil
}
