package onnx

import (
	"fmt"
	"os"
	"strconv"

	"github.com/born-ml/chain/internal/nn"
	"github.com/pkg/errors"
)

// Export settings.
const (
	IRVersion    = 8
	OpsetVersion = 13
	ProducerName = "born-chain"

	// MetaSparseInput marks a model whose first Gemm came from a SparseLinear.
	MetaSparseInput = "sparse_input"

	inputName  = "input"
	outputName = "output"
	batchParam = "N"
)

// ErrUnsupported is returned for layers or nodes with no mapping.
var ErrUnsupported = errors.New("unsupported by the ONNX mapping")

// Export converts chain into an ONNX model.
//
// Nested chains are flattened. The weights are a snapshot taken from
// StateDict.
func Export(chain *nn.Chain) (*ModelProto, error) {
	layers := chain.Leaves()
	state := chain.StateDict()

	g := &GraphProto{
		Name:    "chain",
		Inputs:  []ValueInfoProto{valueInfo(inputName, chain.InSize())},
		Outputs: []ValueInfoProto{valueInfo(outputName, chain.OutSize())},
	}

	cur := inputName
	for i, l := range layers {
		next := fmt.Sprintf("h%d", i)
		if i == len(layers)-1 {
			next = outputName
		}
		node := NodeProto{Name: fmt.Sprintf("%d", i), Inputs: []string{cur}, Outputs: []string{next}}

		switch l.(type) {
		case *nn.Linear, *nn.SparseLinear:
			w, b := fmt.Sprintf("%d.weight", i), fmt.Sprintf("%d.bias", i)
			node.OpType = "Gemm"
			node.Inputs = append(node.Inputs, w, b)
			node.Attributes = []AttributeProto{{Name: "transB", Type: AttributeProtoInt, I: 1}}
			g.Initializers = append(g.Initializers, tensor(w, state[w]), tensor(b, state[b]))
		case *nn.ReLU:
			node.OpType = "Relu"
		case *nn.Softmax:
			node.OpType = "Softmax"
			node.Attributes = []AttributeProto{{Name: "axis", Type: AttributeProtoInt, I: 1}}
		default:
			return nil, errors.Wrapf(ErrUnsupported, "layer %d (%T)", i, l)
		}

		g.Nodes = append(g.Nodes, node)
		cur = next
	}

	return &ModelProto{
		IRVersion:     IRVersion,
		OpsetImport:   []OperatorSetID{{Version: OpsetVersion}},
		ProducerName:  ProducerName,
		ModelVersion:  1,
		Graph:         g,
		MetadataProps: []StringStringEntry{{Key: MetaSparseInput, Value: strconv.FormatBool(chain.InputKind() == nn.KindSparse)}},
	}, nil
}

// Save exports chain and writes it to path.
func Save(path string, chain *nn.Chain) error {
	m, err := Export(chain)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, Marshal(m), 0o600); err != nil {
		return errors.Wrap(err, "failed to write ONNX file")
	}
	return nil
}

// Import rebuilds a chain from a model written by Export.
//
// The graph must be a single path of Gemm (transB = 1), Relu and Softmax
// nodes with FLOAT initializers.
func Import(m *ModelProto) (*nn.Chain, error) {
	if m.Graph == nil {
		return nil, errors.New("model has no graph")
	}
	g := m.Graph

	inits := make(map[string]TensorProto, len(g.Initializers))
	for _, t := range g.Initializers {
		if t.DataType != TensorProtoFloat {
			return nil, errors.Wrapf(ErrUnsupported, "initializer %q has data type %d", t.Name, t.DataType)
		}
		inits[t.Name] = t
	}

	sparse := m.Metadata(MetaSparseInput) == "true"
	specs := make([]nn.LayerSpec, 0, len(g.Nodes))
	state := make(map[string]nn.Tensor)
	width := 0

	for i, node := range g.Nodes {
		switch node.OpType {
		case "Gemm":
			if a, ok := node.Attribute("transB"); !ok || a.I != 1 {
				return nil, errors.Wrapf(ErrUnsupported, "node %d: Gemm without transB", i)
			}
			if len(node.Inputs) != 3 {
				return nil, errors.Errorf("node %d: Gemm needs 3 inputs, got %d", i, len(node.Inputs))
			}
			w, okW := inits[node.Inputs[1]]
			b, okB := inits[node.Inputs[2]]
			if !okW || !okB || len(w.Dims) != 2 {
				return nil, errors.Errorf("node %d: missing or malformed Gemm initializers", i)
			}

			kind := nn.LayerLinear
			if i == 0 && sparse {
				kind = nn.LayerSparseLinear
			}
			out, in := int(w.Dims[0]), int(w.Dims[1])
			specs = append(specs, nn.LayerSpec{Kind: kind, In: in, Out: out})
			state[fmt.Sprintf("%d.weight", i)] = nn.Tensor{Shape: []int{out, in}, Data: w.FloatData}
			state[fmt.Sprintf("%d.bias", i)] = nn.Tensor{Shape: dims(b.Dims), Data: b.FloatData}
			width = out
		case "Relu":
			specs = append(specs, nn.LayerSpec{Kind: nn.LayerReLU, In: width})
		case "Softmax":
			specs = append(specs, nn.LayerSpec{Kind: nn.LayerSoftmax, In: width})
		default:
			return nil, errors.Wrapf(ErrUnsupported, "node %d: op %q", i, node.OpType)
		}
		if width == 0 {
			return nil, errors.Errorf("node %d: %s before any Gemm", i, node.OpType)
		}
	}

	chain, err := nn.Build(specs, nn.Constant(0))
	if err != nil {
		return nil, errors.Wrap(err, "failed to rebuild chain")
	}
	if err := chain.LoadStateDict(state); err != nil {
		return nil, errors.Wrap(err, "failed to load initializers")
	}
	return chain, nil
}

// Load reads an ONNX file written by Save and rebuilds the chain.
func Load(path string) (*nn.Chain, error) {
	m, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Import(m)
}

func valueInfo(name string, width int) ValueInfoProto {
	return ValueInfoProto{
		Name:     name,
		ElemType: TensorProtoFloat,
		Shape:    []DimensionProto{{DimParam: batchParam}, {DimValue: int64(width)}},
	}
}

func tensor(name string, t nn.Tensor) TensorProto {
	tp := TensorProto{
		Name:      name,
		DataType:  TensorProtoFloat,
		Dims:      make([]int64, len(t.Shape)),
		FloatData: t.Data,
	}
	for i, d := range t.Shape {
		tp.Dims[i] = int64(d)
	}
	return tp
}

func dims(d []int64) []int {
	out := make([]int, len(d))
	for i, v := range d {
		out[i] = int(v)
	}
	return out
}
