package onnx

// ONNX protobuf data structures (the subset written by Export).

// ModelProto represents an ONNX model.
type ModelProto struct {
	IRVersion       int64               // IR version (e.g., 7, 8, 9)
	OpsetImport     []OperatorSetID     // Opset version(s)
	ProducerName    string              // Framework name
	ProducerVersion string              // Framework version
	ModelVersion    int64               // Model version number
	DocString       string              // Model description
	Graph           *GraphProto         // Computation graph
	MetadataProps   []StringStringEntry // Key-value metadata
}

// GraphProto represents the computation graph.
type GraphProto struct {
	Name         string           // Graph name
	Nodes        []NodeProto      // Operation nodes
	Initializers []TensorProto    // Weight tensors
	Inputs       []ValueInfoProto // Graph inputs
	Outputs      []ValueInfoProto // Graph outputs
}

// NodeProto represents a single operation.
type NodeProto struct {
	Name       string           // Node name (optional)
	OpType     string           // Operation type (e.g., "Gemm", "Relu")
	Inputs     []string         // Input tensor names
	Outputs    []string         // Output tensor names
	Attributes []AttributeProto // Operation attributes
}

// TensorProto represents a tensor (weights/initializers).
type TensorProto struct {
	Name      string    // Tensor name
	DataType  int32     // Element data type
	Dims      []int64   // Tensor shape
	FloatData []float32 // Values, decoded from raw_data or float_data
}

// ValueInfoProto describes input/output tensor specifications.
type ValueInfoProto struct {
	Name     string           // Tensor name
	ElemType int32            // Element data type
	Shape    []DimensionProto // Tensor shape
}

// DimensionProto describes a single dimension.
type DimensionProto struct {
	DimValue int64  // Static dimension value
	DimParam string // Dynamic dimension name (e.g., "N")
}

// AttributeProto represents node attributes. Only FLOAT and INT are used.
type AttributeProto struct {
	Name string  // Attribute name
	Type int32   // Attribute type
	F    float32 // FLOAT value
	I    int64   // INT value
}

// OperatorSetID identifies opset version.
type OperatorSetID struct {
	Domain  string // Operator domain (empty for default)
	Version int64  // Opset version number
}

// StringStringEntry represents key-value metadata.
type StringStringEntry struct {
	Key   string
	Value string
}

// ONNX data types (TensorProto.DataType).
const (
	TensorProtoFloat = 1 // float32
)

// ONNX attribute types (AttributeProto.Type).
const (
	AttributeProtoFloat = 1 // FLOAT
	AttributeProtoInt   = 2 // INT
)

// Attribute returns the attribute called name and whether it exists.
func (n *NodeProto) Attribute(name string) (AttributeProto, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeProto{}, false
}

// Metadata returns the value stored under key, or "".
func (m *ModelProto) Metadata(key string) string {
	for _, e := range m.MetadataProps {
		if e.Key == key {
			return e.Value
		}
	}
	return ""
}
