package onnx

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ParseFile parses an ONNX model from file.
func ParseFile(path string) (*ModelProto, error) {
	//nolint:gosec // G304: model path is provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == modelIRVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.IRVersion = int64(v)
			return n, nil
		case num == modelProducerName && typ == protowire.BytesType:
			return consumeString(b, &m.ProducerName), nil
		case num == modelProducerVersion && typ == protowire.BytesType:
			return consumeString(b, &m.ProducerVersion), nil
		case num == modelModelVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.ModelVersion = int64(v)
			return n, nil
		case num == modelDocString && typ == protowire.BytesType:
			return consumeString(b, &m.DocString), nil
		case num == modelGraph && typ == protowire.BytesType:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			g, err := parseGraph(sub)
			if err != nil {
				return 0, errors.Wrap(err, "graph")
			}
			m.Graph = g
			return n, nil
		case num == modelOpsetImport && typ == protowire.BytesType:
			var op OperatorSetID
			n, err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch {
				case num == opsetDomain && typ == protowire.BytesType:
					return consumeString(b, &op.Domain), nil
				case num == opsetVersion && typ == protowire.VarintType:
					v, n := protowire.ConsumeVarint(b)
					op.Version = int64(v)
					return n, nil
				}
				return 0, nil
			})
			m.OpsetImport = append(m.OpsetImport, op)
			return n, err
		case num == modelMetadataProps && typ == protowire.BytesType:
			var e StringStringEntry
			n, err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch {
				case num == entryKey && typ == protowire.BytesType:
					return consumeString(b, &e.Key), nil
				case num == entryValue && typ == protowire.BytesType:
					return consumeString(b, &e.Value), nil
				}
				return 0, nil
			})
			m.MetadataProps = append(m.MetadataProps, e)
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse model")
	}
	return m, nil
}

func parseGraph(data []byte) (*GraphProto, error) {
	g := &GraphProto{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		switch num {
		case graphName:
			return consumeString(b, &g.Name), nil
		case graphNode:
			var node NodeProto
			n, err := consumeMessage(b, node.field)
			g.Nodes = append(g.Nodes, node)
			return n, err
		case graphInitializer:
			var t TensorProto
			n, err := consumeMessage(b, t.field)
			g.Initializers = append(g.Initializers, t)
			return n, err
		case graphInput, graphOutput:
			var v ValueInfoProto
			n, err := consumeMessage(b, v.field)
			if num == graphInput {
				g.Inputs = append(g.Inputs, v)
			} else {
				g.Outputs = append(g.Outputs, v)
			}
			return n, err
		}
		return 0, nil
	})
	return g, err
}

func (node *NodeProto) field(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	switch num {
	case nodeInput:
		var s string
		n := consumeString(b, &s)
		node.Inputs = append(node.Inputs, s)
		return n, nil
	case nodeOutput:
		var s string
		n := consumeString(b, &s)
		node.Outputs = append(node.Outputs, s)
		return n, nil
	case nodeName:
		return consumeString(b, &node.Name), nil
	case nodeOpType:
		return consumeString(b, &node.OpType), nil
	case nodeAttribute:
		var a AttributeProto
		n, err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == attrName && typ == protowire.BytesType:
				return consumeString(b, &a.Name), nil
			case num == attrF && typ == protowire.Fixed32Type:
				v, n := protowire.ConsumeFixed32(b)
				a.F = math.Float32frombits(v)
				return n, nil
			case num == attrI && typ == protowire.VarintType:
				v, n := protowire.ConsumeVarint(b)
				a.I = int64(v)
				return n, nil
			case num == attrType && typ == protowire.VarintType:
				v, n := protowire.ConsumeVarint(b)
				a.Type = int32(v)
				return n, nil
			}
			return 0, nil
		})
		node.Attributes = append(node.Attributes, a)
		return n, err
	}
	return 0, nil
}

func (t *TensorProto) field(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch {
	case num == tensorDims && typ == protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		t.Dims = append(t.Dims, int64(v))
		return n, nil
	case num == tensorDims && typ == protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		for len(packed) > 0 && n >= 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return m, nil
			}
			t.Dims = append(t.Dims, int64(v))
			packed = packed[m:]
		}
		return n, nil
	case num == tensorDataType && typ == protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		t.DataType = int32(v)
		return n, nil
	case num == tensorName && typ == protowire.BytesType:
		return consumeString(b, &t.Name), nil
	case num == tensorFloatData && typ == protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		t.FloatData = append(t.FloatData, math.Float32frombits(v))
		return n, nil
	case (num == tensorFloatData || num == tensorRawData) && typ == protowire.BytesType:
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		if len(raw)%4 != 0 {
			return 0, errors.Errorf("tensor %q: %d data bytes is not a whole number of float32", t.Name, len(raw))
		}
		for i := 0; i < len(raw); i += 4 {
			t.FloatData = append(t.FloatData, math.Float32frombits(binary.LittleEndian.Uint32(raw[i:])))
		}
		return n, nil
	}
	return 0, nil
}

func (v *ValueInfoProto) field(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	switch num {
	case valueName:
		return consumeString(b, &v.Name), nil
	case valueType:
		return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num != typeTensorType || typ != protowire.BytesType {
				return 0, nil
			}
			return consumeMessage(b, v.tensorTypeField)
		})
	}
	return 0, nil
}

func (v *ValueInfoProto) tensorTypeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch {
	case num == tensorTypeElemType && typ == protowire.VarintType:
		e, n := protowire.ConsumeVarint(b)
		v.ElemType = int32(e)
		return n, nil
	case num == tensorTypeShape && typ == protowire.BytesType:
		return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num != shapeDim || typ != protowire.BytesType {
				return 0, nil
			}
			var d DimensionProto
			n, err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch {
				case num == dimValue && typ == protowire.VarintType:
					x, n := protowire.ConsumeVarint(b)
					d.DimValue = int64(x)
					return n, nil
				case num == dimParam && typ == protowire.BytesType:
					return consumeString(b, &d.DimParam), nil
				}
				return 0, nil
			})
			v.Shape = append(v.Shape, d)
			return n, err
		})
	}
	return 0, nil
}

// fieldFunc decodes one field value at the start of b and returns the
// number of bytes consumed, 0 to skip the field, or a negative protowire
// error code.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walk calls fn for every field of the message in data.
func walk(data []byte, fn fieldFunc) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, data)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		data = data[m:]
	}
	return nil
}

// consumeMessage decodes a length-delimited sub-message with fn.
func consumeMessage(b []byte, fn fieldFunc) (int, error) {
	sub, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	if err := walk(sub, fn); err != nil {
		return 0, err
	}
	return n, nil
}

func consumeString(b []byte, dst *string) int {
	s, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = s
	}
	return n
}
