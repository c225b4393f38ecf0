package onnx

import (
	"encoding/binary"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from onnx.proto.
const (
	modelIRVersion       protowire.Number = 1
	modelProducerName    protowire.Number = 2
	modelProducerVersion protowire.Number = 3
	modelModelVersion    protowire.Number = 5
	modelDocString       protowire.Number = 6
	modelGraph           protowire.Number = 7
	modelOpsetImport     protowire.Number = 8
	modelMetadataProps   protowire.Number = 14

	opsetDomain  protowire.Number = 1
	opsetVersion protowire.Number = 2

	entryKey   protowire.Number = 1
	entryValue protowire.Number = 2

	graphNode        protowire.Number = 1
	graphName        protowire.Number = 2
	graphInitializer protowire.Number = 5
	graphInput       protowire.Number = 11
	graphOutput      protowire.Number = 12

	nodeInput     protowire.Number = 1
	nodeOutput    protowire.Number = 2
	nodeName      protowire.Number = 3
	nodeOpType    protowire.Number = 4
	nodeAttribute protowire.Number = 5

	attrName protowire.Number = 1
	attrF    protowire.Number = 2
	attrI    protowire.Number = 3
	attrType protowire.Number = 20

	tensorDims      protowire.Number = 1
	tensorDataType  protowire.Number = 2
	tensorFloatData protowire.Number = 4
	tensorName      protowire.Number = 8
	tensorRawData   protowire.Number = 9

	valueName protowire.Number = 1
	valueType protowire.Number = 2

	typeTensorType protowire.Number = 1

	tensorTypeElemType protowire.Number = 1
	tensorTypeShape    protowire.Number = 2

	shapeDim protowire.Number = 1

	dimValue protowire.Number = 1
	dimParam protowire.Number = 2
)

// Marshal encodes m in the protobuf wire format.
func Marshal(m *ModelProto) []byte {
	var b []byte
	b = appendVarint(b, modelIRVersion, uint64(m.IRVersion))
	b = appendString(b, modelProducerName, m.ProducerName)
	b = appendString(b, modelProducerVersion, m.ProducerVersion)
	b = appendVarint(b, modelModelVersion, uint64(m.ModelVersion))
	b = appendString(b, modelDocString, m.DocString)
	if m.Graph != nil {
		b = appendMessage(b, modelGraph, encodeGraph(m.Graph))
	}
	for _, op := range m.OpsetImport {
		var sub []byte
		sub = appendString(sub, opsetDomain, op.Domain)
		sub = appendVarint(sub, opsetVersion, uint64(op.Version))
		b = appendMessage(b, modelOpsetImport, sub)
	}
	for _, e := range m.MetadataProps {
		var sub []byte
		sub = appendString(sub, entryKey, e.Key)
		sub = appendString(sub, entryValue, e.Value)
		b = appendMessage(b, modelMetadataProps, sub)
	}
	return b
}

func encodeGraph(g *GraphProto) []byte {
	var b []byte
	for i := range g.Nodes {
		b = appendMessage(b, graphNode, encodeNode(&g.Nodes[i]))
	}
	b = appendString(b, graphName, g.Name)
	for i := range g.Initializers {
		b = appendMessage(b, graphInitializer, encodeTensor(&g.Initializers[i]))
	}
	for i := range g.Inputs {
		b = appendMessage(b, graphInput, encodeValueInfo(&g.Inputs[i]))
	}
	for i := range g.Outputs {
		b = appendMessage(b, graphOutput, encodeValueInfo(&g.Outputs[i]))
	}
	return b
}

func encodeNode(n *NodeProto) []byte {
	var b []byte
	for _, in := range n.Inputs {
		b = protowire.AppendTag(b, nodeInput, protowire.BytesType)
		b = protowire.AppendString(b, in)
	}
	for _, out := range n.Outputs {
		b = protowire.AppendTag(b, nodeOutput, protowire.BytesType)
		b = protowire.AppendString(b, out)
	}
	b = appendString(b, nodeName, n.Name)
	b = appendString(b, nodeOpType, n.OpType)
	for _, a := range n.Attributes {
		var sub []byte
		sub = appendString(sub, attrName, a.Name)
		switch a.Type {
		case AttributeProtoFloat:
			sub = protowire.AppendTag(sub, attrF, protowire.Fixed32Type)
			sub = protowire.AppendFixed32(sub, math.Float32bits(a.F))
		case AttributeProtoInt:
			sub = protowire.AppendTag(sub, attrI, protowire.VarintType)
			sub = protowire.AppendVarint(sub, uint64(a.I))
		}
		sub = appendVarint(sub, attrType, uint64(a.Type))
		b = appendMessage(b, nodeAttribute, sub)
	}
	return b
}

// encodeTensor writes the values as little-endian raw_data.
func encodeTensor(t *TensorProto) []byte {
	var b []byte
	for _, d := range t.Dims {
		b = protowire.AppendTag(b, tensorDims, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d))
	}
	b = appendVarint(b, tensorDataType, uint64(t.DataType))
	b = appendString(b, tensorName, t.Name)

	raw := make([]byte, 0, 4*len(t.FloatData))
	for _, v := range t.FloatData {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
	}
	b = protowire.AppendTag(b, tensorRawData, protowire.BytesType)
	return protowire.AppendBytes(b, raw)
}

func encodeValueInfo(v *ValueInfoProto) []byte {
	var shape []byte
	for _, d := range v.Shape {
		var dim []byte
		if d.DimParam != "" {
			dim = appendString(dim, dimParam, d.DimParam)
		} else {
			dim = protowire.AppendTag(dim, dimValue, protowire.VarintType)
			dim = protowire.AppendVarint(dim, uint64(d.DimValue))
		}
		shape = appendMessage(shape, shapeDim, dim)
	}

	var tensorType []byte
	tensorType = appendVarint(tensorType, tensorTypeElemType, uint64(v.ElemType))
	tensorType = appendMessage(tensorType, tensorTypeShape, shape)

	var b []byte
	b = appendString(b, valueName, v.Name)
	return appendMessage(b, valueType, appendMessage(nil, typeTensorType, tensorType))
}

// appendVarint skips zero values, as proto3 does.
func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendString skips empty strings, as proto3 does.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
