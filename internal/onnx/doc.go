// Package onnx exports chains to ONNX and reads them back.
//
// ONNX (Open Neural Network Exchange) is an open format for representing
// trained models. A chain maps onto a plain ONNX graph:
//
//	Linear, SparseLinear -> Gemm (transB = 1)
//	ReLU                 -> Relu
//	Softmax              -> Softmax (axis = 1)
//
// Weights travel as FLOAT initializers named like the chain's state dict
// ("0.weight", "0.bias", ...). The input is [N, in] with a symbolic batch
// dimension, so any ONNX runtime can score dense bag-of-words vectors.
//
// Only the message fields this mapping needs are modeled. Encoding and
// decoding go through google.golang.org/protobuf/encoding/protowire; unknown
// fields are skipped when reading.
//
// Example usage:
//
//	if err := onnx.Save("sentiment.onnx", chain); err != nil {
//	    log.Fatal(err)
//	}
//
//	chain, err := onnx.Load("sentiment.onnx")
package onnx
