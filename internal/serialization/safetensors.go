package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/chain/internal/nn"
	"github.com/pkg/errors"
)

const (
	metadataKey = "__metadata__"
	dtypeF32    = "F32"
	f32Size     = 4
)

// TensorInfo describes a tensor in the SafeTensors header.
type TensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) within the data section
}

// Header is the parsed JSON header of a SafeTensors file.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON splits the "__metadata__" entry from the tensor entries.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap[metadataKey]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return errors.Wrap(err, "failed to unmarshal metadata")
		}
	}

	h.Tensors = make(map[string]TensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == metadataKey {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return errors.Wrapf(err, "failed to unmarshal tensor %s", key)
		}
		h.Tensors[key] = info
	}
	return nil
}

// Encode writes tensors and metadata to w in SafeTensors format.
//
// Tensors are written in alphabetical order by name. The SHA-256 of the data
// section is added to the metadata under ChecksumKey.
func Encode(w io.Writer, tensors map[string]nn.Tensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	var data bytes.Buffer
	var offset int64
	buf := make([]byte, f32Size)
	for _, name := range names {
		t := tensors[name]
		if t.NumElements() != len(t.Data) {
			return &ValidationError{
				Type:    "shape_mismatch",
				Tensor:  name,
				Details: errors.Errorf("shape %v holds %d values, got %d", t.Shape, t.NumElements(), len(t.Data)).Error(),
			}
		}

		shape := make([]int64, len(t.Shape))
		for i, d := range t.Shape {
			shape[i] = int64(d)
		}
		size := int64(len(t.Data) * f32Size)
		header[name] = TensorInfo{
			DType:       dtypeF32,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size

		for _, v := range t.Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			data.Write(buf)
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[ChecksumKey] = ComputeChecksum(data.Bytes())
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write tensor data")
	}
	return nil
}

// Decode reads a SafeTensors stream written by Encode (or any other writer
// that uses F32 tensors).
//
// Returns the tensors and the metadata. Offsets, names, dtypes and the
// checksum (when present) are validated.
func Decode(r io.Reader) (map[string]nn.Tensor, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, errors.Wrapf(ErrHeaderTooLarge, "header size %d", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header")
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse header JSON")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read tensor data")
	}

	metas := make([]TensorMeta, 0, len(header.Tensors))
	for name, info := range header.Tensors {
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}
		metas = append(metas, TensorMeta{
			Name:   name,
			Offset: info.DataOffsets[0],
			Size:   info.DataOffsets[1] - info.DataOffsets[0],
		})
	}
	if err := ValidateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, nil, err
	}

	if sum, ok := header.Metadata[ChecksumKey]; ok {
		if err := ValidateChecksum(data, sum); err != nil {
			return nil, nil, err
		}
	}

	tensors := make(map[string]nn.Tensor, len(header.Tensors))
	for name, info := range header.Tensors {
		t, err := decodeTensor(name, info, data)
		if err != nil {
			return nil, nil, err
		}
		tensors[name] = t
	}
	return tensors, header.Metadata, nil
}

func decodeTensor(name string, info TensorInfo, data []byte) (nn.Tensor, error) {
	if info.DType != dtypeF32 {
		return nn.Tensor{}, errors.Wrapf(ErrUnsupportedDType, "tensor %s has dtype %s", name, info.DType)
	}

	shape := make([]int, len(info.Shape))
	n := int64(1)
	for i, d := range info.Shape {
		if d < 0 {
			return nn.Tensor{}, &ValidationError{Type: "shape_mismatch", Tensor: name, Details: "negative dimension"}
		}
		shape[i] = int(d)
		n *= d
	}

	raw := data[info.DataOffsets[0]:info.DataOffsets[1]]
	if int64(len(raw)) != n*f32Size {
		return nn.Tensor{}, &ValidationError{
			Type:    "shape_mismatch",
			Tensor:  name,
			Details: errors.Errorf("shape %v needs %d bytes, got %d", shape, n*f32Size, len(raw)).Error(),
		}
	}

	values := make([]float32, n)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*f32Size:]))
	}
	return nn.Tensor{Shape: shape, Data: values}, nil
}

// WriteSafeTensors writes tensors to a SafeTensors file at path.
func WriteSafeTensors(path string, tensors map[string]nn.Tensor, metadata map[string]string) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "failed to close file")
		}
	}()

	return Encode(file, tensors, metadata)
}

// ReadSafeTensors reads a SafeTensors file from path.
func ReadSafeTensors(path string) (map[string]nn.Tensor, map[string]string, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open file")
	}
	defer func() {
		_ = file.Close() // Best effort close after read
	}()

	tensors, metadata, err := Decode(file)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return tensors, metadata, nil
}
