package dataset

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/chain/internal/nn"
	"github.com/pkg/errors"
)

// BoWFile reads samples from a bag-of-words feature file.
//
// Each line holds a rating followed by index:count pairs:
//
//	8 0:9 1:1 2:4 3:2 6:4 7:2 41:1
//
// OpenBoW scans the file once and records where every line starts; Get then
// seeks straight to the requested line, so only the samples in use are
// ever parsed. Samples stay sparse throughout.
//
// A BoWFile is not safe for concurrent use.
type BoWFile struct {
	file    *os.File
	reader  *bufio.Reader
	offsets []int64
	vocab   int

	// Threshold turns ratings into labels (see Label).
	Threshold int
}

// OpenBoW opens path and indexes its lines. Indices must lie in [0, vocab).
func OpenBoW(path string, vocab int) (*BoWFile, error) {
	if vocab <= 0 {
		return nil, errors.Errorf("vocabulary size must be positive, got %d", vocab)
	}

	//nolint:gosec // G304: dataset path comes from the command line
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open feature file")
	}

	offsets, err := indexLines(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "failed to index %s", path)
	}

	return &BoWFile{
		file:      file,
		reader:    bufio.NewReader(file),
		offsets:   offsets,
		vocab:     vocab,
		Threshold: DefaultPositiveThreshold,
	}, nil
}

// indexLines returns the starting offset of every non-blank line.
func indexLines(r io.Reader) ([]int64, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	var offsets []int64
	var pos int64
	for {
		line, err := br.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			offsets = append(offsets, pos)
		}
		pos += int64(len(line))

		if errors.Is(err, io.EOF) {
			return offsets, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Len returns the number of samples.
func (b *BoWFile) Len() int {
	return len(b.offsets)
}

// VocabSize returns the feature width.
func (b *BoWFile) VocabSize() int {
	return b.vocab
}

// Get reads and parses sample idx.
func (b *BoWFile) Get(idx int) (Sample, error) {
	if idx < 0 || idx >= len(b.offsets) {
		return Sample{}, errIndex(idx, len(b.offsets))
	}

	if _, err := b.file.Seek(b.offsets[idx], io.SeekStart); err != nil {
		return Sample{}, errors.Wrapf(err, "seek to sample %d", idx)
	}
	b.reader.Reset(b.file)

	line, err := b.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Sample{}, errors.Wrapf(err, "read sample %d", idx)
	}

	input, rating, err := ParseBoWLine(line, b.vocab)
	if err != nil {
		return Sample{}, errors.Wrapf(err, "sample %d", idx)
	}
	return Sample{Input: input, Rating: rating, Label: Label(rating, b.Threshold)}, nil
}

// Close closes the underlying file.
func (b *BoWFile) Close() error {
	return b.file.Close()
}

// ParseBoWLine parses "<rating> <index>:<value> ..." into a sorted Sparse
// vector. Zero values are dropped. Indices must be unique and lie in
// [0, vocab).
func ParseBoWLine(line string, vocab int) (nn.Sparse, int, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, 0, errors.Wrap(ErrMalformedLine, "empty line")
	}

	rating, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, 0, errors.Wrapf(ErrMalformedLine, "rating %q", fields[0])
	}

	out := make(nn.Sparse, 0, len(fields)-1)
	for _, f := range fields[1:] {
		idxStr, valStr, ok := strings.Cut(f, ":")
		if !ok {
			return nil, 0, errors.Wrapf(ErrMalformedLine, "pair %q", f)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return nil, 0, errors.Wrapf(ErrMalformedLine, "index %q", idxStr)
		}
		val, err := strconv.ParseFloat(valStr, 32)
		if err != nil {
			return nil, 0, errors.Wrapf(ErrMalformedLine, "value %q", valStr)
		}
		if val == 0 {
			continue
		}
		out = append(out, nn.Entry{Index: idx, Value: float32(val)})
	}

	out.Sort()
	if err := out.Validate(vocab); err != nil {
		return nil, 0, errors.Wrap(ErrMalformedLine, err.Error())
	}
	return out, rating, nil
}
