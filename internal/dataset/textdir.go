package dataset

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/born-ml/chain/internal/nn"
	"github.com/pkg/errors"
)

// Vectorizer turns raw text into a sparse feature vector.
type Vectorizer interface {
	Vectorize(text string) (nn.Sparse, error)
}

// Class directories of an aclImdb split.
const (
	PositiveDir = "pos"
	NegativeDir = "neg"
)

// LoadTextDir reads the review files under root/pos and root/neg and
// vectorizes each one.
//
// Files under pos are labeled 1 and files under neg 0. A file named like
// "123_8.txt" carries its rating after the underscore; other names leave the
// rating at 0. Samples are ordered pos first, then neg, each by file name.
func LoadTextDir(root string, vec Vectorizer) (Samples, error) {
	var out Samples
	for _, class := range []struct {
		dir   string
		label int
	}{{PositiveDir, 1}, {NegativeDir, 0}} {
		dir := filepath.Join(root, class.dir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", dir)
		}

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			//nolint:gosec // G304: corpus path comes from the command line
			text, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read %s", path)
			}
			input, err := vec.Vectorize(string(text))
			if err != nil {
				return nil, errors.Wrapf(err, "failed to vectorize %s", path)
			}
			out = append(out, Sample{
				Input:  input,
				Rating: ratingFromName(e.Name()),
				Label:  class.label,
			})
		}
	}
	return out, nil
}

// ratingFromName extracts 8 from "123_8.txt".
func ratingFromName(name string) int {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	_, r, ok := strings.Cut(stem, "_")
	if !ok {
		return 0
	}
	rating, err := strconv.Atoi(r)
	if err != nil {
		return 0
	}
	return rating
}
