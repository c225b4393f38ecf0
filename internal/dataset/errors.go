package dataset

import "github.com/pkg/errors"

var (
	// ErrMalformedLine is returned for a feature line that cannot be parsed.
	ErrMalformedLine = errors.New("malformed feature line")

	// ErrIndexRange is returned for a sample index outside the dataset.
	ErrIndexRange = errors.New("sample index out of range")
)

func errIndex(idx, n int) error {
	return errors.Wrapf(ErrIndexRange, "index %d, dataset has %d samples", idx, n)
}
