package dataset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/chain/internal/dataset"
	"github.com/born-ml/chain/internal/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bowFixture = `9 0:9 1:1 7:2
1 3:1 2:4

4 5:1.5
10 9:1 0:2`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpenBoW(t *testing.T) {
	f, err := dataset.OpenBoW(writeFile(t, "labeledBow.feat", bowFixture), 10)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, 4, f.Len(), "blank lines are skipped")
	assert.Equal(t, 10, f.VocabSize())

	tests := []struct {
		idx    int
		input  nn.Sparse
		rating int
		label  int
	}{
		{0, nn.Sparse{{Index: 0, Value: 9}, {Index: 1, Value: 1}, {Index: 7, Value: 2}}, 9, 1},
		{1, nn.Sparse{{Index: 2, Value: 4}, {Index: 3, Value: 1}}, 1, 0},
		{2, nn.Sparse{{Index: 5, Value: 1.5}}, 4, 0},
		{3, nn.Sparse{{Index: 0, Value: 2}, {Index: 9, Value: 1}}, 10, 1},
	}

	// Read out of order to exercise seeking.
	for _, i := range []int{3, 0, 2, 1, 0} {
		tt := tests[i]
		s, err := f.Get(tt.idx)
		require.NoError(t, err)
		assert.Equal(t, tt.input, s.Input)
		assert.Equal(t, tt.rating, s.Rating)
		assert.Equal(t, tt.label, s.Label)
	}

	_, err = f.Get(4)
	assert.ErrorIs(t, err, dataset.ErrIndexRange)
}

func TestOpenBoW_Threshold(t *testing.T) {
	f, err := dataset.OpenBoW(writeFile(t, "x.feat", "7 0:1\n"), 2)
	require.NoError(t, err)
	defer f.Close()

	f.Threshold = 7
	s, err := f.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Label)
}

func TestOpenBoW_Errors(t *testing.T) {
	_, err := dataset.OpenBoW(filepath.Join(t.TempDir(), "missing.feat"), 10)
	assert.Error(t, err)

	_, err = dataset.OpenBoW(writeFile(t, "x.feat", "1 0:1\n"), 0)
	assert.Error(t, err)

	f, err := dataset.OpenBoW(writeFile(t, "bad.feat", "1 0:1\n3 12:1\n"), 10)
	require.NoError(t, err, "lines are parsed lazily")
	defer f.Close()
	_, err = f.Get(1)
	assert.ErrorIs(t, err, dataset.ErrMalformedLine)
}

func TestParseBoWLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    nn.Sparse
		rating  int
		wantErr bool
	}{
		{name: "basic", line: "8 4:2 1:1\n", want: nn.Sparse{{Index: 1, Value: 1}, {Index: 4, Value: 2}}, rating: 8},
		{name: "rating only", line: "0", want: nn.Sparse{}, rating: 0},
		{name: "zero dropped", line: "3 2:0 3:1", want: nn.Sparse{{Index: 3, Value: 1}}, rating: 3},
		{name: "empty", line: "  \n", wantErr: true},
		{name: "bad rating", line: "x 1:1", wantErr: true},
		{name: "missing colon", line: "1 4", wantErr: true},
		{name: "bad index", line: "1 a:1", wantErr: true},
		{name: "bad value", line: "1 1:z", wantErr: true},
		{name: "out of vocabulary", line: "1 5:1", wantErr: true},
		{name: "negative index", line: "1 -1:1", wantErr: true},
		{name: "duplicate", line: "1 2:1 2:3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rating, err := dataset.ParseBoWLine(tt.line, 5)
			if tt.wantErr {
				assert.ErrorIs(t, err, dataset.ErrMalformedLine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rating, rating)
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, 1, dataset.Label(6, 5))
	assert.Equal(t, 0, dataset.Label(5, 5))
	assert.Equal(t, 0, dataset.Label(1, 5))
}

func TestCollect(t *testing.T) {
	ds := dataset.Samples{
		{Input: nn.Sparse{{Index: 1, Value: 1}}, Label: 1},
		{Input: nn.Sparse{}, Label: 0},
	}
	inputs, targets, err := dataset.Collect(ds)
	require.NoError(t, err)
	assert.Len(t, inputs, 2)
	assert.Equal(t, []int{1, 0}, targets)

	_, err = ds.Get(2)
	assert.ErrorIs(t, err, dataset.ErrIndexRange)
}
