package tokenizer

import (
	"sort"
	"strings"

	"github.com/born-ml/chain/internal/nn"
	"github.com/pkg/errors"
)

// markup stripped from review text before tokenizing.
var markup = strings.NewReplacer("<br />", " ", "<br/>", " ", "<br>", " ")

// Vectorizer converts text into a bag of token counts.
//
// Each distinct token id becomes one Sparse entry whose value is the number
// of times the token occurs. Entries are sorted by id. Ids at or above the
// vocabulary size are dropped.
type Vectorizer struct {
	tok   Tokenizer
	vocab int
}

// NewVectorizer creates a Vectorizer. A vocab of zero or less uses
// tok.VocabSize().
func NewVectorizer(tok Tokenizer, vocab int) *Vectorizer {
	if vocab <= 0 {
		vocab = tok.VocabSize()
	}
	return &Vectorizer{tok: tok, vocab: vocab}
}

// VocabSize returns the width of the vectors produced.
func (v *Vectorizer) VocabSize() int {
	return v.vocab
}

// Vectorize tokenizes text and returns its token counts.
func (v *Vectorizer) Vectorize(text string) (nn.Sparse, error) {
	ids, err := v.tok.Encode(markup.Replace(text))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: encode", v.tok.Name())
	}
	return v.Count(ids), nil
}

// Count builds the sorted count vector for ids.
func (v *Vectorizer) Count(ids []int32) nn.Sparse {
	counts := make(map[int]float32, len(ids))
	for _, id := range ids {
		if id < 0 || int(id) >= v.vocab {
			continue
		}
		counts[int(id)]++
	}

	out := make(nn.Sparse, 0, len(counts))
	for id, c := range counts {
		out = append(out, nn.Entry{Index: id, Value: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
