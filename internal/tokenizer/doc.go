// Package tokenizer turns raw text into sparse bag-of-tokens vectors.
//
// The tokenizer package provides:
//   - Tokenizer: the interface every tokenizer satisfies
//   - TikToken: BPE tokenizer used by GPT-3/GPT-4 (cl100k_base, p50k_base)
//   - Vectorizer: token ids to sorted (id, count) entries bounded by a vocabulary
//
// Example usage:
//
//	tok, err := tokenizer.NewTikToken("cl100k_base")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	vec := tokenizer.NewVectorizer(tok, 0) // vocabulary = tok.VocabSize()
//	x, err := vec.Vectorize("A surprisingly good film.")
//	if err != nil {
//	    log.Fatal(err)
//	}
package tokenizer
