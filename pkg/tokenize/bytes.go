package tokenize

import (
	"fmt"

	"github.com/CTAG07/tokchain/pkg/markov"
)

// Bytes is the simplest possible tokenizer: each byte is a token, so the
// vocabulary is the 256 ids 0..255.
type Bytes struct{}

// Encode converts text to one token id per byte.
func (Bytes) Encode(text string) ([]markov.TokenID, error) {
	tokens := make([]markov.TokenID, len(text))
	for i := 0; i < len(text); i++ {
		tokens[i] = markov.TokenID(text[i])
	}
	return tokens, nil
}

// Decode converts token ids back to text. Ids above 255 are rejected.
func (Bytes) Decode(tokens []markov.TokenID) (string, error) {
	out := make([]byte, len(tokens))
	for i, id := range tokens {
		if id > 0xff {
			return "", fmt.Errorf("%w: token id %d is not a byte", markov.ErrTokenize, id)
		}
		out[i] = byte(id)
	}
	return string(out), nil
}
