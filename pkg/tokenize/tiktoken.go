package tokenize

import (
	"fmt"

	"github.com/CTAG07/tokchain/pkg/markov"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// EncodingO200kBase is the encoding name for GPT-4o models.
	EncodingO200kBase = "o200k_base"
	// EncodingCL100kBase is the encoding name for GPT-4 and GPT-3.5-turbo.
	EncodingCL100kBase = "cl100k_base"
	// EncodingBytes selects the byte-level tokenizer.
	EncodingBytes = "bytes"
)

// allSpecial allows every special token, so "<|endoftext|>" in input text is
// encoded as its special token instead of being rejected.
var allSpecial = []string{"all"}

// TikToken wraps the pkoukk/tiktoken-go library for OpenAI tokenizers.
//
// Supported encodings:
//   - o200k_base: GPT-4o
//   - cl100k_base: GPT-4, GPT-3.5-turbo, text-embedding-ada-002
//   - p50k_base: GPT-3, Codex
//   - r50k_base: GPT-3, davinci-002, babbage-002
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken creates a new TikToken tokenizer with the specified encoding.
// The encoding's BPE ranks are fetched and cached by tiktoken-go on first use.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}

	return &TikToken{
		encoding: encoding,
		name:     encodingName,
	}, nil
}

// Encode converts text to token IDs, allowing special tokens.
func (t *TikToken) Encode(text string) ([]markov.TokenID, error) {
	tokens := t.encoding.Encode(text, allSpecial, nil)

	result := make([]markov.TokenID, len(tokens))
	for i, tok := range tokens {
		if tok < 0 {
			return nil, fmt.Errorf("%w: negative token id %d", markov.ErrTokenize, tok)
		}
		result[i] = markov.TokenID(tok)
	}

	return result, nil
}

// Decode converts token IDs back to text.
func (t *TikToken) Decode(tokens []markov.TokenID) (string, error) {
	intTokens := make([]int, len(tokens))
	for i, tok := range tokens {
		intTokens[i] = int(tok)
	}

	return t.encoding.Decode(intTokens), nil
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}

// New returns the tokenizer registered under name: EncodingBytes for the
// byte-level tokenizer, or any tiktoken encoding name.
func New(name string) (markov.Tokenizer, error) {
	if name == EncodingBytes {
		return Bytes{}, nil
	}
	return NewTikToken(name)
}
