package markov

// TokenID is an opaque token identifier produced by a Tokenizer. The model
// only relies on equality between ids.
type TokenID uint32

// Tokenizer is the contract for converting text to token ids and back. This
// allows the core model logic to be independent of the specific tokenization
// strategy.
type Tokenizer interface {
	// Encode converts text into a sequence of token ids.
	Encode(text string) ([]TokenID, error)
	// Decode converts a sequence of token ids back into text. Decoding the
	// ids produced by Encode must reproduce readable text.
	Decode(tokens []TokenID) (string, error)
}
