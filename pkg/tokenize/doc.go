// Package tokenize provides markov.Tokenizer implementations.
//
// TikToken wraps the pkoukk/tiktoken-go BPE encodings (o200k_base by
// default). Bytes treats every byte as one token and needs no vocabulary
// files, which makes it convenient offline and in tests.
package tokenize
