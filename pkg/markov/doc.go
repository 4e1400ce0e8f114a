/*
Package markov provides a compact, file-backed toolkit for training and
sampling fixed-order Markov chain models over token ids in Go.

A Model learns, from lines of text run through a Tokenizer, which tokens
follow each state of exactly Order preceding tokens. Duplicate occurrences
are kept, so a token seen three times after a state is three times as likely
to be sampled as one seen once. Models are persisted either as a single
zstd-compressed CBOR file (SaveFile/LoadFile) or as named models inside a
SQLite database (SQLStore).
*/
package markov
