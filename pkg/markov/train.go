package markov

import (
	"log/slog"
)

// Train tokenizes a single line of text and records every window of
// Order()+1 consecutive tokens as a (state, next) occurrence. A line with
// Order() tokens or fewer contributes nothing. It returns the number of
// occurrences recorded. Training is additive: feeding the same line twice
// doubles the weight of its transitions.
func (m *Model) Train(text string) (int, error) {
	tokens, err := m.encode(text)
	if err != nil {
		return 0, err
	}
	return m.TrainTokens(tokens), nil
}

// TrainTokens records every window of Order()+1 consecutive ids in tokens and
// returns the number of occurrences recorded.
func (m *Model) TrainTokens(tokens []TokenID) int {
	order := m.table.order
	if len(tokens) <= order {
		m.logger.Debug("Line skipped, not enough tokens",
			slog.Int("tokens", len(tokens)),
			slog.Int("order", order),
		)
		return 0
	}

	keyBuf := make([]byte, 0, order*tokenWidth)
	for i := 0; i+order < len(tokens); i++ {
		keyBuf = appendStateKey(keyBuf[:0], tokens[i:i+order])
		m.table.recordKey(keyBuf, tokens[i+order])
	}
	return len(tokens) - order
}
