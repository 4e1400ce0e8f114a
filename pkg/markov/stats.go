package markov

// Stats holds aggregated statistics for a single transition table.
type Stats struct {
	Order          int // The number of tokens that form a state.
	States         int // The number of distinct states.
	TotalChains    int // The number of unique state->next_token links.
	TotalFrequency int // The number of recorded occurrences; the total number of trained transitions.
}

// Stats returns a snapshot of statistics for the table.
func (t *Table) Stats() Stats {
	stats := Stats{
		Order:  t.order,
		States: len(t.transitions),
	}
	seen := make(map[TokenID]struct{})
	for _, next := range t.transitions {
		clear(seen)
		for _, id := range next {
			seen[id] = struct{}{}
		}
		stats.TotalChains += len(seen)
		stats.TotalFrequency += len(next)
	}
	return stats
}
