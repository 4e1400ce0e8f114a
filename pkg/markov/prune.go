package markov

// Prune removes every occurrence of a state->next_token link that was
// recorded minFreq times or fewer. This is useful for reducing the size of a
// model by removing rare, and often noisy, transitions. The remaining
// occurrences keep their recording order, and states left without any
// occurrence are deleted. It returns the number of occurrences removed.
func (t *Table) Prune(minFreq int) int {
	if minFreq < 1 {
		return 0
	}

	var removed int
	counts := make(map[TokenID]int)
	for key, next := range t.transitions {
		clear(counts)
		for _, id := range next {
			counts[id]++
		}

		kept := next[:0]
		for _, id := range next {
			if counts[id] > minFreq {
				kept = append(kept, id)
			}
		}
		removed += len(next) - len(kept)

		if len(kept) == 0 {
			delete(t.transitions, key)
		} else {
			clear(next[len(kept):])
			t.transitions[key] = kept
		}
	}
	return removed
}
