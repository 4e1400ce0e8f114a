package markov

import (
	"encoding/json"
	"io"
)

// ExportedModel is the JSON representation of a trained table, used for
// inspection and backups.
type ExportedModel struct {
	Order       int             `json:"order"`
	Transitions []ExportedState `json:"transitions"`
}

// ExportedState is a single state of an ExportedModel and the tokens that
// were observed to follow it, in recording order.
type ExportedState struct {
	State []TokenID `json:"state"`
	Next  []TokenID `json:"next"`
}

// ExportJSON serializes t as indented JSON and writes it to w. States are
// written in ascending token id order.
func ExportJSON(w io.Writer, t *Table) error {
	exported := ExportedModel{
		Order:       t.order,
		Transitions: make([]ExportedState, 0, t.Len()),
	}
	for state, next := range t.All() {
		exported.Transitions = append(exported.Transitions, ExportedState{State: state, Next: next})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}
