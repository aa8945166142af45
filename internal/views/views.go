package views

import (
	"encoding/json"

	"semql-indexer/internal/mdl"
)

// Record is the retrieval shape of a stored view: the original user question,
// the LLM-generated summary, the SQL statement, and the view id.
type Record struct {
	Question  string `json:"question"`
	Summary   string `json:"summary"`
	Statement string `json:"statement"`
	ViewID    string `json:"viewId"`
}

// Format renders one record per view. Missing properties default to empty
// strings; there are no failure modes.
func Format(list []mdl.View) []string {
	out := make([]string, 0, len(list))
	for _, view := range list {
		record := Record{
			Question:  view.Properties["question"],
			Summary:   view.Properties["summary"],
			Statement: view.Statement,
			ViewID:    view.Properties["viewId"],
		}
		encoded, err := json.Marshal(record)
		if err != nil {
			// Record is all strings; Marshal cannot fail here.
			continue
		}
		out = append(out, string(encoded))
	}
	return out
}
