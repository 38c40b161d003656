// Package campaign holds the records a harvest produces.
package campaign

import "time"

// Entity is one promotional item from the campaign grid.
type Entity struct {
	Index           int      `json:"index" yaml:"index"`
	Label           string   `json:"label,omitempty" yaml:"label,omitempty"`
	OriginalValue   string   `json:"original_value,omitempty" yaml:"original_value,omitempty"`
	ReducedValue    string   `json:"reduced_value,omitempty" yaml:"reduced_value,omitempty"`
	DiscountDelta   *float64 `json:"discount_delta,omitempty" yaml:"discount_delta,omitempty"`
	Available       bool     `json:"available" yaml:"available"`
	ExtractionError string   `json:"extraction_error,omitempty" yaml:"extraction_error,omitempty"`
}

// Failed reports whether the entity was abandoned by an unexpected error.
func (e Entity) Failed() bool {
	return e.ExtractionError != ""
}

// Metrics summarizes a set of entities.
type Metrics struct {
	Total           int      `json:"total" yaml:"total"`
	AvailableCount  int      `json:"available_count" yaml:"available_count"`
	AverageDiscount *float64 `json:"average_discount,omitempty" yaml:"average_discount,omitempty"`
	MaxDiscount     *float64 `json:"max_discount,omitempty" yaml:"max_discount,omitempty"`
}

// Result is the artifact of one harvest run.
type Result struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Entities   []Entity  `json:"entities" yaml:"entities"`
	Metrics    Metrics   `json:"metrics" yaml:"metrics"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
	Route      string    `json:"route" yaml:"route"`
	SourceURL  string    `json:"source_url,omitempty" yaml:"source_url,omitempty"`
}

// Samples returns the labelled entities among the first n in grid order.
// Unlabelled entities in that window are skipped, not replaced.
func (r *Result) Samples(n int) []Entity {
	head := r.Entities[:min(n, len(r.Entities))]
	out := make([]Entity, 0, len(head))
	for _, e := range head {
		if e.Label != "" {
			out = append(out, e)
		}
	}
	return out
}
