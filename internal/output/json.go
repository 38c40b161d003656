package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jmylchreest/promoscout/pkg/campaign"
)

// JSONWriter writes the whole result as one JSON document.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// Write encodes r and flushes.
func (w *JSONWriter) Write(r *campaign.Result) error {
	var (
		out []byte
		err error
	)
	if w.pretty {
		out, err = json.MarshalIndent(r, "", w.indent)
	} else {
		out, err = json.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return writeLine(w.w, out)
}

// Record is one JSONL line: an entity stamped with the run it came from.
type Record struct {
	RunID      string    `json:"run_id"`
	CapturedAt time.Time `json:"captured_at"`
	campaign.Entity
}

// Summary is the trailing JSONL line carrying the run metrics.
type Summary struct {
	RunID      string    `json:"run_id"`
	CapturedAt time.Time `json:"captured_at"`
	Route      string    `json:"route"`
	SourceURL  string    `json:"source_url,omitempty"`
	campaign.Metrics
}

// JSONLWriter writes one line per entity followed by a summary line.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

// Write emits the entity records then the summary.
func (w *JSONLWriter) Write(r *campaign.Result) error {
	for _, e := range r.Entities {
		out, err := json.Marshal(Record{RunID: r.RunID, CapturedAt: r.CapturedAt, Entity: e})
		if err != nil {
			return fmt.Errorf("failed to encode entity %d: %w", e.Index, err)
		}
		if err := writeLine(w.w, out); err != nil {
			return err
		}
	}

	out, err := json.Marshal(Summary{
		RunID:      r.RunID,
		CapturedAt: r.CapturedAt,
		Route:      r.Route,
		SourceURL:  r.SourceURL,
		Metrics:    r.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return writeLine(w.w, out)
}

func writeLine(w *bufio.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
