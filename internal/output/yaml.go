package output

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/promoscout/pkg/campaign"
)

// YAMLWriter writes the result as one YAML document headed by a comment
// naming the run, so saved files are recognizable without parsing them.
type YAMLWriter struct {
	w *bufio.Writer
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

// Write encodes r.
func (w *YAMLWriter) Write(r *campaign.Result) error {
	if _, err := fmt.Fprintf(w.w, "# promoscout run %s (%s, %s)\n",
		r.RunID, r.Route, r.CapturedAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w.w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return w.w.Flush()
}
