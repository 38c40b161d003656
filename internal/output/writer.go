// Package output serializes harvest results.
package output

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jmylchreest/promoscout/internal/report"
	"github.com/jmylchreest/promoscout/pkg/campaign"
)

// Format represents output format types.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted --format values.
var Formats = []Format{FormatText, FormatJSON, FormatJSONL, FormatYAML}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatText, nil
	}
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("unsupported output format: %s (available: %v)", s, Formats)
	}
	return f, nil
}

// Writer handles result serialization.
type Writer interface {
	// Write outputs one harvest result.
	Write(r *campaign.Result) error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatText:
		return &TextWriter{w: w}, nil
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// TextWriter renders the summary tables.
type TextWriter struct {
	w io.Writer
}

// Write renders r.
func (t *TextWriter) Write(r *campaign.Result) error {
	return report.Render(t.w, r)
}
