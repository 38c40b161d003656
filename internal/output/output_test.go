package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/promoscout/pkg/campaign"
)

func ptr(v float64) *float64 { return &v }

func sampleResult() *campaign.Result {
	return &campaign.Result{
		RunID: "run-42",
		Entities: []campaign.Entity{
			{Index: 0, Label: "Kaşar", OriginalValue: "200,00 TL", ReducedValue: "150,00 TL", DiscountDelta: ptr(25), Available: true},
			{Index: 1, ExtractionError: "element detached"},
		},
		Metrics:    campaign.Metrics{Total: 2, AvailableCount: 1, AverageDiscount: ptr(25), MaxDiscount: ptr(25)},
		CapturedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Route:      "direct_link",
		SourceURL:  "https://shop.test/kampanyalar",
	}
}

// --- NewWriter Factory Tests ---

func TestNewWriter_Types(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatText, "*output.TextWriter"},
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
	}
	for _, tt := range tests {
		w, err := NewWriter(&bytes.Buffer{}, tt.format)
		if err != nil {
			t.Fatalf("NewWriter(%s) error = %v", tt.format, err)
		}
		if got := fmt.Sprintf("%T", w); got != tt.want {
			t.Errorf("NewWriter(%s) = %s, want %s", tt.format, got, tt.want)
		}
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("csv"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected error containing 'unsupported', got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "JSON": FormatJSON, " jsonl ": FormatJSONL, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_Write(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONWriter(buf, true, "  ").Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got campaign.Result
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if got.RunID != "run-42" || len(got.Entities) != 2 || got.Metrics.AvailableCount != 1 {
		t.Errorf("unexpected result: %+v", got)
	}
	if !strings.Contains(buf.String(), "\n  \"run_id\"") {
		t.Errorf("expected indented output, got %s", buf.String())
	}
}

func TestJSONWriter_Compact(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, FormatJSON, WithPretty(false))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("expected a single line, got %d newlines", n)
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_Write(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONLWriter(buf).Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var lines []string
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var first Record
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("failed to unmarshal record: %v", err)
	}
	if first.RunID != "run-42" || first.Label != "Kaşar" || first.DiscountDelta == nil || *first.DiscountDelta != 25 {
		t.Errorf("unexpected record: %+v", first)
	}

	var failed Record
	if err := json.Unmarshal([]byte(lines[1]), &failed); err != nil {
		t.Fatalf("failed to unmarshal record: %v", err)
	}
	if !failed.Failed() || failed.Index != 1 {
		t.Errorf("expected failed entity 1, got %+v", failed)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(lines[2]), &summary); err != nil {
		t.Fatalf("failed to unmarshal summary: %v", err)
	}
	if summary.Total != 2 || summary.Route != "direct_link" {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestJSONLWriter_NoEntities(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONLWriter(buf).Write(&campaign.Result{RunID: "empty", Entities: []campaign.Entity{}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("expected only the summary line, got %d lines", n)
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_Write(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewYAMLWriter(buf).Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got campaign.Result
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if got.SourceURL != "https://shop.test/kampanyalar" || got.Entities[0].OriginalValue != "200,00 TL" {
		t.Errorf("unexpected result: %+v", got)
	}
	if !strings.HasPrefix(buf.String(), "# promoscout run run-42 (direct_link, 2026-03-01T09:30:00Z)\n") {
		t.Errorf("expected run header comment, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), "run_id: run-42") {
		t.Errorf("expected snake_case keys, got %s", buf.String())
	}
}

// --- TextWriter Tests ---

func TestTextWriter_Write(t *testing.T) {
	buf := &bytes.Buffer{}
	w, _ := NewWriter(buf, FormatText)
	if err := w.Write(sampleResult()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Kaşar") {
		t.Errorf("expected sample label in text output, got %s", buf.String())
	}
}
