package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type item struct {
	ID     string `json:"id"`
	Tokens int    `json:"tokens"`
}

type itemList []item

func (l itemList) Table() Table {
	t := Table{Headers: []string{"ID", "TOKENS"}}
	for _, it := range l {
		t.Rows = append(t.Rows, []string{it.ID, strings.Repeat("*", it.Tokens)})
	}
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatText},
		{input: "  TEXT ", want: FormatText},
		{input: "json", want: FormatJSON},
		{input: "ndjson", want: FormatNDJSON},
		{input: "jsonl", want: FormatNDJSON},
		{input: "table", want: FormatTable},
		{input: "yaml", want: FormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFormat(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)
	if err := p.Print(context.Background(), item{ID: "work", Tokens: 2}); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	var got item
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got.ID != "work" || got.Tokens != 2 {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("expected indented JSON, got %q", buf.String())
	}
}

func TestPrinter_CompactJSON(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithCompactJSON(context.Background(), true)
	if err := NewPrinter(&buf, FormatJSON).Print(ctx, item{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "{\"id\":\"a\",\"tokens\":0}\n" {
		t.Errorf("compact JSON = %q", got)
	}
}

func TestPrinter_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	data := []item{{ID: "a", Tokens: 1}, {ID: "b", Tokens: 2}}
	if err := NewPrinter(&buf, FormatNDJSON).Print(context.Background(), data); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[1] != `{"id":"b","tokens":2}` {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestPrinter_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPrinter(&buf, FormatYAML).Print(context.Background(), item{ID: "work", Tokens: 3}); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if got["id"] != "work" {
		t.Errorf("id = %v", got["id"])
	}
}

func TestPrinter_TextObject(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{
		"id":     "work",
		"nested": map[string]any{"strategy": "weighted"},
		"tags":   []any{"a", "b"},
	}
	if err := NewPrinter(&buf, FormatText).Print(context.Background(), data); err != nil {
		t.Fatal(err)
	}
	want := "id: work\nnested:\n  strategy: weighted\ntags: a, b\n"
	if buf.String() != want {
		t.Errorf("text output = %q, want %q", buf.String(), want)
	}
}

func TestPrinter_TextListOfObjects(t *testing.T) {
	var buf bytes.Buffer
	data := []item{{ID: "a", Tokens: 1}, {ID: "bb", Tokens: 22}}
	if err := NewPrinter(&buf, FormatText).Print(context.Background(), data); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "TOKENS") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "22") {
		t.Errorf("row = %q", lines[2])
	}
}

func TestPrinter_Tabler(t *testing.T) {
	data := itemList{{ID: "a", Tokens: 2}}

	var text bytes.Buffer
	if err := NewPrinter(&text, FormatTable).Print(context.Background(), data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "**") {
		t.Errorf("Tabler columns not used: %q", text.String())
	}

	var js bytes.Buffer
	if err := NewPrinter(&js, FormatJSON).Print(context.Background(), data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"tokens": 2`) {
		t.Errorf("JSON should encode the value itself: %q", js.String())
	}
}

func TestPrinter_TableRequiresList(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPrinter(&buf, FormatTable).Print(context.Background(), item{ID: "a"}); err == nil {
		t.Fatal("expected error for non-list table output")
	}
}

func TestPrinter_Query(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithQuery(context.Background(), ".[] | select(.tokens > 1) | .id")
	data := []item{{ID: "a", Tokens: 1}, {ID: "b", Tokens: 2}}
	if err := NewPrinter(&buf, FormatJSON).Print(ctx, data); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != `"b"` {
		t.Errorf("query output = %q", buf.String())
	}

	buf.Reset()
	if err := NewPrinter(&buf, FormatText).Print(ctx, data); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "b\n" {
		t.Errorf("text query output = %q", buf.String())
	}
}

func TestPrinter_InvalidQuery(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithQuery(context.Background(), ".[")
	err := NewPrinter(&buf, FormatJSON).Print(ctx, []item{})
	if err == nil || !strings.Contains(err.Error(), "invalid --query") {
		t.Fatalf("expected invalid query error, got %v", err)
	}
}

func TestPrinter_JSONPath(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithJSONPath(context.Background(), "providers[1].id")
	data := map[string]any{"providers": []item{{ID: "a"}, {ID: "b"}}}
	if err := NewPrinter(&buf, FormatJSON).Print(ctx, data); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != `"b"` {
		t.Errorf("jsonpath output = %q", buf.String())
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		changed bool
	}{
		{`.a`, `.a`, false},
		{`select(.a \!= 1)`, `select(.a != 1)`, true},
		{`"\!"`, `"\!"`, false},
	}
	for _, tt := range tests {
		got, changed := NormalizeQuery(tt.in)
		if got != tt.want || changed != tt.changed {
			t.Errorf("NormalizeQuery(%q) = %q, %v; want %q, %v", tt.in, got, changed, tt.want, tt.changed)
		}
	}
}

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery(".providers[].id"); err != nil {
		t.Errorf("valid query rejected: %v", err)
	}
	if err := ValidateQuery("map(."); err == nil {
		t.Error("expected parse error")
	}
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	if FormatFromContext(ctx) != FormatText {
		t.Error("default format should be text")
	}
	if YesFromContext(ctx) || QuietFromContext(ctx) {
		t.Error("flags should default to false")
	}
	ctx = WithYes(WithQuiet(ctx, true), true)
	if !YesFromContext(ctx) || !QuietFromContext(ctx) {
		t.Error("flags not stored")
	}
}
