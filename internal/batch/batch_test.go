package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadItems_JSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	content := `[{"value": "sk-test-0000000001", "alias": "a", "weight": 3}, {"value": "sk-test-0000000002"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := ReadItems(path)
	if err != nil {
		t.Fatalf("ReadItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Alias != "a" || items[0].Weight != 3 {
		t.Errorf("unexpected first item: %+v", items[0])
	}
}

func TestParse_NDJSONAndPlainLines(t *testing.T) {
	input := `# backup keys
{"value": "sk-test-0000000001", "alias": "one"}

sk-test-0000000002
`
	items, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].Alias != "one" {
		t.Errorf("first item alias = %q", items[0].Alias)
	}
	if items[1].Value != "sk-test-0000000002" || items[1].Alias != "" {
		t.Errorf("second item = %+v", items[1])
	}
}

func TestParse_InvalidJSONLine(t *testing.T) {
	_, err := Parse(strings.NewReader("{\"value\": \n"))
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expected line error, got %v", err)
	}
}

func TestParse_TooManyItems(t *testing.T) {
	var b strings.Builder
	for i := 0; i <= MaxItemCount; i++ {
		b.WriteString("sk-test-0123456789\n")
	}
	_, err := Parse(strings.NewReader(b.String()))
	if err == nil || !strings.Contains(err.Error(), "maximum item count") {
		t.Fatalf("expected item count error, got %v", err)
	}
}

func TestReadItems_MissingFile(t *testing.T) {
	if _, err := ReadItems(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSummary(t *testing.T) {
	ok, failed := Summary([]Result{{Success: true}, {Success: false}, {Success: true}})
	if ok != 2 || failed != 1 {
		t.Errorf("Summary() = %d, %d", ok, failed)
	}
}
