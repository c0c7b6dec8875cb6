package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents the output format type.
type Format string

const (
	// FormatText is human-readable key-value format (default).
	FormatText Format = "text"
	// FormatJSON is pretty-printed JSON format.
	FormatJSON Format = "json"
	// FormatNDJSON is newline-delimited JSON format.
	FormatNDJSON Format = "ndjson"
	// FormatTable is tabular format for lists.
	FormatTable Format = "table"
	// FormatYAML is YAML format.
	FormatYAML Format = "yaml"
)

// ParseFormat converts a string to a Format type.
// Empty string defaults to FormatText.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatNDJSON, "jsonl":
		return FormatNDJSON, nil
	case FormatTable:
		return FormatTable, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", errors.New("invalid --output format (expected text|json|ndjson|jsonl|table|yaml)")
	}
}

// IsStructured reports whether f is meant for machines rather than people.
func (f Format) IsStructured() bool {
	return f == FormatJSON || f == FormatNDJSON || f == FormatYAML
}

// Printer handles output formatting across different formats.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a new Printer that writes to w in the given format.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Format returns the printer's format.
func (p *Printer) Format() Format { return p.format }

// Print outputs data in the configured format, after applying any --jsonpath
// extraction and --query filter from ctx.
func (p *Printer) Print(ctx context.Context, data any) error {
	if data == nil {
		return nil
	}

	if path := JSONPathFromContext(ctx); path != "" {
		extracted, err := applyJSONPath(data, path)
		if err != nil {
			return err
		}
		data = extracted
	}

	if query := QueryFromContext(ctx); query != "" {
		results, err := runQuery(query, data)
		if err != nil {
			return err
		}
		switch p.format {
		case FormatText, FormatTable:
			for _, r := range results {
				if err := p.printText(r); err != nil {
					return err
				}
			}
			return nil
		case FormatYAML:
			for _, r := range results {
				if err := p.printYAML(r); err != nil {
					return err
				}
			}
			return nil
		default:
			return p.encodeJSON(results, p.format == FormatJSON && !CompactJSONFromContext(ctx))
		}
	}

	switch p.format {
	case FormatJSON:
		return p.encodeJSON([]any{data}, !CompactJSONFromContext(ctx))
	case FormatNDJSON:
		return p.printNDJSON(data)
	case FormatYAML:
		return p.printYAML(data)
	case FormatTable:
		return p.printTable(data)
	case FormatText:
		return p.printText(data)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

func (p *Printer) encodeJSON(values []any, pretty bool) error {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// printNDJSON writes one line per element for lists and one line otherwise.
func (p *Printer) printNDJSON(data any) error {
	normalized, err := normalizeToInterface(data)
	if err != nil {
		return err
	}
	if list, ok := normalized.([]any); ok {
		return p.encodeJSON(list, false)
	}
	return p.encodeJSON([]any{normalized}, false)
}

func (p *Printer) printYAML(data any) error {
	normalized, err := normalizeToInterface(data)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(normalized)
}

func (p *Printer) printTable(data any) error {
	if t, ok := asTable(data); ok {
		return writeTable(p.w, t)
	}
	normalized, err := normalizeToInterface(data)
	if err != nil {
		return err
	}
	list, ok := normalized.([]any)
	if !ok {
		return errors.New("table format requires a list result")
	}
	t, ok := tableFromMaps(list)
	if !ok {
		return errors.New("table format requires a list of objects")
	}
	return writeTable(p.w, t)
}

// printText renders tables for lists and key: value lines for objects.
func (p *Printer) printText(data any) error {
	if t, ok := asTable(data); ok {
		return writeTable(p.w, t)
	}
	normalized, err := normalizeToInterface(data)
	if err != nil {
		return err
	}

	switch v := normalized.(type) {
	case map[string]any:
		return p.printTextMap(v, "")
	case []any:
		if t, ok := tableFromMaps(v); ok {
			return writeTable(p.w, t)
		}
		for _, item := range v {
			_, _ = fmt.Fprintln(p.w, formatScalar(item))
		}
		return nil
	default:
		_, err := fmt.Fprintln(p.w, formatScalar(v))
		return err
	}
}

func (p *Printer) printTextMap(m map[string]any, indent string) error {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		switch v := m[k].(type) {
		case map[string]any:
			_, _ = fmt.Fprintf(p.w, "%s%s:\n", indent, k)
			if err := p.printTextMap(v, indent+"  "); err != nil {
				return err
			}
		case []any:
			if isScalarList(v) {
				_, _ = fmt.Fprintf(p.w, "%s%s: %s\n", indent, k, joinScalars(v))
				continue
			}
			_, _ = fmt.Fprintf(p.w, "%s%s:\n", indent, k)
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					_, _ = fmt.Fprintf(p.w, "%s  -\n", indent)
					if err := p.printTextMap(obj, indent+"    "); err != nil {
						return err
					}
					continue
				}
				_, _ = fmt.Fprintf(p.w, "%s  - %s\n", indent, formatScalar(item))
			}
		default:
			_, _ = fmt.Fprintf(p.w, "%s%s: %s\n", indent, k, formatScalar(v))
		}
	}
	return nil
}

func asTable(data any) (Table, bool) {
	switch v := data.(type) {
	case Table:
		return v, true
	case *Table:
		if v == nil {
			return Table{}, true
		}
		return *v, true
	case Tabler:
		return v.Table(), true
	}
	return Table{}, false
}

// tableFromMaps builds a table whose columns are the sorted union of keys.
func tableFromMaps(list []any) (Table, bool) {
	if len(list) == 0 {
		return Table{}, true
	}
	keySet := map[string]struct{}{}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return Table{}, false
		}
		for k := range m {
			keySet[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(keySet))
	for k := range keySet {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	t := Table{Headers: make([]string, len(headers))}
	for i, h := range headers {
		t.Headers[i] = strings.ToUpper(h)
	}
	for _, item := range list {
		m := item.(map[string]any)
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = formatCompact(m[h])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, true
}

func isScalarList(v []any) bool {
	for _, item := range v {
		switch item.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func joinScalars(v []any) string {
	parts := make([]string, len(v))
	for i, item := range v {
		parts[i] = formatScalar(item)
	}
	return strings.Join(parts, ", ")
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case map[string]any, []any:
		return formatCompact(x)
	default:
		return fmt.Sprint(x)
	}
}

// formatCompact renders nested values on one line for table cells.
func formatCompact(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return formatScalar(v)
	}
}
