// Package batch reads token lists for bulk import. Input may be a JSON
// array, NDJSON, or plain text with one token value per line.
package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// MaxInputSize is the maximum input size for a token import (1MB).
	MaxInputSize = 1024 * 1024
	// MaxItemCount is the maximum number of tokens in one import.
	MaxItemCount = 1000
)

// Item is one token to import.
type Item struct {
	Value    string `json:"value"`
	Alias    string `json:"alias,omitempty"`
	Weight   int    `json:"weight,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Result represents the outcome of importing a single item.
type Result struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	Alias   string `json:"alias,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReadItems reads items from path, or from stdin when path is "-".
func ReadItems(path string) ([]Item, error) {
	if path == "-" {
		return Parse(os.Stdin)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat file: %w", err)
	}
	if info.Size() > MaxInputSize {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", MaxInputSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse reads items from r.
func Parse(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read input: %w", err)
	}
	if len(data) > MaxInputSize {
		return nil, fmt.Errorf("input exceeds maximum size of %d bytes", MaxInputSize)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return checkCount(items)
	}

	var items []Item
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var item Item
		if strings.HasPrefix(text, "{") {
			if err := json.Unmarshal([]byte(text), &item); err != nil {
				return nil, fmt.Errorf("invalid JSON on line %d: %w", line, err)
			}
		} else {
			item.Value = text
		}

		items = append(items, item)
		if len(items) > MaxItemCount {
			return nil, fmt.Errorf("input exceeds maximum item count of %d", MaxItemCount)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	return items, nil
}

func checkCount(items []Item) ([]Item, error) {
	if len(items) > MaxItemCount {
		return nil, fmt.Errorf("input exceeds maximum item count of %d", MaxItemCount)
	}
	return items, nil
}

// Summary counts successes and failures.
func Summary(results []Result) (succeeded, failed int) {
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
