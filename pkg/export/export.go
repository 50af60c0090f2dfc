// Package export writes extracted words and their pixel boxes to JSON.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
)

// Indent is the fixed indentation of exported files.
const Indent = 6

// Record is one exported word.
type Record struct {
	Key  int        `json:"key"`
	Text string     `json:"text"`
	BBox [4]float64 `json:"bbox"`
}

// FromWords converts word records to export records, keeping their order.
func FromWords(records []layout.WordRecord) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Record{Key: r.Index, Text: r.Text, BBox: r.Box}
	}
	return out
}

// Marshal renders records as an indented JSON array.
func Marshal(records []layout.WordRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", strings.Repeat(" ", Indent))
	if err := enc.Encode(FromWords(records)); err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportRecords writes records to path, replacing any existing file. The
// parent directory is not created; when it is missing the returned error
// wraps fs.ErrNotExist.
func ExportRecords(records []layout.WordRecord, path string) error {
	data, err := Marshal(records)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to export records: %w", err)
	}
	return nil
}

// LoadRecords reads a file written by ExportRecords.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	return records, nil
}
