package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CSVImporter handles .csv and .tsv exports. The first row is treated as
// headers. One row becomes one document, taking its text from a detected
// (or explicitly named) text column and its timestamp from a date-like
// column when present.
type CSVImporter struct {
	// TextColumn names the column holding the document body. Empty means
	// auto-detect by header name, then by longest average cell length.
	TextColumn string
}

// Header names checked, in order, when auto-detecting the text column.
var textColumnCandidates = []string{"text", "body", "content", "message", "msg"}

var timestampColumnCandidates = []string{"timestamp", "date", "sent", "time", "created_at"}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC822Z,
	"01/02/2006 15:04",
	"01/02/2006",
}

// CanHandle returns true for CSV/TSV file extensions.
func (c *CSVImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv"
}

// Import parses a CSV file into documents. Rows whose text cell is empty
// or missing are counted as malformed records, not errors.
func (c *CSVImporter) Import(ctx context.Context, path string) ([]Document, []RecordError, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		reader.Comma = '\t'
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing CSV %s: %w", path, err)
	}

	if len(records) < 2 {
		// Need at least headers + one row.
		return nil, nil, nil
	}

	headers := records[0]
	textIdx := c.findTextColumn(headers, records[1:])
	if textIdx < 0 {
		return nil, nil, fmt.Errorf("no text column found in %s (headers: %s)", path, strings.Join(headers, ", "))
	}
	tsIdx := findTimestampColumn(headers)

	var docs []Document
	var recErrs []RecordError

	for i, row := range records[1:] {
		rowNum := i + 2 // 1-indexed, skip header row
		if textIdx >= len(row) || strings.TrimSpace(row[textIdx]) == "" {
			recErrs = append(recErrs, RecordError{
				File:    absPath,
				Record:  rowNum,
				Message: "empty text cell",
			})
			continue
		}

		text := strings.TrimSpace(row[textIdx])
		doc := Document{
			ID:         DocumentID(absPath, text),
			RawText:    text,
			SourceKind: KindOther,
			SourcePath: absPath,
			SourceLine: rowNum,
		}

		if tsIdx >= 0 && tsIdx < len(row) {
			if ts, ok := parseTimestamp(row[tsIdx]); ok {
				doc.Timestamp = ts
			}
		}

		docs = append(docs, doc)
	}

	return docs, recErrs, nil
}

// findTextColumn picks the column holding document bodies: explicit name
// first, then well-known header names, then the column with the longest
// average cell length.
func (c *CSVImporter) findTextColumn(headers []string, rows [][]string) int {
	if c.TextColumn != "" {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), c.TextColumn) {
				return i
			}
		}
		return -1
	}

	for _, cand := range textColumnCandidates {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), cand) {
				return i
			}
		}
	}

	bestIdx := -1
	bestAvg := 0.0
	for i := range headers {
		total := 0
		n := 0
		for _, row := range rows {
			if i < len(row) {
				total += len(row[i])
				n++
			}
		}
		if n == 0 {
			continue
		}
		avg := float64(total) / float64(n)
		if avg > bestAvg {
			bestAvg = avg
			bestIdx = i
		}
	}
	return bestIdx
}

func findTimestampColumn(headers []string) int {
	for _, cand := range timestampColumnCandidates {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), cand) {
				return i
			}
		}
	}
	return -1
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
